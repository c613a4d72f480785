package app

// MonitorSession tracks one invocation that writes to the event database.
// Read-only commands never create one; `run` and `archive` persist a
// session row up front and Close writes the outcome back.
type MonitorSession struct {
	ID        string
	StartedAt int64  // Unix milliseconds
	Status    string // "finished", or "error" after a failed run
	Recorded  int64  // events appended by this run
}

// NewMonitorSession creates the in-memory record for a session that was
// just persisted as running.
func NewMonitorSession(id string, startedAt int64) *MonitorSession {
	return &MonitorSession{
		ID:        id,
		StartedAt: startedAt,
		Status:    "finished",
	}
}

// Finish records the run outcome: how many events were appended, and
// whether the run failed.
func (s *MonitorSession) Finish(recorded int64, err error) {
	s.Recorded = recorded
	if err != nil {
		s.Status = "error"
	}
}
