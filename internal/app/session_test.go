package app

import (
	"errors"
	"testing"
)

func TestNewMonitorSession(t *testing.T) {
	sess := NewMonitorSession("sess-1", 1700000000000)

	if sess.ID != "sess-1" {
		t.Errorf("ID = %q, want sess-1", sess.ID)
	}
	if sess.StartedAt != 1700000000000 {
		t.Errorf("StartedAt = %d, want 1700000000000", sess.StartedAt)
	}
	if sess.Status != "finished" {
		t.Errorf("Status = %q, want finished", sess.Status)
	}
	if sess.Recorded != 0 {
		t.Errorf("Recorded = %d, want 0", sess.Recorded)
	}
}

func TestMonitorSession_Finish(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus string
	}{
		{name: "clean run", err: nil, wantStatus: "finished"},
		{name: "failed run", err: errors.New("watch source died"), wantStatus: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := NewMonitorSession("sess-1", 1000)
			sess.Finish(42, tt.err)

			if sess.Recorded != 42 {
				t.Errorf("Recorded = %d, want 42", sess.Recorded)
			}
			if sess.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", sess.Status, tt.wantStatus)
			}
		})
	}
}
