package fwatch

import "context"

// Kind is the low-level change category reported by a watch source.
// Kinds say what the filesystem reported, not what happened to the file;
// turning them into lifecycle events is the classifier's job.
type Kind int

const (
	// Appeared means a path that was not there before now exists.
	Appeared Kind = iota
	// Changed means the content or metadata of an existing path changed.
	Changed
	// Disappeared means a path that existed is gone. The watch layer cannot
	// tell a delete from the first half of a rename; the correlator can.
	Disappeared
)

func (k Kind) String() string {
	switch k {
	case Appeared:
		return "appeared"
	case Changed:
		return "changed"
	case Disappeared:
		return "disappeared"
	}
	return "unknown"
}

// Notification is one raw filesystem observation for a single file path.
// Directory-level changes are resolved by the watch layer and never
// reach the engine.
type Notification struct {
	Kind Kind
	Path string
}

// WatchSource produces raw notifications for the monitored roots.
type WatchSource interface {
	// Start begins watching. Notifications are delivered on Events until
	// the context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Events returns the notification channel.
	Events() <-chan Notification

	// Errors returns the channel of non-fatal watch errors.
	Errors() <-chan error

	// Stop stops watching. Safe to call multiple times.
	Stop()
}

// PathFilter reports whether a path is excluded from monitoring.
// The same filter drives the watch layer and the initial scan, so a
// path is either visible to both or to neither.
type PathFilter interface {
	Excluded(path string) bool
}
