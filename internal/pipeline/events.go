package pipeline

import "log/slog"

// EventKind tags the closed set of progress message variants delivered to
// the consumer.
type EventKind string

const (
	EventLog      EventKind = "log"
	EventStatus   EventKind = "status"
	EventProgress EventKind = "progress"
	EventComplete EventKind = "complete"
	EventFailed   EventKind = "failed"
)

// Event is one progress/status message. Events are delivered over a
// single-producer/single-consumer channel in emission order; the channel is
// closed when the run ends.
type Event struct {
	Kind     EventKind
	Message  string
	Level    slog.Level // meaningful for EventLog
	Progress float64    // meaningful for EventProgress, in [0, 1]
	Outcome  *Outcome   // set on EventComplete and EventFailed
}
