// pkg/progress/progress.go

// Package progress defines the event stream the engine pushes to its caller
// during a run, and the terminal outcome of a run. This is the only data
// that crosses the engine boundary while a sync is executing.
package progress

// PercentUnknown is used when a percentage does not apply to an event.
const PercentUnknown = -1

// Kind tags an event for the consumer (GUI, CLI renderer, log).
type Kind string

const (
	KindStatus   Kind = "status"
	KindProgress Kind = "progress"
	KindError    Kind = "error"
	KindComplete Kind = "complete"
	KindDone     Kind = "done"
)

// Event is one entry in a run's ordered event stream. Percent is
// PercentUnknown when not applicable. Duplicate percent values are possible
// and harmless; consumers must treat delivery as at-least-once.
type Event struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Percent int    `json:"percent"`
}

// Callback receives events as they occur. Implementations must be fast; the
// supervising goroutine calls them inline.
type Callback func(Event)

func Status(msg string) Event {
	return Event{Kind: KindStatus, Message: msg, Percent: PercentUnknown}
}

func Error(msg string) Event {
	return Event{Kind: KindError, Message: msg, Percent: PercentUnknown}
}

func Complete(msg string) Event {
	return Event{Kind: KindComplete, Message: msg, Percent: PercentUnknown}
}

// Progressf reports a percentage in [0,100] with a human-readable message.
func Progressf(msg string, percent int) Event {
	return Event{Kind: KindProgress, Message: msg, Percent: percent}
}

// Done is the final event of a run; its percent is always 100.
func Done(msg string) Event { return Event{Kind: KindDone, Message: msg, Percent: 100} }

// Outcome is the terminal result of a transfer or of a whole run.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
