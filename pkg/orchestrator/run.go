// pkg/orchestrator/run.go

package orchestrator

import (
	"context"
	"sync/atomic"

	"github.com/sharesync/sharesync/pkg/progress"
	"github.com/sharesync/sharesync/pkg/recorder"
)

// Run is the live handle for one orchestrator invocation. It is created by
// Start, mutated only by the supervising goroutine, and terminal once Wait
// returns. The cancellation flag is set-once, read-many.
type Run struct {
	ID string

	ctx    context.Context
	cancel context.CancelFunc

	events chan progress.Event
	done   chan struct{}
	log    recorder.RunLog

	state     atomic.Int32
	cancelled atomic.Bool

	// progress accounting: completed whole units out of the run's total.
	totalUnits     int
	completedUnits int
	lastPercent    int

	outcome progress.Outcome
	message string
}

// Events is the ordered stream of run events. The channel is closed after
// the terminal done event; consumers should range over it.
func (r *Run) Events() <-chan progress.Event { return r.events }

// Cancel requests cooperative cancellation. It returns immediately; the run
// drains to a Cancelled outcome within one output-line read or process poll.
func (r *Run) Cancel() {
	if r.cancelled.CompareAndSwap(false, true) {
		if State(r.state.Load()) != StateDone {
			r.state.Store(int32(StateCancelling))
		}
		r.cancel()
	}
}

// Wait blocks until the run reaches Done and returns the terminal outcome
// with its one-sentence summary.
func (r *Run) Wait() (progress.Outcome, string) {
	<-r.done
	return r.outcome, r.message
}

// State reports the run's current lifecycle state.
func (r *Run) State() State { return State(r.state.Load()) }

func (r *Run) setState(s State) {
	// Cancelling is sticky until the run terminates.
	if r.cancelled.Load() && s != StateDone {
		return
	}
	r.state.Store(int32(s))
}

// emit delivers an event to the consumer and the run record. Delivery
// blocks on a slow consumer; once cancellation fires it degrades to
// best-effort so a vanished consumer cannot wedge the drain.
func (r *Run) emit(ev progress.Event) {
	r.log.Event(ev)
	select {
	case r.events <- ev:
	case <-r.ctx.Done():
		select {
		case r.events <- ev:
		default:
		}
	}
}

// emitOverall recomputes the weighted percentage, folding in the fraction of
// the unit currently in flight. The reported value never decreases over the
// lifetime of the run.
func (r *Run) emitOverall(message string, unitFraction int) {
	if r.totalUnits == 0 {
		return
	}
	percent := (100*r.completedUnits + unitFraction) / r.totalUnits
	if percent > 100 {
		percent = 100
	}
	if percent < r.lastPercent {
		percent = r.lastPercent
	}
	r.lastPercent = percent
	r.emit(progress.Progressf(message, percent))
}

// finish records the terminal outcome, forces the final 100% emission and
// closes the event stream.
func (r *Run) finish(outcome progress.Outcome, message string) {
	r.outcome = outcome
	r.message = message
	r.lastPercent = 100
	r.state.Store(int32(StateDone))
	r.emit(progress.Done(message))
	r.log.Close(outcome, message)
	close(r.events)
	close(r.done)
}
