// pkg/orchestrator/state.go

package orchestrator

// State is where a run currently is in its lifecycle. Cancelling is
// reachable from every non-terminal state and drains to Done.
type State int32

const (
	StateIdle State = iota
	StateEnsuringConnections
	StateTransferring
	StateRepoSync
	StatePostScript
	StateCancelling
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEnsuringConnections:
		return "ensuring_connections"
	case StateTransferring:
		return "transferring"
	case StateRepoSync:
		return "repo_sync"
	case StatePostScript:
		return "post_script"
	case StateCancelling:
		return "cancelling"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}
