// pkg/syncerr/syncerr.go
//
// Error taxonomy for the sync engine. Errors are classified by marking them
// with package-level sentinels so callers can branch on the class without
// losing the wrapped cause chain.

package syncerr

import (
	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
)

// Sentinel markers for the engine error classes. Use the constructors below
// rather than marking by hand.
var (
	// ErrValidation: bad SyncSpec, reported before anything executes.
	ErrValidation = cerr.New("spec validation failed")
	// ErrLaunch: external tool missing or unspawnable; fatal to that step only.
	ErrLaunch = cerr.New("failed to launch external command")
	// ErrTransientTransfer: retryable copy-tool exit status, recovered
	// internally up to the configured retry count.
	ErrTransientTransfer = cerr.New("transient transfer failure")
	// ErrFatalTransfer: non-retryable exit status or retries exhausted.
	ErrFatalTransfer = cerr.New("fatal transfer failure")
	// ErrPrecondition: VPN/mount failure before any transfer begins.
	ErrPrecondition = cerr.New("network precondition failed")
	// ErrVPNRequired: share mount attempted without an established VPN.
	ErrVPNRequired = cerr.New("VPN connection required")
	// ErrNotSupported: operation not implemented on this platform.
	ErrNotSupported = cerr.New("not supported on this platform")
	// ErrCancelled: user-initiated cancellation; distinct from failure.
	ErrCancelled = cerr.New("cancelled")
	// ErrRunInProgress: a second run was started while one is in flight.
	ErrRunInProgress = cerr.New("a sync run is already in progress")
)

// Validation combines all violated invariants into one error so the caller
// sees every problem, not just the first.
func Validation(violations []error) error {
	if len(violations) == 0 {
		return nil
	}
	var merr *multierror.Error
	for _, v := range violations {
		merr = multierror.Append(merr, v)
	}
	return cerr.Mark(merr.ErrorOrNil(), ErrValidation)
}

// Launch wraps a spawn failure for the named command.
func Launch(err error, command string) error {
	return cerr.Mark(cerr.Wrapf(err, "cannot launch %q", command), ErrLaunch)
}

// Transient marks a retryable transfer failure carrying the tool exit code.
func Transient(exitCode int) error {
	return cerr.Mark(cerr.Newf("copy tool exited with transient code %d", exitCode), ErrTransientTransfer)
}

// Fatal marks a terminal transfer failure.
func Fatal(err error) error {
	return cerr.Mark(err, ErrFatalTransfer)
}

// Precondition marks a VPN/mount failure that aborts the whole run.
func Precondition(err error) error {
	return cerr.Mark(err, ErrPrecondition)
}

// VPNRequired reports a mount attempted while the VPN is down.
func VPNRequired() error {
	return cerr.Mark(
		cerr.WithHint(cerr.New("share is only reachable over the VPN"), "connect the VPN first"),
		ErrVPNRequired)
}

// NotSupported reports a platform gap for the given operation.
func NotSupported(op, goos string) error {
	return cerr.Mark(cerr.Newf("%s is not supported on %s", op, goos), ErrNotSupported)
}

// Cancelled reports user-initiated cancellation of the named step.
func Cancelled(step string) error {
	return cerr.Mark(cerr.Newf("%s cancelled by user", step), ErrCancelled)
}

func IsValidation(err error) bool   { return cerr.Is(err, ErrValidation) }
func IsLaunch(err error) bool       { return cerr.Is(err, ErrLaunch) }
func IsTransient(err error) bool    { return cerr.Is(err, ErrTransientTransfer) }
func IsFatal(err error) bool        { return cerr.Is(err, ErrFatalTransfer) }
func IsPrecondition(err error) bool { return cerr.Is(err, ErrPrecondition) }
func IsVPNRequired(err error) bool  { return cerr.Is(err, ErrVPNRequired) }
func IsNotSupported(err error) bool { return cerr.Is(err, ErrNotSupported) }
func IsCancelled(err error) bool    { return cerr.Is(err, ErrCancelled) }

// ExitCode maps an error class to a CLI exit code: validation problems get 2,
// cancellation gets the conventional interrupt code, everything else 1.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case IsCancelled(err):
		return 130
	case IsValidation(err):
		return 2
	default:
		return 1
	}
}
