// pkg/transfer/driver.go

// Package transfer drives the external copy tool for a single sync spec:
// it builds the command, supervises the process with bounded retries on
// transient failures, and translates the tool's streaming output into
// normalized progress events.
package transfer

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/sharesync/sharesync/pkg/execute"
	"github.com/sharesync/sharesync/pkg/profile"
	"github.com/sharesync/sharesync/pkg/progress"
	"github.com/sharesync/sharesync/pkg/syncerr"
)

// retryBackoff is the fixed pause between transient-failure attempts.
const retryBackoff = time.Second

// Result is the terminal state of one transfer. Err carries the classified
// error for Failure outcomes; Attempts counts command invocations.
type Result struct {
	Outcome  progress.Outcome
	Message  string
	Attempts int
	Err      error
}

// Driver runs transfers. Safe for sequential reuse; one transfer at a time.
type Driver struct {
	runner  execute.Runner
	builder Builder
	logger  *zap.Logger

	// Backoff overrides the fixed retry pause; zero means the default.
	// Exposed so tests do not sleep for real.
	Backoff time.Duration
}

// NewDriver builds a driver with the copy tool native to this platform.
func NewDriver(runner execute.Runner, logger *zap.Logger) *Driver {
	return NewDriverWith(runner, DefaultBuilder(runtime.GOOS), logger)
}

// NewDriverWith builds a driver around an explicit tool builder.
func NewDriverWith(runner execute.Runner, builder Builder, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{runner: runner, builder: builder, logger: logger}
}

// DefaultBuilder returns the copy-tool builder for the given GOOS.
func DefaultBuilder(goos string) Builder {
	if goos == "windows" {
		return NewRobocopyBuilder()
	}
	return NewRsyncBuilder()
}

// Transfer copies one spec's source to its destination. onProgress receives
// normalized events while the tool streams; cancellation of ctx terminates
// the subprocess, skips remaining retries and yields a Cancelled outcome.
//
// On success the destination reflects the copy tool's own consistency
// guarantees, no more. On failure the destination keeps whatever partial
// state the tool left; nothing is rolled back.
func (d *Driver) Transfer(ctx context.Context, spec profile.Spec, dryRun bool, onProgress progress.Callback) Result {
	if onProgress == nil {
		onProgress = func(progress.Event) {}
	}

	if err := spec.Validate(); err != nil {
		return Result{Outcome: progress.OutcomeFailure, Message: err.Error(), Err: err}
	}

	// A local source must exist; a remote one is assumed reachable because
	// the orchestrator has already ensured the preconditions.
	if !spec.Source.IsRemote {
		if _, err := os.Stat(spec.Source.Path); err != nil {
			err = syncerr.Fatal(cerr.Newf("source path does not exist: %s", spec.Source.Path))
			return Result{Outcome: progress.OutcomeFailure, Message: err.Error(), Err: err}
		}
	}
	if !spec.Destination.IsRemote && !dryRun {
		if err := os.MkdirAll(spec.Destination.Path, 0o755); err != nil {
			err = syncerr.Fatal(cerr.Wrapf(err, "cannot create destination %s", spec.Destination.Path))
			return Result{Outcome: progress.OutcomeFailure, Message: err.Error(), Err: err}
		}
	}

	maxAttempts := spec.RetryCount + 1
	backoff := d.Backoff
	if backoff <= 0 {
		backoff = retryBackoff
	}

	for attempt := 1; ; attempt++ {
		cmd := d.builder.Build(spec, dryRun)
		d.logger.Info("starting transfer attempt",
			zap.String("tool", d.builder.ToolName()),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.String("command", execute.CommandString(cmd)))

		status, cancelled, err := d.runAttempt(ctx, cmd, onProgress)
		if err != nil {
			// Could not even spawn the tool; retrying cannot help.
			return Result{Outcome: progress.OutcomeFailure, Message: err.Error(), Attempts: attempt, Err: err}
		}
		if cancelled || status.Cancelled {
			err := syncerr.Cancelled("transfer")
			return Result{Outcome: progress.OutcomeCancelled, Message: err.Error(), Attempts: attempt, Err: err}
		}

		switch d.builder.ClassifyExit(status.Code) {
		case ExitSuccess:
			msg := fmt.Sprintf("%s completed successfully", d.builder.ToolName())
			if attempt > 1 {
				msg = fmt.Sprintf("%s completed successfully after %d attempts", d.builder.ToolName(), attempt)
			}
			return Result{Outcome: progress.OutcomeSuccess, Message: msg, Attempts: attempt}

		case ExitTransient:
			if attempt < maxAttempts {
				d.logger.Warn("transient failure, retrying",
					zap.Int("exit_code", status.Code),
					zap.Int("attempt", attempt),
					zap.Int("max_attempts", maxAttempts))
				onProgress(progress.Status(fmt.Sprintf(
					"some files vanished during the scan, retrying (%d/%d)", attempt, maxAttempts)))
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					err := syncerr.Cancelled("transfer")
					return Result{Outcome: progress.OutcomeCancelled, Message: err.Error(), Attempts: attempt, Err: err}
				}
				continue
			}
			err := syncerr.Fatal(cerr.Newf(
				"%s still failing with transient code %d after %d attempts",
				d.builder.ToolName(), status.Code, attempt))
			return Result{Outcome: progress.OutcomeFailure, Message: err.Error(), Attempts: attempt, Err: err}

		default:
			err := syncerr.Fatal(cerr.Newf("%s failed with exit code %d", d.builder.ToolName(), status.Code))
			return Result{Outcome: progress.OutcomeFailure, Message: err.Error(), Attempts: attempt, Err: err}
		}
	}
}

// runAttempt supervises one tool invocation, forwarding parsed progress and
// verbatim lines. It reports cancelled=true when ctx fired mid-stream.
func (d *Driver) runAttempt(ctx context.Context, cmd execute.Command, onProgress progress.Callback) (execute.Status, bool, error) {
	handle, err := d.runner.Start(ctx, cmd)
	if err != nil {
		return execute.Status{}, false, err
	}

	// Percent floor for this attempt: progress never moves backwards,
	// out-of-range or unparsable values are skipped, never fatal.
	lastPercent := 0
	lines := handle.Lines()
	for lines != nil {
		select {
		case <-ctx.Done():
			handle.Cancel()
			status := handle.Wait()
			return status, true, nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if percent, ok := d.builder.ParseProgress(line.Text); ok {
				if percent >= lastPercent && percent <= 100 {
					lastPercent = percent
					onProgress(progress.Progressf(line.Text, percent))
				}
				continue
			}
			if line.Stream == execute.StreamStderr {
				onProgress(progress.Error(line.Text))
			} else if line.Text != "" {
				onProgress(progress.Status(line.Text))
			}
		}
	}

	return handle.Wait(), false, nil
}
