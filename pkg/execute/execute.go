// pkg/execute/execute.go

// Package execute supervises external commands. It streams their output
// line by line, supports cooperative cancellation and reports exit status
// as data rather than as an error: callers interpret exit codes themselves.
package execute

import (
	"bufio"
	"context"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sharesync/sharesync/pkg/syncerr"
)

// Stream identifies which pipe a line came from. Ordering is guaranteed
// within a stream, not between the two.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Line is one line of subprocess output, tagged with its origin.
type Line struct {
	Stream Stream
	Text   string
}

// Status is the terminal state of a supervised process. Cancelled is set
// when the process was terminated through Cancel rather than exiting on its
// own; Code is then meaningless.
type Status struct {
	Code      int
	Cancelled bool
}

// Command describes one external invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
}

// Handle follows a running process. Lines is closed when both output
// streams are drained; Wait blocks until the process has exited.
type Handle interface {
	Lines() <-chan Line
	Wait() Status
	Cancel()
}

// Runner launches commands. The process-backed implementation is ProcRunner;
// tests substitute fakes.
type Runner interface {
	Start(ctx context.Context, cmd Command) (Handle, error)
}

// terminateGrace is how long a cancelled process gets to exit after SIGTERM
// before it is killed.
const terminateGrace = 3 * time.Second

// ProcRunner runs commands as OS processes, one per Start call.
type ProcRunner struct {
	logger *zap.Logger
}

func NewRunner(logger *zap.Logger) *ProcRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcRunner{logger: logger}
}

// Start spawns the command and begins pumping its stdout and stderr into a
// single line channel (one reader goroutine per stream). A command that
// cannot be spawned yields a launch error; a non-zero exit does not.
func (r *ProcRunner) Start(ctx context.Context, command Command) (Handle, error) {
	runCtx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(runCtx, command.Name, command.Args...)
	cmd.Dir = command.Dir
	cmd.Cancel = func() error {
		// Ask politely first; WaitDelay escalates to SIGKILL.
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = terminateGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, syncerr.Launch(err, command.Name)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, syncerr.Launch(err, command.Name)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, syncerr.Launch(err, command.Name)
	}

	r.logger.Debug("process started",
		zap.String("command", command.Name),
		zap.Strings("args", command.Args),
		zap.Int("pid", cmd.Process.Pid))

	h := &procHandle{
		cmd:    cmd,
		ctx:    runCtx,
		cancel: cancel,
		lines:  make(chan Line, 64),
		done:   make(chan struct{}),
		logger: r.logger,
	}

	var pumps sync.WaitGroup
	pumps.Add(2)
	go h.pump(&pumps, StreamStdout, bufio.NewScanner(stdout))
	go h.pump(&pumps, StreamStderr, bufio.NewScanner(stderr))

	go func() {
		pumps.Wait()
		close(h.lines)
		err := cmd.Wait()
		h.status = exitStatus(err, h.cancelled.Load())
		close(h.done)
		r.logger.Debug("process exited",
			zap.String("command", command.Name),
			zap.Int("code", h.status.Code),
			zap.Bool("cancelled", h.status.Cancelled))
	}()

	return h, nil
}

type procHandle struct {
	cmd       *exec.Cmd
	ctx       context.Context
	cancel    context.CancelFunc
	lines     chan Line
	done      chan struct{}
	status    Status
	cancelled atomic.Bool
	logger    *zap.Logger
}

func (h *procHandle) Lines() <-chan Line { return h.lines }

func (h *procHandle) Wait() Status {
	<-h.done
	return h.status
}

// Cancel terminates the process. Wait will report Cancelled instead of a
// normal exit code. Safe to call more than once.
func (h *procHandle) Cancel() {
	h.cancelled.Store(true)
	h.cancel()
}

// pump forwards scanned lines until the stream ends. A consumer that has
// stopped reading must never wedge shutdown, so sends give up once the run
// context is cancelled and the remaining backlog is dropped.
func (h *procHandle) pump(wg *sync.WaitGroup, stream Stream, scanner *bufio.Scanner) {
	defer wg.Done()
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case h.lines <- Line{Stream: stream, Text: scanner.Text()}:
		case <-h.ctx.Done():
			return
		}
	}
}

// exitStatus normalizes cmd.Wait results. A wait error that is not an
// ExitError (killed, I/O trouble) surfaces as code -1.
func exitStatus(err error, cancelled bool) Status {
	if cancelled {
		return Status{Code: -1, Cancelled: true}
	}
	if err == nil {
		return Status{Code: 0}
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return Status{Code: exitErr.ExitCode()}
	}
	return Status{Code: -1}
}
