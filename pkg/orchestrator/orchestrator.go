// pkg/orchestrator/orchestrator.go

// Package orchestrator drives a full sync run: connection preconditions,
// the ordered transfers, the optional repository pull and follow-up script.
// It owns the run lifecycle and the weighted progress stream; everything
// that touches the network or a process is delegated to collaborators so
// the state machine itself stays testable.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	cerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sharesync/sharesync/pkg/credstore"
	"github.com/sharesync/sharesync/pkg/execute"
	"github.com/sharesync/sharesync/pkg/gitops"
	"github.com/sharesync/sharesync/pkg/netshare"
	"github.com/sharesync/sharesync/pkg/profile"
	"github.com/sharesync/sharesync/pkg/progress"
	"github.com/sharesync/sharesync/pkg/recorder"
	"github.com/sharesync/sharesync/pkg/syncerr"
	"github.com/sharesync/sharesync/pkg/transfer"
)

// TransferDriver is the slice of *transfer.Driver the orchestrator needs.
type TransferDriver interface {
	Transfer(ctx context.Context, spec profile.Spec, dryRun bool, onProgress progress.Callback) transfer.Result
}

// pullFunc matches gitops.Pull; injectable so tests avoid real repositories.
type pullFunc func(ctx context.Context, path string, logger *zap.Logger) (string, error)

// Request describes one run. Specs execute in order; a failed source does
// not stop its siblings.
type Request struct {
	Specs      []profile.Spec
	DryRun     bool
	RepoPull   profile.StepConfig
	PostScript profile.StepConfig
}

// Orchestrator executes requests one at a time. A second Start while a run
// is live is rejected, never queued.
type Orchestrator struct {
	probe  netshare.Probe
	driver TransferDriver
	runner execute.Runner
	creds  credstore.Store
	rec    recorder.Recorder
	logger *zap.Logger
	pull   pullFunc

	mu     sync.Mutex
	active *Run
}

// New wires an orchestrator from its collaborators. A nil recorder records
// nothing; a nil logger is replaced with a no-op.
func New(probe netshare.Probe, driver TransferDriver, runner execute.Runner, creds credstore.Store, rec recorder.Recorder, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rec == nil {
		rec = recorder.Nop{}
	}
	return &Orchestrator{
		probe:  probe,
		driver: driver,
		runner: runner,
		creds:  creds,
		rec:    rec,
		logger: logger,
		pull:   gitops.Pull,
	}
}

// Start validates the request and, if it is sound, launches the run on a
// supervising goroutine. Validation failures are returned synchronously;
// nothing has executed and no run exists. Only one run may be live at a
// time.
func (o *Orchestrator) Start(ctx context.Context, req Request) (*Run, error) {
	if len(req.Specs) == 0 {
		return nil, syncerr.Validation([]error{cerr.New("request has no sync specs")})
	}
	var violations []error
	for i, spec := range req.Specs {
		if err := spec.Validate(); err != nil {
			violations = append(violations, cerr.Wrapf(err, "spec %d", i))
		}
	}
	if req.PostScript.Enabled && strings.TrimSpace(req.PostScript.Path) == "" {
		violations = append(violations, cerr.New("post script enabled without a path"))
	}
	if req.RepoPull.Enabled && strings.TrimSpace(req.RepoPull.Path) == "" {
		violations = append(violations, cerr.New("repository pull enabled without a path"))
	}
	if len(violations) > 0 {
		return nil, syncerr.Validation(violations)
	}

	// A bidirectional spec runs as two legs; expand before accounting so
	// each leg weighs as one progress unit.
	var expanded []profile.Spec
	for _, spec := range req.Specs {
		expanded = append(expanded, spec.Legs()...)
	}
	req.Specs = expanded

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active != nil {
		select {
		case <-o.active.done:
			// previous run finished; slot is free
		default:
			return nil, cerr.Mark(cerr.New("a sync run is already in progress"), syncerr.ErrRunInProgress)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		ID:         uuid.New().String(),
		ctx:        runCtx,
		cancel:     cancel,
		events:     make(chan progress.Event, 64),
		done:       make(chan struct{}),
		totalUnits: totalUnits(req),
	}
	run.log = o.rec.Begin(run.ID)
	o.active = run

	go o.execute(runCtx, run, req)
	return run, nil
}

// Active returns the live run, or nil when the orchestrator is idle.
func (o *Orchestrator) Active() *Run {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil {
		return nil
	}
	select {
	case <-o.active.done:
		return nil
	default:
		return o.active
	}
}

// totalUnits weights every spec and each enabled step equally.
func totalUnits(req Request) int {
	n := len(req.Specs)
	if req.RepoPull.Enabled {
		n++
	}
	if req.PostScript.Enabled {
		n++
	}
	return n
}

// execute is the supervising goroutine body. It runs the phases in order
// and always terminates the run with exactly one outcome.
func (o *Orchestrator) execute(ctx context.Context, run *Run, req Request) {
	log := o.logger.With(zap.String("run_id", run.ID))
	log.Info("sync run starting",
		zap.Int("specs", len(req.Specs)),
		zap.Bool("dry_run", req.DryRun),
		zap.Int("total_units", run.totalUnits))

	if err := o.ensureConnections(ctx, run, req); err != nil {
		if run.cancelled.Load() || syncerr.IsCancelled(err) || cerr.Is(err, context.Canceled) {
			o.finishCancelled(run, log)
			return
		}
		log.Warn("preconditions not met", zap.Error(err))
		run.finish(progress.OutcomeFailure, err.Error())
		return
	}

	succeeded, failed := o.runTransfers(ctx, run, req, log)
	if run.cancelled.Load() {
		o.finishCancelled(run, log)
		return
	}

	o.runRepoPull(ctx, run, req, log)
	o.runPostScript(ctx, run, req, log)
	if run.cancelled.Load() {
		o.finishCancelled(run, log)
		return
	}

	switch {
	case succeeded == 0:
		msg := fmt.Sprintf("sync failed: all %d sources failed", len(req.Specs))
		log.Error("sync run failed", zap.Int("failed", failed))
		run.finish(progress.OutcomeFailure, msg)
	case failed > 0:
		msg := fmt.Sprintf("sync finished: %d of %d sources failed", failed, len(req.Specs))
		log.Warn("sync run finished with failures",
			zap.Int("succeeded", succeeded), zap.Int("failed", failed))
		run.finish(progress.OutcomeSuccess, msg)
	default:
		msg := fmt.Sprintf("sync finished: %d sources synchronized", succeeded)
		log.Info("sync run finished", zap.Int("succeeded", succeeded))
		run.finish(progress.OutcomeSuccess, msg)
	}
}

func (o *Orchestrator) finishCancelled(run *Run, log *zap.Logger) {
	log.Info("sync run cancelled")
	run.finish(progress.OutcomeCancelled, "sync cancelled")
}

// ensureConnections brings up the VPN and the share mount when any endpoint
// needs them. Checks precede actions so an already-connected machine takes
// the fast path.
func (o *Orchestrator) ensureConnections(ctx context.Context, run *Run, req Request) error {
	needVPN, needShare := false, false
	for _, spec := range req.Specs {
		for _, loc := range []profile.Location{spec.Source, spec.Destination} {
			needVPN = needVPN || loc.RequiresVPN
			needShare = needShare || loc.RequiresSMB
		}
	}
	if !needVPN && !needShare {
		return nil
	}

	run.setState(StateEnsuringConnections)

	if needVPN {
		run.emit(progress.Status("checking VPN connection"))
		if !o.probe.CheckVPN(ctx) {
			run.emit(progress.Status("VPN down, connecting"))
			creds, err := o.creds.VPN()
			if err != nil {
				return syncerr.Precondition(cerr.Wrap(err, "VPN credentials unavailable"))
			}
			if err := o.probe.ConnectVPN(ctx, creds); err != nil {
				return syncerr.Precondition(cerr.Wrap(err, "VPN connection failed"))
			}
			if !o.probe.CheckVPN(ctx) {
				return syncerr.Precondition(cerr.New("VPN still unreachable after connect"))
			}
		}
		run.emit(progress.Status("VPN connected"))
	}

	if needShare {
		run.emit(progress.Status("checking network share"))
		if !o.probe.CheckShareMounted(ctx) {
			run.emit(progress.Status("share not mounted, mounting"))
			creds, err := o.creds.Share()
			if err != nil {
				return syncerr.Precondition(cerr.Wrap(err, "share credentials unavailable"))
			}
			if err := o.probe.MountShare(ctx, creds); err != nil {
				return syncerr.Precondition(cerr.Wrap(err, "mounting network share failed"))
			}
		}
		run.emit(progress.Status("network share mounted"))
	}

	return ctx.Err()
}

// runTransfers executes every spec in order. Per-source failures are
// reported and counted but never abort the remaining sources; only
// cancellation does.
func (o *Orchestrator) runTransfers(ctx context.Context, run *Run, req Request, log *zap.Logger) (succeeded, failed int) {
	run.setState(StateTransferring)

	for i, spec := range req.Specs {
		if run.cancelled.Load() || ctx.Err() != nil {
			return succeeded, failed
		}

		label := fmt.Sprintf("%s -> %s", spec.Source.Name, spec.Destination.Name)
		run.emit(progress.Status(fmt.Sprintf("syncing %s (%d of %d)", label, i+1, len(req.Specs))))

		res := o.driver.Transfer(ctx, spec, req.DryRun, func(ev progress.Event) {
			if ev.Kind == progress.KindProgress && ev.Percent != progress.PercentUnknown {
				run.emitOverall(fmt.Sprintf("%s: %s", label, ev.Message), ev.Percent)
				return
			}
			run.emit(ev)
		})

		switch res.Outcome {
		case progress.OutcomeSuccess:
			succeeded++
			run.completedUnits++
			run.emitOverall(fmt.Sprintf("%s: done", label), 0)
			run.emit(progress.Complete(res.Message))
		case progress.OutcomeCancelled:
			run.cancelled.Store(true)
			return succeeded, failed
		default:
			failed++
			run.completedUnits++
			run.emitOverall(fmt.Sprintf("%s: failed", label), 0)
			run.emit(progress.Error(fmt.Sprintf("%s: %s", label, res.Message)))
			log.Warn("source failed",
				zap.String("source", spec.Source.Path),
				zap.Int("attempts", res.Attempts),
				zap.Error(res.Err))
		}
	}
	return succeeded, failed
}

// runRepoPull performs the optional repository update. Failures here are
// soft: they surface as error events but never change the run outcome.
func (o *Orchestrator) runRepoPull(ctx context.Context, run *Run, req Request, log *zap.Logger) {
	if !req.RepoPull.Enabled || run.cancelled.Load() || ctx.Err() != nil {
		return
	}
	run.setState(StateRepoSync)
	run.emit(progress.Status("updating repository"))

	path := req.RepoPull.Path
	if !gitops.IsRepository(path) {
		run.emit(progress.Error(fmt.Sprintf("repository pull skipped: %s is not a git repository", path)))
		log.Warn("repo pull skipped", zap.String("path", path))
	} else if msg, err := o.pull(ctx, path, log); err != nil {
		run.emit(progress.Error(fmt.Sprintf("repository pull failed: %v", err)))
		log.Warn("repo pull failed", zap.String("path", path), zap.Error(err))
	} else {
		run.emit(progress.Status(msg))
	}

	run.completedUnits++
	run.emitOverall("repository step finished", 0)
}

// runPostScript executes the optional follow-up script. Like the repository
// pull this is best-effort; a missing or failing script is reported but
// does not fail the run.
func (o *Orchestrator) runPostScript(ctx context.Context, run *Run, req Request, log *zap.Logger) {
	if !req.PostScript.Enabled || run.cancelled.Load() || ctx.Err() != nil {
		return
	}
	run.setState(StatePostScript)
	run.emit(progress.Status("running post-sync script"))

	path := req.PostScript.Path
	info, err := os.Stat(path)
	switch {
	case err != nil:
		run.emit(progress.Error(fmt.Sprintf("post script skipped: %v", err)))
		log.Warn("post script missing", zap.String("path", path), zap.Error(err))
	case info.IsDir():
		run.emit(progress.Error(fmt.Sprintf("post script skipped: %s is a directory", path)))
	case runtime.GOOS != "windows" && info.Mode()&0o111 == 0:
		run.emit(progress.Error(fmt.Sprintf("post script skipped: %s is not executable", path)))
	default:
		if out, rerr := o.runScript(ctx, path); rerr != nil {
			run.emit(progress.Error(fmt.Sprintf("post script failed: %v", rerr)))
			log.Warn("post script failed", zap.String("path", path),
				zap.String("output", out), zap.Error(rerr))
		} else {
			run.emit(progress.Status("post-sync script finished"))
		}
	}

	run.completedUnits++
	run.emitOverall("post script step finished", 0)
}

// runScript runs the script to completion, draining its combined output.
func (o *Orchestrator) runScript(ctx context.Context, path string) (string, error) {
	handle, err := o.runner.Start(ctx, execute.Command{Name: path})
	if err != nil {
		return "", err
	}
	var out strings.Builder
	for line := range handle.Lines() {
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(line.Text)
	}
	status := handle.Wait()
	if status.Cancelled {
		return out.String(), syncerr.Cancelled("post script")
	}
	if status.Code != 0 {
		return out.String(), cerr.Newf("script exited with code %d", status.Code)
	}
	return out.String(), nil
}
