// pkg/orchestrator/orchestrator_test.go

package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sharesync/sharesync/pkg/credstore"
	"github.com/sharesync/sharesync/pkg/execute"
	"github.com/sharesync/sharesync/pkg/profile"
	"github.com/sharesync/sharesync/pkg/progress"
	"github.com/sharesync/sharesync/pkg/recorder"
	"github.com/sharesync/sharesync/pkg/syncerr"
	"github.com/sharesync/sharesync/pkg/transfer"
)

// fakeProbe scripts the connection collaborator.
type fakeProbe struct {
	mu           sync.Mutex
	vpnUp        bool
	shareMounted bool
	connectErr   error
	mountErr     error

	vpnChecks   int
	vpnConnects int
	mounts      int
}

func (f *fakeProbe) CheckVPN(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vpnChecks++
	return f.vpnUp
}

func (f *fakeProbe) CheckShareMounted(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shareMounted
}

func (f *fakeProbe) ConnectVPN(context.Context, credstore.Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vpnConnects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.vpnUp = true
	return nil
}

func (f *fakeProbe) DisconnectVPN(context.Context) error { return nil }

func (f *fakeProbe) MountShare(context.Context, credstore.Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mounts++
	if f.mountErr != nil {
		return f.mountErr
	}
	f.shareMounted = true
	return nil
}

func (f *fakeProbe) UnmountShare(context.Context) error { return nil }

// fakeDriver returns one scripted result per source path, emitting a small
// progress ramp before resolving.
type fakeDriver struct {
	mu      sync.Mutex
	results map[string]transfer.Result
	calls   []string
	block   chan struct{} // when set, Transfer waits for ctx or close
}

func (f *fakeDriver) Transfer(ctx context.Context, spec profile.Spec, dryRun bool, onProgress progress.Callback) transfer.Result {
	f.mu.Lock()
	f.calls = append(f.calls, spec.Source.Path)
	res, ok := f.results[spec.Source.Path]
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-ctx.Done():
			return transfer.Result{Outcome: progress.OutcomeCancelled, Message: "transfer cancelled"}
		case <-block:
		}
	}

	for _, pct := range []int{10, 50, 100} {
		onProgress(progress.Progressf(fmt.Sprintf("%d%%", pct), pct))
	}
	if !ok {
		return transfer.Result{Outcome: progress.OutcomeSuccess, Message: "synchronized", Attempts: 1}
	}
	return res
}

func okSpec(src, dst string) profile.Spec {
	return profile.Spec{
		Source:      profile.Location{Path: src, Name: src},
		Destination: profile.Location{Path: dst, Name: dst},
		Mode:        profile.ModeUpdate,
	}
}

func remoteSpec(src, dst string) profile.Spec {
	s := okSpec(src, dst)
	s.Source.IsRemote = true
	s.Source.RequiresVPN = true
	s.Source.RequiresSMB = true
	return s
}

func newTestOrchestrator(probe *fakeProbe, driver *fakeDriver) *Orchestrator {
	return New(probe, driver, nil, credstore.Static{}, recorder.Nop{}, zap.NewNop())
}

func drain(t *testing.T, run *Run) []progress.Event {
	t.Helper()
	var events []progress.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-run.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("run did not finish in time")
		}
	}
}

func TestStartRejectsInvalidSpecsBeforeAnythingRuns(t *testing.T) {
	probe := &fakeProbe{}
	driver := &fakeDriver{}
	o := newTestOrchestrator(probe, driver)

	// Same source and destination plus empty paths: all violations at once,
	// nothing executed.
	bad := profile.Spec{
		Source:      profile.Location{Path: "/data/docs"},
		Destination: profile.Location{Path: "/data/docs"},
		Mode:        profile.ModeUpdate,
	}
	run, err := o.Start(context.Background(), Request{Specs: []profile.Spec{bad, {}}})
	require.Error(t, err)
	assert.Nil(t, run)
	assert.True(t, syncerr.IsValidation(err))
	assert.Contains(t, err.Error(), "same path")
	assert.Empty(t, driver.calls, "no transfer may start on a validation failure")
	assert.Zero(t, probe.vpnChecks, "no probe may run on a validation failure")
}

func TestStartRejectsEmptyRequest(t *testing.T) {
	o := newTestOrchestrator(&fakeProbe{}, &fakeDriver{})
	_, err := o.Start(context.Background(), Request{})
	require.Error(t, err)
	assert.True(t, syncerr.IsValidation(err))
}

func TestAllSourcesSucceed(t *testing.T) {
	probe := &fakeProbe{}
	driver := &fakeDriver{}
	o := newTestOrchestrator(probe, driver)

	run, err := o.Start(context.Background(), Request{
		Specs: []profile.Spec{okSpec("/a", "/b"), okSpec("/c", "/d")},
	})
	require.NoError(t, err)

	events := drain(t, run)
	outcome, msg := run.Wait()

	assert.Equal(t, progress.OutcomeSuccess, outcome)
	assert.Contains(t, msg, "2 sources synchronized")
	assert.Equal(t, []string{"/a", "/c"}, driver.calls)
	assert.Zero(t, probe.vpnChecks, "local-only specs need no connection checks")

	last := events[len(events)-1]
	assert.Equal(t, progress.KindDone, last.Kind)
	assert.Equal(t, 100, last.Percent)
}

func TestPartialFailureIsStillSuccess(t *testing.T) {
	driver := &fakeDriver{results: map[string]transfer.Result{
		"/broken": {
			Outcome: progress.OutcomeFailure,
			Message: "rsync exited with fatal code 11",
			Err:     syncerr.Fatal(cerr.New("rsync exited with fatal code 11")),
		},
	}}
	o := newTestOrchestrator(&fakeProbe{}, driver)

	run, err := o.Start(context.Background(), Request{
		Specs: []profile.Spec{okSpec("/broken", "/dst1"), okSpec("/fine", "/dst2")},
	})
	require.NoError(t, err)

	events := drain(t, run)
	outcome, msg := run.Wait()

	assert.Equal(t, progress.OutcomeSuccess, outcome,
		"one surviving source keeps the run a success")
	assert.Contains(t, msg, "1 of 2 sources failed")
	assert.Equal(t, []string{"/broken", "/fine"}, driver.calls,
		"a failed source must not stop its siblings")

	var sawError bool
	for _, ev := range events {
		if ev.Kind == progress.KindError {
			sawError = true
		}
	}
	assert.True(t, sawError, "the failed source must surface as an error event")
}

func TestAllSourcesFailedIsFailure(t *testing.T) {
	driver := &fakeDriver{results: map[string]transfer.Result{
		"/a": {Outcome: progress.OutcomeFailure, Message: "boom"},
	}}
	o := newTestOrchestrator(&fakeProbe{}, driver)

	run, err := o.Start(context.Background(), Request{Specs: []profile.Spec{okSpec("/a", "/b")}})
	require.NoError(t, err)

	drain(t, run)
	outcome, msg := run.Wait()
	assert.Equal(t, progress.OutcomeFailure, outcome)
	assert.Contains(t, msg, "all 1 sources failed")
}

func TestVPNUnreachableFailsBeforeAnyTransfer(t *testing.T) {
	probe := &fakeProbe{connectErr: cerr.New("no route to VPN gateway")}
	driver := &fakeDriver{}
	o := newTestOrchestrator(probe, driver)

	run, err := o.Start(context.Background(), Request{
		Specs: []profile.Spec{remoteSpec("/remote/share", "/local/dst")},
	})
	require.NoError(t, err)

	drain(t, run)
	outcome, msg := run.Wait()

	assert.Equal(t, progress.OutcomeFailure, outcome)
	assert.Contains(t, msg, "VPN")
	assert.Empty(t, driver.calls, "no transfer may start when preconditions fail")
}

func TestConnectionsBroughtUpOnce(t *testing.T) {
	probe := &fakeProbe{}
	driver := &fakeDriver{}
	o := newTestOrchestrator(probe, driver)

	run, err := o.Start(context.Background(), Request{
		Specs: []profile.Spec{remoteSpec("/r1", "/l1"), remoteSpec("/r2", "/l2")},
	})
	require.NoError(t, err)
	drain(t, run)
	outcome, _ := run.Wait()

	assert.Equal(t, progress.OutcomeSuccess, outcome)
	assert.Equal(t, 1, probe.vpnConnects)
	assert.Equal(t, 1, probe.mounts)
	assert.Equal(t, 2, len(driver.calls))
}

func TestCancelYieldsCancelledNeverFailure(t *testing.T) {
	block := make(chan struct{})
	driver := &fakeDriver{block: block}
	o := newTestOrchestrator(&fakeProbe{}, driver)

	run, err := o.Start(context.Background(), Request{
		Specs: []profile.Spec{okSpec("/a", "/b"), okSpec("/c", "/d")},
	})
	require.NoError(t, err)

	// Let the first transfer park, then cancel mid-run.
	require.Eventually(t, func() bool {
		driver.mu.Lock()
		defer driver.mu.Unlock()
		return len(driver.calls) == 1
	}, 5*time.Second, 5*time.Millisecond)

	run.Cancel()
	drain(t, run)
	outcome, msg := run.Wait()

	assert.Equal(t, progress.OutcomeCancelled, outcome)
	assert.Contains(t, msg, "cancelled")
	assert.Equal(t, 1, len(driver.calls), "remaining sources must be skipped after cancel")
	assert.Equal(t, StateDone, run.State())
}

func TestProgressIsMonotoneAndEndsAtHundred(t *testing.T) {
	// The second source emits a percent ramp that restarts at 10; the
	// reported overall percentage still may never decrease.
	driver := &fakeDriver{}
	o := newTestOrchestrator(&fakeProbe{}, driver)

	run, err := o.Start(context.Background(), Request{
		Specs: []profile.Spec{okSpec("/a", "/b"), okSpec("/c", "/d"), okSpec("/e", "/f")},
	})
	require.NoError(t, err)

	events := drain(t, run)
	run.Wait()

	last := -1
	for _, ev := range events {
		if ev.Kind != progress.KindProgress && ev.Kind != progress.KindDone {
			continue
		}
		assert.GreaterOrEqual(t, ev.Percent, last, "progress must never decrease")
		assert.LessOrEqual(t, ev.Percent, 100)
		last = ev.Percent
	}
	assert.Equal(t, 100, last, "the final event must report exactly 100")
}

func TestSecondStartWhileRunningIsRejected(t *testing.T) {
	block := make(chan struct{})
	driver := &fakeDriver{block: block}
	o := newTestOrchestrator(&fakeProbe{}, driver)

	run, err := o.Start(context.Background(), Request{Specs: []profile.Spec{okSpec("/a", "/b")}})
	require.NoError(t, err)

	_, err = o.Start(context.Background(), Request{Specs: []profile.Spec{okSpec("/c", "/d")}})
	require.Error(t, err)
	assert.True(t, cerr.Is(err, syncerr.ErrRunInProgress))

	close(block)
	drain(t, run)
	run.Wait()

	// Slot frees up once the run terminates.
	run2, err := o.Start(context.Background(), Request{Specs: []profile.Spec{okSpec("/c", "/d")}})
	require.NoError(t, err)
	drain(t, run2)
	run2.Wait()
}

func TestRepoPullFailureIsSoft(t *testing.T) {
	repoDir := t.TempDir() // not a git repository
	driver := &fakeDriver{}
	o := newTestOrchestrator(&fakeProbe{}, driver)

	run, err := o.Start(context.Background(), Request{
		Specs:    []profile.Spec{okSpec("/a", "/b")},
		RepoPull: profile.StepConfig{Enabled: true, Path: repoDir},
	})
	require.NoError(t, err)

	events := drain(t, run)
	outcome, msg := run.Wait()

	assert.Equal(t, progress.OutcomeSuccess, outcome,
		"a repository step failure never fails the run")
	assert.Contains(t, msg, "1 sources synchronized")

	var sawSkip bool
	for _, ev := range events {
		if ev.Kind == progress.KindError && ev.Message != "" {
			sawSkip = true
		}
	}
	assert.True(t, sawSkip, "the skipped pull must be reported")
}

func TestInjectedPullRuns(t *testing.T) {
	repoDir := t.TempDir()
	require.NoError(t, makeGitDir(repoDir))

	driver := &fakeDriver{}
	o := newTestOrchestrator(&fakeProbe{}, driver)

	var pulled string
	o.pull = func(_ context.Context, path string, _ *zap.Logger) (string, error) {
		pulled = path
		return "repository already up to date", nil
	}

	run, err := o.Start(context.Background(), Request{
		Specs:    []profile.Spec{okSpec("/a", "/b")},
		RepoPull: profile.StepConfig{Enabled: true, Path: repoDir},
	})
	require.NoError(t, err)
	drain(t, run)
	outcome, _ := run.Wait()

	assert.Equal(t, progress.OutcomeSuccess, outcome)
	assert.Equal(t, repoDir, pulled)
}

func makeGitDir(dir string) error {
	return os.Mkdir(filepath.Join(dir, ".git"), 0o755)
}

func TestMissingPostScriptIsSoft(t *testing.T) {
	driver := &fakeDriver{}
	o := newTestOrchestrator(&fakeProbe{}, driver)

	run, err := o.Start(context.Background(), Request{
		Specs:      []profile.Spec{okSpec("/a", "/b")},
		PostScript: profile.StepConfig{Enabled: true, Path: "/nonexistent/after-sync.sh"},
	})
	require.NoError(t, err)
	drain(t, run)
	outcome, _ := run.Wait()

	assert.Equal(t, progress.OutcomeSuccess, outcome)
}

// fakeRunner resolves every started command instantly with a fixed code.
type fakeRunner struct {
	commands []execute.Command
	code     int
}

func (f *fakeRunner) Start(_ context.Context, cmd execute.Command) (execute.Handle, error) {
	f.commands = append(f.commands, cmd)
	h := &fakeHandle{lines: make(chan execute.Line), code: f.code}
	close(h.lines)
	return h, nil
}

type fakeHandle struct {
	lines chan execute.Line
	code  int
}

func (h *fakeHandle) Lines() <-chan execute.Line { return h.lines }
func (h *fakeHandle) Wait() execute.Status       { return execute.Status{Code: h.code} }
func (h *fakeHandle) Cancel()                    {}

func TestPostScriptRuns(t *testing.T) {
	script := filepath.Join(t.TempDir(), "after-sync.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexit 0\n"), 0o755))

	runner := &fakeRunner{}
	o := New(nil, &fakeDriver{}, runner, credstore.Static{}, recorder.Nop{}, zap.NewNop())

	run, err := o.Start(context.Background(), Request{
		Specs:      []profile.Spec{okSpec("/a", "/b")},
		PostScript: profile.StepConfig{Enabled: true, Path: script},
	})
	require.NoError(t, err)
	drain(t, run)
	outcome, _ := run.Wait()

	assert.Equal(t, progress.OutcomeSuccess, outcome)
	require.Len(t, runner.commands, 1)
	assert.Equal(t, script, runner.commands[0].Name)
}

func TestFailingPostScriptIsSoft(t *testing.T) {
	script := filepath.Join(t.TempDir(), "after-sync.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexit 3\n"), 0o755))

	runner := &fakeRunner{code: 3}
	o := New(nil, &fakeDriver{}, runner, credstore.Static{}, recorder.Nop{}, zap.NewNop())

	run, err := o.Start(context.Background(), Request{
		Specs:      []profile.Spec{okSpec("/a", "/b")},
		PostScript: profile.StepConfig{Enabled: true, Path: script},
	})
	require.NoError(t, err)
	events := drain(t, run)
	outcome, _ := run.Wait()

	assert.Equal(t, progress.OutcomeSuccess, outcome, "a failing script never fails the run")
	var sawError bool
	for _, ev := range events {
		if ev.Kind == progress.KindError {
			sawError = true
		}
	}
	assert.True(t, sawError)
}

func TestBidirectionalSpecRunsTwoLegs(t *testing.T) {
	driver := &fakeDriver{}
	o := newTestOrchestrator(&fakeProbe{}, driver)

	spec := okSpec("/a", "/b")
	spec.Direction = profile.DirectionBidirectional
	run, err := o.Start(context.Background(), Request{Specs: []profile.Spec{spec}})
	require.NoError(t, err)
	drain(t, run)
	outcome, msg := run.Wait()

	assert.Equal(t, progress.OutcomeSuccess, outcome)
	assert.Contains(t, msg, "2 sources synchronized")
	assert.Equal(t, []string{"/a", "/b"}, driver.calls, "the second leg runs with the endpoints exchanged")
}

func TestActiveReportsLiveRunOnly(t *testing.T) {
	block := make(chan struct{})
	driver := &fakeDriver{block: block}
	o := newTestOrchestrator(&fakeProbe{}, driver)

	assert.Nil(t, o.Active())

	run, err := o.Start(context.Background(), Request{Specs: []profile.Spec{okSpec("/a", "/b")}})
	require.NoError(t, err)
	assert.Same(t, run, o.Active())

	close(block)
	drain(t, run)
	run.Wait()
	assert.Nil(t, o.Active())
}
