// pkg/recorder/recorder.go

// Package recorder keeps the structured, append-only record of a run:
// every status, progress, error and completion event, independent of
// whatever the CLI or GUI shows the user.
package recorder

import (
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sharesync/sharesync/pkg/progress"
)

// Recorder opens one RunLog per orchestrator run.
type Recorder interface {
	Begin(runID string) RunLog
}

// RunLog records the ordered events of a single run.
type RunLog interface {
	Event(ev progress.Event)
	// Close writes the terminal record and releases the log file.
	Close(outcome progress.Outcome, message string)
	// Events returns the events recorded so far, in order.
	Events() []progress.Event
}

// FileRecorder writes one JSON log file per run under Dir.
type FileRecorder struct {
	Dir    string
	Logger *zap.Logger // fallback diagnostics only
}

func NewFileRecorder(dir string, logger *zap.Logger) *FileRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileRecorder{Dir: dir, Logger: logger}
}

func (r *FileRecorder) Begin(runID string) RunLog {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{filepath.Join(r.Dir, "run-"+runID+".log")}
	cfg.ErrorOutputPaths = []string{"stderr"}

	sink, err := cfg.Build()
	if err != nil {
		// Recording must never break a run; fall back to memory only.
		r.Logger.Warn("run log file unavailable, recording in memory only",
			zap.String("run_id", runID), zap.Error(err))
		sink = zap.NewNop()
	}

	log := &runLog{sink: sink.With(zap.String("run_id", runID))}
	log.sink.Info("run started", zap.Time("started_at", time.Now()))
	return log
}

type runLog struct {
	mu     sync.Mutex
	sink   *zap.Logger
	events []progress.Event
}

func (l *runLog) Event(ev progress.Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()

	fields := []zap.Field{
		zap.String("kind", string(ev.Kind)),
		zap.String("message", ev.Message),
	}
	if ev.Percent != progress.PercentUnknown {
		fields = append(fields, zap.Int("percent", ev.Percent))
	}
	switch ev.Kind {
	case progress.KindError:
		l.sink.Warn("run event", fields...)
	default:
		l.sink.Info("run event", fields...)
	}
}

func (l *runLog) Close(outcome progress.Outcome, message string) {
	l.sink.Info("run finished",
		zap.String("outcome", outcome.String()),
		zap.String("message", message))
	_ = l.sink.Sync()
}

func (l *runLog) Events() []progress.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]progress.Event, len(l.events))
	copy(out, l.events)
	return out
}

// Nop records nothing; useful for tests and one-off probe commands.
type Nop struct{}

func (Nop) Begin(string) RunLog { return nopRunLog{} }

type nopRunLog struct{}

func (nopRunLog) Event(progress.Event)           {}
func (nopRunLog) Close(progress.Outcome, string) {}
func (nopRunLog) Events() []progress.Event       { return nil }
