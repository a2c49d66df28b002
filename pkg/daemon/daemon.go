// pkg/daemon/daemon.go

// Package daemon keeps sync runs happening without a user at the keyboard:
// cron-scheduled runs and, optionally, runs triggered when watched local
// source directories change. Triggers coalesce; a trigger arriving while a
// run is live is dropped, not queued.
package daemon

import (
	"context"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/sharesync/sharesync/pkg/orchestrator"
	"github.com/sharesync/sharesync/pkg/profile"
	"github.com/sharesync/sharesync/pkg/progress"
	"github.com/sharesync/sharesync/pkg/syncerr"
)

// Options tunes the daemon. Zero values take sensible defaults.
type Options struct {
	// Schedule is the fallback cron expression for profiles that carry none.
	Schedule string
	// Watch enables filesystem triggering on the profile's local sources.
	Watch bool
	// Debounce is how long a burst of file events must settle before a sync
	// fires. Defaults to 8 seconds.
	Debounce time.Duration
}

// Daemon runs one profile on a schedule and/or on filesystem changes.
type Daemon struct {
	orch    *orchestrator.Orchestrator
	prof    profile.Profile
	opts    Options
	logger  *zap.Logger
	trigger chan string
}

func New(orch *orchestrator.Orchestrator, prof profile.Profile, opts Options, logger *zap.Logger) *Daemon {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 8 * time.Second
	}
	return &Daemon{
		orch:    orch,
		prof:    prof,
		opts:    opts,
		logger:  logger,
		trigger: make(chan string, 1),
	}
}

// Run blocks until ctx is cancelled, executing the profile whenever the
// schedule or the watcher fires. At least one trigger source must be
// configured.
func (d *Daemon) Run(ctx context.Context) error {
	schedule := d.prof.Schedule
	if schedule == "" {
		schedule = d.opts.Schedule
	}
	if schedule == "" && !d.opts.Watch {
		return cerr.New("daemon needs a schedule or watch mode, got neither")
	}

	if schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(schedule, func() { d.fire("schedule") }); err != nil {
			return cerr.Wrapf(err, "invalid cron schedule %q", schedule)
		}
		c.Start()
		defer c.Stop()
		d.logger.Info("scheduled runs enabled", zap.String("schedule", schedule))
	}

	if d.opts.Watch {
		stop, err := d.watch(ctx)
		if err != nil {
			return err
		}
		defer stop()
	}

	d.logger.Info("daemon running", zap.String("profile", d.prof.Name))
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon stopping")
			return ctx.Err()
		case reason := <-d.trigger:
			d.runOnce(ctx, reason)
		}
	}
}

// fire enqueues a trigger, dropping it when one is already pending.
func (d *Daemon) fire(reason string) {
	select {
	case d.trigger <- reason:
	default:
	}
}

// watch registers every local, non-VPN source directory of the profile and
// forwards debounced change bursts as triggers.
func (d *Daemon) watch(ctx context.Context) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, cerr.Wrap(err, "creating filesystem watcher")
	}

	watched := 0
	for _, spec := range d.prof.Specs {
		if spec.Source.IsRemote {
			continue
		}
		if err := watcher.Add(spec.Source.Path); err != nil {
			d.logger.Warn("cannot watch source",
				zap.String("path", spec.Source.Path), zap.Error(err))
			continue
		}
		watched++
	}
	if watched == 0 {
		_ = watcher.Close()
		return nil, cerr.New("watch mode enabled but no local source directory is watchable")
	}
	d.logger.Info("watching local sources", zap.Int("directories", watched),
		zap.Duration("debounce", d.opts.Debounce))

	go func() {
		var debounce *time.Timer
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if debounce == nil {
					debounce = time.AfterFunc(d.opts.Debounce, func() { d.fire("watch") })
				} else {
					debounce.Reset(d.opts.Debounce)
				}
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				d.logger.Warn("watcher error", zap.Error(werr))
			}
		}
	}()

	return func() { _ = watcher.Close() }, nil
}

// runOnce executes the profile and drains the event stream into the log.
// A trigger racing an in-flight run is dropped.
func (d *Daemon) runOnce(ctx context.Context, reason string) {
	log := d.logger.With(zap.String("trigger", reason))
	log.Info("triggered sync starting")

	run, err := d.orch.Start(ctx, orchestrator.Request{
		Specs:      d.prof.Specs,
		RepoPull:   d.prof.RepoPull,
		PostScript: d.prof.PostScript,
	})
	if err != nil {
		if cerr.Is(err, syncerr.ErrRunInProgress) {
			log.Info("sync already in progress, trigger dropped")
			return
		}
		log.Error("triggered sync failed to start", zap.Error(err))
		return
	}

	for ev := range run.Events() {
		switch ev.Kind {
		case progress.KindError:
			log.Warn(ev.Message)
		case progress.KindProgress:
			// progress spam stays out of the daemon log
		default:
			log.Info(ev.Message)
		}
	}
	outcome, msg := run.Wait()
	log.Info("triggered sync finished",
		zap.String("outcome", outcome.String()), zap.String("message", msg))
}
