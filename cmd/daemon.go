/* cmd/daemon.go */

package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sharesync/sharesync/pkg/cli"
	"github.com/sharesync/sharesync/pkg/daemon"
)

var (
	daemonSchedule string
	daemonWatch    bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon [profile]",
	Short: "Run syncs on a schedule or when local sources change",
	Long: `Runs in the foreground until interrupted, executing the profile on its
cron schedule and, with --watch, whenever watched local sources settle
after a burst of changes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(rc.Log)
		if err != nil {
			return err
		}

		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		prof, err := eng.loadProfile(name)
		if err != nil {
			return err
		}

		opts := daemon.Options{
			Schedule: eng.cfg.Daemon.Schedule,
			Watch:    eng.cfg.Daemon.Watch || daemonWatch,
			Debounce: time.Duration(eng.cfg.Daemon.DebounceSeconds) * time.Second,
		}
		if daemonSchedule != "" {
			opts.Schedule = daemonSchedule
		}

		ctx, stop := signal.NotifyContext(rc.Ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		d := daemon.New(eng.orch, prof, opts, rc.Log)
		if err := d.Run(ctx); err != nil && err != context.Canceled {
			return err
		}
		return nil
	}),
}

func init() {
	daemonCmd.Flags().StringVar(&daemonSchedule, "schedule", "",
		"cron expression overriding the configured schedule")
	daemonCmd.Flags().BoolVar(&daemonWatch, "watch", false,
		"also trigger on local source changes")
}
