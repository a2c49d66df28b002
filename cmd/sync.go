/* cmd/sync.go */

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sharesync/sharesync/pkg/cli"
	"github.com/sharesync/sharesync/pkg/orchestrator"
	"github.com/sharesync/sharesync/pkg/profile"
	"github.com/sharesync/sharesync/pkg/progress"
	"github.com/sharesync/sharesync/pkg/syncerr"
)

var (
	syncDryRun    bool
	syncNoRepo    bool
	syncNoScript  bool
	syncDirection string
)

var syncCmd = &cobra.Command{
	Use:   "sync [profile]",
	Short: "Run a sync profile now",
	Long: `Runs the named profile (or the configured default). One failed source
does not abort the others; the run only fails as a whole when every
source failed or a connection precondition could not be met. Ctrl-C
cancels cleanly.`,
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

		req := orchestrator.Request{
			Specs:      prof.Specs,
			DryRun:     syncDryRun,
			RepoPull:   prof.RepoPull,
			PostScript: prof.PostScript,
		}
		if syncNoRepo {
			req.RepoPull.Enabled = false
		}
		if syncNoScript {
			req.PostScript.Enabled = false
		}
		if syncDirection != "" {
			req.Specs, err = applyDirection(prof, syncDirection)
			if err != nil {
				return err
			}
		}

		run, err := eng.orch.Start(rc.Ctx, req)
		if err != nil {
			return err
		}
		rc.Log.Info("run started",
			zap.String("run_id", run.ID), zap.String("profile", prof.Name))

		// Ctrl-C cancels the run; a second Ctrl-C kills the process.
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigs)
		go func() {
			if _, ok := <-sigs; ok {
				fmt.Fprintln(os.Stderr, "\ncancelling...")
				run.Cancel()
			}
		}()

		renderEvents(run)

		outcome, msg := run.Wait()
		switch outcome {
		case progress.OutcomeSuccess:
			fmt.Println(msg)
			return nil
		case progress.OutcomeCancelled:
			return syncerr.Cancelled("sync")
		default:
			return cerr.New(msg)
		}
	}),
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false,
		"show what would be copied without changing anything")
	syncCmd.Flags().BoolVar(&syncNoRepo, "no-repo", false,
		"skip the repository pull step")
	syncCmd.Flags().BoolVar(&syncNoScript, "no-script", false,
		"skip the post-sync script step")
	syncCmd.Flags().StringVar(&syncDirection, "direction", "",
		"override sync direction: push, pull or both")
}

// applyDirection overrides every spec's direction from the --direction flag.
func applyDirection(prof profile.Profile, dir string) ([]profile.Spec, error) {
	var d profile.Direction
	switch dir {
	case "push":
		d = profile.DirectionLocalToRemote
	case "pull":
		d = profile.DirectionRemoteToLocal
	case "both":
		d = profile.DirectionBidirectional
	default:
		return nil, cerr.Newf("unknown direction %q (want push, pull or both)", dir)
	}
	specs := make([]profile.Spec, len(prof.Specs))
	for i, s := range prof.Specs {
		s.Direction = d
		specs[i] = s
	}
	return specs, nil
}

// renderEvents prints the run's event stream as console lines. Progress
// events overwrite a single line; everything else gets its own.
func renderEvents(run *orchestrator.Run) {
	progressLine := false
	endProgress := func() {
		if progressLine {
			fmt.Println()
			progressLine = false
		}
	}
	for ev := range run.Events() {
		switch ev.Kind {
		case progress.KindProgress:
			fmt.Printf("\r[%3d%%] %-60s", ev.Percent, ev.Message)
			progressLine = true
		case progress.KindError:
			endProgress()
			fmt.Fprintf(os.Stderr, "error: %s\n", ev.Message)
		case progress.KindDone:
			endProgress()
		default:
			endProgress()
			fmt.Println(ev.Message)
		}
	}
}
