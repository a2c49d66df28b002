/* cmd/root.go */

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sharesync/sharesync/pkg/cli"
	"github.com/sharesync/sharesync/pkg/logger"
	"github.com/sharesync/sharesync/pkg/syncerr"
)

var configPath string

// RootCmd is the base command for sharesync.
var RootCmd = &cobra.Command{
	Use:   "sharesync",
	Short: "Sync working files with a campus network share",
	Long: `sharesync keeps local working directories and a VPN-protected SMB share
in step: it brings up the VPN and the mount when needed, drives the
platform copy tool with retries, and can also pull a git repository and
run a follow-up script after the copies finish.`,
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		return cmd.Help()
	}),
}

// RegisterCommands adds all subcommands to the root command.
func RegisterCommands() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file (default ~/.sharesync/config.yaml)")

	for _, sub := range []*cobra.Command{
		syncCmd,
		statusCmd,
		connectCmd,
		disconnectCmd,
		mountCmd,
		unmountCmd,
		profileCmd,
		credentialsCmd,
		daemonCmd,
	} {
		RootCmd.AddCommand(sub)
	}
}

// Execute runs the root command and exits with the error taxonomy's code.
func Execute() {
	defer func() {
		_ = logger.Sync()
	}()

	RegisterCommands()

	if err := RootCmd.Execute(); err != nil {
		logger.L().Error("command failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(syncerr.ExitCode(err))
	}
}
