/* cmd/status.go */

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sharesync/sharesync/pkg/cli"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show VPN and network share connectivity",
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(rc.Log)
		if err != nil {
			return err
		}

		vpnUp := eng.probe.CheckVPN(rc.Ctx)
		mounted := eng.probe.CheckShareMounted(rc.Ctx)

		fmt.Printf("VPN (%s):   %s\n", eng.cfg.Network.VPNHost, upDown(vpnUp))
		fmt.Printf("Share (//%s/%s): %s\n",
			eng.cfg.Network.ShareHost, eng.cfg.Network.ShareName, mountedText(mounted, eng.cfg.Network.MountPoint))
		return nil
	}),
}

func upDown(up bool) string {
	if up {
		return "connected"
	}
	return "not connected"
}

func mountedText(mounted bool, mountPoint string) string {
	if mounted {
		return "mounted at " + mountPoint
	}
	return "not mounted"
}
