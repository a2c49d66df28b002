/* cmd/connect.go */

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sharesync/sharesync/pkg/cli"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Bring up the VPN tunnel",
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(rc.Log)
		if err != nil {
			return err
		}
		if eng.probe.CheckVPN(rc.Ctx) {
			fmt.Println("VPN already connected")
			return nil
		}
		creds, err := eng.creds.VPN()
		if err != nil {
			return err
		}
		if err := eng.probe.ConnectVPN(rc.Ctx, creds); err != nil {
			return err
		}
		fmt.Println("VPN connected")
		return nil
	}),
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Tear down the VPN tunnel",
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(rc.Log)
		if err != nil {
			return err
		}
		if err := eng.probe.DisconnectVPN(rc.Ctx); err != nil {
			return err
		}
		fmt.Println("VPN disconnected")
		return nil
	}),
}

var mountCmd = &cobra.Command{
	Use:   "mount",
	Short: "Mount the network share",
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(rc.Log)
		if err != nil {
			return err
		}
		if eng.probe.CheckShareMounted(rc.Ctx) {
			fmt.Println("share already mounted")
			return nil
		}
		creds, err := eng.creds.Share()
		if err != nil {
			return err
		}
		if err := eng.probe.MountShare(rc.Ctx, creds); err != nil {
			return err
		}
		fmt.Printf("share mounted at %s\n", eng.cfg.Network.MountPoint)
		return nil
	}),
}

var unmountCmd = &cobra.Command{
	Use:   "unmount",
	Short: "Unmount the network share",
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(rc.Log)
		if err != nil {
			return err
		}
		if err := eng.probe.UnmountShare(rc.Ctx); err != nil {
			return err
		}
		fmt.Println("share unmounted")
		return nil
	}),
}
