// pkg/netshare/linux.go

package netshare

import (
	"context"
	"os"
	"strings"

	"github.com/sharesync/sharesync/pkg/credstore"
	"github.com/sharesync/sharesync/pkg/syncerr"
)

// linuxProbe can observe mounts through /proc/mounts but does not manage
// them: CIFS mounting needs root and distribution-specific setup, so the
// user (or automount) owns the mount, and the VPN client owns the tunnel.
type linuxProbe struct {
	base
}

func (p *linuxProbe) CheckShareMounted(ctx context.Context) bool {
	data, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return false
	}
	return strings.Contains(string(data), p.cfg.ShareHost)
}

func (p *linuxProbe) MountShare(ctx context.Context, _ credstore.Credentials) error {
	if p.CheckShareMounted(ctx) {
		return nil
	}
	if !p.CheckVPN(ctx) {
		return syncerr.VPNRequired()
	}
	return syncerr.NotSupported("automatic share mounting", "linux")
}

func (p *linuxProbe) UnmountShare(ctx context.Context) error {
	if !p.CheckShareMounted(ctx) {
		return nil
	}
	return syncerr.NotSupported("automatic share unmounting", "linux")
}

func (p *linuxProbe) ConnectVPN(ctx context.Context, _ credstore.Credentials) error {
	if p.CheckVPN(ctx) {
		return nil
	}
	return syncerr.NotSupported("automatic VPN connection", "linux")
}

func (p *linuxProbe) DisconnectVPN(ctx context.Context) error {
	if !p.CheckVPN(ctx) {
		return nil
	}
	return syncerr.NotSupported("automatic VPN disconnection", "linux")
}
