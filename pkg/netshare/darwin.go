// pkg/netshare/darwin.go

package netshare

import (
	"context"
	"os"
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/sharesync/sharesync/pkg/credstore"
	"github.com/sharesync/sharesync/pkg/syncerr"
)

// darwinProbe mounts via mount_smbfs and drives the VPN with openconnect.
type darwinProbe struct {
	base
}

// vpnSettle is how long the backgrounded openconnect gets before the tunnel
// is re-checked.
const vpnSettle = 3 * time.Second

func (p *darwinProbe) CheckShareMounted(ctx context.Context) bool {
	out, err := p.run(ctx, "mount")
	if err != nil {
		return false
	}
	return strings.Contains(out, p.cfg.ShareHost) && strings.Contains(out, p.cfg.MountPoint)
}

func (p *darwinProbe) MountShare(ctx context.Context, creds credstore.Credentials) error {
	if p.CheckShareMounted(ctx) {
		return nil
	}
	if !p.CheckVPN(ctx) {
		return syncerr.VPNRequired()
	}
	if creds.Username == "" {
		return syncerr.Precondition(cerr.New("no share username configured"))
	}

	if err := os.MkdirAll(p.cfg.MountPoint, 0o755); err != nil {
		// /Volumes is root-owned; fall back to sudo.
		if out, err := p.run(ctx, "sudo", "mkdir", "-p", p.cfg.MountPoint); err != nil {
			return syncerr.Precondition(cerr.Newf("cannot create mount point %s: %s", p.cfg.MountPoint, strings.TrimSpace(out)))
		}
	}

	p.logger.Info("mounting network share",
		zap.String("host", p.cfg.ShareHost),
		zap.String("mount_point", p.cfg.MountPoint))

	out, err := p.run(ctx, "sudo", "mount_smbfs", p.shareURL(creds), p.cfg.MountPoint)
	if err != nil {
		return syncerr.Precondition(mountFailure(out))
	}
	return nil
}

// mountFailure translates mount_smbfs stderr into a pointed message.
func mountFailure(out string) error {
	msg := strings.TrimSpace(out)
	switch {
	case strings.Contains(msg, "Authentication failed"):
		return cerr.New("share authentication failed; check the stored credentials")
	case strings.Contains(msg, "server connection failed"):
		return cerr.New("connection to the file server failed; is the VPN really up?")
	case strings.Contains(msg, "Operation not permitted"):
		return cerr.New("mounting was not permitted; missing privileges")
	default:
		return cerr.Newf("mount failed: %s", msg)
	}
}

func (p *darwinProbe) UnmountShare(ctx context.Context) error {
	if !p.CheckShareMounted(ctx) {
		return nil
	}
	if _, err := p.run(ctx, "umount", p.cfg.MountPoint); err == nil {
		return nil
	}
	out, err := p.run(ctx, "sudo", "umount", p.cfg.MountPoint)
	if err != nil {
		return cerr.Newf("unmount failed: %s", strings.TrimSpace(out))
	}
	return nil
}

// ConnectVPN runs openconnect in two phases, the way the AnyConnect gateway
// expects it: an --authenticate call that yields a session cookie (and may
// open a browser for SSO), then a backgrounded connect using that cookie.
func (p *darwinProbe) ConnectVPN(ctx context.Context, creds credstore.Credentials) error {
	if p.CheckVPN(ctx) {
		return nil
	}
	if creds.Username == "" {
		return syncerr.Precondition(cerr.New("no VPN username configured"))
	}

	p.logger.Info("authenticating to VPN",
		zap.String("server", p.cfg.VPNHost),
		zap.String("user", creds.Username))

	out, err := p.run(ctx, "sudo", "openconnect",
		"--protocol="+p.cfg.VPNProtocol,
		"--server", p.cfg.VPNHost,
		"--user", creds.Username,
		"--authenticate")
	if err != nil {
		return syncerr.Precondition(cerr.Newf("VPN authentication failed: %s", strings.TrimSpace(out)))
	}

	cookie, fingerprint := parseAuthOutput(out)
	if cookie == "" {
		return syncerr.Precondition(cerr.New("VPN gateway did not return an authentication cookie"))
	}

	args := []string{"openconnect",
		"--protocol=" + p.cfg.VPNProtocol,
		"--server", p.cfg.VPNHost,
		"--cookie", cookie,
		"--background",
	}
	if fingerprint != "" {
		args = append(args, "--servercert", fingerprint)
	}
	if out, err := p.run(ctx, "sudo", args...); err != nil {
		return syncerr.Precondition(cerr.Newf("VPN connect failed: %s", strings.TrimSpace(out)))
	}

	time.Sleep(vpnSettle)
	if !p.CheckVPN(ctx) {
		return syncerr.Precondition(cerr.New("VPN connection did not establish"))
	}
	return nil
}

// parseAuthOutput extracts COOKIE= and FINGERPRINT= lines from openconnect
// --authenticate output.
func parseAuthOutput(out string) (cookie, fingerprint string) {
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "COOKIE="):
			cookie = strings.Trim(strings.TrimPrefix(line, "COOKIE="), "'")
		case strings.HasPrefix(line, "FINGERPRINT="):
			fingerprint = strings.TrimSpace(strings.TrimPrefix(line, "FINGERPRINT="))
		}
	}
	return cookie, fingerprint
}

func (p *darwinProbe) DisconnectVPN(ctx context.Context) error {
	if !p.CheckVPN(ctx) {
		return nil
	}
	if out, err := p.run(ctx, "sudo", "killall", "openconnect"); err != nil {
		return cerr.Newf("could not stop openconnect: %s", strings.TrimSpace(out))
	}
	return nil
}
