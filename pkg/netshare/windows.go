// pkg/netshare/windows.go

package netshare

import (
	"context"
	"os"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/sharesync/sharesync/pkg/credstore"
	"github.com/sharesync/sharesync/pkg/syncerr"
)

// windowsProbe maps the share to a drive letter with `net use`. VPN
// establishment is left to the system client.
type windowsProbe struct {
	base
}

func (p *windowsProbe) CheckShareMounted(ctx context.Context) bool {
	out, err := p.run(ctx, "net", "use")
	if err != nil {
		return false
	}
	return strings.Contains(out, p.cfg.ShareHost)
}

func (p *windowsProbe) MountShare(ctx context.Context, creds credstore.Credentials) error {
	if p.CheckShareMounted(ctx) {
		return nil
	}
	if !p.CheckVPN(ctx) {
		return syncerr.VPNRequired()
	}
	if creds.Username == "" {
		return syncerr.Precondition(cerr.New("no share username configured"))
	}

	drive := freeDriveLetter()
	if drive == "" {
		return syncerr.Precondition(cerr.New("no free drive letter to map the share"))
	}

	unc := `\\` + p.cfg.ShareHost + `\` + p.cfg.ShareName
	args := []string{"use", drive, unc}
	if creds.Password != "" {
		args = append(args, creds.Password)
	}
	args = append(args, "/user:"+creds.Username, "/persistent:no")

	p.logger.Info("mapping network share",
		zap.String("share", unc),
		zap.String("drive", drive))

	if out, err := p.run(ctx, "net", args...); err != nil {
		return syncerr.Precondition(cerr.Newf("net use failed: %s", strings.TrimSpace(out)))
	}
	return nil
}

func (p *windowsProbe) UnmountShare(ctx context.Context) error {
	if !p.CheckShareMounted(ctx) {
		return nil
	}
	out, err := p.run(ctx, "net", "use")
	if err != nil {
		return cerr.Wrap(err, "listing mapped drives")
	}
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, p.cfg.ShareHost) {
			continue
		}
		for _, field := range strings.Fields(line) {
			if len(field) == 2 && field[1] == ':' {
				if out, err := p.run(ctx, "net", "use", field, "/delete", "/y"); err != nil {
					return cerr.Newf("unmapping %s failed: %s", field, strings.TrimSpace(out))
				}
				return nil
			}
		}
	}
	return cerr.New("could not find the mapped share drive")
}

// ConnectVPN is not automated on Windows; the platform VPN client owns the
// tunnel.
func (p *windowsProbe) ConnectVPN(ctx context.Context, _ credstore.Credentials) error {
	if p.CheckVPN(ctx) {
		return nil
	}
	return syncerr.NotSupported("automatic VPN connection", "windows")
}

func (p *windowsProbe) DisconnectVPN(ctx context.Context) error {
	if !p.CheckVPN(ctx) {
		return nil
	}
	return syncerr.NotSupported("automatic VPN disconnection", "windows")
}

// freeDriveLetter returns the first unused drive letter from E: upward.
func freeDriveLetter() string {
	for c := 'E'; c <= 'Z'; c++ {
		drive := string(c) + ":"
		if _, err := os.Stat(drive + `\`); os.IsNotExist(err) {
			return drive
		}
	}
	return ""
}
