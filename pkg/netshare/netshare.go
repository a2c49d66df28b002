// pkg/netshare/netshare.go

// Package netshare knows how to reach the remote environment: whether the
// VPN tunnel is up, whether the network share is mounted, and how to
// establish or tear down both. Platform differences live behind the Probe
// interface; one implementation is selected at startup and nothing else
// branches on the operating system.
package netshare

import (
	"context"
	"net"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/sharesync/sharesync/pkg/config"
	"github.com/sharesync/sharesync/pkg/credstore"
	"github.com/sharesync/sharesync/pkg/execute"
)

// Probe checks and manages the network preconditions of a sync run.
//
// CheckVPN and CheckShareMounted are pure queries, safe to call frequently.
// Connect/mount operations are idempotent: asking for a state that already
// holds returns nil without side effects. MountShare fails fast with a
// VPNRequired error when the tunnel is down, since mounting without the VPN
// can never succeed.
type Probe interface {
	// CheckVPN reports whether the VPN tunnel appears up. This is a
	// heuristic: it succeeds when any of the configured internal hostnames
	// resolves, or when an ICMP probe of the share host answers. It can
	// misreport on split-DNS setups.
	CheckVPN(ctx context.Context) bool
	// CheckShareMounted reports whether the network share is locally
	// accessible.
	CheckShareMounted(ctx context.Context) bool

	ConnectVPN(ctx context.Context, creds credstore.Credentials) error
	DisconnectVPN(ctx context.Context) error
	MountShare(ctx context.Context, creds credstore.Credentials) error
	UnmountShare(ctx context.Context) error
}

// New selects the probe implementation for the host operating system.
func New(cfg config.Network, logger *zap.Logger) Probe {
	return newForOS(runtime.GOOS, cfg, logger)
}

func newForOS(goos string, cfg config.Network, logger *zap.Logger) Probe {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := base{
		cfg:    cfg,
		logger: logger,
		lookup: func(ctx context.Context, host string) error {
			_, err := net.DefaultResolver.LookupHost(ctx, host)
			return err
		},
		run: func(ctx context.Context, name string, args ...string) (string, error) {
			return execute.Output(ctx, logger, name, args...)
		},
	}
	// The ping fallback uses POSIX flags; on Windows the DNS check alone
	// decides.
	if goos != "windows" {
		b.pingArgs = []string{"-c", "1", "-W", "1"}
	}
	switch goos {
	case "darwin":
		return &darwinProbe{base: b}
	case "windows":
		return &windowsProbe{base: b}
	default:
		return &linuxProbe{base: b}
	}
}

// dnsCheckTimeout bounds each hostname resolution so the whole VPN check
// stays well under a second per host.
const dnsCheckTimeout = 900 * time.Millisecond

// base carries the pieces every platform probe shares. lookup and run are
// indirected so tests can substitute fakes. An empty pingArgs disables the
// ICMP fallback.
type base struct {
	cfg      config.Network
	logger   *zap.Logger
	lookup   func(ctx context.Context, host string) error
	run      func(ctx context.Context, name string, args ...string) (string, error)
	pingArgs []string
}

// CheckVPN tries to resolve each internal check host, then falls back to a
// single ping of the share host.
func (b *base) CheckVPN(ctx context.Context) bool {
	for _, host := range b.cfg.CheckHosts {
		checkCtx, cancel := context.WithTimeout(ctx, dnsCheckTimeout)
		err := b.lookup(checkCtx, host)
		cancel()
		if err == nil {
			b.logger.Debug("internal host resolved, VPN appears connected",
				zap.String("host", host))
			return true
		}
	}

	if b.cfg.ShareHost != "" && len(b.pingArgs) > 0 {
		args := append(append([]string(nil), b.pingArgs...), b.cfg.ShareHost)
		if _, err := b.run(ctx, "ping", args...); err == nil {
			b.logger.Debug("ping answered, VPN appears connected",
				zap.String("host", b.cfg.ShareHost))
			return true
		}
	}
	return false
}

// shareURL renders //[user[:password]@]host/share for mount commands.
func (b *base) shareURL(creds credstore.Credentials) string {
	url := "//"
	if creds.Username != "" {
		url += creds.Username
		if creds.Password != "" {
			url += ":" + creds.Password
		}
		url += "@"
	}
	return url + b.cfg.ShareHost + "/" + b.cfg.ShareName
}
