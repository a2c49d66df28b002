// pkg/netshare/netshare_test.go

package netshare

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	cerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sharesync/sharesync/pkg/config"
	"github.com/sharesync/sharesync/pkg/credstore"
	"github.com/sharesync/sharesync/pkg/syncerr"
)

func testNetwork() config.Network {
	return config.Network{
		VPNHost:     "vpn.example.edu",
		VPNProtocol: "anyconnect",
		CheckHosts:  []string{"fs.internal.example.edu"},
		ShareHost:   "fs.internal.example.edu",
		ShareName:   "data",
		MountPoint:  "/Volumes/data",
	}
}

// fakeExec records commands and serves scripted responses keyed on the
// command's first tokens.
type fakeExec struct {
	responses map[string]response
	commands  []string
}

type response struct {
	out string
	err error
}

func (f *fakeExec) run(_ context.Context, name string, args ...string) (string, error) {
	key := strings.Join(append([]string{name}, args...), " ")
	f.commands = append(f.commands, key)
	for prefix, resp := range f.responses {
		if strings.HasPrefix(key, prefix) {
			return resp.out, resp.err
		}
	}
	return "", cerr.Newf("no scripted response for %q", key)
}

func (f *fakeExec) ran(prefix string) bool {
	for _, c := range f.commands {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func darwinUnderTest(lookupErr error, exec *fakeExec) *darwinProbe {
	return &darwinProbe{base: base{
		cfg:      testNetwork(),
		logger:   zap.NewNop(),
		lookup:   func(context.Context, string) error { return lookupErr },
		run:      exec.run,
		pingArgs: []string{"-c", "1", "-W", "1"},
	}}
}

func TestCheckVPNResolvesInternalHost(t *testing.T) {
	exec := &fakeExec{}
	p := darwinUnderTest(nil, exec)

	assert.True(t, p.CheckVPN(context.Background()))
	assert.Empty(t, exec.commands, "a resolving host settles the check without a ping")
}

func TestCheckVPNFallsBackToPing(t *testing.T) {
	exec := &fakeExec{responses: map[string]response{
		"ping": {out: "1 packets transmitted, 1 received"},
	}}
	p := darwinUnderTest(cerr.New("no such host"), exec)

	assert.True(t, p.CheckVPN(context.Background()))
	assert.True(t, exec.ran("ping -c 1 -W 1 fs.internal.example.edu"))
}

func TestCheckVPNDownWhenNothingAnswers(t *testing.T) {
	exec := &fakeExec{responses: map[string]response{
		"ping": {err: cerr.New("exit 68")},
	}}
	p := darwinUnderTest(cerr.New("no such host"), exec)

	assert.False(t, p.CheckVPN(context.Background()))
}

func TestMountShareIsIdempotent(t *testing.T) {
	exec := &fakeExec{responses: map[string]response{
		"mount": {out: "//user@fs.internal.example.edu/data on /Volumes/data (smbfs)"},
	}}
	p := darwinUnderTest(nil, exec)

	err := p.MountShare(context.Background(), credstore.Credentials{Username: "user"})
	require.NoError(t, err)
	assert.False(t, exec.ran("sudo mount_smbfs"), "an already-mounted share must not be remounted")
}

func TestMountShareRequiresVPN(t *testing.T) {
	exec := &fakeExec{responses: map[string]response{
		"mount": {out: "nothing mounted"},
		"ping":  {err: cerr.New("unreachable")},
	}}
	p := darwinUnderTest(cerr.New("no such host"), exec)

	err := p.MountShare(context.Background(), credstore.Credentials{Username: "user"})
	require.Error(t, err)
	assert.True(t, syncerr.IsVPNRequired(err))
	assert.False(t, exec.ran("sudo mount_smbfs"))
}

func TestMountShareTranslatesAuthFailure(t *testing.T) {
	exec := &fakeExec{responses: map[string]response{
		"sudo mkdir":       {out: ""},
		"sudo mount_smbfs": {out: "mount_smbfs: server rejected the connection: Authentication failed", err: cerr.New("exit 64")},
		"mount":            {out: "nothing mounted"},
	}}
	p := darwinUnderTest(nil, exec)
	p.cfg.MountPoint = filepath.Join(t.TempDir(), "data")

	err := p.MountShare(context.Background(), credstore.Credentials{Username: "user", Password: "pw"})
	require.Error(t, err)
	assert.True(t, syncerr.IsPrecondition(err))
	assert.Contains(t, err.Error(), "authentication failed")
}

func TestUnmountShareIsIdempotent(t *testing.T) {
	exec := &fakeExec{responses: map[string]response{
		"mount": {out: "nothing mounted"},
	}}
	p := darwinUnderTest(nil, exec)

	require.NoError(t, p.UnmountShare(context.Background()))
	assert.False(t, exec.ran("umount"))
}

func TestConnectVPNShortCircuitsWhenUp(t *testing.T) {
	exec := &fakeExec{}
	p := darwinUnderTest(nil, exec)

	require.NoError(t, p.ConnectVPN(context.Background(), credstore.Credentials{Username: "user"}))
	assert.False(t, exec.ran("sudo openconnect"))
}

func TestParseAuthOutput(t *testing.T) {
	out := "POST https://vpn.example.edu/\n" +
		"COOKIE='webvpn=abc123'\n" +
		"FINGERPRINT=pin-sha256:qwerty\n" +
		"CONNECT_URL=https://vpn.example.edu/\n"

	cookie, fingerprint := parseAuthOutput(out)
	assert.Equal(t, "webvpn=abc123", cookie)
	assert.Equal(t, "pin-sha256:qwerty", fingerprint)

	cookie, fingerprint = parseAuthOutput("Failed to obtain WebVPN cookie")
	assert.Empty(t, cookie)
	assert.Empty(t, fingerprint)
}

func TestShareURL(t *testing.T) {
	b := base{cfg: testNetwork()}

	assert.Equal(t, "//fs.internal.example.edu/data", b.shareURL(credstore.Credentials{}))
	assert.Equal(t, "//alice@fs.internal.example.edu/data",
		b.shareURL(credstore.Credentials{Username: "alice"}))
	assert.Equal(t, "//alice:s3cret@fs.internal.example.edu/data",
		b.shareURL(credstore.Credentials{Username: "alice", Password: "s3cret"}))
}

func TestNewForOSSelectsImplementation(t *testing.T) {
	cfg := testNetwork()
	_, isDarwin := newForOS("darwin", cfg, nil).(*darwinProbe)
	_, isWindows := newForOS("windows", cfg, nil).(*windowsProbe)
	_, isLinux := newForOS("linux", cfg, nil).(*linuxProbe)
	_, fallback := newForOS("freebsd", cfg, nil).(*linuxProbe)

	assert.True(t, isDarwin)
	assert.True(t, isWindows)
	assert.True(t, isLinux)
	assert.True(t, fallback)
}

func TestWindowsCheckVPNSkipsPingFallback(t *testing.T) {
	exec := &fakeExec{responses: map[string]response{
		"ping": {out: "Reply from 10.0.0.1"},
	}}
	p := &windowsProbe{base: base{
		cfg:    testNetwork(),
		logger: zap.NewNop(),
		lookup: func(context.Context, string) error { return cerr.New("no such host") },
		run:    exec.run,
	}}

	assert.False(t, p.CheckVPN(context.Background()))
	assert.False(t, exec.ran("ping"), "windows has no POSIX ping flags; DNS alone decides")

	win, ok := newForOS("windows", testNetwork(), nil).(*windowsProbe)
	require.True(t, ok)
	assert.Empty(t, win.pingArgs)

	lin, ok := newForOS("linux", testNetwork(), nil).(*linuxProbe)
	require.True(t, ok)
	assert.Equal(t, []string{"-c", "1", "-W", "1"}, lin.pingArgs)
}

func TestLinuxProbeRefusesToManageConnections(t *testing.T) {
	exec := &fakeExec{responses: map[string]response{
		"ping": {err: cerr.New("unreachable")},
	}}
	p := &linuxProbe{base: base{
		cfg:    testNetwork(),
		logger: zap.NewNop(),
		lookup: func(context.Context, string) error { return cerr.New("no such host") },
		run:    exec.run,
	}}

	err := p.ConnectVPN(context.Background(), credstore.Credentials{})
	require.Error(t, err)
	assert.True(t, syncerr.IsNotSupported(err))

	err = p.MountShare(context.Background(), credstore.Credentials{})
	require.Error(t, err)
	assert.True(t, syncerr.IsVPNRequired(err), "the VPN gap is reported before the platform gap")
}

func TestWindowsMountBuildsNetUse(t *testing.T) {
	exec := &fakeExec{responses: map[string]response{
		"net use E:": {out: "The command completed successfully."},
		"net use":    {out: "no mappings exist"},
	}}
	p := &windowsProbe{base: base{
		cfg:    testNetwork(),
		logger: zap.NewNop(),
		lookup: func(context.Context, string) error { return nil },
		run:    exec.run,
	}}

	err := p.MountShare(context.Background(), credstore.Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)

	var mapped string
	for _, c := range exec.commands {
		if strings.Contains(c, `\\fs.internal.example.edu\data`) {
			mapped = c
		}
	}
	require.NotEmpty(t, mapped, "a net use mapping must be issued")
	assert.Contains(t, mapped, "/user:alice")
	assert.Contains(t, mapped, "/persistent:no")
}
