/* cmd/engine.go */

package cmd

import (
	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/sharesync/sharesync/pkg/config"
	"github.com/sharesync/sharesync/pkg/credstore"
	"github.com/sharesync/sharesync/pkg/execute"
	"github.com/sharesync/sharesync/pkg/logger"
	"github.com/sharesync/sharesync/pkg/netshare"
	"github.com/sharesync/sharesync/pkg/orchestrator"
	"github.com/sharesync/sharesync/pkg/profile"
	"github.com/sharesync/sharesync/pkg/recorder"
	"github.com/sharesync/sharesync/pkg/transfer"
)

// engine bundles the wired collaborators the commands share.
type engine struct {
	cfg   *config.Config
	probe netshare.Probe
	creds credstore.Store
	orch  *orchestrator.Orchestrator
	store *profile.Store
}

// buildEngine loads the configuration and wires the full stack for this
// host. Every command goes through here so the wiring stays in one place.
func buildEngine(log *zap.Logger) (*engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	probe := netshare.New(cfg.Network, log)
	creds := credstore.NewKeyring("")
	runner := execute.NewRunner(log)
	driver := transfer.NewDriver(runner, log)

	logDir := cfg.LogDir
	if logDir == "" {
		logDir = logger.DefaultLogDir()
	}
	rec := recorder.NewFileRecorder(logDir, log)
	store := profile.NewStore(profileStorePath(cfg))

	return &engine{
		cfg:   cfg,
		probe: probe,
		creds: creds,
		orch:  orchestrator.New(probe, driver, runner, creds, rec, log),
		store: store,
	}, nil
}

func profileStorePath(cfg *config.Config) string {
	if cfg.ProfilePath != "" {
		return cfg.ProfilePath
	}
	return profile.DefaultStorePath()
}

// loadProfile resolves the named profile, falling back to the configured
// default when name is empty.
func (e *engine) loadProfile(name string) (profile.Profile, error) {
	if name == "" {
		name = e.cfg.DefaultProfile
	}
	prof, err := e.store.Get(name)
	if err != nil {
		return profile.Profile{}, cerr.Wrapf(err, "profile %q", name)
	}
	return prof, nil
}
