// pkg/config/config.go

// Package config loads the application configuration. The engine packages
// never read configuration files themselves; cmd wires loaded values into
// them.
package config

import (
	"os"
	"path/filepath"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// Network holds everything the connection probe needs to know about the
// remote environment.
type Network struct {
	// VPNHost is the VPN gateway used by connect.
	VPNHost string `mapstructure:"vpn_host"`
	// VPNProtocol is passed to openconnect (e.g. anyconnect).
	VPNProtocol string `mapstructure:"vpn_protocol"`
	// CheckHosts are internal hostnames that only resolve inside the VPN.
	// Resolution of any of them is treated as "VPN up".
	CheckHosts []string `mapstructure:"check_hosts"`
	// ShareHost and ShareName form the SMB share URL (//host/share).
	ShareHost string `mapstructure:"share_host"`
	ShareName string `mapstructure:"share_name"`
	// MountPoint is where the share is made locally accessible.
	MountPoint string `mapstructure:"mount_point"`
}

// Daemon configures scheduled and watch-triggered syncs.
type Daemon struct {
	// Schedule is a cron expression; empty disables scheduled runs.
	Schedule string `mapstructure:"schedule"`
	// Watch enables filesystem-watch triggering on local sources.
	Watch bool `mapstructure:"watch"`
	// DebounceSeconds is how long a burst of file events must settle before
	// a sync is triggered.
	DebounceSeconds int `mapstructure:"debounce_seconds"`
}

// Config is the top-level application configuration.
type Config struct {
	Network     Network `mapstructure:"network"`
	Daemon      Daemon  `mapstructure:"daemon"`
	LogDir      string  `mapstructure:"log_dir"`
	ProfilePath string  `mapstructure:"profile_path"`
	// DefaultProfile names the profile used when the CLI is invoked without
	// an explicit one.
	DefaultProfile string `mapstructure:"default_profile"`
}

// DefaultPath is ~/.sharesync/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "sharesync", "config.yaml")
	}
	return filepath.Join(home, ".sharesync", "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("network.vpn_host", "vpn.example.edu")
	v.SetDefault("network.vpn_protocol", "anyconnect")
	v.SetDefault("network.check_hosts", []string{"fs.internal.example.edu"})
	v.SetDefault("network.share_host", "fs.internal.example.edu")
	v.SetDefault("network.share_name", "data")
	v.SetDefault("network.mount_point", "/Volumes/data")
	v.SetDefault("daemon.debounce_seconds", 8)
	v.SetDefault("default_profile", "default")
}

// Load reads the config file at path, or the default location when path is
// empty. A missing file yields the built-in defaults rather than an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, cerr.Wrapf(err, "reading config %s", path)
		}
	} else if explicit {
		return nil, cerr.Wrapf(err, "config %s", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, cerr.Wrap(err, "parsing config")
	}
	return &cfg, nil
}
