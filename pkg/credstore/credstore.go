// pkg/credstore/credstore.go

// Package credstore supplies opaque credentials to the connection probe.
// The engine only ever reads credentials; persisting them is the CLI's
// business, backed by the OS keyring.
package credstore

import (
	cerr "github.com/cockroachdb/errors"
	"github.com/zalando/go-keyring"
)

// Credentials is an opaque username/password pair.
type Credentials struct {
	Username string
	Password string
}

// Store hands out the credentials the probe needs for connect and mount
// operations.
type Store interface {
	VPN() (Credentials, error)
	Share() (Credentials, error)
}

const (
	keyVPNUsername   = "vpn_username"
	keyVPNPassword   = "vpn_password"
	keyShareUsername = "smb_username"
	keySharePassword = "smb_password"
)

// Keyring stores credentials in the OS keyring under a service name.
type Keyring struct {
	service string
}

func NewKeyring(service string) *Keyring {
	if service == "" {
		service = "sharesync"
	}
	return &Keyring{service: service}
}

func (k *Keyring) get(userKey, passwordKey string) (Credentials, error) {
	username, err := keyring.Get(k.service, userKey)
	if err != nil {
		return Credentials{}, cerr.Wrap(err, "no stored username; configure credentials first")
	}
	// A missing password is tolerated: some setups authenticate interactively.
	password, err := keyring.Get(k.service, passwordKey)
	if err != nil && err != keyring.ErrNotFound {
		return Credentials{}, cerr.Wrap(err, "reading stored password")
	}
	return Credentials{Username: username, Password: password}, nil
}

func (k *Keyring) VPN() (Credentials, error) {
	return k.get(keyVPNUsername, keyVPNPassword)
}

func (k *Keyring) Share() (Credentials, error) {
	return k.get(keyShareUsername, keySharePassword)
}

// SaveVPN persists VPN credentials for later runs.
func (k *Keyring) SaveVPN(creds Credentials) error {
	if err := keyring.Set(k.service, keyVPNUsername, creds.Username); err != nil {
		return err
	}
	if creds.Password == "" {
		return nil
	}
	return keyring.Set(k.service, keyVPNPassword, creds.Password)
}

// SaveShare persists share credentials for later runs.
func (k *Keyring) SaveShare(creds Credentials) error {
	if err := keyring.Set(k.service, keyShareUsername, creds.Username); err != nil {
		return err
	}
	if creds.Password == "" {
		return nil
	}
	return keyring.Set(k.service, keySharePassword, creds.Password)
}

// Static serves fixed credentials; used in tests and when the caller
// supplies credentials directly.
type Static struct {
	VPNCreds   Credentials
	ShareCreds Credentials
}

func (s Static) VPN() (Credentials, error)   { return s.VPNCreds, nil }
func (s Static) Share() (Credentials, error) { return s.ShareCreds, nil }
