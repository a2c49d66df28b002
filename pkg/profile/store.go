// pkg/profile/store.go

package profile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	cerr "github.com/cockroachdb/errors"
)

// Store persists profiles as a single JSON document. It is collaborator
// plumbing around the engine: the engine itself only ever sees Specs.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultStorePath is ~/.sharesync/profiles.json.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "sharesync", "profiles.json")
	}
	return filepath.Join(home, ".sharesync", "profiles.json")
}

func (s *Store) load() (map[string]Profile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Profile{}, nil
		}
		return nil, cerr.Wrap(err, "reading profile store")
	}
	profiles := map[string]Profile{}
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, cerr.Wrapf(err, "profile store %s is corrupt", s.path)
	}
	return profiles, nil
}

func (s *Store) save(profiles map[string]Profile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return cerr.Wrap(err, "creating profile directory")
	}
	data, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return cerr.Wrap(err, "writing profile store")
	}
	return os.Rename(tmp, s.path)
}

// List returns all profiles sorted by name.
func (s *Store) List() ([]Profile, error) {
	profiles, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get returns the named profile.
func (s *Store) Get(name string) (Profile, error) {
	profiles, err := s.load()
	if err != nil {
		return Profile{}, err
	}
	p, ok := profiles[name]
	if !ok {
		return Profile{}, cerr.Newf("profile %q not found", name)
	}
	return p, nil
}

// Put validates and stores a profile, replacing any existing one with the
// same name.
func (s *Store) Put(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	profiles, err := s.load()
	if err != nil {
		return err
	}
	p.UpdatedAt = time.Now().UTC()
	profiles[p.Name] = p
	return s.save(profiles)
}

// Delete removes a profile; deleting a missing profile is not an error.
func (s *Store) Delete(name string) error {
	profiles, err := s.load()
	if err != nil {
		return err
	}
	delete(profiles, name)
	return s.save(profiles)
}
