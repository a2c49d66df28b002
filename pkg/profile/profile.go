// pkg/profile/profile.go

// Package profile holds the sync data model: where to copy from and to,
// which files qualify, and how the copy tool should behave. Profiles are
// owned by the caller; the engine receives specs as immutable values.
package profile

import (
	"path/filepath"
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"

	"github.com/sharesync/sharesync/pkg/syncerr"
)

// Mode selects what the copy tool does with existing destination files.
type Mode string

const (
	// ModeMirror makes the destination an exact copy, deleting extraneous files.
	ModeMirror Mode = "mirror"
	// ModeUpdate only replaces files that are newer on the source side.
	ModeUpdate Mode = "update"
	// ModeAdditive only adds files that do not exist yet, never deleting.
	ModeAdditive Mode = "additive"
)

// Direction tells which endpoint is the source for this invocation. A
// bidirectional profile is executed as two sequential invocations with
// source and destination swapped.
type Direction string

const (
	DirectionLocalToRemote Direction = "local_to_remote"
	DirectionRemoteToLocal Direction = "remote_to_local"
	DirectionBidirectional Direction = "bidirectional"
)

// Location is one endpoint of a sync. RequiresVPN/RequiresSMB are only
// meaningful when IsRemote is set. Immutable once a run starts.
type Location struct {
	Path        string `json:"path"`
	Name        string `json:"name,omitempty"`
	IsRemote    bool   `json:"is_remote"`
	RequiresVPN bool   `json:"requires_vpn"`
	RequiresSMB bool   `json:"requires_smb"`
	MountPoint  string `json:"mount_point,omitempty"`
}

// Rule filters which files take part in a sync. Patterns are applied as a
// set; their order carries no meaning. Extensions are matched
// case-sensitively as given.
type Rule struct {
	IncludePatterns []string `json:"include_patterns,omitempty"`
	ExcludePatterns []string `json:"exclude_patterns,omitempty"`
	ExcludeHidden   bool     `json:"exclude_hidden"`
	MinFileSize     int64    `json:"min_file_size,omitempty"` // bytes, 0 = unset
	MaxFileSize     int64    `json:"max_file_size,omitempty"` // bytes, 0 = unset
	FileExtensions  []string `json:"file_extensions,omitempty"`
}

// Spec is one sync job: a source, a destination and the knobs that shape
// the generated copy command.
type Spec struct {
	Source      Location  `json:"source"`
	Destination Location  `json:"destination"`
	Mode        Mode      `json:"mode"`
	Direction   Direction `json:"direction"`
	Rules       Rule      `json:"rules"`

	PreservePermissions bool `json:"preserve_permissions"`
	PreserveTimestamps  bool `json:"preserve_timestamps"`
	FollowSymlinks      bool `json:"follow_symlinks"`

	RetryCount        int `json:"retry_count"`
	BandwidthLimitKBs int `json:"bandwidth_limit_kbs,omitempty"` // 0 = unlimited
}

// Swapped returns the spec with source and destination exchanged, for the
// second leg of a bidirectional sync.
func (s Spec) Swapped() Spec {
	out := s
	out.Source, out.Destination = s.Destination, s.Source
	return out
}

// Legs expands the spec into the copy invocations its direction implies: a
// bidirectional spec becomes two sequential legs with the endpoints
// exchanged for the second.
func (s Spec) Legs() []Spec {
	switch s.Direction {
	case DirectionRemoteToLocal:
		return []Spec{s.Swapped()}
	case DirectionBidirectional:
		return []Spec{s, s.Swapped()}
	default:
		return []Spec{s}
	}
}

// NormalizePath cleans a path for comparison purposes.
func NormalizePath(path string) string {
	return filepath.Clean(strings.TrimSpace(path))
}

// Validate checks every invariant and reports all violations at once as a
// single validation error, or nil.
func (s Spec) Validate() error {
	var violations []error

	if strings.TrimSpace(s.Source.Path) == "" {
		violations = append(violations, cerr.New("source path is required"))
	}
	if strings.TrimSpace(s.Destination.Path) == "" {
		violations = append(violations, cerr.New("destination path is required"))
	}
	if s.Source.Path != "" && s.Destination.Path != "" &&
		NormalizePath(s.Source.Path) == NormalizePath(s.Destination.Path) {
		violations = append(violations, cerr.New("source and destination cannot be the same path"))
	}
	if s.RetryCount < 0 {
		violations = append(violations, cerr.Newf("retry count cannot be negative (got %d)", s.RetryCount))
	}
	if s.BandwidthLimitKBs < 0 {
		violations = append(violations, cerr.Newf("bandwidth limit must be positive (got %d)", s.BandwidthLimitKBs))
	}
	switch s.Mode {
	case ModeMirror, ModeUpdate, ModeAdditive:
	default:
		violations = append(violations, cerr.Newf("unknown sync mode %q", s.Mode))
	}
	if s.Rules.MinFileSize > 0 && s.Rules.MaxFileSize > 0 && s.Rules.MinFileSize > s.Rules.MaxFileSize {
		violations = append(violations, cerr.New("min file size exceeds max file size"))
	}

	return syncerr.Validation(violations)
}

// StepConfig enables one of the dependent post-sync steps.
type StepConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// Profile aggregates the sync jobs a user runs together, plus the optional
// repository pull and follow-up script, and an optional cron schedule for
// daemon mode.
type Profile struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Specs       []Spec     `json:"specs"`
	RepoPull    StepConfig `json:"repo_pull"`
	PostScript  StepConfig `json:"post_script"`
	Schedule    string     `json:"schedule,omitempty"` // cron expression
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Validate validates every spec in the profile, reporting all violations.
func (p Profile) Validate() error {
	var violations []error
	if strings.TrimSpace(p.Name) == "" {
		violations = append(violations, cerr.New("profile name is required"))
	}
	if len(p.Specs) == 0 {
		violations = append(violations, cerr.New("profile has no sync specs"))
	}
	for i, spec := range p.Specs {
		if err := spec.Validate(); err != nil {
			violations = append(violations, cerr.Wrapf(err, "spec %d", i+1))
		}
	}
	return syncerr.Validation(violations)
}
