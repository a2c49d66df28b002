// pkg/transfer/command.go

package transfer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sharesync/sharesync/pkg/execute"
	"github.com/sharesync/sharesync/pkg/profile"
)

// Builder renders a sync spec into a concrete copy-tool invocation and
// classifies that tool's exit codes and output lines. One builder exists per
// supported tool family.
type Builder interface {
	// Build produces the command for one attempt. dryRun makes the tool
	// report intended changes without touching the destination.
	Build(spec profile.Spec, dryRun bool) execute.Command
	// ToolName is used in log and error messages.
	ToolName() string
	// ClassifyExit buckets an exit code. The thresholds are part of the
	// tool's de-facto wire format and must be exact.
	ClassifyExit(code int) ExitClass
	// ParseProgress extracts a progress percentage from an output line.
	// ok is false for lines that carry no (or no usable) percentage.
	ParseProgress(line string) (percent int, ok bool)
}

// ExitClass buckets copy-tool exit codes.
type ExitClass int

const (
	// ExitSuccess: the tool finished acceptably.
	ExitSuccess ExitClass = iota
	// ExitTransient: retryable (e.g. files vanished during the scan).
	ExitTransient
	// ExitFatal: anything else.
	ExitFatal
)

// rsyncBuilder drives rsync. Exit code 0 is success, 24 ("some files
// vanished before they could be transferred") is transient, everything else
// is fatal.
type rsyncBuilder struct{}

// NewRsyncBuilder returns the builder for rsync-family tools.
func NewRsyncBuilder() Builder { return rsyncBuilder{} }

func (rsyncBuilder) ToolName() string { return "rsync" }

func (rsyncBuilder) ClassifyExit(code int) ExitClass {
	switch code {
	case 0:
		return ExitSuccess
	case 24:
		return ExitTransient
	default:
		return ExitFatal
	}
}

func (rsyncBuilder) Build(spec profile.Spec, dryRun bool) execute.Command {
	args := []string{"-avh", "--progress"}

	if dryRun {
		args = append(args, "--dry-run")
	}

	switch spec.Mode {
	case profile.ModeMirror:
		args = append(args, "--delete")
	case profile.ModeUpdate:
		args = append(args, "--update")
	case profile.ModeAdditive:
		args = append(args, "--ignore-existing")
	}

	if spec.PreservePermissions {
		args = append(args, "-p")
	}
	if spec.PreserveTimestamps {
		args = append(args, "-t")
	}
	if spec.FollowSymlinks {
		args = append(args, "-L")
	} else {
		args = append(args, "-l")
	}

	if spec.BandwidthLimitKBs > 0 {
		args = append(args, "--bwlimit", strconv.Itoa(spec.BandwidthLimitKBs))
	}

	for _, pattern := range spec.Rules.ExcludePatterns {
		args = append(args, "--exclude", pattern)
	}
	for _, pattern := range spec.Rules.IncludePatterns {
		args = append(args, "--include", pattern)
	}
	if spec.Rules.ExcludeHidden {
		args = append(args, "--exclude", ".*")
	}
	if spec.Rules.MinFileSize > 0 {
		args = append(args, "--min-size", strconv.FormatInt(spec.Rules.MinFileSize, 10))
	}
	if spec.Rules.MaxFileSize > 0 {
		args = append(args, "--max-size", strconv.FormatInt(spec.Rules.MaxFileSize, 10))
	}

	// Trailing slash: sync the directory's contents, not the directory.
	src := spec.Source.Path
	if !strings.HasSuffix(src, "/") {
		src += "/"
	}
	args = append(args, src, spec.Destination.Path)

	return execute.Command{Name: "rsync", Args: args}
}

// rsyncPercentRe matches the percentage column of rsync --progress lines,
// e.g. "  1,442,120  43%  680.21kB/s  0:00:02".
var rsyncPercentRe = regexp.MustCompile(`(\d+)%`)

func (rsyncBuilder) ParseProgress(line string) (int, bool) {
	m := rsyncPercentRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	percent, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return percent, true
}

// robocopyBuilder drives robocopy. Exit codes 0 through 7 are success
// variants (bitmask of copied/extra/mismatched), 8 and above mean failures
// occurred. Robocopy retries internally via /R and /W, so no exit code is
// classed transient here.
type robocopyBuilder struct{}

// NewRobocopyBuilder returns the builder for robocopy-family tools.
func NewRobocopyBuilder() Builder { return robocopyBuilder{} }

func (robocopyBuilder) ToolName() string { return "robocopy" }

func (robocopyBuilder) ClassifyExit(code int) ExitClass {
	if code >= 0 && code < 8 {
		return ExitSuccess
	}
	return ExitFatal
}

func (robocopyBuilder) Build(spec profile.Spec, dryRun bool) execute.Command {
	args := []string{spec.Source.Path, spec.Destination.Path}

	if len(spec.Rules.FileExtensions) > 0 {
		for _, ext := range spec.Rules.FileExtensions {
			args = append(args, "*"+ext)
		}
	} else {
		args = append(args, "*.*")
	}

	args = append(args, "/E")

	if spec.Mode == profile.ModeMirror {
		args = append(args, "/MIR")
	}
	if spec.Mode == profile.ModeUpdate {
		// Skip files that are older on the source side.
		args = append(args, "/XO")
	}
	if dryRun {
		args = append(args, "/L")
	}

	if len(spec.Rules.ExcludePatterns) > 0 {
		args = append(args, "/XF")
		args = append(args, spec.Rules.ExcludePatterns...)
	}
	if spec.Rules.ExcludeHidden {
		args = append(args, "/XA:H")
	}
	if spec.Rules.MinFileSize > 0 {
		args = append(args, "/MIN:"+strconv.FormatInt(spec.Rules.MinFileSize, 10))
	}
	if spec.Rules.MaxFileSize > 0 {
		args = append(args, "/MAX:"+strconv.FormatInt(spec.Rules.MaxFileSize, 10))
	}
	if !spec.FollowSymlinks {
		args = append(args, "/SL")
	}
	if spec.BandwidthLimitKBs > 0 {
		// Inter-packet gap is robocopy's only throttle; approximate from the
		// KB/s limit against a nominal 64KB block.
		gap := 64000 / spec.BandwidthLimitKBs
		if gap < 1 {
			gap = 1
		}
		args = append(args, "/IPG:"+strconv.Itoa(gap))
	}

	copyFlags := "D"
	if spec.PreserveTimestamps {
		copyFlags += "T"
	}
	if spec.PreservePermissions {
		copyFlags += "S"
	}
	args = append(args, "/COPY:"+copyFlags)

	args = append(args,
		"/R:"+strconv.Itoa(spec.RetryCount),
		"/W:5")

	return execute.Command{Name: "robocopy", Args: args}
}

// robocopyPercentRe matches robocopy's per-file progress lines, which print
// a bare float percentage such as " 42.7%".
var robocopyPercentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)

func (robocopyBuilder) ParseProgress(line string) (int, bool) {
	m := robocopyPercentRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}
