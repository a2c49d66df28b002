// pkg/execute/helpers.go

package execute

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// probeTimeout bounds the quick-check helpers so connection probes stay
// sub-second-ish even when a host is unreachable.
const probeTimeout = 5 * time.Second

// Output runs a command to completion and returns its combined output.
// Intended for short probe commands, not for streaming transfers.
func Output(ctx context.Context, logger *zap.Logger, name string, args ...string) (string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	runCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(runCtx, name, args...).CombinedOutput()
	if err != nil {
		logger.Debug("probe command failed",
			zap.String("command", name),
			zap.Strings("args", args),
			zap.Error(err))
	}
	return string(out), err
}

// RunQuiet runs a command to completion, discarding output. The error is nil
// exactly when the command exits zero.
func RunQuiet(ctx context.Context, logger *zap.Logger, name string, args ...string) error {
	_, err := Output(ctx, logger, name, args...)
	return err
}

func joinArgs(args []string) string {
	quoted := make([]string, 0, len(args))
	for _, arg := range args {
		quoted = append(quoted, "'"+arg+"'")
	}
	return strings.Join(quoted, " ")
}

// CommandString renders a command for log lines.
func CommandString(cmd Command) string {
	if len(cmd.Args) == 0 {
		return cmd.Name
	}
	return cmd.Name + " " + joinArgs(cmd.Args)
}
