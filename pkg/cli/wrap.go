// pkg/cli/wrap.go

// Package cli carries the per-invocation runtime context every command runs
// under: a scoped logger, an invocation id, panic recovery and a uniform
// "command completed/failed" trailer.
package cli

import (
	"context"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sharesync/sharesync/pkg/logger"
)

// RuntimeContext is handed to every command handler.
type RuntimeContext struct {
	Ctx          context.Context
	Log          *zap.Logger
	Command      string
	InvocationID string
	Timestamp    time.Time
}

// NewContext builds the runtime context for one command invocation.
func NewContext(ctx context.Context, cmdName string) *RuntimeContext {
	id := uuid.New().String()
	log := zap.L().With(
		zap.String("command", cmdName),
		zap.String("invocation_id", id),
	).Named(cmdName)

	return &RuntimeContext{
		Ctx:          ctx,
		Log:          log,
		Command:      cmdName,
		InvocationID: id,
		Timestamp:    time.Now(),
	}
}

// HandlePanic converts a panic into the command's returned error.
func (rc *RuntimeContext) HandlePanic(errPtr *error) {
	if r := recover(); r != nil {
		*errPtr = cerr.AssertionFailedf("panic: %v", r)
		rc.Log.Error("panic recovered", zap.Any("panic", r))
	}
}

// End logs the command outcome with its duration and flushes the logger.
func (rc *RuntimeContext) End(errPtr *error) {
	duration := time.Since(rc.Timestamp)
	if *errPtr == nil {
		rc.Log.Info("command completed", zap.Duration("duration", duration))
	} else {
		rc.Log.Error("command failed", zap.Duration("duration", duration), zap.Error(*errPtr))
	}
	logger.Sync()
}

// Wrap adapts a handler taking a RuntimeContext into a cobra RunE, adding
// logger fallback, panic recovery and the outcome trailer.
func Wrap(fn func(rc *RuntimeContext, cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		logger.InitializeWithFallback()

		rc := NewContext(cmd.Context(), cmd.Name())
		defer rc.End(&err)
		defer rc.HandlePanic(&err)

		return fn(rc, cmd, args)
	}
}
