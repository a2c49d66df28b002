// pkg/gitops/gitops.go

// Package gitops performs the repository pull that optionally follows a
// sync run.
package gitops

import (
	"context"
	"os"
	"path/filepath"

	cerr "github.com/cockroachdb/errors"
	git "github.com/go-git/go-git/v5"
	"go.uber.org/zap"
)

// IsRepository reports whether path looks like a git work tree (has a .git
// metadata directory).
func IsRepository(path string) bool {
	info, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil && info.IsDir()
}

// Pull fast-forwards the work tree at path from its origin remote. An
// already-up-to-date repository is a success, not an error. The returned
// message is suitable for a status event.
func Pull(ctx context.Context, path string, logger *zap.Logger) (string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	repo, err := git.PlainOpen(path)
	if err != nil {
		return "", cerr.Wrapf(err, "opening repository %s", path)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return "", cerr.Wrap(err, "resolving work tree")
	}

	logger.Info("pulling repository", zap.String("path", path))
	err = worktree.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
	if err == git.NoErrAlreadyUpToDate {
		return "repository already up to date", nil
	}
	if err != nil {
		return "", cerr.Wrapf(err, "pulling %s", path)
	}

	head, err := repo.Head()
	if err != nil {
		return "repository updated", nil
	}
	return "repository updated to " + head.Hash().String()[:12], nil
}
