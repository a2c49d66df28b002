// pkg/gitops/gitops_test.go

package gitops

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRepository(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, IsRepository(dir))

	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	assert.True(t, IsRepository(dir))

	// a .git file (worktree link) is not enough
	other := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(other, ".git"), []byte("gitdir: elsewhere"), 0o644))
	assert.False(t, IsRepository(other))
}

func TestPullNonRepositoryFails(t *testing.T) {
	_, err := Pull(context.Background(), t.TempDir(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening repository")
}

func TestPullAlreadyUpToDate(t *testing.T) {
	// origin: a repository with one commit
	origin := t.TempDir()
	repo, err := git.PlainInit(origin, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(origin, "notes.txt"), []byte("hello"), 0o644))
	_, err = wt.Add("notes.txt")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.edu", When: time.Now()},
	})
	require.NoError(t, err)

	// clone: tracks origin and is current
	clone := t.TempDir()
	_, err = git.PlainClone(clone, false, &git.CloneOptions{URL: origin})
	require.NoError(t, err)

	msg, err := Pull(context.Background(), clone, nil)
	require.NoError(t, err)
	assert.Equal(t, "repository already up to date", msg)
}
