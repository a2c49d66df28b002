// pkg/cli/wrap_test.go

package cli

import (
	"testing"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCommand(t *testing.T, fn func(rc *RuntimeContext, cmd *cobra.Command, args []string) error) *cobra.Command {
	t.Helper()
	t.Setenv("HOME", t.TempDir()) // keep fallback log files out of the real home
	return &cobra.Command{Use: "probe", RunE: Wrap(fn)}
}

func TestWrapPassesRuntimeContext(t *testing.T) {
	var got *RuntimeContext
	cmd := testCommand(t, func(rc *RuntimeContext, _ *cobra.Command, _ []string) error {
		got = rc
		return nil
	})

	require.NoError(t, cmd.Execute())
	require.NotNil(t, got)
	assert.Equal(t, "probe", got.Command)
	assert.NotEmpty(t, got.InvocationID)
	assert.NotNil(t, got.Ctx)
	assert.NotNil(t, got.Log)
}

func TestWrapPropagatesErrors(t *testing.T) {
	want := cerr.New("boom")
	cmd := testCommand(t, func(_ *RuntimeContext, _ *cobra.Command, _ []string) error {
		return want
	})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	assert.ErrorIs(t, cmd.Execute(), want)
}

func TestWrapRecoversPanics(t *testing.T) {
	cmd := testCommand(t, func(_ *RuntimeContext, _ *cobra.Command, _ []string) error {
		panic("unexpected state")
	})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
	assert.Contains(t, err.Error(), "unexpected state")
}

func TestInvocationIDsAreUnique(t *testing.T) {
	ids := map[string]bool{}
	for i := 0; i < 3; i++ {
		cmd := testCommand(t, func(rc *RuntimeContext, _ *cobra.Command, _ []string) error {
			ids[rc.InvocationID] = true
			return nil
		})
		require.NoError(t, cmd.Execute())
	}
	assert.Len(t, ids, 3)
}
