// pkg/syncerr/syncerr_test.go

package syncerr

import (
	"testing"

	cerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationCombinesViolations(t *testing.T) {
	err := Validation([]error{
		cerr.New("source path is required"),
		cerr.New("retry count cannot be negative"),
	})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "source path is required")
	assert.Contains(t, err.Error(), "retry count cannot be negative")
}

func TestValidationOfNothingIsNil(t *testing.T) {
	assert.NoError(t, Validation(nil))
	assert.NoError(t, Validation([]error{}))
}

func TestClassPredicatesAreDisjoint(t *testing.T) {
	launch := Launch(cerr.New("no such file"), "rsync")
	assert.True(t, IsLaunch(launch))
	assert.False(t, IsFatal(launch))
	assert.False(t, IsValidation(launch))

	transient := Transient(24)
	assert.True(t, IsTransient(transient))
	assert.False(t, IsFatal(transient))

	fatal := Fatal(cerr.New("exit 11"))
	assert.True(t, IsFatal(fatal))
	assert.False(t, IsTransient(fatal))
}

func TestClassSurvivesWrapping(t *testing.T) {
	err := cerr.Wrap(Precondition(cerr.New("mount failed")), "ensuring connections")
	assert.True(t, IsPrecondition(err))
}

func TestCancelledCarriesStepName(t *testing.T) {
	err := Cancelled("transfer")
	assert.True(t, IsCancelled(err))
	assert.Contains(t, err.Error(), "transfer cancelled by user")
}

func TestNotSupportedNamesPlatform(t *testing.T) {
	err := NotSupported("VPN connect", "windows")
	assert.True(t, IsNotSupported(err))
	assert.Contains(t, err.Error(), "windows")
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 130, ExitCode(Cancelled("sync")))
	assert.Equal(t, 2, ExitCode(Validation([]error{cerr.New("bad")})))
	assert.Equal(t, 1, ExitCode(Fatal(cerr.New("boom"))))
	assert.Equal(t, 1, ExitCode(cerr.New("unclassified")))
}
