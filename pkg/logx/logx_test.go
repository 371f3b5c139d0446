package logx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestDebugToggle verifies debug logging can be enabled and disabled.
func TestDebugToggle(t *testing.T) {
	SetDebug(false, nil)
	assert.False(t, IsDebugEnabled())

	SetDebug(true, nil)
	assert.True(t, IsDebugEnabled())
	assert.True(t, IsDebugEnabledFor("tutor"))

	SetDebug(false, nil)
	assert.False(t, IsDebugEnabledFor("tutor"))
}

// TestDomainFiltering verifies DEBUG_DOMAINS-style filtering.
func TestDomainFiltering(t *testing.T) {
	SetDebug(true, []string{"tutor", "canvas"})
	defer SetDebug(false, nil)

	assert.True(t, IsDebugEnabledFor("tutor"))
	assert.True(t, IsDebugEnabledFor("canvas"))
	assert.False(t, IsDebugEnabledFor("checkpoint"))
}

// TestEnvironmentConfiguration verifies DEBUG env var initialization.
func TestEnvironmentConfiguration(t *testing.T) {
	os.Setenv("DEBUG", "1")
	os.Setenv("DEBUG_DOMAINS", "tutor")
	defer func() {
		os.Unsetenv("DEBUG")
		os.Unsetenv("DEBUG_DOMAINS")
		SetDebug(false, nil)
	}()

	initDebugFromEnv()

	assert.True(t, IsDebugEnabled())
	assert.True(t, IsDebugEnabledFor("tutor"))
	assert.False(t, IsDebugEnabledFor("canvas"))
}

// TestWrap verifies error wrapping preserves the original error.
func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, "no-op"))

	err := Wrap(os.ErrNotExist, "load state")
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "load state")
}
