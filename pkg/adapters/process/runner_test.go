package process

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
}

func TestRunner_Run(t *testing.T) {
	skipOnWindows(t)

	t.Run("Returns Stdout", func(t *testing.T) {
		r := NewRunner("sh", WithBaseArgs("-c"))
		out, err := r.Run(context.Background(), "echo hello")
		require.NoError(t, err)
		assert.Equal(t, "hello\n", out)
	})

	t.Run("Wraps Failures With Stderr", func(t *testing.T) {
		r := NewRunner("sh", WithBaseArgs("-c"))
		_, err := r.Run(context.Background(), "echo device offline >&2; exit 3")
		require.Error(t, err)

		var execErr *ExecError
		require.True(t, errors.As(err, &execErr))
		assert.Equal(t, "device offline", execErr.Stderr)
		assert.Contains(t, err.Error(), "device offline")
	})

	t.Run("Passes Environment", func(t *testing.T) {
		r := NewRunner("sh", WithBaseArgs("-c"), WithEnv("USSD_MSG=SecretMessage"))
		out, err := r.Run(context.Background(), "echo $USSD_MSG")
		require.NoError(t, err)
		assert.Contains(t, out, "SecretMessage")
	})

	t.Run("Honors Context", func(t *testing.T) {
		r := NewRunner("sh", WithBaseArgs("-c"))
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := r.Run(ctx, "sleep 5")
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("No Command", func(t *testing.T) {
		_, err := NewRunner("").Run(context.Background())
		assert.Error(t, err)
	})
}

func TestADB_BaseArgs(t *testing.T) {
	skipOnWindows(t)

	// "echo" stands in for adb so the composed argv is visible.
	r := ADB("echo", "emulator-5554")
	out, err := r.Shell(context.Background(), "uiautomator dump")
	require.NoError(t, err)
	assert.Equal(t, "-s emulator-5554 shell uiautomator dump\n", out)

	out, err = ADB("echo", "").Run(context.Background(), "devices")
	require.NoError(t, err)
	assert.Equal(t, "devices\n", out)
}
