package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sgrover/confab/internal/version"
	"github.com/sgrover/confab/internal/voice"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
}

func TestExecuteHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := Execute(context.Background(), []string{"--help"}, &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), "Usage:")
	require.Empty(t, stderr.String())
}

func TestExecuteVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := Execute(context.Background(), []string{"version"}, &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Equal(t, version.String()+"\n", stdout.String())
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := Execute(context.Background(), []string{"bogus"}, &stdout, &stderr)
	require.Equal(t, 2, code)
	require.Contains(t, stderr.String(), "unknown command")
	require.Contains(t, stderr.String(), "Usage:")
}

func TestExecuteStatusWithoutSession(t *testing.T) {
	isolateEnv(t)

	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), []string{"status"}, &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Equal(t, "idle\n", stdout.String())
}

func TestExecuteStopWithoutSession(t *testing.T) {
	isolateEnv(t)

	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), []string{"stop"}, &stdout, &stderr)
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "no active confab session")
}

func TestFriendlyError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{err: voice.ErrPermissionDenied, want: "microphone access denied"},
		{err: fmt.Errorf("select input: %w", voice.ErrDeviceUnavailable), want: "confab devices"},
		{err: voice.ErrSecureContext, want: "wss:// or https://"},
		{err: fmt.Errorf("%w: dial tcp refused", voice.ErrConnection), want: "backend connection failed"},
		{err: voice.ErrTooShort, want: "utterance too short"},
		{err: voice.ErrEmptyResult, want: "nothing transcribed"},
		{err: errors.New("disk on fire"), want: "disk on fire"},
	}

	for _, tc := range cases {
		message := friendlyError(tc.err)
		if !strings.Contains(message, tc.want) {
			t.Fatalf("friendlyError(%v) = %q, want substring %q", tc.err, message, tc.want)
		}
	}
}
