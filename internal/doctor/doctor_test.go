package doctor

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sgrover/confab/internal/config"
)

func TestReportOK(t *testing.T) {
	require.True(t, Report{Checks: []Check{
		{Name: "a", Pass: true},
		{Name: "b", Pass: true},
	}}.OK())

	require.False(t, Report{Checks: []Check{
		{Name: "a", Pass: true},
		{Name: "b", Pass: false},
	}}.OK())
}

func TestReportString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "config", Pass: true, Message: "loaded"},
		{Name: "backend.health", Pass: false, Message: "request failed"},
	}}

	require.Equal(t, "[OK] config: loaded\n[FAIL] backend.health: request failed", report.String())
}

func TestCheckSecureEndpoint(t *testing.T) {
	cases := []struct {
		name     string
		endpoint string
		pass     bool
	}{
		{name: "encrypted websocket", endpoint: "wss://voice.example.com/stream", pass: true},
		{name: "plaintext loopback", endpoint: "http://127.0.0.1:8000", pass: true},
		{name: "plaintext remote", endpoint: "ws://voice.example.com/stream", pass: false},
		{name: "empty", endpoint: "  ", pass: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			check := checkSecureEndpoint("backend.stream_endpoint", tc.endpoint)
			require.Equal(t, "backend.stream_endpoint", check.Name)
			require.Equal(t, tc.pass, check.Pass, check.Message)
		})
	}
}

func TestCheckBackendHealthHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Backend.HTTPEndpoint = server.URL
	cfg.Backend.HealthPath = "/api/health"

	check := checkBackendHealth(cfg)
	require.True(t, check.Pass, check.Message)
	require.Contains(t, check.Message, "healthy at")
}

func TestCheckBackendHealthFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Backend.HTTPEndpoint = server.URL

	check := checkBackendHealth(cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "HTTP 502")
}

func TestCheckBackendHealthUnreachable(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.HTTPEndpoint = "http://127.0.0.1:1"

	check := checkBackendHealth(cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "request failed")
}

func TestCheckSynthesizer(t *testing.T) {
	cfg := config.Default()
	cfg.Speech.LocalCommand = "sh"
	check := checkSynthesizer(cfg)
	require.True(t, check.Pass, check.Message)
	require.Contains(t, check.Message, "found at")

	cfg.Speech.LocalCommand = "confab-no-such-binary"
	check = checkSynthesizer(cfg)
	require.False(t, check.Pass)

	cfg.Speech.LocalCommand = "  "
	check = checkSynthesizer(cfg)
	require.False(t, check.Pass)
	require.Equal(t, "local_command is empty", check.Message)
}
