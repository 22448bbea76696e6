// Package doctor runs runtime readiness diagnostics for config, audio,
// backend reachability, and local speech synthesis.
package doctor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/sgrover/confab/internal/audio"
	"github.com/sgrover/confab/internal/config"
	"github.com/sgrover/confab/internal/voice"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{}

	configMessage := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		configMessage = fmt.Sprintf("no file at %q, using defaults", cfg.Path)
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: configMessage})

	for _, warning := range cfg.Warnings {
		checks = append(checks, Check{Name: "config.warning", Pass: true, Message: warning.Message})
	}

	checks = append(checks, checkSecureEndpoint("backend.stream_endpoint", cfg.Config.Backend.StreamEndpoint))
	checks = append(checks, checkSecureEndpoint("backend.http_endpoint", cfg.Config.Backend.HTTPEndpoint))
	checks = append(checks, checkBackendHealth(cfg.Config))
	checks = append(checks, checkAudioSelection(ctx, cfg.Config))
	checks = append(checks, checkSynthesizer(cfg.Config))

	return Report{Checks: checks}
}

// checkSecureEndpoint applies the loopback-or-encrypted endpoint policy.
func checkSecureEndpoint(name string, endpoint string) Check {
	if strings.TrimSpace(endpoint) == "" {
		return Check{Name: name, Pass: false, Message: "endpoint is empty"}
	}
	if err := voice.RequireSecureEndpoint(endpoint); err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s allowed", endpoint)}
}

// checkBackendHealth probes the backend health endpoint over HTTP.
func checkBackendHealth(cfg config.Config) Check {
	base := strings.TrimSpace(cfg.Backend.HTTPEndpoint)
	if base == "" {
		return Check{Name: "backend.health", Pass: false, Message: "http_endpoint is empty"}
	}

	url := strings.TrimRight(base, "/") + cfg.Backend.HealthPath
	client := http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return Check{Name: "backend.health", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Check{Name: "backend.health", Pass: false, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, url)}
	}

	bodyText := strings.ToLower(strings.TrimSpace(string(body)))
	if bodyText != "" && !strings.Contains(bodyText, "ok") && !strings.Contains(bodyText, "healthy") {
		return Check{Name: "backend.health", Pass: true, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, url)}
	}
	return Check{Name: "backend.health", Pass: true, Message: fmt.Sprintf("healthy at %s", url)}
}

// checkAudioSelection runs live device selection to surface selection and
// fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkSynthesizer validates that the local speech command is runnable.
func checkSynthesizer(cfg config.Config) Check {
	command := strings.TrimSpace(cfg.Speech.LocalCommand)
	if command == "" {
		return Check{Name: "speech.local_command", Pass: false, Message: "local_command is empty"}
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return Check{Name: "speech.local_command", Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", command)}
	}
	return Check{Name: "speech.local_command", Pass: true, Message: fmt.Sprintf("found at %s", path)}
}
