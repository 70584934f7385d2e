// Package doctor runs readiness diagnostics for config, recorder, camera,
// microphone, the interview backend, and narration.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/proctor/internal/capture"
	"github.com/rbright/proctor/internal/config"
	"github.com/rbright/proctor/internal/health"
	"github.com/rbright/proctor/internal/interviewapi"
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

	configMsg := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		configMsg = fmt.Sprintf("no file at %q, using defaults", cfg.Path)
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: configMsg})

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "runtime dir available for the control socket", "XDG_RUNTIME_DIR is empty"))

	checks = append(checks, checkCommand(cfg.Config.Capture.FFmpeg.Argv, "capture.ffmpeg_cmd"))
	if len(cfg.Config.Capture.Player.Argv) > 0 {
		checks = append(checks, checkCommand(cfg.Config.Capture.Player.Argv, "capture.player_cmd"))
	}
	checks = append(checks, checkVideoDevice(cfg.Config.Capture))
	checks = append(checks, checkMicrophone(ctx, cfg.Config.Capture))
	checks = append(checks, checkAPI(ctx, cfg.Config.API))

	if cfg.Config.Narration.Enable {
		keyEnv := cfg.Config.Narration.APIKeyEnv
		checks = append(checks, checkEnv(keyEnv, func(v string) bool {
			return strings.TrimSpace(v) != ""
		}, "narration API key present", fmt.Sprintf("%s is empty; questions will not be read aloud", keyEnv)))
	}

	if strings.TrimSpace(cfg.Config.API.HealthGRPC) != "" {
		checks = append(checks, checkHealth(ctx, cfg.Config.API))
	}

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

func checkVideoDevice(cfg config.CaptureConfig) Check {
	device := strings.TrimSpace(cfg.VideoDevice)
	if device == "" {
		return Check{Name: "capture.video_device", Pass: true, Message: "camera disabled, recording audio only"}
	}
	if err := capture.CheckVideoDevice(device); err != nil {
		return Check{Name: "capture.video_device", Pass: false, Message: err.Error()}
	}
	return Check{Name: "capture.video_device", Pass: true, Message: fmt.Sprintf("found %s", device)}
}

// checkMicrophone runs live source selection to surface selection/fallback issues.
func checkMicrophone(ctx context.Context, cfg config.CaptureConfig) Check {
	selection, err := capture.SelectSource(ctx, cfg.AudioInput, cfg.AudioFallback)
	if err != nil {
		return Check{Name: "capture.audio_input", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Source.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "capture.audio_input", Pass: true, Message: message}
}

// checkAPI reports whether the interview backend answers at all. Any status
// below 500 counts as reachable.
func checkAPI(ctx context.Context, cfg config.APIConfig) Check {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return Check{Name: "api.base_url", Pass: false, Message: "api.base_url is empty"}
	}

	timeout := cfg.Timeout()
	if timeout <= 0 || timeout > 5*time.Second {
		cfg.TimeoutMS = 5000
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	status, err := interviewapi.New(cfg).Ping(ctx)
	if err != nil {
		return Check{Name: "api.base_url", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	if status >= 500 {
		return Check{Name: "api.base_url", Pass: false, Message: fmt.Sprintf("HTTP %d from %s", status, base)}
	}
	return Check{Name: "api.base_url", Pass: true, Message: fmt.Sprintf("HTTP %d from %s", status, base)}
}

func checkHealth(ctx context.Context, cfg config.APIConfig) Check {
	result, err := health.Check(ctx, cfg.HealthGRPC, "", 3*time.Second)
	if err != nil {
		return Check{Name: "api.health_grpc", Pass: false, Message: err.Error()}
	}
	if !result.Serving() {
		return Check{Name: "api.health_grpc", Pass: false, Message: fmt.Sprintf("status %s from %s", result.Status, result.Endpoint)}
	}
	return Check{
		Name:    "api.health_grpc",
		Pass:    true,
		Message: fmt.Sprintf("serving at %s (%dms)", result.Endpoint, result.Latency.Milliseconds()),
	}
}
