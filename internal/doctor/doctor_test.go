package doctor

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rbright/proctor/internal/config"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestReportOKAllPassing(t *testing.T) {
	report := Report{Checks: []Check{{Name: "one", Pass: true}, {Name: "two", Pass: true}}}
	require.True(t, report.OK())
}

func TestCheckEnv(t *testing.T) {
	t.Setenv("TEST_DOCTOR_ENV", "/run/user/1000")

	check := checkEnv(
		"TEST_DOCTOR_ENV",
		func(v string) bool { return strings.HasPrefix(v, "/run/") },
		"looks good",
		"unexpected",
	)

	require.True(t, check.Pass)
	require.Equal(t, "looks good", check.Message)
}

func TestCheckCommandEmpty(t *testing.T) {
	check := checkCommand(nil, "capture.ffmpeg_cmd")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "command is empty")
}

func TestCheckBinaryFound(t *testing.T) {
	check := checkBinary("sh", "shell available")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "shell available")
}

func TestCheckBinaryMissing(t *testing.T) {
	check := checkBinary("definitely-not-a-real-binary", "unused")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "binary not found")
}

func TestCheckCommandUsesBinaryFromPath(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "fake-ffmpeg")
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/usr/bin/env sh\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	check := checkCommand([]string{"fake-ffmpeg", "-hide_banner"}, "capture.ffmpeg_cmd")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "capture.ffmpeg_cmd command is available")
}

func TestCheckVideoDevice(t *testing.T) {
	node := filepath.Join(t.TempDir(), "video0")
	require.NoError(t, os.WriteFile(node, nil, 0o600))

	check := checkVideoDevice(config.CaptureConfig{VideoDevice: node})
	require.True(t, check.Pass)

	check = checkVideoDevice(config.CaptureConfig{VideoDevice: filepath.Join(t.TempDir(), "missing")})
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "missing")

	check = checkVideoDevice(config.CaptureConfig{})
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "audio only")
}

func TestCheckMicrophoneFailureWithInvalidPulseServer(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	check := checkMicrophone(context.Background(), config.Default().Capture)
	require.False(t, check.Pass)
	require.Equal(t, "capture.audio_input", check.Name)
}

func TestCheckAPIReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default().API
	cfg.BaseURL = server.URL

	check := checkAPI(context.Background(), cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "HTTP 404")
}

func TestCheckAPIServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default().API
	cfg.BaseURL = server.URL

	check := checkAPI(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "HTTP 502")
}

func TestCheckAPIEmptyBaseURL(t *testing.T) {
	check := checkAPI(context.Background(), config.APIConfig{})
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "api.base_url is empty")
}

func startHealthServer(t *testing.T) (string, *grpchealth.Server) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpchealth.NewServer()
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, srv)
	go func() { _ = grpcServer.Serve(lis) }()
	t.Cleanup(grpcServer.Stop)

	return lis.Addr().String(), srv
}

func TestCheckHealth(t *testing.T) {
	endpoint, srv := startHealthServer(t)

	check := checkHealth(context.Background(), config.APIConfig{HealthGRPC: endpoint})
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "serving at "+endpoint)

	srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	check = checkHealth(context.Background(), config.APIConfig{HealthGRPC: endpoint})
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "NOT_SERVING")
}

func TestRunIncludesOptionalChecks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	endpoint, _ := startHealthServer(t)

	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	t.Setenv("PROCTOR_TEST_TTS_KEY", "")

	cfg := config.Default()
	cfg.API.BaseURL = server.URL
	cfg.API.HealthGRPC = endpoint
	cfg.Capture.VideoDevice = ""
	cfg.Capture.Player.Argv = []string{"proctor-missing-player", "-autoexit"}
	cfg.Narration.APIKeyEnv = "PROCTOR_TEST_TTS_KEY"

	report := Run(context.Background(), config.Loaded{Path: "/tmp/config.jsonc", Config: cfg, Exists: true})

	byName := map[string]Check{}
	for _, check := range report.Checks {
		byName[check.Name] = check
	}
	require.True(t, byName["config"].Pass)
	require.True(t, byName["XDG_RUNTIME_DIR"].Pass)
	require.True(t, byName["api.base_url"].Pass)
	require.True(t, byName["api.health_grpc"].Pass)
	require.False(t, byName["capture.audio_input"].Pass)
	require.False(t, byName["PROCTOR_TEST_TTS_KEY"].Pass)
	require.False(t, byName["proctor-missing-player"].Pass)
	require.False(t, report.OK())
}

func TestRunSkipsDisabledNarrationAndHealth(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	cfg := config.Default()
	cfg.API.BaseURL = ""
	cfg.Narration.Enable = false

	report := Run(context.Background(), config.Loaded{Path: "/tmp/missing.jsonc", Config: cfg})
	for _, check := range report.Checks {
		require.NotEqual(t, cfg.Narration.APIKeyEnv, check.Name)
		require.NotEqual(t, "api.health_grpc", check.Name)
	}
	require.Contains(t, report.Checks[0].Message, "using defaults")
}
