package capture

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbright/proctor/internal/config"
	"github.com/rbright/proctor/internal/domain"
	"github.com/stretchr/testify/require"
)

type countingCloser struct {
	closed atomic.Int32
}

func (c *countingCloser) Close() error {
	c.closed.Add(1)
	return nil
}

const recorderStub = `
printf '%s\n' "$*" >> "${FFMPEG_ARGS_FILE}"
trap 'printf -- "-tail"; exit 255' INT
printf 'webm-head'
while true; do sleep 0.05; done
`

func newTestProvider(t *testing.T, cfg config.CaptureConfig, hold *countingCloser) *Provider {
	t.Helper()
	provider := NewProvider(cfg, false, nil)
	provider.selectSource = func(context.Context, string, string) (Selection, error) {
		return Selection{Source: Source{ID: "alsa_input.test", Description: "Test Mic", Available: true, Default: true}}, nil
	}
	provider.holdSource = func(context.Context, Source) (io.Closer, error) {
		return hold, nil
	}
	return provider
}

func testCaptureConfig(t *testing.T) config.CaptureConfig {
	t.Helper()
	cfg := config.Default().Capture
	cfg.VideoDevice = filepath.Join(t.TempDir(), "video0")
	require.NoError(t, os.WriteFile(cfg.VideoDevice, nil, 0o600))
	cfg.StopTimeoutMS = 2000
	return cfg
}

func TestRecorderArgsVideoAndAudio(t *testing.T) {
	cfg := config.Default().Capture
	args := recorderArgs(cfg, Source{ID: "mic"})
	require.Equal(t, []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-f", "v4l2", "-i", "/dev/video0",
		"-f", "pulse", "-i", "mic",
		"-c:v", "libvpx", "-deadline", "realtime", "-cpu-used", "8",
		"-c:a", "libopus", "-f", "webm", "pipe:1",
	}, args)
}

func TestRecorderArgsAudioOnly(t *testing.T) {
	cfg := config.Default().Capture
	cfg.VideoDevice = ""
	args := recorderArgs(cfg, Source{ID: "mic"})
	require.NotContains(t, args, "v4l2")
	require.Contains(t, args, "-vn")
	require.Equal(t, "pipe:1", args[len(args)-1])
}

func TestAcquireRecordStopRelease(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "ffmpeg-args.log")
	t.Setenv("FFMPEG_ARGS_FILE", argsFile)
	installFFmpegStub(t, recorderStub)

	hold := &countingCloser{}
	provider := newTestProvider(t, testCaptureConfig(t), hold)

	device, err := provider.Acquire(context.Background())
	require.NoError(t, err)
	require.Contains(t, device.Name(), "Test Mic")

	rec, err := device.StartRecording(context.Background())
	require.NoError(t, err)

	_, err = device.StartRecording(context.Background())
	require.ErrorIs(t, err, ErrBusy)

	waitForFile(t, argsFile)
	time.Sleep(100 * time.Millisecond)

	data, err := rec.Stop(context.Background())
	require.NoError(t, err)
	require.Equal(t, "webm-head-tail", string(data))

	again, err := rec.Stop(context.Background())
	require.NoError(t, err)
	require.Equal(t, data, again)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.Contains(t, string(args), "-f pulse -i alsa_input.test")

	require.NoError(t, device.Release())
	require.NoError(t, device.Release())
	require.Equal(t, int32(1), hold.closed.Load())

	_, err = device.StartRecording(context.Background())
	require.ErrorIs(t, err, ErrReleased)
}

func TestAcquireAfterReleaseWorksRepeatedly(t *testing.T) {
	installFFmpegStub(t, recorderStub)

	hold := &countingCloser{}
	provider := newTestProvider(t, testCaptureConfig(t), hold)

	for i := 0; i < 3; i++ {
		device, err := provider.Acquire(context.Background())
		require.NoError(t, err)
		require.NoError(t, device.Release())
	}
	require.Equal(t, int32(3), hold.closed.Load())
}

func TestReleaseStopsActiveRecording(t *testing.T) {
	t.Setenv("FFMPEG_ARGS_FILE", filepath.Join(t.TempDir(), "args.log"))
	installFFmpegStub(t, recorderStub)

	provider := newTestProvider(t, testCaptureConfig(t), &countingCloser{})
	device, err := provider.Acquire(context.Background())
	require.NoError(t, err)

	rec, err := device.StartRecording(context.Background())
	require.NoError(t, err)
	require.NoError(t, device.Release())

	finished := rec.(*Recording).finished()
	require.True(t, finished)
}

func TestStopKillsUnresponsiveRecorder(t *testing.T) {
	installFFmpegStub(t, `
trap '' INT
printf 'partial'
while true; do sleep 0.05; done
`)

	cfg := testCaptureConfig(t)
	cfg.StopTimeoutMS = 200
	provider := newTestProvider(t, cfg, &countingCloser{})

	device, err := provider.Acquire(context.Background())
	require.NoError(t, err)
	defer device.Release()

	rec, err := device.StartRecording(context.Background())
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	started := time.Now()
	data, err := rec.Stop(context.Background())
	require.Less(t, time.Since(started), 2*time.Second)
	require.Equal(t, "partial", string(data))
	require.NoError(t, err)
}

func TestAcquireFailuresWrapDeviceDenied(t *testing.T) {
	t.Run("missing recorder", func(t *testing.T) {
		cfg := testCaptureConfig(t)
		cfg.FFmpeg = config.CommandConfig{Raw: "definitely-missing-ffmpeg", Argv: []string{"definitely-missing-ffmpeg"}}
		_, err := newTestProvider(t, cfg, &countingCloser{}).Acquire(context.Background())
		require.ErrorIs(t, err, domain.ErrDeviceDenied)
		require.Contains(t, err.Error(), "not found")
	})

	t.Run("missing camera", func(t *testing.T) {
		installFFmpegStub(t, recorderStub)
		cfg := testCaptureConfig(t)
		cfg.VideoDevice = filepath.Join(t.TempDir(), "video9")
		_, err := newTestProvider(t, cfg, &countingCloser{}).Acquire(context.Background())
		require.ErrorIs(t, err, domain.ErrDeviceDenied)
		require.Contains(t, err.Error(), "video9")
	})

	t.Run("microphone selection", func(t *testing.T) {
		installFFmpegStub(t, recorderStub)
		provider := newTestProvider(t, testCaptureConfig(t), &countingCloser{})
		provider.selectSource = func(context.Context, string, string) (Selection, error) {
			return Selection{}, errors.New("no audio input sources found")
		}
		_, err := provider.Acquire(context.Background())
		require.ErrorIs(t, err, domain.ErrDeviceDenied)
		require.Contains(t, err.Error(), "select microphone")
	})

	t.Run("microphone hold", func(t *testing.T) {
		installFFmpegStub(t, recorderStub)
		provider := newTestProvider(t, testCaptureConfig(t), &countingCloser{})
		provider.holdSource = func(context.Context, Source) (io.Closer, error) {
			return nil, errors.New("permission denied")
		}
		_, err := provider.Acquire(context.Background())
		require.ErrorIs(t, err, domain.ErrDeviceDenied)
		require.Contains(t, err.Error(), "permission denied")
	})
}

func TestNormalizeStopErr(t *testing.T) {
	require.NoError(t, normalizeStopErr(nil))

	exitErr := exec.Command("bash", "-c", "exit 1").Run()
	require.Error(t, exitErr)
	require.NoError(t, normalizeStopErr(exitErr))

	other := errors.New("boom")
	require.Equal(t, other, normalizeStopErr(other))
}

func installFFmpegStub(t *testing.T, body string) {
	t.Helper()
	installStub(t, "ffmpeg", body)
}

func installStub(t *testing.T, name string, body string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, name)
	script := "#!/usr/bin/env bash\nset -uo pipefail\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func waitForFile(t *testing.T, path string) {
	t.Helper()
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		return err == nil && strings.TrimSpace(string(data)) != ""
	}, 2*time.Second, 10*time.Millisecond)
}
