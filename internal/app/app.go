package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rbright/proctor/internal/capture"
	"github.com/rbright/proctor/internal/cli"
	"github.com/rbright/proctor/internal/config"
	"github.com/rbright/proctor/internal/cue"
	"github.com/rbright/proctor/internal/doctor"
	"github.com/rbright/proctor/internal/domain"
	"github.com/rbright/proctor/internal/fsm"
	"github.com/rbright/proctor/internal/i18n"
	"github.com/rbright/proctor/internal/interviewapi"
	"github.com/rbright/proctor/internal/ipc"
	"github.com/rbright/proctor/internal/logging"
	"github.com/rbright/proctor/internal/narration"
	"github.com/rbright/proctor/internal/session"
	"github.com/rbright/proctor/internal/tui"
	"github.com/rbright/proctor/internal/version"
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	// Screen replaces the terminal UI for a foreground run. Nil uses tui.Run.
	Screen func(ctx context.Context, ctrl tui.Controller, catalog *i18n.Catalog) error
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("proctor"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("proctor"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	logRuntime, err := logging.New(cfgLoaded.Config.Log.Level)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch {
	case parsed.Command == cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case parsed.Command == cli.CommandDevices:
		return r.commandDevices(ctx, cfgLoaded.Config.Capture)
	case parsed.Command == cli.CommandVoices:
		return r.commandVoices(cfgLoaded.Config.Narration)
	case parsed.Command == cli.CommandStatus:
		return r.commandStatus(ctx)
	case parsed.Command.Control():
		return r.forwardOrFail(ctx, string(parsed.Command))
	case parsed.Command == cli.CommandRun:
		return r.commandRun(ctx, parsed, cfgLoaded.Config, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context, cfg config.CaptureConfig) int {
	videos, videoErr := capture.ListVideoDevices()
	if videoErr != nil {
		fmt.Fprintf(r.Stderr, "error: list cameras: %v\n", videoErr)
	}
	for _, video := range videos {
		mark := " "
		if video == cfg.VideoDevice {
			mark = "*"
		}
		fmt.Fprintf(r.Stdout, "%s camera=%s\n", mark, video)
	}

	sources, err := capture.ListSources(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(sources) == 0 {
		fmt.Fprintln(r.Stdout, "no microphones found")
		return 1
	}

	for _, source := range sources {
		defaultMark := " "
		if source.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !source.Available {
			availability = "no"
		}
		muted := "no"
		if source.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			source.ID,
			source.Description,
			source.State,
			availability,
			muted,
		)
	}

	if videoErr != nil {
		return 1
	}
	return 0
}

func (r Runner) commandVoices(cfg config.NarrationConfig) int {
	selected := narration.SelectVoice(cfg.Voice, cfg.Gender, cfg.Language)
	for _, voice := range narration.Catalog {
		mark := " "
		if voice.Name == selected.Name {
			mark = "*"
		}
		fmt.Fprintf(r.Stdout, "%s %-8s gender=%s locale=%s\n", mark, voice.Name, voice.Gender, voice.Locale)
	}
	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	var snap session.Snapshot
	resp, err := ipc.Client{Path: socketPath}.Status(ctx, &snap)
	switch {
	case ipc.Unreachable(err):
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	case err != nil:
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	state := resp.State
	if state == "" {
		state = "idle"
	}
	if len(resp.Snapshot) > 0 && snap.QuestionCount > 0 {
		fmt.Fprintf(r.Stdout, "%s %d/%d\n", state, min(snap.QuestionIndex+1, snap.QuestionCount), snap.QuestionCount)
		return 0
	}
	fmt.Fprintln(r.Stdout, state)
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no active proctor session\n")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.State != "" {
		fmt.Fprintln(r.Stdout, resp.State)
	}
	return 0
}

func (r Runner) commandRun(ctx context.Context, parsed cli.Parsed, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{
		ProbeTimeout: 180 * time.Millisecond,
		Retries:      8,
		OnStale: func(path string) {
			logger.Warn("removed stale control socket", "path", path)
		},
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	lang := cfg.UI.Language
	if parsed.Language != "" {
		lang = parsed.Language
	}
	catalog, err := i18n.New(lang, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	api := interviewapi.New(cfg.API)
	cues := cue.New(cfg.Cues, nil, logger)
	defer cues.Wait()

	params := domain.Params{JobID: parsed.JobID, InterviewID: parsed.InterviewID}
	opts := session.OptionsFromConfig(cfg, params, logger)
	if parsed.Headless {
		var lastPhase fsm.Phase
		lastIndex := -1
		opts.OnSnapshot = func(snap session.Snapshot) {
			if snap.Phase != lastPhase || snap.QuestionIndex != lastIndex {
				lastPhase, lastIndex = snap.Phase, snap.QuestionIndex
				fmt.Fprintf(r.Stdout, "%s %d/%d\n", snap.Phase, min(snap.QuestionIndex+1, snap.QuestionCount), snap.QuestionCount)
			}
			logger.Debug("session snapshot",
				"phase", snap.Phase,
				"question_index", snap.QuestionIndex,
				"question_count", snap.QuestionCount,
				"uploads_in_flight", snap.UploadsInFlight,
			)
		}
	}

	controller := session.NewController(opts, session.Deps{
		Questions: api,
		Capture:   capture.NewProvider(cfg.Capture, cfg.Debug.ClipDump, logger),
		Narrator:  narration.New(cfg.Narration, cfg.Debug.NarrationDump, nil, logger),
		Uploader:  api,
		Indicator: cues,
		Player:    capture.NewPlayer(cfg.Capture, logger),
	})

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()

	sessionCtx, sessionCancel := context.WithCancel(ctx)
	defer sessionCancel()

	resultCh := make(chan session.Result, 1)
	go func() {
		resultCh <- controller.Run(sessionCtx)
	}()

	var screenErr error
	if parsed.Headless {
		select {
		case <-controller.Completed():
		case <-ctx.Done():
		}
	} else {
		screen := r.Screen
		if screen == nil {
			screen = func(ctx context.Context, ctrl tui.Controller, catalog *i18n.Catalog) error {
				return tui.Run(ctx, ctrl, catalog)
			}
		}
		screenErr = screen(sessionCtx, controller, catalog)
	}

	sessionCancel()
	result := <-resultCh
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}

	logSessionResult(logger, result)

	if screenErr != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", screenErr)
		return 1
	}
	if result.Err != nil && !errors.Is(result.Err, context.Canceled) {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}
	if result.Phase != fsm.PhaseComplete {
		fmt.Fprintln(r.Stdout, "cancelled")
		return 0
	}

	fmt.Fprintf(r.Stdout, "interview complete: %d answers recorded, %d uploaded\n", len(result.Clips), result.UploadsSucceeded)
	if lost := result.UploadsFailed + result.UploadsAbandoned; lost > 0 {
		fmt.Fprintf(r.Stderr, "error: %d answers were not uploaded\n", lost)
		return 1
	}
	return 0
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"phase", result.Phase,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"questions", len(result.Questions),
		"fallback_questions", result.FallbackQuestions,
		"clips", len(result.Clips),
		"uploads_succeeded", result.UploadsSucceeded,
		"uploads_failed", result.UploadsFailed,
		"uploads_skipped", result.UploadsSkipped,
		"uploads_abandoned", result.UploadsAbandoned,
		"device_error", result.DeviceError,
	}

	if result.Err != nil && !errors.Is(result.Err, context.Canceled) {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session finished", fields...)
}

// tryForward reports handled=false when no session owns the socket.
func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Client{Path: socketPath}.Do(ctx, command)
	if ipc.Unreachable(err) {
		return ipc.Response{}, false, nil
	}
	return resp, true, err
}
