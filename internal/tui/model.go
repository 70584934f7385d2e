// Package tui renders the candidate-facing interview screen.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rbright/proctor/internal/fsm"
	"github.com/rbright/proctor/internal/i18n"
	"github.com/rbright/proctor/internal/session"
)

// Controller is the slice of the session controller the screen drives.
type Controller interface {
	Snapshot() session.Snapshot
	Updates() <-chan session.Snapshot
	Done() <-chan struct{}

	StartAnswering(ctx context.Context) error
	StopAnswering(ctx context.Context) error
	EnterReview(ctx context.Context) error
	ExitReview(ctx context.Context) error
	ReviewNext(ctx context.Context) error
	ReviewPrevious(ctx context.Context) error
	ReplayQuestion(ctx context.Context) error
	ReviewPlay(ctx context.Context) error
	ReviewStopPlayback(ctx context.Context) error
}

type snapshotMsg session.Snapshot

type sessionDoneMsg struct{}

type intentErrMsg struct{ err error }

type clearErrorMsg struct{}

// Model is the bubbletea model for one interview.
type Model struct {
	ctrl    Controller
	catalog *i18n.Catalog

	snap     session.Snapshot
	errorMsg string
	width    int
	quitting bool
}

// New builds a model showing the controller's current snapshot.
func New(ctrl Controller, catalog *i18n.Catalog) Model {
	return Model{ctrl: ctrl, catalog: catalog, snap: ctrl.Snapshot()}
}

// Init starts listening for session updates.
func (m Model) Init() tea.Cmd {
	return waitForSnapshot(m.ctrl)
}

func waitForSnapshot(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		select {
		case snap := <-ctrl.Updates():
			return snapshotMsg(snap)
		case <-ctrl.Done():
			return sessionDoneMsg{}
		}
	}
}

func intentCmd(intent func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := intent(ctx); err != nil {
			return intentErrMsg{err: err}
		}
		return nil
	}
}

func clearErrorCmd() tea.Cmd {
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return clearErrorMsg{}
	})
}

// Update applies session snapshots and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case snapshotMsg:
		m.snap = session.Snapshot(msg)
		return m, waitForSnapshot(m.ctrl)

	case sessionDoneMsg:
		m.quitting = true
		return m, tea.Quit

	case intentErrMsg:
		if errors.Is(msg.err, session.ErrClosed) {
			return m, nil
		}
		m.errorMsg = msg.err.Error()
		return m, clearErrorCmd()

	case clearErrorMsg:
		m.errorMsg = ""
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case keyQuit, keyCtrlC:
		m.quitting = true
		return m, tea.Quit
	case keySpace, keyEnter:
		switch m.snap.Phase {
		case fsm.PhaseIdle:
			return m, intentCmd(m.ctrl.StartAnswering)
		case fsm.PhaseRecording:
			return m, intentCmd(m.ctrl.StopAnswering)
		}
	case keyReview:
		if m.snap.Phase == fsm.PhaseIdle || m.snap.Phase == fsm.PhaseComplete {
			return m, intentCmd(m.ctrl.EnterReview)
		}
	case keyBack:
		if m.snap.Phase == fsm.PhaseReview && m.snap.CanExitReview {
			return m, intentCmd(m.ctrl.ExitReview)
		}
	case keyLeft, keyPrevVim:
		if m.snap.Phase == fsm.PhaseReview {
			return m, intentCmd(m.ctrl.ReviewPrevious)
		}
	case keyRight, keyNextVim:
		if m.snap.Phase == fsm.PhaseReview {
			return m, intentCmd(m.ctrl.ReviewNext)
		}
	case keySpeak:
		return m, intentCmd(m.ctrl.ReplayQuestion)
	case keyPlay:
		if m.snap.Phase != fsm.PhaseReview {
			break
		}
		if m.snap.Review.Playing {
			return m, intentCmd(m.ctrl.ReviewStopPlayback)
		}
		return m, intentCmd(m.ctrl.ReviewPlay)
	}
	return m, nil
}

// View renders the current phase.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.catalog.T("title")))
	b.WriteString("\n\n")

	switch m.snap.Phase {
	case fsm.PhaseLoading:
		b.WriteString(dimStyle.Render(m.catalog.T("loading")))
	case fsm.PhaseIdle, fsm.PhaseRecording, fsm.PhaseProcessing:
		b.WriteString(m.viewQuestion())
	case fsm.PhaseReview:
		b.WriteString(m.viewReview())
	case fsm.PhaseComplete:
		b.WriteString(m.viewComplete())
	}

	if status := m.viewStatus(); status != "" {
		b.WriteString("\n\n")
		b.WriteString(status)
	}
	if m.errorMsg != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.errorMsg))
	}
	b.WriteString("\n")
	b.WriteString(hintStyle.Render(m.hint()))
	b.WriteString("\n")
	return b.String()
}

func (m Model) questionBox(text string) string {
	style := questionStyle
	if m.width > 8 {
		style = style.Width(m.width - 4)
	}
	return style.Render(text)
}

func (m Model) viewQuestion() string {
	s := m.snap
	lines := []string{
		headerStyle.Render(m.catalog.Td("question_header", map[string]any{
			"Index": s.QuestionIndex + 1,
			"Count": s.QuestionCount,
		})),
		m.questionBox(s.Question),
	}

	switch s.Phase {
	case fsm.PhaseIdle:
		lines = append(lines, countdownStyle.Render(m.catalog.Td("countdown", map[string]any{"Seconds": s.AutoStartCountdown})))
		if s.Narrating {
			lines = append(lines, dimStyle.Render(m.catalog.T("narrating")))
		}
	case fsm.PhaseRecording:
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top,
			recordingStyle.Render("● "+m.catalog.T("recording")),
			"  ",
			m.catalog.Td("time_left", map[string]any{"Seconds": s.TimeLeft}),
		))
	case fsm.PhaseProcessing:
		lines = append(lines, dimStyle.Render(m.catalog.T("processing")))
	}

	if s.FallbackQuestions {
		lines = append(lines, dimStyle.Render(m.catalog.T("fallback_notice")))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) viewReview() string {
	view := m.snap.Review
	lines := []string{
		headerStyle.Render(m.catalog.T("review_title")),
		m.catalog.Td("review_position", map[string]any{"Index": view.Index + 1, "Count": view.Count}),
		m.questionBox(m.catalog.Td("review_question", map[string]any{"Number": view.Clip + 1, "Text": view.Text})),
	}
	if view.Bytes == 0 {
		lines = append(lines, dimStyle.Render(m.catalog.T("review_empty_clip")))
	} else {
		lines = append(lines, okStyle.Render(m.catalog.Td("review_clip_size", map[string]any{"Size": (view.Bytes + 1023) / 1024})))
	}
	switch {
	case view.Playing:
		lines = append(lines, recordingStyle.Render("▶ "+m.catalog.T("review_playing")))
	case view.PlaybackError != "":
		lines = append(lines, errorStyle.Render(m.catalog.Td("review_playback_error", map[string]any{"Error": view.PlaybackError})))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) viewComplete() string {
	if m.snap.QuestionCount == 0 {
		return m.catalog.T("no_questions")
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		okStyle.Bold(true).Render(m.catalog.T("complete_title")),
		m.catalog.T("complete_body"),
	)
}

func (m Model) viewStatus() string {
	s := m.snap
	var parts []string
	switch {
	case s.Error != "":
		parts = append(parts, errorStyle.Render(m.catalog.Td("device_error", map[string]any{"Error": s.Error})))
	case s.DevicePending:
		parts = append(parts, dimStyle.Render(m.catalog.T("device_pending")))
	case s.DeviceReady:
		parts = append(parts, dimStyle.Render(m.catalog.Td("device_ready", map[string]any{"Name": s.DeviceName})))
	}
	switch {
	case s.StartDeferred:
		parts = append(parts, countdownStyle.Render(m.catalog.T("device_wait")))
	case s.Warning != "":
		parts = append(parts, errorStyle.Render(m.catalog.Td("capture_warning", map[string]any{"Warning": s.Warning})))
	}
	if s.NarrationDisabled && s.Phase != fsm.PhaseLoading {
		parts = append(parts, dimStyle.Render(m.catalog.T("narration_off")))
	}
	if s.UploadsInFlight > 0 {
		parts = append(parts, dimStyle.Render(m.catalog.Tp("uploads_pending", s.UploadsInFlight)))
	}
	if s.UploadsFailed > 0 {
		parts = append(parts, errorStyle.Render(m.catalog.Tp("uploads_failed", s.UploadsFailed)))
	}
	return strings.Join(parts, "\n")
}

func (m Model) hint() string {
	switch m.snap.Phase {
	case fsm.PhaseIdle:
		return m.catalog.T("hint_idle")
	case fsm.PhaseRecording:
		return m.catalog.T("hint_recording")
	case fsm.PhaseReview:
		if m.snap.Review.Playing {
			return m.catalog.T("hint_review_playing")
		}
		if m.snap.CanExitReview {
			return m.catalog.T("hint_review")
		}
		return m.catalog.T("hint_review_locked")
	case fsm.PhaseComplete:
		return m.catalog.T("hint_complete")
	default:
		return m.catalog.T("hint_loading")
	}
}

// Run drives the screen until the candidate quits or the session ends.
func Run(ctx context.Context, ctrl Controller, catalog *i18n.Catalog, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	program := tea.NewProgram(New(ctrl, catalog), opts...)
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
