// Package cli parses proctor's command line into a dispatchable command.
package cli

import (
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

type Command string

const (
	CommandRun          Command = "run"
	CommandStatus       Command = "status"
	CommandStart        Command = "start"
	CommandStop         Command = "stop"
	CommandReview       Command = "review"
	CommandExitReview   Command = "exit-review"
	CommandNext         Command = "next"
	CommandPrev         Command = "prev"
	CommandReplay       Command = "replay"
	CommandPlay         Command = "play"
	CommandStopPlayback Command = "stop-playback"
	CommandDevices      Command = "devices"
	CommandVoices       Command = "voices"
	CommandDoctor       Command = "doctor"
	CommandVersion      Command = "version"
	CommandHelp         Command = "help"
)

// Control reports whether c is forwarded to a running session.
func (c Command) Control() bool {
	switch c {
	case CommandStatus, CommandStart, CommandStop, CommandReview,
		CommandExitReview, CommandNext, CommandPrev, CommandReplay,
		CommandPlay, CommandStopPlayback:
		return true
	}
	return false
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool

	JobID       string
	InterviewID string
	Headless    bool
	Language    string
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	if args == nil {
		args = []string{}
	}
	root := newRoot(&parsed)
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	if err := root.Execute(); err != nil {
		return Parsed{}, err
	}

	parsed.JobID = strings.TrimSpace(parsed.JobID)
	parsed.InterviewID = strings.TrimSpace(parsed.InterviewID)
	if parsed.Command == CommandRun {
		if parsed.JobID == "" {
			return Parsed{}, errors.New("--job-id must not be empty")
		}
		if parsed.InterviewID == "" {
			return Parsed{}, errors.New("--interview-id must not be empty")
		}
	}
	return parsed, nil
}

func HelpText(binaryName string) string {
	var parsed Parsed
	root := newRoot(&parsed)
	root.Use = binaryName
	return root.UsageString()
}

func newRoot(parsed *Parsed) *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:           "proctor",
		Short:         "Run a narrated, timed video interview",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(*cobra.Command, []string) error {
			if showVersion {
				parsed.Command = CommandVersion
				parsed.ShowHelp = false
			}
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetHelpFunc(func(*cobra.Command, []string) {
		parsed.Command = CommandHelp
		parsed.ShowHelp = true
	})

	root.PersistentFlags().StringVar(&parsed.ConfigPath, "config", "", "Config file path (default: $XDG_CONFIG_HOME/proctor/config.jsonc)")
	root.Flags().BoolVar(&showVersion, "version", false, "Show version")

	run := &cobra.Command{
		Use:   "run",
		Short: "Start an interview session for a job and interview",
		Args:  cobra.NoArgs,
		RunE:  selects(parsed, CommandRun),
	}
	run.Flags().StringVar(&parsed.JobID, "job-id", "", "Job whose questions are asked")
	run.Flags().StringVar(&parsed.InterviewID, "interview-id", "", "Interview that receives the recorded answers")
	run.Flags().BoolVar(&parsed.Headless, "headless", false, "Run without the terminal screen; drive it through the control commands")
	run.Flags().StringVar(&parsed.Language, "lang", "", "Display language (overrides ui.language)")
	_ = run.MarkFlagRequired("job-id")
	_ = run.MarkFlagRequired("interview-id")
	root.AddCommand(run)

	for _, spec := range []struct {
		command Command
		short   string
	}{
		{CommandStatus, "Print the running session's state"},
		{CommandStart, "Start answering the current question now"},
		{CommandStop, "Stop the current answer early"},
		{CommandReview, "Open recorded answers for review"},
		{CommandExitReview, "Leave review and resume the pending question"},
		{CommandNext, "Show the next answer in review"},
		{CommandPrev, "Show the previous answer in review"},
		{CommandReplay, "Read the current question aloud again"},
		{CommandPlay, "Play the recorded answer shown in review"},
		{CommandStopPlayback, "Stop answer playback"},
		{CommandDevices, "List cameras and microphones"},
		{CommandVoices, "List narration voices"},
		{CommandDoctor, "Run configuration and environment checks"},
		{CommandVersion, "Print version information"},
	} {
		root.AddCommand(&cobra.Command{
			Use:   string(spec.command),
			Short: spec.short,
			Args:  cobra.NoArgs,
			RunE:  selects(parsed, spec.command),
		})
	}

	return root
}

func selects(parsed *Parsed, command Command) func(*cobra.Command, []string) error {
	return func(*cobra.Command, []string) error {
		parsed.Command = command
		parsed.ShowHelp = false
		return nil
	}
}
