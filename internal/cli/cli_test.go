package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.True(t, parsed.ShowHelp)
	require.Equal(t, CommandHelp, parsed.Command)
}

func TestParseRunWithFlags(t *testing.T) {
	parsed, err := Parse([]string{
		"--config", "/tmp/proctor.jsonc",
		"run", "--job-id", " job-9 ", "--interview-id", "iv-3", "--headless", "--lang", "es",
	})
	require.NoError(t, err)
	require.Equal(t, CommandRun, parsed.Command)
	require.Equal(t, "/tmp/proctor.jsonc", parsed.ConfigPath)
	require.Equal(t, "job-9", parsed.JobID)
	require.Equal(t, "iv-3", parsed.InterviewID)
	require.True(t, parsed.Headless)
	require.Equal(t, "es", parsed.Language)
	require.False(t, parsed.ShowHelp)
}

func TestParseArgMatrix(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  string
		wantCmd  Command
		wantHelp bool
		wantPath string
	}{
		{
			name:     "help short flag",
			args:     []string{"-h"},
			wantCmd:  CommandHelp,
			wantHelp: true,
		},
		{
			name:     "help long flag",
			args:     []string{"--help"},
			wantCmd:  CommandHelp,
			wantHelp: true,
		},
		{
			name:     "help command",
			args:     []string{"help"},
			wantCmd:  CommandHelp,
			wantHelp: true,
		},
		{
			name:    "version flag",
			args:    []string{"--version"},
			wantCmd: CommandVersion,
		},
		{
			name:    "version command",
			args:    []string{"version"},
			wantCmd: CommandVersion,
		},
		{
			name:     "config after command",
			args:     []string{"status", "--config", "/tmp/cfg"},
			wantCmd:  CommandStatus,
			wantPath: "/tmp/cfg",
		},
		{
			name:    "missing config path",
			args:    []string{"--config"},
			wantErr: "needs an argument",
		},
		{
			name:    "unknown flag",
			args:    []string{"--bogus"},
			wantErr: "unknown flag",
		},
		{
			name:    "unknown command",
			args:    []string{"bogus"},
			wantErr: "unknown command",
		},
		{
			name:    "extra args after command",
			args:    []string{"doctor", "extra"},
			wantErr: "unknown command",
		},
		{
			name:    "run requires job id",
			args:    []string{"run", "--interview-id", "iv"},
			wantErr: "job-id",
		},
		{
			name:    "run rejects blank interview id",
			args:    []string{"run", "--job-id", "j", "--interview-id", "  "},
			wantErr: "--interview-id must not be empty",
		},
		{
			name:    "valid exit-review command",
			args:    []string{"exit-review"},
			wantCmd: CommandExitReview,
		},
		{
			name:    "valid stop-playback command",
			args:    []string{"stop-playback"},
			wantCmd: CommandStopPlayback,
		},
		{
			name:     "valid stop with config",
			args:     []string{"--config", "/tmp/cfg", "stop"},
			wantCmd:  CommandStop,
			wantPath: "/tmp/cfg",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.wantCmd, parsed.Command)
			require.Equal(t, tc.wantHelp, parsed.ShowHelp)
			require.Equal(t, tc.wantPath, parsed.ConfigPath)
		})
	}
}

func TestControlCommands(t *testing.T) {
	for _, c := range []Command{CommandStatus, CommandStart, CommandStop, CommandReview, CommandExitReview, CommandNext, CommandPrev, CommandReplay, CommandPlay, CommandStopPlayback} {
		require.True(t, c.Control(), c)
	}
	for _, c := range []Command{CommandRun, CommandDoctor, CommandDevices, CommandVoices, CommandVersion, CommandHelp} {
		require.False(t, c.Control(), c)
	}
}

func TestHelpTextIncludesCoreCommands(t *testing.T) {
	text := HelpText("proctor")
	require.Contains(t, text, "Usage:")
	for _, name := range []string{"run", "status", "start", "stop", "review", "exit-review", "replay", "play", "stop-playback", "doctor", "--config"} {
		require.Contains(t, text, name)
	}
}
