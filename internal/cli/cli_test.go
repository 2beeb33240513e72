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

func TestParseCommandWithConfig(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/dictate.jsonc", "doctor"})
	require.NoError(t, err)
	require.Equal(t, CommandDoctor, parsed.Command)
	require.Equal(t, "/tmp/dictate.jsonc", parsed.ConfigPath)
	require.False(t, parsed.ShowHelp)
}

func TestParseStartOverrides(t *testing.T) {
	parsed, err := Parse([]string{"start", "--device", "3", "--rate", "48000"})
	require.NoError(t, err)
	require.Equal(t, CommandStart, parsed.Command)
	require.True(t, parsed.StartsCapture())
	require.NotNil(t, parsed.Device)
	require.Equal(t, 3, *parsed.Device)
	require.Equal(t, 48000, parsed.SampleRate)

	parsed, err = Parse([]string{"--device", "-1", "toggle"})
	require.NoError(t, err)
	require.Equal(t, CommandToggle, parsed.Command)
	require.Equal(t, -1, *parsed.Device)
	require.Zero(t, parsed.SampleRate)

	parsed, err = Parse([]string{"start"})
	require.NoError(t, err)
	require.Nil(t, parsed.Device)
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
			name:     "version flag",
			args:     []string{"--version"},
			wantCmd:  CommandVersion,
			wantHelp: false,
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
			wantErr: "requires a path",
		},
		{
			name:    "missing device index",
			args:    []string{"start", "--device"},
			wantErr: "requires an index",
		},
		{
			name:    "non-numeric device",
			args:    []string{"start", "--device", "usb"},
			wantErr: "--device must be",
		},
		{
			name:    "device below default",
			args:    []string{"start", "--device", "-2"},
			wantErr: "--device must be",
		},
		{
			name:    "zero rate",
			args:    []string{"start", "--rate", "0"},
			wantErr: "--rate must be",
		},
		{
			name:    "device on non-capture command",
			args:    []string{"stop", "--device", "1"},
			wantErr: "only apply to start and toggle",
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
			wantErr: "unexpected argument",
		},
		{
			name:     "valid cancel command",
			args:     []string{"cancel"},
			wantCmd:  CommandCancel,
			wantHelp: false,
		},
		{
			name:     "valid stop with config",
			args:     []string{"--config", "/tmp/cfg", "stop"},
			wantCmd:  CommandStop,
			wantHelp: false,
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

func TestHelpTextIncludesCoreCommands(t *testing.T) {
	text := HelpText("dictate")
	for _, want := range []string{"start", "toggle", "stop", "cancel", "devices", "doctor", "--config PATH", "--device N", "--rate HZ"} {
		require.Contains(t, text, want)
	}
}
