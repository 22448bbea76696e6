package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.Equal(t, CommandHelp, parsed.Command)
	require.True(t, parsed.ShowHelp)
}

func TestParseCommands(t *testing.T) {
	commands := []Command{
		CommandTalk, CommandAsk, CommandStop, CommandInterrupt, CommandCancel,
		CommandToggle, CommandStatus, CommandDevices, CommandDoctor, CommandVersion,
	}
	for _, command := range commands {
		parsed, err := Parse([]string{string(command)})
		require.NoError(t, err)
		require.Equal(t, command, parsed.Command)
		require.False(t, parsed.ShowHelp)
	}
}

func TestParseFlags(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/c.toml", "--language", "sv-SE", "talk"})
	require.NoError(t, err)
	require.Equal(t, CommandTalk, parsed.Command)
	require.Equal(t, "/tmp/c.toml", parsed.ConfigPath)
	require.Equal(t, "sv-SE", parsed.Language)
}

func TestParseVersionFlag(t *testing.T) {
	parsed, err := Parse([]string{"--version"})
	require.NoError(t, err)
	require.Equal(t, CommandVersion, parsed.Command)
	require.False(t, parsed.ShowHelp)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown command", args: []string{"shout"}},
		{name: "unknown flag", args: []string{"--loud", "talk"}},
		{name: "config missing value", args: []string{"--config"}},
		{name: "language missing value", args: []string{"talk", "--language"}},
		{name: "trailing args", args: []string{"talk", "extra"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.args)
			require.Error(t, err)
		})
	}
}

func TestHelpTextMentionsCommands(t *testing.T) {
	text := HelpText("confab")
	for _, expect := range []string{"talk", "ask", "interrupt", "doctor", "--config", "--language"} {
		require.Contains(t, text, expect)
	}
}
