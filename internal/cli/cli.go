// Package cli parses command-line arguments for the confab binary.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandTalk      Command = "talk"
	CommandAsk       Command = "ask"
	CommandStop      Command = "stop"
	CommandInterrupt Command = "interrupt"
	CommandCancel    Command = "cancel"
	CommandToggle    Command = "toggle"
	CommandStatus    Command = "status"
	CommandDevices   Command = "devices"
	CommandDoctor    Command = "doctor"
	CommandVersion   Command = "version"
	CommandHelp      Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandTalk:      {},
	CommandAsk:       {},
	CommandStop:      {},
	CommandInterrupt: {},
	CommandCancel:    {},
	CommandToggle:    {},
	CommandStatus:    {},
	CommandDevices:   {},
	CommandDoctor:    {},
	CommandVersion:   {},
	CommandHelp:      {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	Language   string
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		case "--language":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--language requires a tag")
			}
			parsed.Language = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if i != len(args)-1 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--language TAG] <command>

Commands:
  talk       Hold a streaming conversation until cancelled
  ask        Record one utterance and play the reply
  stop       Stop the active capture in a running session
  interrupt  Cut off assistant playback in a running session
  cancel     End the running session
  toggle     Stop capture or interrupt playback in a running session
  status     Print current session state
  devices    List available input devices
  doctor     Run configuration and environment checks
  version    Print version information
  help       Show this help

Flags:
  --config PATH    Config file path (default: $XDG_CONFIG_HOME/confab/config.toml)
  --language TAG   Override the configured language (e.g. en-US)
  -h, --help       Show help
  --version        Show version
`, binaryName)
}
