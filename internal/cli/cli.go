package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Command string

const (
	CommandStart   Command = "start"
	CommandToggle  Command = "toggle"
	CommandStop    Command = "stop"
	CommandCancel  Command = "cancel"
	CommandStatus  Command = "status"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandStart:   {},
	CommandToggle:  {},
	CommandStop:    {},
	CommandCancel:  {},
	CommandStatus:  {},
	CommandDevices: {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
	// Device and SampleRate override config for start and toggle.
	Device     *int
	SampleRate int
}

// StartsCapture reports whether the command may open a capture session.
func (p Parsed) StartsCapture() bool {
	return p.Command == CommandStart || p.Command == CommandToggle
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}
	commandSet := false

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
		case "--device":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--device requires an index")
			}
			device, err := strconv.Atoi(args[i])
			if err != nil || device < -1 {
				return Parsed{}, fmt.Errorf("--device must be an input index or -1, got %q", args[i])
			}
			parsed.Device = &device
		case "--rate":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--rate requires a sample rate in Hz")
			}
			rate, err := strconv.Atoi(args[i])
			if err != nil || rate <= 0 {
				return Parsed{}, fmt.Errorf("--rate must be a positive integer, got %q", args[i])
			}
			parsed.SampleRate = rate
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}
			if commandSet {
				return Parsed{}, fmt.Errorf("unexpected argument %q after command %q", arg, parsed.Command)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			commandSet = true
		}
	}

	if (parsed.Device != nil || parsed.SampleRate > 0) && !parsed.StartsCapture() && !parsed.ShowHelp {
		return Parsed{}, fmt.Errorf("--device and --rate only apply to start and toggle")
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [--device N] [--rate HZ]

Commands:
  start     Start recording; press Enter to stop and transcribe, Ctrl+C to cancel
  toggle    Start recording, or stop and transcribe when already recording
  stop      Stop active recording and transcribe it
  cancel    Cancel active recording and discard the audio
  status    Print current state
  devices   List available input devices
  doctor    Run configuration and environment checks
  version   Print version information
  help      Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/dictate/config.jsonc)
  --device N      Input device index from "devices" (-1 selects the default)
  --rate HZ       Capture sample rate (default: 16000)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
