// Package cli parses narrate command-line arguments.
package cli

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type Command string

const (
	CommandOpen     Command = "open"
	CommandStatus   Command = "status"
	CommandNext     Command = "next"
	CommandPrevious Command = "prev"
	CommandGoTo     Command = "goto"
	CommandRecord   Command = "record"
	CommandPause    Command = "pause"
	CommandResume   Command = "resume"
	CommandStop     Command = "stop"
	CommandPlay     Command = "play"
	CommandSet      Command = "set"
	CommandSegment  Command = "segment"
	CommandDevices  Command = "devices"
	CommandDoctor   Command = "doctor"
	CommandVersion  Command = "version"
	CommandHelp     Command = "help"
)

// arity is the number of positional arguments each command accepts:
// min and max, where max < 0 means unbounded.
var arity = map[Command][2]int{
	CommandOpen:     {1, 1},
	CommandStatus:   {0, 0},
	CommandNext:     {0, 0},
	CommandPrevious: {0, 0},
	CommandGoTo:     {1, 1},
	CommandRecord:   {0, 0},
	CommandPause:    {0, 0},
	CommandResume:   {0, 0},
	CommandStop:     {0, 0},
	CommandPlay:     {0, 1},
	CommandSet:      {1, -1},
	CommandSegment:  {1, 1},
	CommandDevices:  {0, 0},
	CommandDoctor:   {0, 0},
	CommandVersion:  {0, 0},
	CommandHelp:     {0, 0},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
	Headless   bool

	// File is the document for open and segment.
	File string
	// Index is the 0-based paragraph for goto; the command line is 1-based.
	Index int
	// Offset is the playback start for play.
	Offset   time.Duration
	Settings map[string]string
}

// IsRemote reports whether the command is forwarded to a running session.
func (p Parsed) IsRemote() bool {
	switch p.Command {
	case CommandStatus, CommandNext, CommandPrevious, CommandGoTo, CommandRecord,
		CommandPause, CommandResume, CommandStop, CommandPlay, CommandSet:
		return true
	default:
		return false
	}
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}
	var (
		positional []string
		haveCmd    bool
	)

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case arg == "-h" || arg == "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
			return parsed, nil
		case arg == "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case arg == "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		case arg == "--headless":
			parsed.Headless = true
		case strings.HasPrefix(arg, "-") && !isNumber(arg):
			return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
		case !haveCmd:
			cmd := Command(arg)
			if _, ok := arity[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			haveCmd = true
		default:
			positional = append(positional, arg)
		}
	}

	if parsed.Headless && parsed.Command != CommandOpen {
		return Parsed{}, errors.New("--headless only applies to open")
	}

	bounds := arity[parsed.Command]
	if len(positional) < bounds[0] {
		return Parsed{}, fmt.Errorf("%s: missing argument", parsed.Command)
	}
	if bounds[1] >= 0 && len(positional) > bounds[1] {
		return Parsed{}, fmt.Errorf("unexpected arguments after command %q", parsed.Command)
	}

	if err := parsed.bind(positional); err != nil {
		return Parsed{}, err
	}
	return parsed, nil
}

func (p *Parsed) bind(positional []string) error {
	switch p.Command {
	case CommandOpen, CommandSegment:
		p.File = positional[0]
	case CommandGoTo:
		n, err := strconv.Atoi(positional[0])
		if err != nil {
			return fmt.Errorf("goto: paragraph number %q is not an integer", positional[0])
		}
		p.Index = n - 1
	case CommandPlay:
		if len(positional) == 0 {
			return nil
		}
		seconds, err := strconv.ParseFloat(positional[0], 64)
		if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
			return fmt.Errorf("play: offset %q is not a number of seconds", positional[0])
		}
		p.Offset = offsetFromSeconds(seconds)
	case CommandSet:
		p.Settings = make(map[string]string, len(positional))
		for _, pair := range positional {
			key, value, ok := strings.Cut(pair, "=")
			key = strings.TrimSpace(key)
			if !ok || key == "" {
				return fmt.Errorf("set: expected key=value, got %q", pair)
			}
			p.Settings[key] = value
		}
	}
	return nil
}

// offsetFromSeconds converts seconds to a Duration, saturating instead of
// overflowing.
func offsetFromSeconds(seconds float64) time.Duration {
	ns := seconds * float64(time.Second)
	switch {
	case ns >= math.MaxInt64:
		return math.MaxInt64
	case ns <= math.MinInt64:
		return math.MinInt64
	default:
		return time.Duration(ns)
	}
}

func isNumber(arg string) bool {
	_, err := strconv.ParseFloat(arg, 64)
	return err == nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [args]

Session:
  open FILE [--headless]  Open a text document and start the session
                          (terminal UI unless --headless)

Remote control (requires an open session):
  status                 Print transport state and current paragraph
  next                   Move to the next paragraph
  prev                   Move to the previous paragraph
  goto N                 Move to paragraph N (1-based)
  record                 Record the current paragraph
  pause                  Pause recording or playback
  resume                 Resume recording or playback
  stop                   Stop recording (keeping it) or playback
  play [SECONDS]         Play the current paragraph's reading
  set KEY=VALUE...       Change input, output, sample_rate, channels,
                         or project_directory for the next start

Tools:
  segment FILE           Print the paragraph segmentation of FILE
  devices                List available input and output devices
  doctor                 Run configuration and environment checks
  version                Print version information
  help                   Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/narrate/config.jsonc)
  --headless      Run open without the terminal UI
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
