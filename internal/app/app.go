// Package app executes parsed narrate commands: it owns the open session
// process and forwards remote commands to it.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbright/narrate/internal/audio"
	"github.com/rbright/narrate/internal/cli"
	"github.com/rbright/narrate/internal/clock"
	"github.com/rbright/narrate/internal/config"
	"github.com/rbright/narrate/internal/doctor"
	"github.com/rbright/narrate/internal/fsm"
	"github.com/rbright/narrate/internal/ipc"
	"github.com/rbright/narrate/internal/logging"
	"github.com/rbright/narrate/internal/session"
	"github.com/rbright/narrate/internal/store"
	"github.com/rbright/narrate/internal/text"
	"github.com/rbright/narrate/internal/transport"
	"github.com/rbright/narrate/internal/tui"
	"github.com/rbright/narrate/internal/version"
)

const (
	forwardTimeout = 2 * time.Second
	probeTimeout   = 180 * time.Millisecond
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	// Backend overrides the PulseAudio backend.
	Backend transport.Backend
	// Ready, when set, receives the control socket path once an open
	// session is serving.
	Ready chan<- string
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("narrate"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("narrate"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	if parsed.IsRemote() {
		return r.forward(ctx, parsed)
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	logRuntime, err := logging.New(cfgLoaded.Config.Log)
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
		if cfgLoaded.Exists || parsed.Command == cli.CommandDoctor {
			fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		}
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded, doctor.DefaultProbes())
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandSegment:
		return r.commandSegment(parsed.File, cfgLoaded.Config)
	case cli.CommandOpen:
		return r.commandOpen(ctx, parsed, cfgLoaded.Config, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s %-6s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.Kind,
			device.ID,
			device.Description,
			device.State,
			yesNo(device.Available),
			yesNo(device.Muted),
		)
	}
	return 0
}

func (r Runner) commandSegment(path string, cfg config.Config) int {
	doc, err := text.Load(path, text.Options{Abbreviations: cfg.Text.Abbreviations})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	fmt.Fprintf(r.Stdout, "%s: %d paragraphs\n", doc.Path, doc.Len())
	for _, paragraph := range doc.Paragraphs {
		fmt.Fprintf(r.Stdout, "\n[%d] (%d sentences)\n%s\n", paragraph.Index+1, len(paragraph.Sentences), paragraph.Display())
	}
	return 0
}

// commandOpen owns the session: it serves IPC, runs the terminal UI unless
// headless, and flushes the session on exit.
func (r Runner) commandOpen(ctx context.Context, parsed cli.Parsed, cfg config.Config, logger *slog.Logger) int {
	doc, err := text.Load(parsed.File, text.Options{Abbreviations: cfg.Text.Abbreviations})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load document failed", "path", parsed.File, "error", err.Error())
		return 1
	}

	socketPath := ipc.RuntimeSocketPath()
	listener, err := ipc.Acquire(ctx, socketPath, probeTimeout, 8)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	sessionStore, err := store.Open(cfg.Session)
	if err != nil {
		logger.Error("open session store failed", "error", err.Error())
		sessionStore = store.Unavailable{Err: err}
	}

	backend := r.Backend
	if backend == nil {
		backend = audio.NewBackend(logger)
	}

	sess, err := session.Open(ctx, doc, session.Deps{
		Store:        sessionStore,
		Backend:      backend,
		Defaults:     cfg.Device(),
		Clock:        clock.Real{},
		TickInterval: time.Duration(cfg.Transport.TickMS) * time.Millisecond,
		Logger:       logger,
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if status := sess.Status(); status.PersistenceErr != nil {
		fmt.Fprintf(r.Stderr, "warning: %v\n", status.PersistenceErr)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, groupCtx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		return ipc.Serve(groupCtx, listener, sess)
	})
	if parsed.Headless {
		fmt.Fprintf(r.Stdout, "%s: %d paragraphs; control socket %s\n", doc.Name, doc.Len(), socketPath)
	} else {
		group.Go(func() error {
			defer cancel()
			return tui.Run(groupCtx, sess)
		})
	}
	if r.Ready != nil {
		r.Ready <- socketPath
	}

	runErr := group.Wait()
	closeErr := sess.Close(context.Background())

	code := 0
	if runErr != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", runErr)
		logger.Error("session run failed", "error", runErr.Error())
		code = 1
	}
	if closeErr != nil {
		fmt.Fprintf(r.Stderr, "warning: %v\n", closeErr)
		logger.Warn("session close", "error", closeErr.Error())
	}
	return code
}

// forward sends a remote command to the open session.
func (r Runner) forward(ctx context.Context, parsed cli.Parsed) int {
	req := ipc.Request{Command: string(parsed.Command), Settings: parsed.Settings}
	switch parsed.Command {
	case cli.CommandGoTo:
		index := parsed.Index
		req.Index = &index
	case cli.CommandPlay:
		offset := parsed.Offset.Milliseconds()
		req.OffsetMS = &offset
	}

	resp, err := ipc.Send(ctx, ipc.RuntimeSocketPath(), req, forwardTimeout)
	if err != nil {
		if ipc.IsNoOwner(err) {
			fmt.Fprintln(r.Stderr, "error: no open narrate session (start one with: narrate open FILE)")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: forward command %q: %v\n", parsed.Command, err)
		return 1
	}

	fmt.Fprintln(r.Stdout, FormatResponse(resp))
	if resp.Warning != "" {
		fmt.Fprintf(r.Stderr, "warning: %s\n", resp.Warning)
	}
	if !resp.OK {
		fmt.Fprintf(r.Stderr, "error: %s\n", resp.Error)
		return 1
	}
	return 0
}

// FormatResponse renders the one-line session summary printed by remote
// commands. Paragraph numbers are 1-based.
func FormatResponse(resp ipc.Response) string {
	state := fsm.State(resp.State)
	if state == "" {
		state = fsm.StateIdle
	}
	if resp.Count == 0 {
		return fmt.Sprintf("%s | empty document", state)
	}

	line := fmt.Sprintf("%s | paragraph %d/%d", state, resp.Paragraph+1, resp.Count)
	ms := func(v int64) string { return tui.FormatClock(time.Duration(v) * time.Millisecond) }
	switch {
	case state.Recording():
		line += " | elapsed " + ms(resp.ElapsedMS)
	case state.Playing():
		line += fmt.Sprintf(" | %s / %s", ms(resp.PositionMS), ms(resp.DurationMS))
	case resp.HasReading:
		line += " | reading " + ms(resp.DurationMS)
	default:
		line += " | not recorded"
	}
	return line
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

