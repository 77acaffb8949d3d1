// Package tui is the terminal front end for an open session. Key presses
// become single serialized session commands; the screen refreshes from
// session snapshots.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rbright/narrate/internal/fsm"
	"github.com/rbright/narrate/internal/session"
)

const refreshInterval = 250 * time.Millisecond

// Controller is the session surface the UI drives.
type Controller interface {
	Status() session.Status
	Next(context.Context) error
	Previous(context.Context) error
	GoTo(context.Context, int) error
	Record(context.Context) error
	Play(context.Context, time.Duration) error
	Pause() error
	Resume() error
	Stop() error
}

type Model struct {
	ctx    context.Context
	ctl    Controller
	status session.Status

	width  int
	height int

	gotoMode  bool
	gotoInput string

	errorMessage string
	notice       string
}

func New(ctx context.Context, ctl Controller) Model {
	return Model{ctx: ctx, ctl: ctl, status: ctl.Status()}
}

// Run blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, ctl Controller) error {
	program := tea.NewProgram(New(ctx, ctl), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(refreshCmd(m.ctl), tickCmd())
}

func refreshCmd(ctl Controller) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{status: ctl.Status()}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

func clearErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return clearErrorMsg{}
	})
}

// dispatch runs one session command off the UI goroutine.
func dispatch(action string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return resultMsg{action: action, err: fn()}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case statusMsg:
		m.status = msg.status
		return m, nil

	case refreshTickMsg:
		return m, tea.Batch(refreshCmd(m.ctl), tickCmd())

	case resultMsg:
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
			m.notice = ""
			return m, tea.Batch(refreshCmd(m.ctl), clearErrorCmd())
		}
		m.errorMessage = ""
		m.notice = msg.action
		return m, refreshCmd(m.ctl)

	case clearErrorMsg:
		m.errorMessage = ""
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == keyCtrlC {
		return m, tea.Quit
	}
	if m.gotoMode {
		return m.handleGoToKey(key)
	}

	ctx, ctl := m.ctx, m.ctl
	switch key {
	case keyQuit:
		return m, tea.Quit
	case keyNext, keyNextAlt:
		return m, dispatch("next", func() error { return ctl.Next(ctx) })
	case keyPrev, keyPrevAlt:
		return m, dispatch("previous", func() error { return ctl.Previous(ctx) })
	case keyRecord:
		return m, dispatch("recording", func() error { return ctl.Record(ctx) })
	case keyPlay:
		return m, dispatch("playing", func() error { return ctl.Play(ctx, 0) })
	case keyPause:
		switch m.status.Transport.State {
		case fsm.StatePausedRecording, fsm.StatePausedPlaying:
			return m, dispatch("resumed", ctl.Resume)
		default:
			return m, dispatch("paused", ctl.Pause)
		}
	case keyStop:
		return m, dispatch("stopped", ctl.Stop)
	case keyGoTo:
		m.gotoMode = true
		m.gotoInput = ""
		return m, nil
	}
	return m, nil
}

func (m Model) handleGoToKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case keyEsc:
		m.gotoMode = false
		m.gotoInput = ""
		return m, nil
	case keyBackspace:
		if m.gotoInput != "" {
			m.gotoInput = m.gotoInput[:len(m.gotoInput)-1]
		}
		return m, nil
	case keyEnter:
		m.gotoMode = false
		input := m.gotoInput
		m.gotoInput = ""
		n, err := strconv.Atoi(input)
		if err != nil {
			m.errorMessage = fmt.Sprintf("not a paragraph number: %q", input)
			return m, clearErrorCmd()
		}
		ctx, ctl := m.ctx, m.ctl
		return m, dispatch(fmt.Sprintf("moved to %d", n), func() error { return ctl.GoTo(ctx, n-1) })
	}

	if len(key) == 1 && key[0] >= '0' && key[0] <= '9' {
		m.gotoInput += key
	}
	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	divider := dividerStyle.Render(strings.Repeat("─", m.width))
	sections := []string{
		m.renderHeader(),
		m.renderTransport(),
		divider,
		m.renderParagraph(),
		divider,
	}
	if line := m.renderMessages(); line != "" {
		sections = append(sections, line)
	}
	sections = append(sections, m.renderFooter())
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("NARRATE")
	if m.status.Document == nil {
		return title
	}

	position := "empty document"
	if m.status.Count > 0 {
		position = fmt.Sprintf("paragraph %d of %d", m.status.Cursor+1, m.status.Count)
	}
	return title + dimStyle.Render("  "+m.status.Document.Name+"  "+position)
}

func (m Model) renderTransport() string {
	snapshot := m.status.Transport

	var badge string
	switch snapshot.State {
	case fsm.StateRecording:
		badge = recordingStyle.Render("● REC")
	case fsm.StatePlaying:
		badge = playingStyle.Render("▶ PLAY")
	case fsm.StatePausedRecording, fsm.StatePausedPlaying:
		badge = pausedStyle.Render("❚❚ PAUSED")
	default:
		badge = idleStyle.Render("○ IDLE")
	}

	return badge + "  " + dimStyle.Render(m.clockLabel())
}

// clockLabel is elapsed time while recording, position/duration otherwise.
func (m Model) clockLabel() string {
	snapshot := m.status.Transport
	switch {
	case snapshot.State.Recording():
		return FormatClock(snapshot.Elapsed)
	case snapshot.State.Playing():
		return FormatClock(snapshot.Position) + " / " + FormatClock(snapshot.Duration)
	default:
		return FormatClock(0) + " / " + FormatClock(m.status.Reading.Duration)
	}
}

func (m Model) renderParagraph() string {
	if m.status.Document == nil || m.status.Count == 0 {
		return paragraphStyle.Render(dimStyle.Render("(no content)"))
	}

	paragraph, _ := m.status.Document.Paragraph(m.status.Cursor)
	body := paragraphStyle.Width(max(m.width-2, 20)).Render(paragraph.Display())

	reading := dimStyle.Render("  not recorded")
	if m.status.HasReading {
		reading = readingStyle.Render(fmt.Sprintf("  recorded %s (%s)",
			m.status.Reading.RecordedAt.Local().Format("2006-01-02 15:04"),
			FormatClock(m.status.Reading.Duration),
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, reading)
}

func (m Model) renderMessages() string {
	var lines []string
	if m.gotoMode {
		lines = append(lines, footerKeyStyle.Render("Go to paragraph: ")+m.gotoInput+"_")
	}
	if m.errorMessage != "" {
		lines = append(lines, errorStyle.Render("Error: ")+m.errorMessage)
	} else if m.notice != "" {
		lines = append(lines, dimStyle.Render(m.notice))
	}
	if m.status.PersistenceErr != nil {
		lines = append(lines, warningStyle.Render("Session is not being saved: "+m.status.PersistenceErr.Error()))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderFooter() string {
	binding := func(key, desc string) string {
		return footerKeyStyle.Render(key) + footerDescStyle.Render(" "+desc)
	}

	parts := []string{
		binding("n/b", "Next/Prev"),
		binding("g", "Go to"),
		binding("r", "Record"),
		binding("p", "Play"),
		binding("Space", "Pause"),
		binding("s", "Stop"),
		binding("q", "Quit"),
	}
	return strings.Join(parts, "  ")
}
