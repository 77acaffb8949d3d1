// Package transport owns the record/playback state machine and the
// elapsed/position counters for one open document.
package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rbright/narrate/internal/clock"
	"github.com/rbright/narrate/internal/config"
	"github.com/rbright/narrate/internal/fsm"
	"github.com/rbright/narrate/internal/project"
)

var (
	ErrTransportBusy      = errors.New("transport busy")
	ErrNotRecording       = errors.New("not recording")
	ErrNotPlaying         = errors.New("not playing")
	ErrNoReadingAvailable = errors.New("no reading available")
	ErrDeviceUnavailable  = errors.New("audio device unavailable")
)

// DefaultTickInterval is the counter resolution.
const DefaultTickInterval = time.Second

type Options struct {
	Clock        clock.Clock
	TickInterval time.Duration
	Logger       *slog.Logger
}

// Snapshot is a consistent read of transport state and counters.
type Snapshot struct {
	State fsm.State
	// Paragraph is the paragraph being recorded or played, or -1 when idle.
	Paragraph int
	Elapsed   time.Duration
	Position  time.Duration
	Duration  time.Duration
}

// Transport serializes every state transition behind one mutex. Counter ticks
// and backend callbacks carry the generation they were started under and are
// ignored once the transport has moved on.
type Transport struct {
	backend      Backend
	clock        clock.Clock
	tick         time.Duration
	logger       *slog.Logger
	documentName string

	mu         sync.Mutex
	state      fsm.State
	device     config.DeviceConfig
	layout     project.Layout
	count      int
	readings   map[int]project.Reading
	generation uint64
	cancelTick clock.CancelFunc

	paragraph int
	elapsed   time.Duration
	position  time.Duration
	duration  time.Duration

	capture     Capture
	pendingPath string
	playback    Playback
}

func New(backend Backend, documentName string, device config.DeviceConfig, opts Options) (*Transport, error) {
	if err := config.ValidateDevice(device); err != nil {
		return nil, err
	}
	layout, err := layoutFor(device, documentName)
	if err != nil {
		return nil, err
	}

	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Transport{
		backend:      backend,
		clock:        opts.Clock,
		tick:         opts.TickInterval,
		logger:       logger,
		documentName: documentName,
		state:        fsm.StateIdle,
		device:       device,
		layout:       layout,
		readings:     make(map[int]project.Reading),
		paragraph:    -1,
	}, nil
}

func layoutFor(device config.DeviceConfig, documentName string) (project.Layout, error) {
	dir, err := config.ExpandPath(device.ProjectDirectory)
	if err != nil {
		return project.Layout{}, err
	}
	return project.NewLayout(dir, documentName), nil
}

// Discover loads the existing Readings for a document of count paragraphs.
func (t *Transport) Discover(count int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.count = count
	return t.discoverLocked()
}

func (t *Transport) discoverLocked() error {
	readings, err := t.discoverIn(t.layout)
	if err != nil {
		return err
	}
	t.readings = readings
	return nil
}

// discoverIn probes layout without touching transport state.
func (t *Transport) discoverIn(layout project.Layout) (map[int]project.Reading, error) {
	readings, skipped, err := layout.Discover(t.count, t.probe)
	if err != nil {
		return nil, err
	}
	for path, probeErr := range skipped {
		t.logger.Warn("skipping unreadable reading", "path", path, "error", probeErr.Error())
	}
	t.logger.Debug("readings discovered", "dir", layout.Dir, "count", len(readings))
	return readings, nil
}

func (t *Transport) probe(path string) (project.Reading, error) {
	artifact, err := t.backend.Probe(path)
	if err != nil {
		return project.Reading{}, err
	}
	return project.Reading{
		Duration:   artifact.Duration,
		SampleRate: artifact.SampleRate,
		Channels:   artifact.Channels,
	}, nil
}

func (t *Transport) State() fsm.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transport) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		State:     t.state,
		Paragraph: t.paragraph,
		Elapsed:   t.elapsed,
		Position:  t.position,
		Duration:  t.duration,
	}
}

func (t *Transport) Reading(paragraph int) (project.Reading, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	reading, ok := t.readings[paragraph]
	return reading, ok
}

// Readings returns every known Reading ordered by paragraph.
func (t *Transport) Readings() []project.Reading {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]project.Reading, 0, len(t.readings))
	for _, reading := range t.readings {
		out = append(out, reading)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Paragraph < out[j].Paragraph })
	return out
}

func (t *Transport) Layout() project.Layout {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.layout
}

func (t *Transport) DeviceConfig() config.DeviceConfig {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.device
}

// SetDeviceConfig replaces the device snapshot. Changes are only accepted
// while idle and take effect on the next start.
func (t *Transport) SetDeviceConfig(device config.DeviceConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != fsm.StateIdle {
		return fmt.Errorf("change device config while %s: %w", t.state, ErrTransportBusy)
	}
	if err := config.ValidateDevice(device); err != nil {
		return err
	}
	layout, err := layoutFor(device, t.documentName)
	if err != nil {
		return err
	}

	readings := t.readings
	if layout.Dir != t.layout.Dir {
		readings, err = t.discoverIn(layout)
		if err != nil {
			return fmt.Errorf("change project directory: %w", err)
		}
	}
	t.device = device
	t.layout = layout
	t.readings = readings
	return nil
}

// IfIdle runs fn while holding the transport lock, only when idle.
func (t *Transport) IfIdle(fn func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != fsm.StateIdle {
		return ErrTransportBusy
	}
	fn()
	return nil
}

func (t *Transport) transitionLocked(event fsm.Event) error {
	next, err := fsm.Transition(t.state, event)
	if err != nil {
		return err
	}
	t.logger.Debug("transport transition", "from", string(t.state), "event", string(event), "to", string(next))
	t.state = next
	return nil
}

func (t *Transport) startTickLocked() {
	generation := t.generation
	t.cancelTick = t.clock.Every(t.tick, func() { t.onTick(generation) })
}

func (t *Transport) stopTickLocked() {
	if t.cancelTick != nil {
		t.cancelTick()
		t.cancelTick = nil
	}
}

func (t *Transport) onTick(generation uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if generation != t.generation {
		return
	}
	switch t.state {
	case fsm.StateRecording:
		t.elapsed += t.tick
	case fsm.StatePlaying:
		t.position = min(t.position+t.tick, t.duration)
	}
}

// finishLocked returns to idle and invalidates in-flight ticks and callbacks.
func (t *Transport) finishLocked(event fsm.Event) {
	t.stopTickLocked()
	if err := t.transitionLocked(event); err != nil {
		t.logger.Error("transport transition failed", "error", err.Error())
		t.state = fsm.StateIdle
	}
	t.generation++
	t.paragraph = -1
	t.capture = nil
	t.pendingPath = ""
	t.playback = nil
}

// Pause pauses whichever stream is active. Outside an active stream it
// reports ErrNotRecording.
func (t *Transport) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Playing() {
		return t.pausePlaybackLocked()
	}
	return t.pauseRecordingLocked()
}

func (t *Transport) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Playing() {
		return t.resumePlaybackLocked()
	}
	return t.resumeRecordingLocked()
}

// Stop ends whichever stream is active, keeping a recording.
func (t *Transport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Playing() {
		return t.stopPlaybackLocked()
	}
	_, err := t.stopRecordingLocked()
	return err
}

// Close stops any active recording (keeping it) or playback.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.state.Recording():
		_, err := t.stopRecordingLocked()
		return err
	case t.state.Playing():
		return t.stopPlaybackLocked()
	default:
		return nil
	}
}

func removePending(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
