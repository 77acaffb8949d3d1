// Package session binds an open document to its navigation cursor, audio
// transport, and persisted state, and serializes every user command.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/narrate/internal/clock"
	"github.com/rbright/narrate/internal/config"
	"github.com/rbright/narrate/internal/fsm"
	"github.com/rbright/narrate/internal/project"
	"github.com/rbright/narrate/internal/store"
	"github.com/rbright/narrate/internal/text"
	"github.com/rbright/narrate/internal/transport"
)

var ErrOutOfRange = errors.New("paragraph out of range")

// Deps are the collaborators of one Session. The Session takes ownership of
// Store and closes it on Close.
type Deps struct {
	Store        store.Store
	Backend      transport.Backend
	Defaults     config.DeviceConfig
	Clock        clock.Clock
	TickInterval time.Duration
	Logger       *slog.Logger
}

// View is the paragraph under the cursor and its Reading, if recorded.
type View struct {
	Empty      bool
	Paragraph  text.Paragraph
	Reading    project.Reading
	HasReading bool
}

// Status is a consistent snapshot of the whole session.
type Status struct {
	SessionID string
	Document  *text.Document
	// Cursor is the current paragraph, or -1 for an empty document.
	Cursor     int
	Count      int
	Transport  transport.Snapshot
	Reading    project.Reading
	HasReading bool
	Device     config.DeviceConfig
	// PersistenceErr is set once saving has failed and the session
	// continues on an in-memory store.
	PersistenceErr error
}

// Session is the navigation controller for one open document. Commands are
// serialized by mu; cursor changes additionally run under the transport lock
// so they can never interleave with a transport start.
type Session struct {
	id        string
	doc       *text.Document
	transport *transport.Transport
	clock     clock.Clock
	logger    *slog.Logger

	mu         sync.Mutex
	cursor     int
	store      store.Store
	persistErr error
	closed     bool
}

// Open restores the persisted cursor and device configuration for doc and
// discovers its existing Readings. Persistence failures fall back to the
// defaults and an in-memory store.
func Open(ctx context.Context, doc *text.Document, deps Deps) (*Session, error) {
	if doc == nil {
		return nil, errors.New("open session: nil document")
	}
	if deps.Backend == nil {
		return nil, errors.New("open session: nil audio backend")
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Store == nil {
		deps.Store = store.NewMemory()
	}

	id := uuid.NewString()
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("session_id", id, "document", doc.Path)

	s := &Session{
		id:     id,
		doc:    doc,
		clock:  deps.Clock,
		logger: logger,
		store:  deps.Store,
	}

	device := deps.Defaults
	saved, found, err := s.store.Load(ctx, doc.Path)
	switch {
	case err != nil:
		s.degradeLocked(err)
	case found:
		s.cursor = s.clampCursor(saved.ParagraphIndex)
		if saved.ContentHash != doc.Hash {
			logger.Warn("document changed since last session", "saved_paragraph", saved.ParagraphIndex, "paragraph", s.cursor)
		}
		if err := config.ValidateDevice(saved.Device); err != nil {
			logger.Warn("ignoring saved device config", "error", err.Error())
		} else {
			device = saved.Device
		}
	}

	tr, err := transport.New(deps.Backend, doc.Name, device, transport.Options{
		Clock:        deps.Clock,
		TickInterval: deps.TickInterval,
		Logger:       logger,
	})
	if err != nil {
		_ = s.store.Close()
		return nil, fmt.Errorf("open session: %w", err)
	}
	s.transport = tr

	if err := tr.Discover(doc.Len()); err != nil {
		logger.Warn("reading discovery failed", "error", err.Error())
	}

	logger.Info("session opened",
		"paragraphs", doc.Len(),
		"paragraph", s.cursor,
		"readings", len(tr.Readings()),
		"restored", found,
	)
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Document() *text.Document {
	return s.doc
}

func (s *Session) clampCursor(index int) int {
	return max(0, min(index, s.doc.Len()-1))
}

// GoTo moves the cursor to index and persists it.
func (s *Session) GoTo(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= s.doc.Len() {
		return fmt.Errorf("%w: %d (document has %d paragraphs)", ErrOutOfRange, index, s.doc.Len())
	}
	if err := s.transport.IfIdle(func() { s.cursor = index }); err != nil {
		return fmt.Errorf("go to paragraph %d: %w", index, err)
	}
	s.persistLocked(ctx)
	return nil
}

// Next moves the cursor forward; at the last paragraph it does nothing.
func (s *Session) Next(ctx context.Context) error {
	return s.step(ctx, 1)
}

// Previous moves the cursor back; at the first paragraph it does nothing.
func (s *Session) Previous(ctx context.Context) error {
	return s.step(ctx, -1)
}

func (s *Session) step(ctx context.Context, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc.Len() == 0 {
		return nil
	}

	moved := false
	err := s.transport.IfIdle(func() {
		next := s.clampCursor(s.cursor + delta)
		moved = next != s.cursor
		s.cursor = next
	})
	if err != nil {
		return fmt.Errorf("move cursor: %w", err)
	}
	if moved {
		s.persistLocked(ctx)
	}
	return nil
}

// Current returns the paragraph under the cursor and its Reading.
func (s *Session) Current() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	paragraph, ok := s.doc.Paragraph(s.cursor)
	if !ok {
		return View{Empty: true}
	}
	reading, has := s.transport.Reading(s.cursor)
	return View{Paragraph: paragraph, Reading: reading, HasReading: has}
}

// Record starts recording the paragraph under the cursor.
func (s *Session) Record(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc.Len() == 0 {
		return fmt.Errorf("record: %w: document is empty", ErrOutOfRange)
	}
	return s.transport.StartRecording(ctx, s.cursor)
}

func (s *Session) PauseRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport.PauseRecording()
}

func (s *Session) ResumeRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport.ResumeRecording()
}

// StopRecording finalizes the Reading, replacing any earlier one.
func (s *Session) StopRecording() (project.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport.StopRecording()
}

// Play starts playback of the cursor paragraph's Reading from offset.
func (s *Session) Play(ctx context.Context, offset time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport.StartPlayback(ctx, s.cursor, offset)
}

func (s *Session) PausePlayback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport.PausePlayback()
}

func (s *Session) ResumePlayback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport.ResumePlayback()
}

func (s *Session) StopPlayback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport.StopPlayback()
}

// Pause pauses whichever stream is active. Outside an active stream it
// reports ErrNotRecording.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport.Pause()
}

func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport.Resume()
}

// Stop ends whichever stream is active, keeping a recording.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport.Stop()
}

// SetDeviceConfig replaces the device configuration for the next transport
// start and persists it. It is rejected unless the transport is idle.
func (s *Session) SetDeviceConfig(ctx context.Context, device config.DeviceConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transport.SetDeviceConfig(device); err != nil {
		return err
	}
	s.logger.Info("device config changed",
		"input", device.InputDevice,
		"output", device.OutputDevice,
		"sample_rate", device.SampleRate,
		"channels", device.Channels,
		"project_directory", device.ProjectDirectory,
	)
	s.persistLocked(ctx)
	return nil
}

func (s *Session) DeviceConfig() config.DeviceConfig {
	return s.transport.DeviceConfig()
}

func (s *Session) State() fsm.State {
	return s.transport.State()
}

func (s *Session) Readings() []project.Reading {
	return s.transport.Readings()
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		SessionID:      s.id,
		Document:       s.doc,
		Cursor:         s.cursor,
		Count:          s.doc.Len(),
		Transport:      s.transport.Snapshot(),
		Device:         s.transport.DeviceConfig(),
		PersistenceErr: s.persistErr,
	}
	if status.Count == 0 {
		status.Cursor = -1
		return status
	}
	status.Reading, status.HasReading = s.transport.Reading(s.cursor)
	return status
}

// Close finalizes any active recording, stops playback, and flushes the
// session. It returns the persistence failure, if saving ever failed.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.transport.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close transport: %w", err))
	}
	s.persistLocked(ctx)
	if s.persistErr != nil {
		errs = append(errs, s.persistErr)
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close session store: %w", err))
	}

	s.logger.Info("session closed", "paragraph", s.cursor)
	return errors.Join(errs...)
}

func (s *Session) persistLocked(ctx context.Context) {
	state := store.State{
		DocumentPath:   s.doc.Path,
		ContentHash:    s.doc.Hash,
		ParagraphIndex: s.cursor,
		Device:         s.transport.DeviceConfig(),
		SavedAt:        s.clock.Now(),
	}
	if err := s.store.Save(ctx, state); err != nil {
		s.degradeLocked(err)
		_ = s.store.Save(ctx, state)
	}
}

// degradeLocked swaps the store for an in-memory one after a failure.
func (s *Session) degradeLocked(cause error) {
	if !errors.Is(cause, store.ErrPersistenceFailure) {
		cause = fmt.Errorf("%w: %w", store.ErrPersistenceFailure, cause)
	}
	s.logger.Error("session persistence failed; continuing in memory", "error", cause.Error())

	if s.persistErr == nil {
		s.persistErr = cause
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn("close failed session store", "error", err.Error())
	}
	s.store = store.NewMemory()
}
