package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/narrate/internal/clock"
	"github.com/rbright/narrate/internal/config"
	"github.com/rbright/narrate/internal/store"
	"github.com/rbright/narrate/internal/text"
	"github.com/rbright/narrate/internal/transport"
)

type fakeBackend struct {
	mu         sync.Mutex
	captureErr error
	playbacks  []*fakePlayback
}

func (b *fakeBackend) OpenCapture(_ context.Context, req transport.CaptureRequest) (transport.Capture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.captureErr != nil {
		return nil, b.captureErr
	}
	return &fakeCapture{path: req.Path}, nil
}

func (b *fakeBackend) OpenPlayback(_ context.Context, req transport.PlaybackRequest) (transport.Playback, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := &fakePlayback{onEnd: req.OnEnd}
	b.playbacks = append(b.playbacks, p)
	return p, nil
}

func (b *fakeBackend) Probe(string) (transport.Artifact, error) {
	return transport.Artifact{Duration: 3 * time.Second, SampleRate: 44100, Channels: 1}, nil
}

func (b *fakeBackend) lastPlayback() *fakePlayback {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.playbacks[len(b.playbacks)-1]
}

type fakeCapture struct {
	path string
}

func (c *fakeCapture) Pause() error  { return nil }
func (c *fakeCapture) Resume() error { return nil }
func (c *fakeCapture) Abort() error  { return os.Remove(c.path) }

// Finish writes a placeholder artifact; the transport falls back to the
// elapsed counter for its duration.
func (c *fakeCapture) Finish() (transport.Artifact, error) {
	if err := os.WriteFile(c.path, []byte("RIFF"), 0o600); err != nil {
		return transport.Artifact{}, err
	}
	return transport.Artifact{SampleRate: 44100, Channels: 1}, nil
}

type fakePlayback struct {
	onEnd func(error)
}

func (p *fakePlayback) Pause() error  { return nil }
func (p *fakePlayback) Resume() error { return nil }
func (p *fakePlayback) Stop() error   { return nil }

// failingStore fails every Save, and every Load when loadErr is set.
type failingStore struct {
	loadErr error
	closed  bool
}

func (s *failingStore) Load(context.Context, string) (store.State, bool, error) {
	return store.State{}, false, s.loadErr
}

func (s *failingStore) Save(context.Context, store.State) error {
	return errors.New("disk full")
}

func (s *failingStore) Close() error {
	s.closed = true
	return nil
}

type harness struct {
	session *Session
	backend *fakeBackend
	clock   *clock.Fake
	store   store.Store
	device  config.DeviceConfig
}

func defaultDevice(t *testing.T) config.DeviceConfig {
	t.Helper()
	return config.DeviceConfig{
		InputDevice:      "default",
		OutputDevice:     "default",
		SampleRate:       44100,
		Channels:         1,
		ProjectDirectory: t.TempDir(),
	}
}

func newDocument(t *testing.T, src string) *text.Document {
	t.Helper()
	doc, err := text.NewDocument("/books/"+t.Name()+".txt", []byte(src), text.Options{})
	require.NoError(t, err)
	return doc
}

func openHarness(t *testing.T, src string, s store.Store) *harness {
	t.Helper()
	if s == nil {
		s = store.NewMemory()
	}
	h := &harness{
		backend: &fakeBackend{},
		clock:   clock.NewFake(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)),
		store:   s,
		device:  defaultDevice(t),
	}
	sess, err := Open(context.Background(), newDocument(t, src), Deps{
		Store:    s,
		Backend:  h.backend,
		Defaults: h.device,
		Clock:    h.clock,
	})
	require.NoError(t, err)
	h.session = sess
	return h
}

// threeParagraphs segments into paragraphs of 4, 4 and 1 sentences.
const threeParagraphs = "One. Two. Three. Four. Five. Six. Seven. Eight. Nine."
