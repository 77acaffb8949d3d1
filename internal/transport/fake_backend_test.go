package transport

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"
)

type fakeBackend struct {
	mu          sync.Mutex
	captureErr  error
	playbackErr error
	content     []byte
	duration    time.Duration
	captures    []*fakeCapture
	playbacks   []*fakePlayback
	probes      map[string]Artifact
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{content: []byte("pcm"), probes: map[string]Artifact{}}
}

func (b *fakeBackend) OpenCapture(_ context.Context, req CaptureRequest) (Capture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.captureErr != nil {
		return nil, b.captureErr
	}
	if err := os.WriteFile(req.Path, nil, 0o600); err != nil {
		return nil, err
	}
	c := &fakeCapture{req: req, content: b.content, duration: b.duration}
	b.captures = append(b.captures, c)
	return c, nil
}

func (b *fakeBackend) OpenPlayback(_ context.Context, req PlaybackRequest) (Playback, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.playbackErr != nil {
		return nil, b.playbackErr
	}
	p := &fakePlayback{req: req}
	b.playbacks = append(b.playbacks, p)
	return p, nil
}

func (b *fakeBackend) Probe(path string) (Artifact, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	artifact, ok := b.probes[path]
	if !ok {
		return Artifact{}, errors.New("not a wav file")
	}
	return artifact, nil
}

func (b *fakeBackend) lastCapture() *fakeCapture {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.captures[len(b.captures)-1]
}

func (b *fakeBackend) lastPlayback() *fakePlayback {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.playbacks[len(b.playbacks)-1]
}

type fakeCapture struct {
	req       CaptureRequest
	content   []byte
	duration  time.Duration
	paused    bool
	finished  bool
	aborted   bool
	pauseErr  error
	finishErr error
}

func (c *fakeCapture) Pause() error {
	if c.pauseErr != nil {
		return c.pauseErr
	}
	c.paused = true
	return nil
}

func (c *fakeCapture) Resume() error {
	c.paused = false
	return nil
}

func (c *fakeCapture) Finish() (Artifact, error) {
	if c.finishErr != nil {
		return Artifact{}, c.finishErr
	}
	c.finished = true
	if err := os.WriteFile(c.req.Path, c.content, 0o600); err != nil {
		return Artifact{}, err
	}
	return Artifact{Duration: c.duration, SampleRate: c.req.Device.SampleRate, Channels: c.req.Device.Channels}, nil
}

func (c *fakeCapture) Abort() error {
	c.aborted = true
	return nil
}

type fakePlayback struct {
	req     PlaybackRequest
	paused  bool
	stopped bool
}

func (p *fakePlayback) Pause() error {
	p.paused = true
	return nil
}

func (p *fakePlayback) Resume() error {
	p.paused = false
	return nil
}

func (p *fakePlayback) Stop() error {
	p.stopped = true
	return nil
}
