package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/rbright/narrate/internal/fsm"
)

// StartPlayback plays the paragraph's Reading from offset. Offsets outside
// [0, duration] are clamped.
func (t *Transport) StartPlayback(ctx context.Context, paragraph int, offset time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	reading, ok := t.readings[paragraph]
	if !ok {
		return fmt.Errorf("paragraph %d: %w", paragraph, ErrNoReadingAvailable)
	}
	if t.state != fsm.StateIdle {
		return fmt.Errorf("start playback while %s: %w", t.state, ErrTransportBusy)
	}

	offset = clampOffset(offset, reading.Duration)

	t.generation++
	generation := t.generation
	playback, err := t.backend.OpenPlayback(ctx, PlaybackRequest{
		Device:  t.device,
		Reading: reading,
		Offset:  offset,
		OnEnd:   func(err error) { t.onPlaybackEnd(generation, err) },
	})
	if err != nil {
		t.logger.Warn("open playback failed", "paragraph", paragraph, "error", err.Error())
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	if err := t.transitionLocked(fsm.EventPlay); err != nil {
		_ = playback.Stop()
		return err
	}
	t.playback = playback
	t.paragraph = paragraph
	t.position = offset
	t.duration = reading.Duration
	t.startTickLocked()
	t.logger.Info("playback started", "paragraph", paragraph, "offset_ms", offset.Milliseconds())
	return nil
}

func clampOffset(offset time.Duration, duration time.Duration) time.Duration {
	if offset < 0 {
		return 0
	}
	if offset > duration {
		return duration
	}
	return offset
}

func (t *Transport) PausePlayback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pausePlaybackLocked()
}

func (t *Transport) pausePlaybackLocked() error {
	if t.state != fsm.StatePlaying {
		return fmt.Errorf("pause playback while %s: %w", t.state, ErrNotPlaying)
	}
	if err := t.playback.Pause(); err != nil {
		return t.failPlaybackLocked(err)
	}
	return t.transitionLocked(fsm.EventPause)
}

func (t *Transport) ResumePlayback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resumePlaybackLocked()
}

func (t *Transport) resumePlaybackLocked() error {
	if t.state != fsm.StatePausedPlaying {
		return fmt.Errorf("resume playback while %s: %w", t.state, ErrNotPlaying)
	}
	if err := t.playback.Resume(); err != nil {
		return t.failPlaybackLocked(err)
	}
	return t.transitionLocked(fsm.EventResume)
}

func (t *Transport) StopPlayback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopPlaybackLocked()
}

func (t *Transport) stopPlaybackLocked() error {
	if !t.state.Playing() {
		return fmt.Errorf("stop playback while %s: %w", t.state, ErrNotPlaying)
	}

	err := t.playback.Stop()
	t.position = 0
	t.finishLocked(fsm.EventStop)
	if err != nil {
		t.logger.Warn("stop playback stream", "error", err.Error())
	}
	return nil
}

func (t *Transport) onPlaybackEnd(generation uint64, cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if generation != t.generation || !t.state.Playing() {
		return
	}
	if cause != nil {
		_ = t.failPlaybackLocked(cause)
		return
	}

	paragraph := t.paragraph
	_ = t.playback.Stop()
	t.position = 0
	t.finishLocked(fsm.EventEnd)
	t.logger.Info("playback finished", "paragraph", paragraph)
}

func (t *Transport) failPlaybackLocked(cause error) error {
	t.logger.Warn("playback device failed", "paragraph", t.paragraph, "error", cause.Error())
	if t.playback != nil {
		_ = t.playback.Stop()
	}
	t.position = 0
	t.finishLocked(fsm.EventFail)
	return fmt.Errorf("%w: %w", ErrDeviceUnavailable, cause)
}
