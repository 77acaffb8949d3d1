package transport

import (
	"context"
	"fmt"
	"os"

	"github.com/rbright/narrate/internal/fsm"
	"github.com/rbright/narrate/internal/project"
)

// StartRecording opens a capture for paragraph. The elapsed counter restarts
// at zero. On device failure the transport stays idle.
func (t *Transport) StartRecording(ctx context.Context, paragraph int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != fsm.StateIdle {
		return fmt.Errorf("start recording while %s: %w", t.state, ErrTransportBusy)
	}
	if paragraph < 0 || (t.count > 0 && paragraph >= t.count) {
		return fmt.Errorf("paragraph %d is outside the document", paragraph)
	}
	if err := t.layout.Ensure(); err != nil {
		return err
	}

	pending := t.layout.PendingPath(paragraph)
	if err := removePending(pending); err != nil {
		return fmt.Errorf("clear pending recording: %w", err)
	}

	t.generation++
	generation := t.generation
	capture, err := t.backend.OpenCapture(ctx, CaptureRequest{
		Device:  t.device,
		Path:    pending,
		OnError: func(err error) { t.onCaptureError(generation, err) },
	})
	if err != nil {
		_ = removePending(pending)
		t.logger.Warn("open capture failed", "paragraph", paragraph, "error", err.Error())
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	if err := t.transitionLocked(fsm.EventRecord); err != nil {
		_ = capture.Abort()
		return err
	}
	t.capture = capture
	t.pendingPath = pending
	t.paragraph = paragraph
	t.elapsed = 0
	t.startTickLocked()
	t.logger.Info("recording started", "paragraph", paragraph, "path", pending)
	return nil
}

func (t *Transport) PauseRecording() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pauseRecordingLocked()
}

func (t *Transport) pauseRecordingLocked() error {
	if t.state != fsm.StateRecording {
		return fmt.Errorf("pause recording while %s: %w", t.state, ErrNotRecording)
	}
	if err := t.capture.Pause(); err != nil {
		return t.failRecordingLocked(err)
	}
	return t.transitionLocked(fsm.EventPause)
}

func (t *Transport) ResumeRecording() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resumeRecordingLocked()
}

func (t *Transport) resumeRecordingLocked() error {
	if t.state != fsm.StatePausedRecording {
		return fmt.Errorf("resume recording while %s: %w", t.state, ErrNotRecording)
	}
	if err := t.capture.Resume(); err != nil {
		return t.failRecordingLocked(err)
	}
	return t.transitionLocked(fsm.EventResume)
}

// StopRecording finalizes the capture and atomically replaces any prior
// Reading for the paragraph. If finalizing fails the prior Reading is kept.
func (t *Transport) StopRecording() (project.Reading, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopRecordingLocked()
}

func (t *Transport) stopRecordingLocked() (project.Reading, error) {
	if !t.state.Recording() {
		return project.Reading{}, fmt.Errorf("stop recording while %s: %w", t.state, ErrNotRecording)
	}

	t.stopTickLocked()
	paragraph := t.paragraph
	pending := t.pendingPath
	elapsed := t.elapsed
	capture := t.capture

	artifact, err := capture.Finish()
	if err != nil {
		_ = removePending(pending)
		t.finishLocked(fsm.EventFail)
		return project.Reading{}, fmt.Errorf("finalize recording: %w", err)
	}

	final := t.layout.ReadingPath(paragraph)
	if err := os.Rename(pending, final); err != nil {
		_ = removePending(pending)
		t.finishLocked(fsm.EventFail)
		return project.Reading{}, fmt.Errorf("replace reading %q: %w", final, err)
	}

	duration := artifact.Duration
	if duration <= 0 {
		duration = elapsed
	}
	reading := project.Reading{
		Paragraph:  paragraph,
		Path:       final,
		Duration:   duration,
		SampleRate: artifact.SampleRate,
		Channels:   artifact.Channels,
		RecordedAt: t.clock.Now(),
	}
	t.readings[paragraph] = reading
	t.finishLocked(fsm.EventStop)
	t.logger.Info("recording saved", "paragraph", paragraph, "path", final, "duration_ms", duration.Milliseconds())
	return reading, nil
}

func (t *Transport) onCaptureError(generation uint64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if generation != t.generation || !t.state.Recording() {
		return
	}
	_ = t.failRecordingLocked(err)
}

func (t *Transport) failRecordingLocked(cause error) error {
	t.logger.Warn("recording device failed", "paragraph", t.paragraph, "error", cause.Error())
	if t.capture != nil {
		_ = t.capture.Abort()
	}
	_ = removePending(t.pendingPath)
	t.finishLocked(fsm.EventFail)
	return fmt.Errorf("%w: %w", ErrDeviceUnavailable, cause)
}
