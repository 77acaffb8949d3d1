package transport

import (
	"context"
	"time"

	"github.com/rbright/narrate/internal/config"
	"github.com/rbright/narrate/internal/project"
)

// Artifact describes a finalized or probed audio file.
type Artifact struct {
	Duration   time.Duration
	SampleRate int
	Channels   int
}

type CaptureRequest struct {
	Device config.DeviceConfig
	// Path is the pending file the capture writes to.
	Path string
	// OnError reports an asynchronous device failure.
	OnError func(error)
}

// Capture is an open recording stream. Finish flushes and closes the file at
// the request path; Abort discards it.
type Capture interface {
	Pause() error
	Resume() error
	Finish() (Artifact, error)
	Abort() error
}

type PlaybackRequest struct {
	Device  config.DeviceConfig
	Reading project.Reading
	Offset  time.Duration
	// OnEnd is called once when the stream finishes on its own: with nil at
	// end of stream, or with the device error that stopped it. It must not be
	// called from within OpenPlayback.
	OnEnd func(error)
}

type Playback interface {
	Pause() error
	Resume() error
	Stop() error
}

// Backend opens device streams. Implementations never touch transport state.
type Backend interface {
	OpenCapture(ctx context.Context, req CaptureRequest) (Capture, error)
	OpenPlayback(ctx context.Context, req PlaybackRequest) (Playback, error)
	Probe(path string) (Artifact, error)
}
