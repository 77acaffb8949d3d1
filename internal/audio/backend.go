package audio

import (
	"context"
	"log/slog"

	"github.com/rbright/narrate/internal/transport"
)

// Backend opens Pulse capture and playback streams for the transport.
type Backend struct {
	logger *slog.Logger
}

func NewBackend(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Backend{logger: logger}
}

func (b *Backend) OpenCapture(ctx context.Context, req transport.CaptureRequest) (transport.Capture, error) {
	devices, err := ListInputDevices(ctx)
	if err != nil {
		return nil, err
	}
	selection, err := SelectDevice(devices, req.Device.InputDevice)
	if err != nil {
		return nil, err
	}
	b.logSelection(selection)

	capture, err := StartCapture(selection.Device, req.Device.SampleRate, req.Device.Channels, req.Path, req.OnError)
	if err != nil {
		return nil, err
	}
	return recording{capture}, nil
}

func (b *Backend) OpenPlayback(ctx context.Context, req transport.PlaybackRequest) (transport.Playback, error) {
	devices, err := ListOutputDevices(ctx)
	if err != nil {
		return nil, err
	}
	selection, err := SelectDevice(devices, req.Device.OutputDevice)
	if err != nil {
		return nil, err
	}
	b.logSelection(selection)

	playback, err := StartPlayback(selection.Device, req.Reading.Path, req.Offset, req.OnEnd)
	if err != nil {
		return nil, err
	}
	return playback, nil
}

func (b *Backend) Probe(path string) (transport.Artifact, error) {
	info, err := ProbeWAV(path)
	if err != nil {
		return transport.Artifact{}, err
	}
	return artifactFromInfo(info), nil
}

func (b *Backend) logSelection(selection Selection) {
	if selection.Warning != "" {
		b.logger.Warn("audio device fallback", "kind", string(selection.Device.Kind), "warning", selection.Warning)
	}
	b.logger.Debug("audio device selected",
		"kind", string(selection.Device.Kind),
		"id", selection.Device.ID,
		"description", selection.Device.Description,
	)
}

func artifactFromInfo(info WAVInfo) transport.Artifact {
	return transport.Artifact{
		Duration:   info.Duration(),
		SampleRate: info.SampleRate,
		Channels:   info.Channels,
	}
}

// recording adapts Capture to the transport's finalize contract.
type recording struct {
	*Capture
}

func (r recording) Finish() (transport.Artifact, error) {
	info, err := r.Capture.Finish()
	if err != nil {
		return transport.Artifact{}, err
	}
	return artifactFromInfo(info), nil
}
