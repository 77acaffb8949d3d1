package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rbright/narrate/internal/config"
	"github.com/rbright/narrate/internal/ipc"
	"github.com/rbright/narrate/internal/store"
	"github.com/rbright/narrate/internal/text"
	"github.com/rbright/narrate/internal/transport"
)

var ErrInvalidSetting = errors.New("invalid setting")

// Handle serves IPC commands against the session. Every response carries the
// session status after the command ran.
func (s *Session) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	var (
		message string
		err     error
	)

	switch req.Command {
	case ipc.CommandStatus:
		message = "status"
	case ipc.CommandNext:
		err = s.Next(ctx)
		message = "next"
	case ipc.CommandPrevious:
		err = s.Previous(ctx)
		message = "previous"
	case ipc.CommandGoTo:
		if req.Index == nil {
			return s.reject(ipc.CodeInvalidArgument, "goto requires an index")
		}
		err = s.GoTo(ctx, *req.Index)
		message = "moved"
	case ipc.CommandRecord:
		err = s.Record(ctx)
		message = "recording"
	case ipc.CommandPause:
		err = s.Pause()
		message = "paused"
	case ipc.CommandResume:
		err = s.Resume()
		message = "resumed"
	case ipc.CommandStop:
		err = s.Stop()
		message = "stopped"
	case ipc.CommandPlay:
		var offset time.Duration
		if req.OffsetMS != nil {
			offset = offsetFromMillis(*req.OffsetMS)
		}
		err = s.Play(ctx, offset)
		message = "playing"
	case ipc.CommandSet:
		err = s.ApplySettings(ctx, req.Settings)
		message = "settings applied"
	default:
		return s.reject(ipc.CodeUnknownCommand, fmt.Sprintf("unknown command: %s", req.Command))
	}

	if err != nil {
		return s.reject(ErrorCode(err), err.Error())
	}
	resp := s.response()
	resp.OK = true
	resp.Message = message
	return resp
}

func (s *Session) reject(code string, message string) ipc.Response {
	resp := s.response()
	resp.Code = code
	resp.Error = message
	return resp
}

func (s *Session) response() ipc.Response {
	status := s.Status()
	resp := ipc.Response{
		State:      string(status.Transport.State),
		SessionID:  status.SessionID,
		Document:   status.Document.Path,
		Paragraph:  status.Cursor,
		Count:      status.Count,
		HasReading: status.HasReading,
		ElapsedMS:  status.Transport.Elapsed.Milliseconds(),
		PositionMS: status.Transport.Position.Milliseconds(),
		DurationMS: status.Reading.Duration.Milliseconds(),
	}
	if status.Transport.State.Playing() {
		resp.DurationMS = status.Transport.Duration.Milliseconds()
	}
	if paragraph, ok := status.Document.Paragraph(status.Cursor); ok {
		resp.Text = paragraph.Display()
	}
	if status.PersistenceErr != nil {
		resp.Warning = status.PersistenceErr.Error()
	}
	return resp
}

// offsetFromMillis converts ms without wrapping; out-of-range values saturate
// and are clamped by the transport.
func offsetFromMillis(ms int64) time.Duration {
	switch {
	case ms > math.MaxInt64/int64(time.Millisecond):
		return math.MaxInt64
	case ms < math.MinInt64/int64(time.Millisecond):
		return math.MinInt64
	default:
		return time.Duration(ms) * time.Millisecond
	}
}

// ErrorCode maps a command error to its stable IPC code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrOutOfRange):
		return ipc.CodeOutOfRange
	case errors.Is(err, transport.ErrTransportBusy):
		return ipc.CodeTransportBusy
	case errors.Is(err, transport.ErrNotRecording):
		return ipc.CodeNotRecording
	case errors.Is(err, transport.ErrNotPlaying):
		return ipc.CodeNotPlaying
	case errors.Is(err, transport.ErrNoReadingAvailable):
		return ipc.CodeNoReading
	case errors.Is(err, transport.ErrDeviceUnavailable):
		return ipc.CodeDeviceUnavailable
	case errors.Is(err, store.ErrPersistenceFailure):
		return ipc.CodePersistenceFailure
	case errors.Is(err, text.ErrMalformedEncoding):
		return ipc.CodeMalformedEncoding
	default:
		return ipc.CodeInvalidArgument
	}
}

// ApplySettings updates the device configuration from key=value settings:
// input, output, sample_rate, channels, project_directory.
func (s *Session) ApplySettings(ctx context.Context, settings map[string]string) error {
	if len(settings) == 0 {
		return fmt.Errorf("%w: no settings given", ErrInvalidSetting)
	}

	device := s.DeviceConfig()
	for key, value := range settings {
		value = strings.TrimSpace(value)
		switch key {
		case "input":
			device.InputDevice = value
		case "output":
			device.OutputDevice = value
		case "sample_rate":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("%w: sample_rate %q is not a number", ErrInvalidSetting, value)
			}
			device.SampleRate = n
		case "channels":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("%w: channels %q is not a number", ErrInvalidSetting, value)
			}
			device.Channels = n
		case "project_directory":
			device.ProjectDirectory = value
		default:
			return fmt.Errorf("%w: unknown key %q", ErrInvalidSetting, key)
		}
	}

	if err := config.ValidateDevice(device); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSetting, err)
	}
	return s.SetDeviceConfig(ctx, device)
}
