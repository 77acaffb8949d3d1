// Package audio implements the PulseAudio transport backend: device
// discovery and selection, wav capture, and wav playback.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

type Kind string

const (
	KindInput  Kind = "input"
	KindOutput Kind = "output"
)

// Device describes one Pulse source or sink.
type Device struct {
	Kind        Kind
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Selection is the resolved device plus optional fallback warning context.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

func newClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("narrate"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// ListDevices returns every Pulse source followed by every sink.
func ListDevices(ctx context.Context) ([]Device, error) {
	inputs, err := ListInputDevices(ctx)
	if err != nil {
		return nil, err
	}
	outputs, err := ListOutputDevices(ctx)
	if err != nil {
		return nil, err
	}
	return append(inputs, outputs...), nil
}

func ListInputDevices(_ context.Context) ([]Device, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	return listSources(client)
}

func ListOutputDevices(_ context.Context) ([]Device, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	return listSinks(client)
}

func listSources(client *pulse.Client) ([]Device, error) {
	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}
	defaultID := defaultSource.ID()

	var sourceInfos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &sourceInfos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(sourceInfos))
	for _, source := range sourceInfos {
		if source == nil {
			continue
		}
		devices = append(devices, Device{
			Kind:        KindInput,
			ID:          source.SourceName,
			Description: source.Device,
			State:       deviceStateString(source.State),
			Available:   sourceAvailable(source),
			Muted:       source.Mute,
			Default:     source.SourceName == defaultID,
		})
	}
	return devices, nil
}

func listSinks(client *pulse.Client) ([]Device, error) {
	defaultSink, err := client.DefaultSink()
	if err != nil {
		return nil, fmt.Errorf("read default sink: %w", err)
	}
	defaultID := defaultSink.ID()

	var sinkInfos pulseproto.GetSinkInfoListReply
	if err := client.RawRequest(&pulseproto.GetSinkInfoList{}, &sinkInfos); err != nil {
		return nil, fmt.Errorf("list sinks: %w", err)
	}

	devices := make([]Device, 0, len(sinkInfos))
	for _, sink := range sinkInfos {
		if sink == nil {
			continue
		}
		devices = append(devices, Device{
			Kind:        KindOutput,
			ID:          sink.SinkName,
			Description: sink.Device,
			State:       deviceStateString(sink.State),
			Available:   sinkAvailable(sink),
			Muted:       sink.Mute,
			Default:     sink.SinkName == defaultID,
		})
	}
	return devices, nil
}

// SelectDevice resolves a preference against a device list. An empty or
// "default" preference selects the default device; otherwise the first
// device whose id or description contains the preference wins. A muted or
// unavailable choice falls back to the default device with a warning.
func SelectDevice(devices []Device, preference string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio devices found")
	}
	kind := devices[0].Kind

	var (
		defaultDevice *Device
		byPreference  *Device
	)

	preference = strings.TrimSpace(strings.ToLower(preference))
	useDefault := preference == "" || preference == "default"

	for i := range devices {
		dev := &devices[i]
		if dev.Default && defaultDevice == nil {
			defaultDevice = dev
		}
		if byPreference == nil && !useDefault && deviceMatches(*dev, preference) {
			byPreference = dev
		}
	}

	primary := byPreference
	if useDefault {
		if defaultDevice == nil {
			return Selection{}, fmt.Errorf("default audio %s is unavailable", kind)
		}
		primary = defaultDevice
	} else if primary == nil {
		return Selection{}, fmt.Errorf("audio %s %q did not match any device", kind, preference)
	}

	if primary.Available && !primary.Muted {
		return Selection{Device: *primary}, nil
	}

	primaryReason := "unavailable"
	if primary.Muted {
		primaryReason = "muted"
	}
	if defaultDevice == nil {
		return Selection{}, fmt.Errorf("audio %s %q is %s and no default device exists", kind, primary.ID, primaryReason)
	}
	if !defaultDevice.Available {
		return Selection{}, fmt.Errorf("audio %s fallback device %q is not available", kind, defaultDevice.ID)
	}
	if defaultDevice.Muted {
		return Selection{}, fmt.Errorf("audio %s fallback device %q is muted", kind, defaultDevice.ID)
	}

	return Selection{
		Device:   *defaultDevice,
		Warning:  fmt.Sprintf("audio %s %q is %s; falling back to %q", kind, primary.ID, primaryReason, defaultDevice.ID),
		Fallback: primary.ID != defaultDevice.ID,
	}, nil
}

// deviceMatches reports whether a search term matches a device id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	id := strings.ToLower(device.ID)
	desc := strings.ToLower(device.Description)
	return strings.Contains(id, term) || strings.Contains(desc, term)
}

// deviceStateString maps Pulse source/sink state constants to readable values.
func deviceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	for _, port := range source.Ports {
		if port.Name == source.ActivePortName {
			// PulseAudio values: unknown=0, no=1, yes=2.
			return port.Available == 0 || port.Available == 2
		}
	}
	return true
}

func sinkAvailable(sink *pulseproto.GetSinkInfoReply) bool {
	if sink == nil {
		return false
	}
	for _, port := range sink.Ports {
		if port.Name == sink.ActivePortName {
			return port.Available == 0 || port.Available == 2
		}
	}
	return true
}
