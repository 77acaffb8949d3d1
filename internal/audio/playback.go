package audio

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
)

// Playback streams a wav file to one Pulse sink.
type Playback struct {
	device Device

	client *pulse.Client
	stream *pulse.PlaybackStream
	reader *WAVReader

	mu       sync.Mutex
	stopped  bool
	released bool
}

// StartPlayback opens path, seeks to offset, and starts playing it on the
// selected sink. onEnd runs once, from a separate goroutine, when the stream
// drains or fails; it does not run after Stop.
func StartPlayback(selected Device, path string, offset time.Duration, onEnd func(error)) (*Playback, error) {
	reader, err := OpenWAV(path)
	if err != nil {
		return nil, err
	}
	if err := reader.Seek(offset); err != nil {
		_ = reader.Close()
		return nil, err
	}

	client, err := newClient()
	if err != nil {
		_ = reader.Close()
		return nil, err
	}

	sink, err := client.SinkByID(selected.ID)
	if err != nil {
		client.Close()
		_ = reader.Close()
		return nil, fmt.Errorf("resolve sink %q: %w", selected.ID, err)
	}

	p := &Playback{device: selected, client: client, reader: reader}

	info := reader.Info()
	channelOption := pulse.PlaybackMono
	if info.Channels == 2 {
		channelOption = pulse.PlaybackStereo
	}

	stream, err := client.NewPlayback(
		pulse.Int16Reader(p.read),
		pulse.PlaybackSink(sink),
		channelOption,
		pulse.PlaybackSampleRate(info.SampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackMediaName("narrate playback"),
	)
	if err != nil {
		p.release()
		return nil, fmt.Errorf("create pulse playback stream: %w", err)
	}
	p.stream = stream

	stream.Start()
	go p.drain(onEnd)
	return p, nil
}

func (p *Playback) Device() Device {
	return p.device
}

func (p *Playback) read(buf []int16) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || p.released {
		return 0, pulse.EndOfData
	}
	n, err := p.reader.ReadInt16(buf)
	if errors.Is(err, io.EOF) {
		return n, pulse.EndOfData
	}
	return n, err
}

func (p *Playback) drain(onEnd func(error)) {
	p.stream.Drain()
	streamErr := p.stream.Error()

	p.mu.Lock()
	stopped := p.stopped
	p.stopped = true
	p.mu.Unlock()
	if stopped {
		return
	}

	p.release()
	if onEnd != nil {
		onEnd(streamErr)
	}
}

func (p *Playback) Pause() error {
	p.stream.Pause()
	if err := p.stream.Error(); err != nil {
		return fmt.Errorf("pause playback stream: %w", err)
	}
	return nil
}

func (p *Playback) Resume() error {
	p.stream.Resume()
	if err := p.stream.Error(); err != nil {
		return fmt.Errorf("resume playback stream: %w", err)
	}
	return nil
}

// Stop halts playback immediately and releases the stream. It does not wait
// for the drain goroutine.
func (p *Playback) Stop() error {
	p.mu.Lock()
	p.stopped = true
	released := p.released
	p.mu.Unlock()

	if released {
		return nil
	}
	if p.stream != nil {
		p.stream.Stop()
	}
	p.release()
	return nil
}

func (p *Playback) release() {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return
	}
	p.released = true
	_ = p.reader.Close()
	p.mu.Unlock()

	if p.stream != nil {
		p.stream.Close()
	}
	if p.client != nil {
		p.client.Close()
	}
}
