package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// pcmSink receives captured PCM16 frames.
type pcmSink interface {
	Write([]byte) (int, error)
	Close() (WAVInfo, error)
}

// Capture records one Pulse source into a wav file. Frames delivered while
// paused are dropped, so the file only holds unpaused audio.
type Capture struct {
	device Device
	path   string

	client *pulse.Client
	stream *pulse.RecordStream

	stopCh  chan struct{}
	onError func(error)

	mu        sync.Mutex
	sink      pcmSink
	paused    bool
	stopped   bool
	failed    bool
	finalized bool

	inflight sync.WaitGroup
	bytes    atomic.Int64
}

// StartCapture creates and starts a PCM16 record stream writing to path.
func StartCapture(selected Device, sampleRate int, channels int, path string, onError func(error)) (*Capture, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	sink, err := CreateWAV(path, sampleRate, channels)
	if err != nil {
		client.Close()
		return nil, err
	}

	capture := &Capture{
		device:  selected,
		path:    path,
		client:  client,
		sink:    sink,
		stopCh:  make(chan struct{}),
		onError: onError,
	}

	channelOption := pulse.RecordMono
	if channels == 2 {
		channelOption = pulse.RecordStereo
	}

	writer := pulse.NewWriter(writerFunc(capture.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		channelOption,
		pulse.RecordSampleRate(sampleRate),
		pulse.RecordBufferFragmentSize(fragmentSize(sampleRate, channels)),
		pulse.RecordMediaName("narrate recording"),
	)
	if err != nil {
		_ = capture.Abort()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	capture.stream = stream
	stream.Start()
	return capture, nil
}

// fragmentSize is 20ms of PCM16 audio.
func fragmentSize(sampleRate int, channels int) uint32 {
	return uint32(sampleRate * channels * 2 / 50)
}

// Device returns capture metadata for logging and diagnostics.
func (c *Capture) Device() Device {
	return c.device
}

// BytesCaptured reports total bytes written to the wav payload.
func (c *Capture) BytesCaptured() int64 {
	return c.bytes.Load()
}

func (c *Capture) Pause() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return errors.New("capture already stopped")
	}
	c.paused = true
	c.mu.Unlock()

	// The stream request is answered on the goroutine that delivers frames to
	// onPCM, so c.mu must not be held here.
	if c.stream != nil {
		c.stream.Stop()
		if err := c.stream.Error(); err != nil {
			return fmt.Errorf("pause record stream: %w", err)
		}
	}
	return nil
}

func (c *Capture) Resume() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return errors.New("capture already stopped")
	}
	c.paused = false
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Start()
		if err := c.stream.Error(); err != nil {
			return fmt.Errorf("resume record stream: %w", err)
		}
	}
	return nil
}

// Stop halts the stream and waits for in-flight writes.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()

	var streamErr error
	if c.stream != nil {
		c.stream.Stop()
		streamErr = c.stream.Error()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.inflight.Wait()
	return streamErr
}

// Finish stops the stream and finalizes the wav header.
func (c *Capture) Finish() (WAVInfo, error) {
	streamErr := c.Stop()

	info, err := c.closeSink()
	if err != nil {
		return WAVInfo{}, err
	}
	if streamErr != nil {
		return WAVInfo{}, fmt.Errorf("record stream: %w", streamErr)
	}
	return info, nil
}

// Abort stops the stream and deletes the partial file.
func (c *Capture) Abort() error {
	_ = c.Stop()
	_, _ = c.closeSink()
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (c *Capture) closeSink() (WAVInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finalized || c.sink == nil {
		return WAVInfo{}, errors.New("capture already finalized")
	}
	c.finalized = true
	return c.sink.Close()
}

// onPCM receives raw Pulse frames and appends them to the wav payload.
func (c *Capture) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	select {
	case <-c.stopCh:
		return 0, io.EOF
	default:
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Guard Add under the same mutex as c.stopped to avoid Add/Wait races.
	c.inflight.Add(1)
	defer c.inflight.Done()

	if c.paused || c.failed {
		c.mu.Unlock()
		return len(buffer), nil
	}

	n, err := c.sink.Write(buffer)
	c.bytes.Add(int64(n))
	if err != nil {
		c.failed = true
		c.mu.Unlock()
		if c.onError != nil {
			// Reported asynchronously: the handler stops this capture, which
			// waits for this callback to return.
			go c.onError(fmt.Errorf("write recording: %w", err))
		}
		return 0, err
	}
	c.mu.Unlock()
	return len(buffer), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
