package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	wavHeaderSize    = 44
	wavBitsPerSample = 16
	wavFormatPCM     = 1
)

var ErrUnsupportedWAV = errors.New("unsupported wav file")

// WAVInfo describes the PCM payload of a 16-bit wav file.
type WAVInfo struct {
	SampleRate int
	Channels   int
	DataOffset int64
	DataBytes  int64
}

func (i WAVInfo) frameSize() int64 {
	return int64(i.Channels) * wavBitsPerSample / 8
}

func (i WAVInfo) Frames() int64 {
	if i.Channels <= 0 {
		return 0
	}
	return i.DataBytes / i.frameSize()
}

func (i WAVInfo) Duration() time.Duration {
	if i.SampleRate <= 0 {
		return 0
	}
	return time.Duration(i.Frames()) * time.Second / time.Duration(i.SampleRate)
}

// encodeWAVHeader builds the canonical 44-byte PCM16 header.
func encodeWAVHeader(sampleRate int, channels int, dataBytes uint32) []byte {
	byteRate := sampleRate * channels * (wavBitsPerSample / 8)
	blockAlign := channels * (wavBitsPerSample / 8)

	header := make([]byte, wavHeaderSize)
	copy(header[0:4], []byte("RIFF"))
	binary.LittleEndian.PutUint32(header[4:8], 36+dataBytes)
	copy(header[8:12], []byte("WAVE"))
	copy(header[12:16], []byte("fmt "))
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], wavBitsPerSample)
	copy(header[36:40], []byte("data"))
	binary.LittleEndian.PutUint32(header[40:44], dataBytes)
	return header
}

// WAVWriter streams PCM16 frames to disk. Sizes in the header are patched on
// Close, so the file is only valid once Close returns.
type WAVWriter struct {
	file       *os.File
	sampleRate int
	channels   int
	dataBytes  int64
}

func CreateWAV(path string, sampleRate int, channels int) (*WAVWriter, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid wav format %d Hz x %d channels", sampleRate, channels)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create wav %q: %w", path, err)
	}
	if _, err := file.Write(encodeWAVHeader(sampleRate, channels, 0)); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("write wav header: %w", err)
	}
	return &WAVWriter{file: file, sampleRate: sampleRate, channels: channels}, nil
}

func (w *WAVWriter) Write(pcm []byte) (int, error) {
	n, err := w.file.Write(pcm)
	w.dataBytes += int64(n)
	return n, err
}

func (w *WAVWriter) Close() (WAVInfo, error) {
	info := WAVInfo{
		SampleRate: w.sampleRate,
		Channels:   w.channels,
		DataOffset: wavHeaderSize,
		DataBytes:  w.dataBytes,
	}
	if w.dataBytes > int64(^uint32(0))-36 {
		_ = w.file.Close()
		return WAVInfo{}, fmt.Errorf("wav data exceeds 4GiB")
	}

	if _, err := w.file.WriteAt(encodeWAVHeader(w.sampleRate, w.channels, uint32(w.dataBytes)), 0); err != nil {
		_ = w.file.Close()
		return WAVInfo{}, fmt.Errorf("finalize wav header: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return WAVInfo{}, fmt.Errorf("sync wav: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return WAVInfo{}, fmt.Errorf("close wav: %w", err)
	}
	return info, nil
}

// ProbeWAV reads the format and payload size of the wav file at path.
func ProbeWAV(path string) (WAVInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return WAVInfo{}, err
	}
	defer file.Close()

	return readWAVInfo(file)
}

func readWAVInfo(r io.ReadSeeker) (WAVInfo, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return WAVInfo{}, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return WAVInfo{}, err
	}

	riff := make([]byte, 12)
	if _, err := io.ReadFull(r, riff); err != nil {
		return WAVInfo{}, fmt.Errorf("%w: short header", ErrUnsupportedWAV)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return WAVInfo{}, fmt.Errorf("%w: missing RIFF/WAVE marker", ErrUnsupportedWAV)
	}

	var info WAVInfo
	haveFormat := false
	offset := int64(12)
	chunk := make([]byte, 8)
	for offset+8 <= size {
		if _, err := r.Seek(offset, io.SeekStart); err != nil {
			return WAVInfo{}, err
		}
		if _, err := io.ReadFull(r, chunk); err != nil {
			return WAVInfo{}, fmt.Errorf("%w: truncated chunk", ErrUnsupportedWAV)
		}
		id := string(chunk[0:4])
		chunkSize := int64(binary.LittleEndian.Uint32(chunk[4:8]))
		body := offset + 8

		switch id {
		case "fmt ":
			format := make([]byte, 16)
			if chunkSize < 16 {
				return WAVInfo{}, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedWAV)
			}
			if _, err := io.ReadFull(r, format); err != nil {
				return WAVInfo{}, fmt.Errorf("%w: truncated fmt chunk", ErrUnsupportedWAV)
			}
			if binary.LittleEndian.Uint16(format[0:2]) != wavFormatPCM {
				return WAVInfo{}, fmt.Errorf("%w: not PCM", ErrUnsupportedWAV)
			}
			if bits := binary.LittleEndian.Uint16(format[14:16]); bits != wavBitsPerSample {
				return WAVInfo{}, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedWAV, bits)
			}
			info.Channels = int(binary.LittleEndian.Uint16(format[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(format[4:8]))
			haveFormat = true
		case "data":
			if !haveFormat {
				return WAVInfo{}, fmt.Errorf("%w: data before fmt", ErrUnsupportedWAV)
			}
			info.DataOffset = body
			info.DataBytes = chunkSize
			// Recordings that were never finalized carry a zero size.
			if remaining := size - body; chunkSize == 0 || chunkSize > remaining {
				info.DataBytes = remaining
			}
			if info.Channels <= 0 || info.SampleRate <= 0 {
				return WAVInfo{}, fmt.Errorf("%w: invalid format", ErrUnsupportedWAV)
			}
			info.DataBytes -= info.DataBytes % info.frameSize()
			return info, nil
		}

		offset = body + chunkSize + chunkSize%2
	}
	return WAVInfo{}, fmt.Errorf("%w: no data chunk", ErrUnsupportedWAV)
}

// WAVReader reads PCM16 samples from a wav file.
type WAVReader struct {
	file      *os.File
	info      WAVInfo
	remaining int64
	buf       []byte
}

func OpenWAV(path string) (*WAVReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav %q: %w", path, err)
	}
	info, err := readWAVInfo(file)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("read wav %q: %w", path, err)
	}
	reader := &WAVReader{file: file, info: info}
	if err := reader.Seek(0); err != nil {
		_ = file.Close()
		return nil, err
	}
	return reader, nil
}

func (r *WAVReader) Info() WAVInfo {
	return r.info
}

// Seek positions the reader at offset from the start of the audio, clamped
// to the payload.
func (r *WAVReader) Seek(offset time.Duration) error {
	frame := int64(0)
	if offset > 0 {
		frame = int64(offset) * int64(r.info.SampleRate) / int64(time.Second)
	}
	frame = min(frame, r.info.Frames())

	start := frame * r.info.frameSize()
	if _, err := r.file.Seek(r.info.DataOffset+start, io.SeekStart); err != nil {
		return fmt.Errorf("seek wav: %w", err)
	}
	r.remaining = r.info.DataBytes - start
	return nil
}

// ReadInt16 fills buf with interleaved samples and returns io.EOF once the
// payload is exhausted.
func (r *WAVReader) ReadInt16(buf []int16) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}

	want := min(int64(len(buf))*2, r.remaining)
	if cap(r.buf) < int(want) {
		r.buf = make([]byte, want)
	}
	raw := r.buf[:want]

	n, err := io.ReadFull(r.file, raw)
	n -= n % 2
	for i := 0; i < n/2; i++ {
		buf[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	r.remaining -= int64(n)

	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			r.remaining = 0
			if n == 0 {
				return 0, io.EOF
			}
			return n / 2, nil
		}
		return n / 2, err
	}
	return n / 2, nil
}

func (r *WAVReader) Close() error {
	return r.file.Close()
}
