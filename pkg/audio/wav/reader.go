// Package wav reads and writes 16-bit PCM WAV files as audio frames.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chriscow/maya-go/pkg/rtc"
)

// Header describes the PCM stream of a WAV file.
type Header struct {
	SampleRate    int
	NumChannels   int
	BitsPerSample int
	DataSize      uint32
}

// Duration returns the playing time of the data chunk.
func (h Header) Duration() time.Duration {
	bytesPerSec := h.SampleRate * h.NumChannels * h.BitsPerSample / 8
	if bytesPerSec == 0 {
		return 0
	}
	return time.Duration(h.DataSize) * time.Second / time.Duration(bytesPerSec)
}

// Reader yields fixed-length frames from a WAV stream.
type Reader struct {
	src     io.ReadSeeker
	closer  io.Closer
	header  Header
	start   int64
	read    uint32
	elapsed time.Duration
}

// Open opens the WAV file at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader parses the header of src and positions it at the first sample.
func NewReader(src io.ReadSeeker) (*Reader, error) {
	r := &Reader{src: src}
	if err := r.readHeader(); err != nil {
		return nil, fmt.Errorf("read wav header: %w", err)
	}
	pos, err := src.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	r.start = pos
	return r, nil
}

// Header returns the stream format.
func (r *Reader) Header() Header { return r.header }

// Next returns the next frame of length d. The last frame is zero padded.
// It returns io.EOF once the data chunk is exhausted.
func (r *Reader) Next(d time.Duration) (rtc.AudioFrame, error) {
	samples := int(time.Duration(r.header.SampleRate) * d / time.Second)
	if samples < 1 {
		samples = 1
	}
	size := samples * r.header.NumChannels * 2
	remaining := r.header.DataSize - r.read
	if remaining == 0 {
		return rtc.AudioFrame{}, io.EOF
	}

	buf := make([]byte, size)
	want := size
	if uint32(want) > remaining {
		want = int(remaining)
	}
	n, err := io.ReadFull(r.src, buf[:want])
	if n == 0 {
		if err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return rtc.AudioFrame{}, err
	}
	r.read += uint32(n)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		// Truncated file; stop after this frame.
		r.read = r.header.DataSize
	} else if err != nil {
		return rtc.AudioFrame{}, fmt.Errorf("read wav data: %w", err)
	}

	frame := rtc.AudioFrame{
		Data:              buf,
		SampleRate:        r.header.SampleRate,
		SamplesPerChannel: samples,
		NumChannels:       r.header.NumChannels,
		Timestamp:         r.elapsed,
	}
	r.elapsed += d
	return frame, nil
}

// Rewind moves back to the first sample.
func (r *Reader) Rewind() error {
	if _, err := r.src.Seek(r.start, io.SeekStart); err != nil {
		return err
	}
	r.read = 0
	r.elapsed = 0
	return nil
}

// Close closes the underlying file when the reader opened it.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func (r *Reader) readHeader() error {
	var riff [12]byte
	if _, err := io.ReadFull(r.src, riff[:]); err != nil {
		return fmt.Errorf("riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return errors.New("not a RIFF/WAVE file")
	}

	var haveFmt bool
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r.src, chunk[:]); err != nil {
			return fmt.Errorf("chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return fmt.Errorf("fmt chunk too small: %d bytes", size)
			}
			var f [16]byte
			if _, err := io.ReadFull(r.src, f[:]); err != nil {
				return fmt.Errorf("fmt chunk: %w", err)
			}
			if format := binary.LittleEndian.Uint16(f[0:2]); format != 1 {
				return fmt.Errorf("only PCM is supported, got format %d", format)
			}
			r.header.NumChannels = int(binary.LittleEndian.Uint16(f[2:4]))
			r.header.SampleRate = int(binary.LittleEndian.Uint32(f[4:8]))
			r.header.BitsPerSample = int(binary.LittleEndian.Uint16(f[14:16]))
			if err := r.skip(int64(size) - 16); err != nil {
				return err
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return errors.New("data chunk before fmt chunk")
			}
			r.header.DataSize = size
			return r.validate()
		default:
			if err := r.skip(int64(size)); err != nil {
				return err
			}
		}
	}
}

func (r *Reader) skip(n int64) error {
	// Chunks are word aligned.
	if n%2 == 1 {
		n++
	}
	if n <= 0 {
		return nil
	}
	_, err := r.src.Seek(n, io.SeekCurrent)
	return err
}

func (r *Reader) validate() error {
	if r.header.BitsPerSample != 16 {
		return fmt.Errorf("only 16-bit samples are supported, got %d-bit", r.header.BitsPerSample)
	}
	if r.header.NumChannels != 1 && r.header.NumChannels != 2 {
		return fmt.Errorf("only mono and stereo are supported, got %d channels", r.header.NumChannels)
	}
	if r.header.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", r.header.SampleRate)
	}
	return nil
}
