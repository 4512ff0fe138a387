package fake

import (
	"context"
	"encoding/binary"
	"math"
	"sync"

	"github.com/chriscow/maya-go/pkg/ai"
	"github.com/chriscow/maya-go/pkg/ai/meter"
	"github.com/chriscow/maya-go/pkg/rtc"
)

// FakeDevice is a fake microphone for testing. Frames pushed with Push are
// delivered to the currently open stream.
type FakeDevice struct {
	// Deny makes Open fail with ai.ErrPermissionDenied.
	Deny bool

	mu     sync.Mutex
	stream *FakeStream
	opens  int
	closes int
}

// NewFakeDevice creates a new fake microphone that grants access.
func NewFakeDevice() *FakeDevice {
	return &FakeDevice{}
}

// Open returns a new stream unless Deny is set.
func (d *FakeDevice) Open(ctx context.Context) (meter.Stream, error) {
	if d.Deny {
		return nil, ai.ErrPermissionDenied
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++
	d.stream = &FakeStream{
		frames: make(chan rtc.AudioFrame, 16),
		done:   make(chan struct{}),
		device: d,
	}
	return d.stream, nil
}

// Push delivers a frame to the open stream. It is dropped if no stream is
// open or the buffer is full.
func (d *FakeDevice) Push(frame rtc.AudioFrame) {
	d.mu.Lock()
	s := d.stream
	d.mu.Unlock()
	if s == nil {
		return
	}
	select {
	case <-s.done:
	case s.frames <- frame:
	default:
	}
}

// Opens returns how many streams were opened.
func (d *FakeDevice) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Closes returns how many streams were closed.
func (d *FakeDevice) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// Held reports whether a stream is currently open.
func (d *FakeDevice) Held() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stream != nil
}

// FakeStream is the stream returned by FakeDevice.
type FakeStream struct {
	frames chan rtc.AudioFrame
	done   chan struct{}
	once   sync.Once
	device *FakeDevice
}

// Frames returns the frame channel.
func (s *FakeStream) Frames() <-chan rtc.AudioFrame {
	return s.frames
}

// Close releases the fake device.
func (s *FakeStream) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.device.mu.Lock()
		s.device.closes++
		if s.device.stream == s {
			s.device.stream = nil
		}
		s.device.mu.Unlock()
	})
	return nil
}

// SineFrame generates a 10ms mono 16 kHz sine frame at the given amplitude.
func SineFrame(frequency, amplitude float64, offset int) rtc.AudioFrame {
	const sampleRate = 16000
	n := sampleRate / 100
	data := make([]byte, n*2)
	for i := 0; i < n; i++ {
		s := amplitude * math.Sin(2*math.Pi*frequency*float64(offset+i)/sampleRate)
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(s*32767)))
	}
	return rtc.AudioFrame{
		Data:              data,
		SampleRate:        sampleRate,
		SamplesPerChannel: n,
		NumChannels:       1,
	}
}
