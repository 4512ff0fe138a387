// Package mic registers the local microphone, captured with malgo.
//go:build malgo

package mic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/chriscow/maya-go/pkg/ai"
	"github.com/chriscow/maya-go/pkg/ai/meter"
	"github.com/chriscow/maya-go/pkg/plugin"
	"github.com/chriscow/maya-go/pkg/rtc"
)

// Device captures mono PCM16 from the default input device.
type Device struct {
	SampleRate   int
	BufferFrames int
}

// Open starts capture. Initialization failures are reported as
// ai.ErrPermissionDenied since the platform does not tell them apart.
func (d Device) Open(ctx context.Context) (meter.Stream, error) {
	return Capture(d.SampleRate, d.BufferFrames)
}

// Stream is a running capture device.
type Stream struct {
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	frames   chan rtc.AudioFrame
	once     sync.Once
	mu       sync.RWMutex
	closed   bool
}

// Capture opens the default capture device at sampleRate.
func Capture(sampleRate, bufferFrames int) (*Stream, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if bufferFrames <= 0 {
		bufferFrames = sampleRate / 100
	}

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", ai.ErrCapabilityUnsupported)
	}

	s := &Stream{malgoCtx: malgoCtx, frames: make(chan rtc.AudioFrame, 32)}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(bufferFrames)

	start := time.Now()
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			data := make([]byte, len(input))
			copy(data, input)
			frame := rtc.AudioFrame{
				Data:              data,
				SampleRate:        sampleRate,
				SamplesPerChannel: int(frameCount),
				NumChannels:       1,
				Timestamp:         time.Since(start),
			}
			s.mu.RLock()
			defer s.mu.RUnlock()
			if s.closed {
				return
			}
			select {
			case s.frames <- frame:
			default:
			}
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
		return nil, fmt.Errorf("failed to initialize capture device (%v): %w", err, ai.ErrPermissionDenied)
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
		return nil, fmt.Errorf("failed to start capture device (%v): %w", err, ai.ErrPermissionDenied)
	}
	return s, nil
}

// Frames returns captured frames. Frames are dropped when the reader lags.
func (s *Stream) Frames() <-chan rtc.AudioFrame { return s.frames }

// Close stops capture and releases the device.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		if stopErr := s.device.Stop(); stopErr != nil {
			err = fmt.Errorf("failed to stop device: %w", stopErr)
		}
		s.device.Uninit()
		_ = s.malgoCtx.Uninit()
		s.malgoCtx.Free()

		s.mu.Lock()
		s.closed = true
		close(s.frames)
		s.mu.Unlock()
	})
	return err
}

func newMalgoMic(cfg map[string]any) (any, error) {
	return Device{
		SampleRate:   plugin.Int(cfg, "sample_rate", DefaultSampleRate),
		BufferFrames: plugin.Int(cfg, "buffer_frames", 0),
	}, nil
}

func init() {
	plugin.Register(&plugin.Plugin{
		Kind:        plugin.KindMic,
		Name:        "malgo",
		Factory:     newMalgoMic,
		Description: "Local microphone via miniaudio",
		Version:     "1.0.0",
		Config: map[string]any{
			"sample_rate":   DefaultSampleRate,
			"buffer_frames": "period size in frames (default 10ms)",
		},
	})
}
