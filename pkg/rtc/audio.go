package rtc

import (
	"encoding/binary"
	"fmt"
	"time"
)

// AudioFrame is a chunk of interleaved 16-bit little-endian PCM captured from
// the microphone. Capture devices deliver whatever period they are configured
// for, so the frame length is not fixed; it only has to be a whole number of
// samples across all channels.
//
// A zero Timestamp means "live"; otherwise it is the offset from stream start.
type AudioFrame struct {
	Data              []byte        // 16-bit PCM, little-endian
	SampleRate        int           // e.g. 48 000, 16 000 or 8 000
	SamplesPerChannel int           // len(Data) / (NumChannels * 2)
	NumChannels       int           // 1 or 2
	Timestamp         time.Duration // optional
}

// NewAudioFrame creates a new AudioFrame and validates that data holds a
// whole number of 16-bit samples for every channel.
func NewAudioFrame(data []byte, sampleRate, numChannels int, timestamp time.Duration) (*AudioFrame, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if numChannels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", numChannels)
	}
	stride := numChannels * 2
	if len(data)%stride != 0 {
		return nil, fmt.Errorf("AudioFrame data length mismatch: %d bytes is not a multiple of %d for %d-channel PCM16",
			len(data), stride, numChannels)
	}

	return &AudioFrame{
		Data:              data,
		SampleRate:        sampleRate,
		SamplesPerChannel: len(data) / stride,
		NumChannels:       numChannels,
		Timestamp:         timestamp,
	}, nil
}

// Duration returns the duration represented by this frame.
func (f *AudioFrame) Duration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(f.SamplesPerChannel) * time.Second / time.Duration(f.SampleRate)
}

// MonoFloat32 downmixes the frame and scales every sample to [-1, 1).
func (f *AudioFrame) MonoFloat32() []float64 {
	channels := f.NumChannels
	if channels <= 0 {
		channels = 1
	}
	n := len(f.Data) / (2 * channels)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			off := (i*channels + c) * 2
			sum += float64(int16(binary.LittleEndian.Uint16(f.Data[off:])))
		}
		out[i] = sum / float64(channels) / 32768.0
	}
	return out
}
