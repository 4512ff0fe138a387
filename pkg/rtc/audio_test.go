package rtc

import (
	"encoding/binary"
	"testing"
	"time"
)

func TestNewAudioFrame(t *testing.T) {
	tests := []struct {
		name        string
		sampleRate  int
		numChannels int
		dataLen     int
		wantErr     bool
		wantSamples int
	}{
		{name: "valid 48kHz mono 10ms", sampleRate: 48000, numChannels: 1, dataLen: 960, wantSamples: 480},
		{name: "valid 16kHz mono 20ms", sampleRate: 16000, numChannels: 1, dataLen: 640, wantSamples: 320},
		{name: "valid 48kHz stereo", sampleRate: 48000, numChannels: 2, dataLen: 1920, wantSamples: 480},
		{name: "odd byte count", sampleRate: 48000, numChannels: 1, dataLen: 501, wantErr: true},
		{name: "stereo misaligned", sampleRate: 48000, numChannels: 2, dataLen: 6, wantErr: true},
		{name: "zero sample rate", sampleRate: 0, numChannels: 1, dataLen: 2, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := NewAudioFrame(make([]byte, tt.dataLen), tt.sampleRate, tt.numChannels, 100*time.Millisecond)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NewAudioFrame() should have returned an error but didn't")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewAudioFrame() unexpected error: %v", err)
			}
			if frame.SamplesPerChannel != tt.wantSamples {
				t.Errorf("SamplesPerChannel = %d, want %d", frame.SamplesPerChannel, tt.wantSamples)
			}
			if frame.Timestamp != 100*time.Millisecond {
				t.Errorf("Timestamp = %v, want 100ms", frame.Timestamp)
			}
		})
	}
}

func TestAudioFrame_Duration(t *testing.T) {
	frame, err := NewAudioFrame(make([]byte, 960), 48000, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := frame.Duration(); got != 10*time.Millisecond {
		t.Errorf("Duration() = %v, want 10ms", got)
	}
}

func TestAudioFrame_MonoFloat32(t *testing.T) {
	data := make([]byte, 8)
	// two stereo samples: (16384, -16384) and (32767, 32767)
	binary.LittleEndian.PutUint16(data[0:], uint16(int16(16384)))
	v := int16(-16384)
	binary.LittleEndian.PutUint16(data[2:], uint16(v))
	binary.LittleEndian.PutUint16(data[4:], uint16(int16(32767)))
	binary.LittleEndian.PutUint16(data[6:], uint16(int16(32767)))

	frame, err := NewAudioFrame(data, 16000, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	got := frame.MonoFloat32()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0] != 0 {
		t.Errorf("first sample = %v, want 0", got[0])
	}
	if got[1] < 0.99 || got[1] >= 1 {
		t.Errorf("second sample = %v, want ~1", got[1])
	}
}
