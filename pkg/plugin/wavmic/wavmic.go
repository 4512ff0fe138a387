// Package wavmic provides a microphone that replays a WAV file in real
// time, for exercising the level meter without audio hardware.
package wavmic

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/chriscow/maya-go/pkg/ai/meter"
	"github.com/chriscow/maya-go/pkg/audio/wav"
	"github.com/chriscow/maya-go/pkg/plugin"
	"github.com/chriscow/maya-go/pkg/rtc"
)

// DefaultFrame is the replay period.
const DefaultFrame = 20 * time.Millisecond

// Microphone replays Path. With Loop set the file repeats until closed.
type Microphone struct {
	Path  string
	Loop  bool
	Frame time.Duration
}

// Open opens the file and starts replaying it.
func (m *Microphone) Open(ctx context.Context) (meter.Stream, error) {
	r, err := wav.Open(m.Path)
	if err != nil {
		return nil, err
	}
	frame := m.Frame
	if frame <= 0 {
		frame = DefaultFrame
	}

	s := &stream{
		frames: make(chan rtc.AudioFrame, 4),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.replay(r, frame, m.Loop)
	return s, nil
}

type stream struct {
	frames chan rtc.AudioFrame
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (s *stream) Frames() <-chan rtc.AudioFrame { return s.frames }

// Close stops the replay and waits for it to finish.
func (s *stream) Close() error {
	s.once.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

func (s *stream) replay(r *wav.Reader, d time.Duration, loop bool) {
	defer close(s.done)
	defer close(s.frames)
	defer r.Close()

	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		f, err := r.Next(d)
		if errors.Is(err, io.EOF) && loop {
			if r.Rewind() != nil {
				return
			}
			continue
		}
		if err != nil {
			return
		}

		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}
		// Frames are live audio; drop them when the meter falls behind.
		f.Timestamp = 0
		select {
		case s.frames <- f:
		default:
		}
	}
}

func init() {
	plugin.Register(&plugin.Plugin{
		Kind: plugin.KindMic,
		Name: "wav",
		Factory: func(cfg map[string]any) (any, error) {
			path := plugin.String(cfg, "path", "")
			if path == "" {
				return nil, errors.New("wav microphone requires a path")
			}
			loop, _ := cfg["loop"].(bool)
			return &Microphone{
				Path:  path,
				Loop:  loop,
				Frame: time.Duration(plugin.Int(cfg, "frame_ms", 20)) * time.Millisecond,
			}, nil
		},
		Description: "Replays a 16-bit PCM WAV file as microphone input",
		Version:     "1.0.0",
		Config: map[string]any{
			"path":     "WAV file to replay",
			"loop":     "repeat the file until the call ends",
			"frame_ms": 20,
		},
	})
}
