//go:build malgo

package openai

import (
	"context"
	"fmt"
	"io"

	"github.com/gen2brain/malgo"

	"github.com/chriscow/maya-go/pkg/ai"
)

// speakerPlayer plays through the default output device.
type speakerPlayer struct{}

func newPlayer() (Player, error) { return speakerPlayer{}, nil }

func (speakerPlayer) Play(ctx context.Context, pcm io.Reader) error {
	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", ai.ErrCapabilityUnsupported)
	}
	defer func() {
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
	}()

	q := newPCMQueue()
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = SpeechSampleRate
	callbacks := malgo.DeviceCallbacks{
		Data: func(output, _ []byte, _ uint32) { q.read(output) },
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	defer device.Uninit()

	go q.fill(pcm)
	if err := device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	select {
	case <-q.done():
	case <-ctx.Done():
	}
	if err := device.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}
	return q.Err()
}
