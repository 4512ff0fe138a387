// Package meter turns a live microphone stream into a continuously updating
// loudness value in [0, 1] for call visualizations.
package meter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chriscow/maya-go/pkg/ai"
	"github.com/chriscow/maya-go/pkg/rtc"
)

var (
	// ErrReleased is returned when acquiring a meter that was already released.
	ErrReleased = errors.New("meter already released")
	// ErrAlreadyAcquired is returned when Acquire is called twice.
	ErrAlreadyAcquired = errors.New("meter already acquired")
)

// Device opens the microphone. Implementations return ai.ErrPermissionDenied
// (possibly wrapped) when the user rejects access.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an open microphone. It holds the device exclusively until closed.
type Stream interface {
	Frames() <-chan rtc.AudioFrame
	Close() error
}

// Config controls the sampling loop.
type Config struct {
	TickInterval time.Duration // one sample per tick, ~60 Hz by default
	FFTSize      int
	Smoothing    float64
}

// DefaultConfig returns the browser-equivalent analyser settings.
func DefaultConfig() Config {
	return Config{
		TickInterval: 16 * time.Millisecond,
		FFTSize:      256,
		Smoothing:    0.8,
	}
}

// Meter samples microphone loudness. A Meter is single use: once released
// it cannot be acquired again.
type Meter struct {
	device Device
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	stream   Stream
	cancel   context.CancelFunc
	done     chan struct{}
	acquired bool
	released bool

	level  atomic.Uint64
	levels chan float64
}

// New creates a meter over the given device.
func New(device Device, cfg Config, logger *slog.Logger) *Meter {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Meter{
		device: device,
		cfg:    cfg,
		logger: logger,
		levels: make(chan float64, 1),
	}
}

// Acquire opens the microphone and starts the sampling loop.
func (m *Meter) Acquire(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.released {
		return ErrReleased
	}
	if m.acquired {
		return ErrAlreadyAcquired
	}
	if m.device == nil {
		return fmt.Errorf("no microphone device: %w", ai.ErrCapabilityUnsupported)
	}

	stream, err := m.device.Open(ctx)
	if err != nil {
		return fmt.Errorf("open microphone: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	m.stream = stream
	m.cancel = cancel
	m.done = make(chan struct{})
	m.acquired = true

	go m.sample(loopCtx, stream.Frames(), NewAnalyser(m.cfg.FFTSize, m.cfg.Smoothing))

	m.logger.Debug("Microphone acquired", slog.Duration("tick", m.cfg.TickInterval))
	return nil
}

// Level returns the most recent loudness sample.
func (m *Meter) Level() float64 {
	return math.Float64frombits(m.level.Load())
}

// Levels returns the sample sequence. Slow readers miss samples rather than
// stalling the loop. The channel is closed on Release.
func (m *Meter) Levels() <-chan float64 {
	return m.levels
}

// Release stops the sampling loop, then closes the microphone stream.
// It is safe to call more than once and on a meter that was never acquired.
func (m *Meter) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.released {
		return nil
	}
	m.released = true

	if !m.acquired {
		close(m.levels)
		return nil
	}

	m.cancel()
	<-m.done

	var err error
	if m.stream != nil {
		if cerr := m.stream.Close(); cerr != nil {
			m.logger.Warn("Failed to close microphone stream", slog.String("error", cerr.Error()))
			err = cerr
		}
		m.stream = nil
	}
	m.level.Store(0)
	return err
}

func (m *Meter) sample(ctx context.Context, frames <-chan rtc.AudioFrame, analyser *Analyser) {
	defer close(m.done)
	defer close(m.levels)

	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				// Device went away; keep ticking on the last window until released.
				frames = nil
				continue
			}
			analyser.Push(frame.MonoFloat32())
		case <-ticker.C:
			level := analyser.Level()
			m.level.Store(math.Float64bits(level))
			select {
			case m.levels <- level:
			default:
			}
		}
	}
}
