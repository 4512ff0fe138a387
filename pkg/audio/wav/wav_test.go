package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/chriscow/maya-go/pkg/rtc"
)

// tone is a 440 Hz sine at half scale on every channel.
func tone(rate, channels int, d time.Duration) rtc.AudioFrame {
	samples := int(time.Duration(rate) * d / time.Second)
	data := make([]byte, 0, samples*channels*2)
	for i := 0; i < samples; i++ {
		s := int16(math.Sin(2*math.Pi*440*float64(i)/float64(rate)) * 0.5 * math.MaxInt16)
		for ch := 0; ch < channels; ch++ {
			data = binary.LittleEndian.AppendUint16(data, uint16(s))
		}
	}
	return rtc.AudioFrame{Data: data, SampleRate: rate, NumChannels: channels, SamplesPerChannel: samples}
}

func writeTone(t *testing.T, rate, channels int, d time.Duration) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w, err := NewWriter(f, rate, channels)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFrame(tone(rate, channels, d)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReader_Frames(t *testing.T) {
	is := is.New(t)
	r, err := Open(writeTone(t, 16000, 1, time.Second))
	is.NoErr(err)
	defer r.Close()

	h := r.Header()
	is.Equal(h.SampleRate, 16000)
	is.Equal(h.NumChannels, 1)
	is.Equal(h.BitsPerSample, 16)
	is.Equal(h.DataSize, uint32(32000))
	is.Equal(h.Duration(), time.Second)

	var frames []rtc.AudioFrame
	for {
		f, err := r.Next(20 * time.Millisecond)
		if errors.Is(err, io.EOF) {
			break
		}
		is.NoErr(err)
		frames = append(frames, f)
	}
	is.Equal(len(frames), 50)
	is.Equal(frames[0].SamplesPerChannel, 320)
	is.Equal(len(frames[0].Data), 640)
	is.Equal(frames[0].Timestamp, time.Duration(0))
	is.Equal(frames[1].Timestamp, 20*time.Millisecond)
	is.True(frames[1].Duration() == 20*time.Millisecond)
}

func TestReader_PadsLastFrame(t *testing.T) {
	is := is.New(t)
	r, err := Open(writeTone(t, 8000, 2, 25*time.Millisecond))
	is.NoErr(err)
	defer r.Close()

	_, err = r.Next(20 * time.Millisecond)
	is.NoErr(err)
	last, err := r.Next(20 * time.Millisecond)
	is.NoErr(err)
	is.Equal(len(last.Data), 160*2*2)
	is.True(bytes.Equal(last.Data[40*2*2:], make([]byte, 120*2*2))) // zero tail

	_, err = r.Next(20 * time.Millisecond)
	is.True(errors.Is(err, io.EOF))
}

func TestReader_Rewind(t *testing.T) {
	is := is.New(t)
	r, err := Open(writeTone(t, 16000, 1, 40*time.Millisecond))
	is.NoErr(err)
	defer r.Close()

	first, err := r.Next(20 * time.Millisecond)
	is.NoErr(err)
	_, _ = r.Next(20 * time.Millisecond)
	_, err = r.Next(20 * time.Millisecond)
	is.True(errors.Is(err, io.EOF))

	is.NoErr(r.Rewind())
	again, err := r.Next(20 * time.Millisecond)
	is.NoErr(err)
	is.True(bytes.Equal(first.Data, again.Data))
	is.Equal(again.Timestamp, time.Duration(0))
}

func TestReader_Invalid(t *testing.T) {
	is := is.New(t)
	_, err := NewReader(bytes.NewReader([]byte("not a wav file at all")))
	is.True(err != nil)

	_, err = Open(filepath.Join(t.TempDir(), "missing.wav"))
	is.True(err != nil)
}

func TestWriter_FrameFormatMismatch(t *testing.T) {
	is := is.New(t)
	f, err := os.Create(filepath.Join(t.TempDir(), "out.wav"))
	is.NoErr(err)
	defer f.Close()

	w, err := NewWriter(f, 16000, 1)
	is.NoErr(err)
	err = w.WriteFrame(rtc.AudioFrame{Data: make([]byte, 4), SampleRate: 48000, NumChannels: 1, SamplesPerChannel: 2})
	is.True(err != nil)
	is.NoErr(w.WriteFrame(rtc.AudioFrame{Data: make([]byte, 4), SampleRate: 16000, NumChannels: 1, SamplesPerChannel: 2}))
	is.NoErr(w.Close())
}
