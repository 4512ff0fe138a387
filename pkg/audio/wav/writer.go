package wav

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/chriscow/maya-go/pkg/rtc"
)

// Writer writes 16-bit PCM to a WAV stream. Sizes are patched on Close.
type Writer struct {
	dst         io.WriteSeeker
	sampleRate  int
	numChannels int
	dataSize    uint32
}

// NewWriter writes a header for the given format to dst.
func NewWriter(dst io.WriteSeeker, sampleRate, numChannels int) (*Writer, error) {
	w := &Writer{dst: dst, sampleRate: sampleRate, numChannels: numChannels}
	if err := w.writeHeader(); err != nil {
		return nil, fmt.Errorf("write wav header: %w", err)
	}
	return w, nil
}

// WriteFrame appends the frame's samples. The frame must match the
// writer's format.
func (w *Writer) WriteFrame(f rtc.AudioFrame) error {
	if f.SampleRate != w.sampleRate || f.NumChannels != w.numChannels {
		return fmt.Errorf("frame format %dHz/%dch does not match %dHz/%dch",
			f.SampleRate, f.NumChannels, w.sampleRate, w.numChannels)
	}
	n, err := w.dst.Write(f.Data)
	w.dataSize += uint32(n)
	return err
}

// Close patches the RIFF and data sizes. It does not close dst.
func (w *Writer) Close() error {
	if _, err := w.dst.Seek(4, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(w.dst, binary.LittleEndian, w.dataSize+36); err != nil {
		return err
	}
	if _, err := w.dst.Seek(40, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(w.dst, binary.LittleEndian, w.dataSize); err != nil {
		return err
	}
	_, err := w.dst.Seek(0, io.SeekEnd)
	return err
}

func (w *Writer) writeHeader() error {
	blockAlign := uint16(w.numChannels * 2)
	h := make([]byte, 0, 44)
	h = append(h, "RIFF"...)
	h = binary.LittleEndian.AppendUint32(h, 0)
	h = append(h, "WAVEfmt "...)
	h = binary.LittleEndian.AppendUint32(h, 16)
	h = binary.LittleEndian.AppendUint16(h, 1) // PCM
	h = binary.LittleEndian.AppendUint16(h, uint16(w.numChannels))
	h = binary.LittleEndian.AppendUint32(h, uint32(w.sampleRate))
	h = binary.LittleEndian.AppendUint32(h, uint32(w.sampleRate)*uint32(blockAlign))
	h = binary.LittleEndian.AppendUint16(h, blockAlign)
	h = binary.LittleEndian.AppendUint16(h, 16)
	h = append(h, "data"...)
	h = binary.LittleEndian.AppendUint32(h, 0)
	_, err := w.dst.Write(h)
	return err
}
