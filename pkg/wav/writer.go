package wav

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"satsim-server/pkg/signal"
)

// Writer writes PCM samples into a mono 16-bit WAV container.
type Writer struct {
	file          *os.File
	sampleRate    int
	bytesWritten  uint32
	headerWritten bool
	finalized     bool
}

// NewWriter creates a WAV writer and writes an initial header.
func NewWriter(file *os.File, sampleRate int) (*Writer, error) {
	if file == nil {
		return nil, fmt.Errorf("nil file provided for WAV writer")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate for WAV writer: %d", sampleRate)
	}

	writer := &Writer{
		file:       file,
		sampleRate: sampleRate,
	}

	if err := writer.writeHeader(); err != nil {
		return nil, err
	}
	return writer, nil
}

// WriteSamples appends PCM samples to the WAV file.
func (w *Writer) WriteSamples(pcm []int16) error {
	buf := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}

	n, err := w.file.Write(buf)
	w.bytesWritten += uint32(n)
	return err
}

// Finalize updates the WAV header with the final data sizes.
func (w *Writer) Finalize() error {
	if w.finalized {
		return nil
	}
	if err := w.updateSizes(); err != nil {
		return err
	}
	w.finalized = true
	return nil
}

func (w *Writer) writeHeader() error {
	header := make([]byte, 44)

	copy(header[0:], []byte("RIFF"))
	// ChunkSize placeholder, updated in Finalize
	binary.LittleEndian.PutUint32(header[4:], 36)
	copy(header[8:], []byte("WAVE"))
	copy(header[12:], []byte("fmt "))
	// Subchunk1Size (16 for PCM)
	binary.LittleEndian.PutUint32(header[16:], 16)
	// AudioFormat (1 = PCM)
	binary.LittleEndian.PutUint16(header[20:], 1)
	// NumChannels (mono)
	binary.LittleEndian.PutUint16(header[22:], 1)
	binary.LittleEndian.PutUint32(header[24:], uint32(w.sampleRate))
	// ByteRate = SampleRate * NumChannels * BitsPerSample/8
	binary.LittleEndian.PutUint32(header[28:], uint32(w.sampleRate*2))
	// BlockAlign
	binary.LittleEndian.PutUint16(header[32:], 2)
	// BitsPerSample
	binary.LittleEndian.PutUint16(header[34:], 16)
	copy(header[36:], []byte("data"))
	// Subchunk2Size placeholder
	binary.LittleEndian.PutUint32(header[40:], 0)

	if _, err := w.file.Write(header); err != nil {
		return err
	}
	w.headerWritten = true
	return nil
}

func (w *Writer) updateSizes() error {
	if _, err := w.file.Seek(4, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(w.file, binary.LittleEndian, w.bytesWritten+36); err != nil {
		return err
	}
	if _, err := w.file.Seek(40, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(w.file, binary.LittleEndian, w.bytesWritten); err != nil {
		return err
	}
	if _, err := w.file.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	return nil
}

// Encode writes an entire signal buffer to a 16-bit PCM WAV file,
// clamping samples to full scale during conversion.
func Encode(path string, buf signal.Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	writer, err := NewWriter(f, buf.SampleRate)
	if err != nil {
		return err
	}
	if err := writer.WriteSamples(buf.ToPCM16()); err != nil {
		return err
	}
	return writer.Finalize()
}
