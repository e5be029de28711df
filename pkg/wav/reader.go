package wav

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"satsim-server/pkg/signal"
)

// Reader provides streaming reads for 16-bit PCM WAV files.
type Reader struct {
	file          *os.File
	SampleRate    int
	Channels      int
	BitsPerSample int

	dataOffset int64
	dataSize   int64
	bytesRead  int64
}

// NewReader opens a WAV file for streaming reads.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	reader := &Reader{
		file: f,
	}

	if err := reader.parseHeader(); err != nil {
		f.Close()
		return nil, fmt.Errorf("invalid WAV file %s: %w", path, err)
	}
	return reader, nil
}

func (r *Reader) parseHeader() error {
	header := make([]byte, 12)
	if _, err := io.ReadFull(r.file, header); err != nil {
		return err
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return fmt.Errorf("missing RIFF/WAVE header")
	}

	var fmtFound bool
	var dataFound bool

	for !fmtFound || !dataFound {
		chunkHeader := make([]byte, 8)
		if _, err := io.ReadFull(r.file, chunkHeader); err != nil {
			return err
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch chunkID {
		case "fmt ":
			fmtChunk := make([]byte, chunkSize)
			if _, err := io.ReadFull(r.file, fmtChunk); err != nil {
				return err
			}
			audioFormat := binary.LittleEndian.Uint16(fmtChunk[0:2])
			if audioFormat != 1 {
				return fmt.Errorf("unsupported audio format: %d", audioFormat)
			}
			r.Channels = int(binary.LittleEndian.Uint16(fmtChunk[2:4]))
			r.SampleRate = int(binary.LittleEndian.Uint32(fmtChunk[4:8]))
			r.BitsPerSample = int(binary.LittleEndian.Uint16(fmtChunk[14:16]))
			if r.BitsPerSample != 16 {
				return fmt.Errorf("unsupported bits per sample: %d", r.BitsPerSample)
			}
			fmtFound = true

			// Skip any remaining fmt bytes
			if extra := int64(chunkSize) - 16; extra > 0 {
				if _, err := r.file.Seek(extra, io.SeekCurrent); err != nil {
					return err
				}
			}
		case "data":
			r.dataOffset, _ = r.file.Seek(0, io.SeekCurrent)
			r.dataSize = int64(chunkSize)
			if _, err := r.file.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				return err
			}
			dataFound = true
		default:
			if _, err := r.file.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				return err
			}
		}
	}

	if _, err := r.file.Seek(r.dataOffset, io.SeekStart); err != nil {
		return err
	}

	return nil
}

// ReadSamples reads up to maxSamples frames from the WAV file.
// Returns io.EOF when no samples remain.
func (r *Reader) ReadSamples(maxSamples int) ([]int16, error) {
	if r.bytesRead >= r.dataSize {
		return nil, io.EOF
	}

	if maxSamples <= 0 {
		maxSamples = 1024
	}

	bytesPerFrame := r.Channels * (r.BitsPerSample / 8)
	remainingFrames := int((r.dataSize - r.bytesRead) / int64(bytesPerFrame))
	if remainingFrames <= 0 {
		return nil, io.EOF
	}

	if maxSamples > remainingFrames {
		maxSamples = remainingFrames
	}

	readBuffer := make([]byte, maxSamples*bytesPerFrame)
	n, err := io.ReadFull(r.file, readBuffer)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	if n == 0 {
		return nil, io.EOF
	}
	r.bytesRead += int64(n)

	frameCount := n / bytesPerFrame
	samples := make([]int16, frameCount*r.Channels)
	for i := 0; i < frameCount*r.Channels; i++ {
		byteIdx := i * 2
		samples[i] = int16(binary.LittleEndian.Uint16(readBuffer[byteIdx : byteIdx+2]))
	}

	return samples, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// Decode reads an entire 16-bit PCM WAV file into a normalized signal
// buffer. Multi-channel files are downmixed to mono by averaging
// channels, since the degradation pipeline and the evaluation metrics
// operate on mono signals.
func Decode(path string) (signal.Buffer, error) {
	reader, err := NewReader(path)
	if err != nil {
		return signal.Buffer{}, err
	}
	defer reader.Close()

	var pcm []int16
	for {
		chunk, err := reader.ReadSamples(4096)
		if err == io.EOF {
			break
		}
		if err != nil {
			return signal.Buffer{}, err
		}
		pcm = append(pcm, chunk...)
	}

	if reader.Channels > 1 {
		pcm = downmix(pcm, reader.Channels)
	}

	return signal.FromPCM16(pcm, reader.SampleRate)
}

func downmix(pcm []int16, channels int) []int16 {
	frames := len(pcm) / channels
	mono := make([]int16, frames)
	for f := 0; f < frames; f++ {
		var sum int
		for c := 0; c < channels; c++ {
			sum += int(pcm[f*channels+c])
		}
		mono[f] = int16(sum / channels)
	}
	return mono
}
