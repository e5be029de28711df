package wav

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satsim-server/pkg/signal"
)

func tone(durationS float64, sampleRate int) signal.Buffer {
	n := int(durationS * float64(sampleRate))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate))
	}
	return signal.Buffer{Samples: samples, SampleRate: sampleRate}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roundtrip.wav")
	original := tone(0.25, 16000)

	require.NoError(t, Encode(path, original))

	decoded, err := Decode(path)
	require.NoError(t, err)

	assert.Equal(t, original.SampleRate, decoded.SampleRate)
	require.Equal(t, original.Len(), decoded.Len())

	// 16-bit quantization bounds the per-sample error.
	for i := range original.Samples {
		assert.InDelta(t, original.Samples[i], decoded.Samples[i], 1.0/32768.0+1e-9)
	}
}

func TestDecode_ReportsFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "format.wav")
	require.NoError(t, Encode(path, tone(0.1, 8000)))

	reader, err := NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, 8000, reader.SampleRate)
	assert.Equal(t, 1, reader.Channels)
	assert.Equal(t, 16, reader.BitsPerSample)
}

func TestDecode_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.wav")
	require.NoError(t, os.WriteFile(path, []byte("this is not a wav file at all"), 0o644))

	_, err := Decode(path)
	require.Error(t, err)
}

func TestDecode_MissingFile(t *testing.T) {
	_, err := Decode(filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)
}

func TestDownmix(t *testing.T) {
	stereo := []int16{100, 200, -100, 100, 0, 0}
	mono := downmix(stereo, 2)

	require.Len(t, mono, 3)
	assert.Equal(t, int16(150), mono[0])
	assert.Equal(t, int16(0), mono[1])
	assert.Equal(t, int16(0), mono[2])
}
