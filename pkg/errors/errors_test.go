package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New("something broke")
	assert.Equal(t, "something broke", err.Error())
	assert.NotEmpty(t, err.Location())
}

func TestWrap(t *testing.T) {
	base := stderrors.New("connection refused")
	err := Wrap(base, "failed to publish report")

	assert.Contains(t, err.Error(), "failed to publish report")
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, Is(err, base))

	assert.Nil(t, Wrap(nil, "never happens"))
}

func TestWithField(t *testing.T) {
	err := New("bad value").WithField("field", "noise_level")
	withMore := err.WithField("value", -0.5)

	assert.Len(t, err.GetFields(), 1, "WithField must not mutate the original")
	assert.Len(t, withMore.GetFields(), 2)
	assert.Equal(t, "noise_level", withMore.GetFields()["field"])
	assert.Contains(t, withMore.Error(), "noise_level")
}

func TestWithFields(t *testing.T) {
	err := New("bad value").WithFields(map[string]interface{}{
		"a": 1,
		"b": 2,
	})
	assert.Len(t, err.GetFields(), 2)
}

func TestNewInvalidConfig(t *testing.T) {
	err := NewInvalidConfig("packet_loss_rate", 1.5, "must be within [0, 1]")

	assert.True(t, Is(err, ErrInvalidConfig))
	assert.Contains(t, err.Error(), "must be within [0, 1]")
	assert.Equal(t, "packet_loss_rate", err.GetFields()["field"])
	assert.Equal(t, 1.5, err.GetFields()["value"])
}

func TestNewEmptySignal(t *testing.T) {
	err := NewEmptySignal("reference")

	assert.True(t, Is(err, ErrEmptySignal))
	assert.Equal(t, "reference", err.GetFields()["signal"])
}

func TestAs(t *testing.T) {
	var structured *Error
	err := Wrap(ErrUnsupportedSampleRate, "metric rejected input")

	require.True(t, As(err, &structured))
	assert.Equal(t, "metric rejected input", structured.message)
}
