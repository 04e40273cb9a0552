package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAppliesLevelAndFormat(t *testing.T) {
	logger := New(Config{Level: "debug", Format: "json", TimeFormat: "2006"})
	assert.Equal(t, "debug", logger.GetLevel().String())
}

func TestNewFallsBackToInfoOnBadLevel(t *testing.T) {
	logger := New(Config{Level: "not-a-level", Format: "text"})
	assert.Equal(t, "info", logger.GetLevel().String())
}

func TestContextualWithMergesFields(t *testing.T) {
	base := NewContextual(nil, Fields{"service": "nrp"})
	derived := base.With(Fields{"request_id": "abc"})

	assert.Equal(t, "nrp", base.fields["service"])
	assert.Equal(t, "nrp", derived.fields["service"])
	assert.Equal(t, "abc", derived.fields["request_id"])
	_, hasRequestID := base.fields["request_id"]
	assert.False(t, hasRequestID, "With must not mutate the receiver")
}

func TestTimedPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	logger := NewContextual(nil, nil)

	err := Timed(logger, "upload-part", func() error { return boom })
	assert.ErrorIs(t, err, boom)

	err = Timed(logger, "upload-part", func() error { return nil })
	assert.NoError(t, err)
}
