package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationWrapsSentinel(t *testing.T) {
	err := Validation("reason too long (%d chars)", 501)

	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "reason too long (501 chars)", Message(err))
}

func TestMessageKeepsForeignErrors(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "boom", Message(errors.New("boom")))

	wrapped := fmt.Errorf("%w: slot already booked", ErrConflict)
	assert.Equal(t, "slot already booked", Message(wrapped))
}
