package ammerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("swap: %w", ErrSlippageExceeded)

	assert.Equal(t, KindSlippageExceeded, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, ErrSlippageExceeded))
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(fmt.Errorf("stable: %w", ErrConvergence)))
	assert.True(t, IsFatal(ErrOverflow))
	assert.False(t, IsFatal(ErrDeadlineExpired))
	assert.False(t, IsFatal(errors.New("other")))
}
