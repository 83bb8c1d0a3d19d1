package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoragePassesThroughTypedErrors(t *testing.T) {
	nf := NotFound("todo", 99)
	assert.Same(t, nf, Storage("moving todo", nf))
	assert.Nil(t, Storage("noop", nil))

	wrapped := Storage("inserting todo", errors.New("disk full"))
	assert.True(t, IsStorage(wrapped))
	assert.Equal(t, "storage: inserting todo: disk full", wrapped.Error())
}

func TestStageErrorKeepsCause(t *testing.T) {
	cause := &TransportError{Peer: "http://localhost:8080", StatusCode: 502, Err: errors.New("bad gateway")}
	err := fmt.Errorf("round: %w", &StageError{Stage: StageExchange, Err: cause})

	assert.Equal(t, StageExchange, StageOf(err))
	assert.True(t, IsTransport(err))
	assert.False(t, IsStorage(err))
	assert.Equal(t, Stage(""), StageOf(errors.New("plain")))
}

func TestValidationMessage(t *testing.T) {
	err := Invalid("day", "unknown day %q", "Funday")
	assert.True(t, IsValidation(err))
	assert.Equal(t, `invalid day: unknown day "Funday"`, err.Error())
}
