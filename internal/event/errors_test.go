package event

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextError(t *testing.T) {
	err := &ContextError{Op: "subscribe"}

	assert.Equal(t, "broadcaster subscribe: called off the designated execution context", err.Error())
	assert.True(t, errors.Is(err, ErrWrongExecutionContext))
	assert.False(t, errors.Is(err, ErrDispatchInProgress))
}

func TestObserverTypeError(t *testing.T) {
	err := &ObserverTypeError{ID: 4, Value: 42}

	assert.Equal(t, "deferred subscription for event 4 holds int: unexpected observer type", err.Error())
	assert.ErrorIs(t, err, ErrUnexpectedObserverType)
}

func TestPanicError(t *testing.T) {
	err := &PanicError{ID: 2, Value: "boom"}
	assert.Equal(t, "observer panic on event 2: boom", err.Error())
}

func TestEventID_String(t *testing.T) {
	assert.Equal(t, "42", EventID(42).String())
	assert.Equal(t, "-1", EventID(-1).String())
}
