package faults

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOfTaggedError(t *testing.T) {
	err := New(CapacityExceeded, "too many contacts")
	assert.Equal(t, CapacityExceeded, CodeOf(err))
	assert.Equal(t, "too many contacts", MessageOf(err))
}

func TestCodeOfWrappedError(t *testing.T) {
	err := fmt.Errorf("handling request: %w", New(Blocked, "cannot send"))
	assert.Equal(t, Blocked, CodeOf(err))
	assert.Equal(t, "cannot send", MessageOf(err))
}

func TestUntaggedErrorIsStoreFailure(t *testing.T) {
	err := errors.New("pq: connection refused")
	assert.Equal(t, StoreFailure, CodeOf(err))
	// Store internals must not leak into the display message.
	assert.NotContains(t, MessageOf(err), "pq:")
}
