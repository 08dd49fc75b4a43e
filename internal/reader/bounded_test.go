package reader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundedReaderAt(t *testing.T) {
	r := NewBoundedReaderAt(context.Background(), []byte{1, 2, 3, 4})

	buf := make([]byte, 2)
	n, err := r.ReadAt(buf, 1)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{2, 3}, buf)

	// A read that would be truncated is refused outright.
	_, err = r.ReadAt(make([]byte, 3), 2)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	_, err = r.ReadAt(buf, -1)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestBoundedReaderAtCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewBoundedReaderAt(ctx, []byte{1, 2, 3, 4})

	_, err := r.ReadAt(make([]byte, 1), 0)
	assert.NoError(t, err)

	cancel()

	_, err = r.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, context.Canceled)
}
