package reader

import (
	"context"
	"fmt"
	"io"
)

// BoundedReaderAt serves a read only byte buffer as an io.ReaderAt.
// Unlike bytes.Reader it refuses partial reads: a request that does
// not fit entirely inside the buffer fails with ErrOutOfBounds so a
// parser can never silently decode a truncated value.
//
// The reader is cancellation aware. Once the attached context is
// done every subsequent read fails, which is how a torn down decode
// is prevented from touching the buffer again.
type BoundedReaderAt struct {
	ctx  context.Context
	data []byte
}

func NewBoundedReaderAt(ctx context.Context, data []byte) *BoundedReaderAt {
	if ctx == nil {
		ctx = context.Background()
	}
	return &BoundedReaderAt{ctx: ctx, data: data}
}

func (self *BoundedReaderAt) Len() int {
	return len(self.data)
}

// Bytes exposes the underlying buffer for prefix sniffing. Callers
// must treat it as read only.
func (self *BoundedReaderAt) Bytes() []byte {
	return self.data
}

// ReadAtMost copies as many bytes as the buffer still holds at off.
// String scanning uses this to probe for a terminator near the end
// of the buffer; fixed width reads must use ReadAt instead.
func (self *BoundedReaderAt) ReadAtMost(p []byte, off int64) (int, error) {
	if err := self.ctx.Err(); err != nil {
		return 0, err
	}

	if off < 0 || off >= int64(len(self.data)) {
		return 0, fmt.Errorf("%w: offset %d in a %d byte buffer",
			ErrOutOfBounds, off, len(self.data))
	}

	return copy(p, self.data[off:]), nil
}

func (self *BoundedReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if err := self.ctx.Err(); err != nil {
		return 0, err
	}

	if off < 0 || off+int64(len(p)) > int64(len(self.data)) {
		return 0, fmt.Errorf("%w: %d bytes at offset %d in a %d byte buffer",
			ErrOutOfBounds, len(p), off, len(self.data))
	}

	return copy(p, self.data[off:]), nil
}

var _ io.ReaderAt = (*BoundedReaderAt)(nil)
