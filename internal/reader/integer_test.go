package reader

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadIntegerRoundTrip(t *testing.T) {
	// Encode reference values with encoding/binary and make sure the
	// positional decoder agrees for every width and endianness.
	values := []uint64{0, 1, 0x7F, 0x80, 0xFF, 0xFFFF, 0xDEADBEEF,
		0x0807060504030201, 0xFFFFFFFFFFFFFFFD}

	for _, v := range values {
		for width := 1; width <= 8; width++ {
			if width < 8 && v >= uint64(1)<<(8*uint(width)) {
				continue
			}

			le := make([]byte, 8)
			binary.LittleEndian.PutUint64(le, v)

			got, err := ReadInteger(le[:width], 0, width, false, true)
			assert.NoError(t, err)
			u, exact := got.Uint64()
			assert.True(t, exact)
			assert.Equal(t, v, u, "width %d le", width)

			be := make([]byte, width)
			for i := 0; i < width; i++ {
				be[i] = le[width-1-i]
			}
			got, err = ReadInteger(be, 0, width, false, false)
			assert.NoError(t, err)
			u, exact = got.Uint64()
			assert.True(t, exact)
			assert.Equal(t, v, u, "width %d be", width)
		}
	}
}

func TestReadIntegerAbove2p53(t *testing.T) {
	buf := []byte{0xFD, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

	unsigned, err := ReadInteger(buf, 0, 8, false, true)
	assert.NoError(t, err)
	assert.Equal(t, "18446744073709551613", unsigned.String())

	signed, err := ReadInteger(buf, 0, 8, true, true)
	assert.NoError(t, err)
	assert.Equal(t, "-3", signed.String())
}

func TestReadIntegerWiderThan64Bits(t *testing.T) {
	// A 16 byte field of all 0xFF. Unsigned this is 2^128-1, signed -1.
	buf := make([]byte, 16)
	for i := range buf {
		buf[i] = 0xFF
	}

	unsigned, err := ReadInteger(buf, 0, 16, false, false)
	assert.NoError(t, err)
	assert.Equal(t, "340282366920938463463374607431768211455", unsigned.String())

	signed, err := ReadInteger(buf, 0, 16, true, false)
	assert.NoError(t, err)
	assert.Equal(t, "-1", signed.String())
}

func TestReadIntegerSigned(t *testing.T) {
	buf := []byte{0x80}
	v, err := ReadInteger(buf, 0, 1, true, true)
	assert.NoError(t, err)
	i, exact := v.Int64()
	assert.True(t, exact)
	assert.Equal(t, int64(-128), i)

	buf = []byte{0xFE, 0xFF}
	v, err = ReadInteger(buf, 0, 2, true, true)
	assert.NoError(t, err)
	i, _ = v.Int64()
	assert.Equal(t, int64(-2), i)

	// Big endian variant of the same value.
	v, err = ReadInteger([]byte{0xFF, 0xFE}, 0, 2, true, false)
	assert.NoError(t, err)
	i, _ = v.Int64()
	assert.Equal(t, int64(-2), i)
}

func TestReadIntegerOutOfBounds(t *testing.T) {
	buf := []byte{1, 2, 3}

	_, err := ReadInteger(buf, 2, 2, false, true)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	_, err = ReadInteger(buf, -1, 2, false, true)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	_, err = ReadInteger(buf, 0, 0, false, true)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestReadBits(t *testing.T) {
	// 1010 1100 0011 0101
	buf := []byte{0xAC, 0x35}

	v, err := ReadBits(buf, 0, 4, MSBFirst)
	assert.NoError(t, err)
	u, _ := v.Uint64()
	assert.Equal(t, uint64(0xA), u)

	// A field spanning the byte boundary: bits 6..11 = 00 0011.
	v, err = ReadBits(buf, 6, 6, MSBFirst)
	assert.NoError(t, err)
	u, _ = v.Uint64()
	assert.Equal(t, uint64(0x3), u)

	v, err = ReadBits(buf, 0, 16, MSBFirst)
	assert.NoError(t, err)
	u, _ = v.Uint64()
	assert.Equal(t, uint64(0xAC35), u)

	// LSB first numbering: the low nibble of 0xAC read upward is 0011.
	v, err = ReadBits(buf, 0, 4, LSBFirst)
	assert.NoError(t, err)
	u, _ = v.Uint64()
	assert.Equal(t, uint64(0x3), u)
}

func TestReadBitsOutOfBounds(t *testing.T) {
	buf := []byte{0xFF}

	_, err := ReadBits(buf, 4, 5, MSBFirst)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	_, err = ReadBits(buf, 0, 0, MSBFirst)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestPreciseIntegerArithmetic(t *testing.T) {
	a := FromUint64(1<<63 + 5)
	b := FromInt64(5)

	assert.Equal(t, "9223372036854775808", a.Sub(b).String())
	assert.Equal(t, 1, a.Cmp(b))
	assert.Equal(t, 0, a.Cmp(a))
	assert.Equal(t, -1, b.Cmp(a))

	sum := a.Add(a)
	assert.Equal(t, "18446744073709551626", sum.String())
	_, exact := sum.Uint64()
	assert.False(t, exact)
}

func TestPreciseIntegerJSON(t *testing.T) {
	small, err := FromInt64(42).MarshalJSON()
	assert.NoError(t, err)
	assert.Equal(t, "42", string(small))

	large, err := FromUint64(18446744073709551613).MarshalJSON()
	assert.NoError(t, err)
	assert.Equal(t, `"18446744073709551613"`, string(large))
}
