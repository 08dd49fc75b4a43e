package reader

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrOutOfBounds reports a primitive read that does not fit the
	// buffer. It always aborts the decode - a truncated value is
	// never returned.
	ErrOutOfBounds = errors.New("read out of bounds")
)

var factor256 = big.NewInt(256)

// ReadInteger decodes a width byte integer starting at offset. The
// value is accumulated byte by byte as a base 256 positional sum so
// precision is independent of the host word size - fields wider
// than 8 bytes decode exactly.
//
// Signed decoding is two's complement: when the sign bit of the
// most significant included byte is set, every byte is complemented
// before summation and one is added to the magnitude, which is then
// negated. This avoids ever forming value - 2^bitWidth in floating
// arithmetic.
func ReadInteger(buf []byte, offset, width int, signed, littleEndian bool) (PreciseInteger, error) {
	if width <= 0 {
		return PreciseInteger{}, fmt.Errorf("%w: invalid width %d", ErrOutOfBounds, width)
	}
	if offset < 0 || offset+width > len(buf) {
		return PreciseInteger{}, fmt.Errorf(
			"%w: %d bytes at offset %d in a %d byte buffer",
			ErrOutOfBounds, width, offset, len(buf))
	}

	raw := buf[offset : offset+width]

	// Normalize to big endian order so the most significant byte is
	// raw[0] for the sign test below.
	be := make([]byte, width)
	if littleEndian {
		for i := 0; i < width; i++ {
			be[i] = raw[width-1-i]
		}
	} else {
		copy(be, raw)
	}

	negative := signed && be[0]&0x80 != 0
	if negative {
		for i := range be {
			be[i] ^= 0xFF
		}
	}

	result := new(big.Int)
	for _, b := range be {
		result.Mul(result, factor256)
		result.Add(result, big.NewInt(int64(b)))
	}

	if negative {
		result.Add(result, big.NewInt(1))
		result.Neg(result)
	}

	return fromBig(result), nil
}

// BitOrder selects how bits are numbered within each byte.
type BitOrder int

const (
	// MSBFirst numbers bit 0 as the highest bit of byte 0. This is
	// the default for bit packed file formats.
	MSBFirst BitOrder = iota

	// LSBFirst numbers bit 0 as the lowest bit of byte 0.
	LSBFirst
)

// ReadBits extracts an unsigned bit field of bitWidth bits starting
// bitOffset bits into the buffer. Fields may span byte boundaries.
// Reading past len(buf)*8 fails with ErrOutOfBounds.
func ReadBits(buf []byte, bitOffset, bitWidth int, order BitOrder) (PreciseInteger, error) {
	if bitWidth <= 0 || bitOffset < 0 {
		return PreciseInteger{}, fmt.Errorf(
			"%w: invalid bit range [%d, %d)", ErrOutOfBounds, bitOffset, bitOffset+bitWidth)
	}
	if bitOffset+bitWidth > len(buf)*8 {
		return PreciseInteger{}, fmt.Errorf(
			"%w: %d bits at bit offset %d in a %d bit buffer",
			ErrOutOfBounds, bitWidth, bitOffset, len(buf)*8)
	}

	result := new(big.Int)
	for i := 0; i < bitWidth; i++ {
		pos := bitOffset + i
		byteIdx := pos / 8
		var bit byte
		switch order {
		case LSBFirst:
			bit = (buf[byteIdx] >> (pos % 8)) & 1
		default:
			bit = (buf[byteIdx] >> (7 - pos%8)) & 1
		}
		result.Lsh(result, 1)
		if bit != 0 {
			result.Or(result, big.NewInt(1))
		}
	}

	return fromBig(result), nil
}
