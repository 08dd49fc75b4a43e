// Implements the numeric primitives backing binary decoding.
package reader

import (
	"fmt"
	"math/big"
)

// maxSafeJSON is the largest integer that survives a round trip
// through a float64 JSON number. Values above it are emitted as
// strings so consumers never see a rounded value.
var maxSafeJSON = big.NewInt(1<<53 - 1)

var minSafeJSON = big.NewInt(-(1<<53 - 1))

// PreciseInteger holds an integer of any magnitude without
// rounding. It is the value type handed to renderers for fields 64
// bits and wider, where a float based representation would silently
// lose the low bits.
type PreciseInteger struct {
	value *big.Int
}

func FromInt64(v int64) PreciseInteger {
	return PreciseInteger{value: big.NewInt(v)}
}

func FromUint64(v uint64) PreciseInteger {
	return PreciseInteger{value: new(big.Int).SetUint64(v)}
}

func fromBig(v *big.Int) PreciseInteger {
	return PreciseInteger{value: v}
}

// Add and Sub are exact for all magnitudes. They are used for
// display formatting only - decoding never feeds a PreciseInteger
// back into offset arithmetic.
func (self PreciseInteger) Add(other PreciseInteger) PreciseInteger {
	return fromBig(new(big.Int).Add(self.big(), other.big()))
}

func (self PreciseInteger) Sub(other PreciseInteger) PreciseInteger {
	return fromBig(new(big.Int).Sub(self.big(), other.big()))
}

// Cmp returns -1, 0 or 1.
func (self PreciseInteger) Cmp(other PreciseInteger) int {
	return self.big().Cmp(other.big())
}

func (self PreciseInteger) Sign() int {
	return self.big().Sign()
}

// Uint64 reports the value as a uint64 and whether the conversion
// was exact.
func (self PreciseInteger) Uint64() (uint64, bool) {
	if !self.big().IsUint64() {
		return 0, false
	}
	return self.big().Uint64(), true
}

// Int64 reports the value as an int64 and whether the conversion
// was exact.
func (self PreciseInteger) Int64() (int64, bool) {
	if !self.big().IsInt64() {
		return 0, false
	}
	return self.big().Int64(), true
}

func (self PreciseInteger) String() string {
	return self.big().String()
}

// Hex renders the magnitude in hex with a leading sign for negative
// values.
func (self PreciseInteger) Hex() string {
	v := self.big()
	if v.Sign() < 0 {
		return fmt.Sprintf("-%#x", new(big.Int).Neg(v))
	}
	return fmt.Sprintf("%#x", v)
}

// MarshalJSON emits a plain number while the value fits the exact
// float64 integer range and a decimal string beyond it.
func (self PreciseInteger) MarshalJSON() ([]byte, error) {
	v := self.big()
	if v.Cmp(maxSafeJSON) <= 0 && v.Cmp(minSafeJSON) >= 0 {
		return []byte(v.String()), nil
	}
	return []byte(`"` + v.String() + `"`), nil
}

func (self PreciseInteger) big() *big.Int {
	if self.value == nil {
		return big.NewInt(0)
	}
	return self.value
}
