package profile

import (
	"encoding/json"
	"io"

	"github.com/Velocidex/ordereddict"
	"www.velocidex.com/golang/vfilter"
)

// VarInt is a decoded LEB128 value which remembers its encoded
// width.
type VarInt struct {
	base uint64
	size int
}

func (self VarInt) Size() int {
	return self.size
}

func (self VarInt) Value() interface{} {
	return self.base
}

func (self VarInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(self.base)
}

type SVarInt struct {
	VarInt
}

func (self SVarInt) Value() interface{} {
	return int64(self.base)
}

func (self SVarInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(self.base))
}

// Leb128Parser decodes unsigned LEB128. Only uint64 is supported,
// giving a maximum encoded size of 10 bytes.
type Leb128Parser struct{}

func (self *Leb128Parser) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	return &Leb128Parser{}, nil
}

func (self *Leb128Parser) TypeName() string {
	return "leb128"
}

// InstanceSize reports the encoded width of the varint at offset so
// tree walkers can attribute a byte range to it.
func (self *Leb128Parser) InstanceSize(
	scope vfilter.Scope, r io.ReaderAt, offset int64) int {

	result := self.decode(r, offset)
	return result.size
}

func (self *Leb128Parser) decode(r io.ReaderAt, offset int64) VarInt {
	// The encoding is variable width so a short read near the end
	// of the buffer is legitimate - but zero bytes is not.
	buf := make([]byte, 10)
	n := readAtMost(r, buf, offset)
	if n == 0 {
		abortOnReadError(io.ErrUnexpectedEOF)
	}
	buf = buf[:n]

	var res uint64
	for i := 0; i < len(buf); i++ {
		next := buf[i] & 0x80
		value := uint64(buf[i] & 0x7f)
		res |= value << (i * 7)
		if next == 0 {
			return VarInt{base: res, size: i + 1}
		}
	}

	return VarInt{base: res, size: len(buf)}
}

func (self *Leb128Parser) Parse(
	scope vfilter.Scope, r io.ReaderAt, offset int64) interface{} {
	return self.decode(r, offset)
}

type Sleb128Parser struct {
	Leb128Parser
}

func (self *Sleb128Parser) TypeName() string {
	return "sleb128"
}

func (self *Sleb128Parser) Parse(
	scope vfilter.Scope, r io.ReaderAt, offset int64) interface{} {
	return SVarInt{self.decode(r, offset)}
}
