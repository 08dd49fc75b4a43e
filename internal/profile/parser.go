// Package profile implements the structure parsing system that a
// parser program compiles into. A Profile maps type names to Parser
// objects; user programs declare structs whose fields delegate to
// these parsers.
package profile

import (
	"errors"
	"fmt"
	"io"

	"github.com/Velocidex/ordereddict"
	"www.velocidex.com/golang/vfilter"

	"github.com/Lee20171010/binary-file-viewer/internal/reader"
)

// Parsers are objects which know how to parse a particular
// type. Parsers are instantiated once and reused many times.
type Parser interface {
	Parse(scope vfilter.Scope, r io.ReaderAt, offset int64) interface{}

	// Given options, this returns a new configured parser
	New(profile *Profile, options *ordereddict.Dict) (Parser, error)
}

type Sizer interface {
	Size() int
}

// InstanceSizer reports the size of one concrete instance, for
// parsers whose width depends on the data (strings).
type InstanceSizer interface {
	InstanceSize(scope vfilter.Scope, r io.ReaderAt, offset int64) int
}

// Return the start and end of the object
type Starter interface {
	Start() int64
}

type Ender interface {
	End() int64
}

// BoundsViolation is thrown (as a panic value) when a fixed width
// read does not fit the buffer. The sandbox recovers it at the
// isolation boundary and reports an out of bounds failure - parsers
// never return a truncated value.
type BoundsViolation struct {
	Err error
}

func (self *BoundsViolation) Error() string {
	return self.Err.Error()
}

func abortOnReadError(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, reader.ErrOutOfBounds) {
		panic(&BoundsViolation{Err: err})
	}
	// Cancellation and any other reader error also abort the decode.
	panic(err)
}

// Parse various sizes of ints.
type IntParser struct {
	type_name string
	size      int
	converter func(buf []byte) interface{}
}

// IntParser does not take options
func (self *IntParser) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	return self, nil
}

func (self *IntParser) Size() int {
	return self.size
}

func (self *IntParser) TypeName() string {
	return self.type_name
}

func (self *IntParser) DebugString(scope vfilter.Scope, offset int64, r io.ReaderAt) string {
	return fmt.Sprintf("[%s] %#0x",
		self.type_name, self.Parse(scope, r, offset))
}

func (self *IntParser) Parse(scope vfilter.Scope, r io.ReaderAt, offset int64) interface{} {
	buf := make([]byte, self.size)

	_, err := r.ReadAt(buf, offset)
	abortOnReadError(err)

	return self.converter(buf)
}

func NewIntParser(type_name string, size int, converter func(buf []byte) interface{}) *IntParser {
	return &IntParser{
		type_name: type_name,
		size:      size,
		converter: converter,
	}
}
