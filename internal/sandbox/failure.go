package sandbox

import (
	"fmt"
	"strings"
)

// Kind classifies how a decode run ended short of a tree.
type Kind int

const (
	// OutOfBounds - a parser tried to read past the end of the
	// buffer. Always a hard failure, never a truncated value.
	OutOfBounds Kind = iota

	// Runtime - any other fault inside the parser program.
	Runtime

	// Cancelled - the run was torn down by its context. Never
	// surfaced to the user as a program error.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case OutOfBounds:
		return "out of bounds"
	case Runtime:
		return "runtime"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Failure describes an aborted decode. Frames are synthetic: the
// walker records one per struct field it enters, so the failure
// maps to declarations in the parser program rather than to
// implementation internals.
//
// Frames[0] is the dispatch frame. The user frames follow,
// innermost first, each formatted "Struct.Field (path:line)" where
// line is relative to the program body.
type Failure struct {
	Kind        Kind
	Message     string
	Frames      []string
	ProgramPath string

	// Number of source lines ahead of the program body, for
	// translating body relative frame lines to file lines.
	BodyOffset int
}

func (self *Failure) Error() string {
	return fmt.Sprintf("%v: %v", self.Kind, self.Summary())
}

// Summary is the first line of the message.
func (self *Failure) Summary() string {
	msg := self.Message
	if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
		msg = msg[:idx]
	}
	return msg
}
