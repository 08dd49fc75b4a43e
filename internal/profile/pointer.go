package profile

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Velocidex/ordereddict"
	"www.velocidex.com/golang/vfilter"
)

type PointerParserOptions struct {
	Type        string            `vfilter:"required,field=type,doc=The underlying type pointed at"`
	TypeOptions *ordereddict.Dict `vfilter:"optional,field=type_options,doc=Any additional options required to parse the type"`
}

// PointerParser reads a 64 bit little endian offset and parses the
// delegate type at that offset.
type PointerParser struct {
	options PointerParserOptions
	profile *Profile
	parser  Parser
}

func (self *PointerParser) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	if options == nil {
		return nil, fmt.Errorf("Pointer parser requires a type in the options")
	}

	result := &PointerParser{profile: profile}
	err := ParseOptions(options, &result.options)
	if err != nil {
		return nil, fmt.Errorf("PointerParser: %v", err)
	}

	parser, err := maybeGetParser(profile,
		result.options.Type, result.options.TypeOptions)
	if err != nil {
		return nil, err
	}
	result.parser = parser

	return result, nil
}

func (self *PointerParser) Size() int {
	return 8
}

func (self *PointerParser) Parse(
	scope vfilter.Scope, r io.ReaderAt, offset int64) interface{} {

	if self.parser == nil {
		parser, err := self.profile.GetParser(
			self.options.Type, self.options.TypeOptions)
		if err != nil {
			scope.Log("ERROR:binary_parser: PointerParser: %v", err)
			self.parser = NullParser{}
			return vfilter.Null{}
		}
		self.parser = parser
	}

	buf := make([]byte, 8)
	_, err := r.ReadAt(buf, offset)
	abortOnReadError(err)

	address := binary.LittleEndian.Uint64(buf)
	return self.parser.Parse(scope, r, int64(address))
}
