package profile

import (
	"fmt"
	"io"

	"github.com/Velocidex/ordereddict"
	"www.velocidex.com/golang/vfilter"

	"github.com/Lee20171010/binary-file-viewer/internal/reader"
)

// BitField masks a run of bits out of an underlying integer
// parser. Bits are numbered LSB first within the parsed value.
type BitField struct {
	StartBit int64  `json:"start_bit"`
	EndBit   int64  `json:"end_bit"`
	Type     string `json:"type"`

	parser Parser
}

func (self *BitField) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	parser_type, pres := options.GetString("type")
	if !pres {
		return nil, fmt.Errorf("BitField parser requires a type in the options")
	}

	parser, err := profile.GetParser(parser_type, ordereddict.NewDict())
	if err != nil {
		return nil, fmt.Errorf("BitField parser requires a type in the options: %w", err)
	}

	start_bit, pres := options.GetInt64("start_bit")
	if !pres || start_bit < 0 {
		start_bit = 0
	}

	end_bit, pres := options.GetInt64("end_bit")
	if !pres || end_bit > 64 {
		end_bit = 64
	}

	return &BitField{
		StartBit: start_bit,
		EndBit:   end_bit,
		parser:   parser,
	}, nil
}

func (self *BitField) Size() int {
	return SizeOf(self.parser)
}

func (self *BitField) Parse(
	scope vfilter.Scope, r io.ReaderAt, offset int64) interface{} {

	result := int64(0)
	value, ok := to_int64(self.parser.Parse(scope, r, offset))
	if !ok {
		return 0
	}
	for i := self.StartBit; i < self.EndBit; i++ {
		result |= value & (1 << uint8(i))
	}

	return result >> self.StartBit
}

// BitsParserOptions configure a raw bit run read straight off the
// buffer, most significant bit first, independent of any integer
// width. The run may span byte boundaries.
type BitsParserOptions struct {
	BitOffset int64  `vfilter:"optional,field=bit_offset,doc=Bit offset from the field offset"`
	BitWidth  int64  `vfilter:"required,field=bit_width,doc=Number of bits to read"`
	BitOrder  string `vfilter:"optional,field=bit_order,doc=msb (default) or lsb"`

	order reader.BitOrder
}

type BitsParser struct {
	options BitsParserOptions
}

func (self *BitsParser) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	result := &BitsParser{}
	err := ParseOptions(options, &result.options)
	if err != nil {
		return nil, fmt.Errorf("BitsParser: %v", err)
	}

	switch result.options.BitOrder {
	case "", "msb":
		result.options.order = reader.MSBFirst
	case "lsb":
		result.options.order = reader.LSBFirst
	default:
		return nil, fmt.Errorf("BitsParser: bit_order can only be msb or lsb")
	}

	if result.options.BitWidth <= 0 {
		return nil, fmt.Errorf("BitsParser: bit_width must be positive")
	}

	return result, nil
}

// Size is the number of whole bytes covered by the bit run.
func (self *BitsParser) Size() int {
	return int((self.options.BitOffset + self.options.BitWidth + 7) / 8)
}

func (self *BitsParser) Parse(
	scope vfilter.Scope, r io.ReaderAt, offset int64) interface{} {

	// Slurp the covered bytes through the bounds checked reader so
	// an over-long bit run aborts like any other read.
	buf := make([]byte, self.Size())
	_, err := r.ReadAt(buf, offset)
	abortOnReadError(err)

	value, err := reader.ReadBits(
		buf, int(self.options.BitOffset), int(self.options.BitWidth),
		self.options.order)
	abortOnReadError(err)

	v, exact := value.Uint64()
	if !exact {
		return value
	}
	return v
}
