package profile

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Velocidex/ordereddict"
	"github.com/Velocidex/yaml"

	"www.velocidex.com/golang/vfilter"
)

var (
	NotFoundError = errors.New("parser not found")
)

type FieldDefinition struct {
	Name string
	// Offset within the struct
	Offset int64

	// Alternatively offset may be given as an expression.
	OffsetExpression string

	// Name of the type of parser in this field.
	Type string

	// Options to the type
	Options *ordereddict.Dict

	// 1 based line within the definition text where this field is
	// declared. Filled in by annotateLines, 0 if unknown.
	Line int
}

type StructDefinition struct {
	Name           string
	Size           int
	SizeExpression string
	Fields         []*FieldDefinition

	Line int
}

type Profile struct {
	types map[string]Parser
}

func NewProfile() *Profile {
	result := Profile{
		types: make(map[string]Parser),
	}

	return &result
}

func (self *Profile) AddParser(type_name string, parser Parser) {
	self.types[type_name] = parser
}

func (self *Profile) GetParser(name string, options *ordereddict.Dict) (Parser, error) {
	parser, pres := self.types[name]
	if !pres {
		return nil, fmt.Errorf("%w: %v", NotFoundError, name)
	}
	return parser.New(self, options)
}

// GetStruct returns the struct parser registered under name, for
// callers that need to walk fields rather than just parse.
func (self *Profile) GetStruct(name string) (*StructParser, bool) {
	parser, pres := self.types[name]
	if !pres {
		return nil, false
	}
	struct_parser, ok := parser.(*StructParser)
	return struct_parser, ok
}

func (self *Profile) ObjectSize(scope vfilter.Scope,
	name string, r io.ReaderAt, offset int64) int {
	parser, pres := self.types[name]
	if pres {
		sizer, ok := parser.(Sizer)
		if ok {
			return sizer.Size()
		}
	}

	return 0
}

// Build the profile from definitions given in the struct definition
// language. Each definition is ["Name", size, [[field, offset,
// type, options?], ...]] where size and offset may be lambda
// expressions evaluated against the containing struct.
func (self *Profile) ParseStructDefinitions(definitions string) (err error) {
	var profile_definitions []*StructDefinition

	err = yaml.Unmarshal([]byte(definitions), &profile_definitions)
	if err != nil {
		return err
	}

	annotateLines(definitions, profile_definitions)

	for _, struct_def := range profile_definitions {
		struct_parser := NewStructParser(struct_def.Name, struct_def.Size)
		struct_parser.line = struct_def.Line
		self.types[struct_def.Name] = struct_parser

		// Try to parse it as a lambda.
		if struct_def.SizeExpression != "" {
			struct_parser.size_expression, err = vfilter.ParseLambda(
				struct_def.SizeExpression)
			if err != nil {
				return fmt.Errorf("struct definition %v size expression '%v': %w",
					struct_def.Name, struct_def.SizeExpression, err)
			}
		}

		for _, field_def := range struct_def.Fields {
			// Install a parser now to maintain field ordering but do
			// not include the delegate parser yet.
			temp_parser := &ParseAtOffset{
				offset: field_def.Offset,
			}
			struct_parser.AddField(field_def.Name, field_def.Line, temp_parser)

			if field_def.OffsetExpression != "" {
				temp_parser.offset_expression, err = vfilter.ParseLambda(
					field_def.OffsetExpression)
				if err != nil {
					return fmt.Errorf("struct %v field offset '%v': %w",
						struct_def.Name, field_def.OffsetExpression, err)
				}
			}

			// Get the parser by name
			parser, pres := self.types[field_def.Type]
			if pres {
				temp_parser.parser, err = parser.New(self, field_def.Options)
				if err != nil {
					return fmt.Errorf("struct %v field '%v': %w",
						struct_def.Name, field_def.Name, err)
				}
			} else {

				// Delay the creation of the parser until we have
				// added all the structs in case the parser name
				// refers to a struct which has not been defined yet.
				defer func(struct_def *StructDefinition, field_def *FieldDefinition, temp_parser *ParseAtOffset) {
					if err != nil {
						return
					}

					parser, pres := self.types[field_def.Type]
					if !pres {
						err = fmt.Errorf(
							"reference to undefined type %v in %v.%v",
							field_def.Type, struct_def.Name,
							field_def.Name)
						return
					}
					temp_parser.parser, _ = parser.New(self, field_def.Options)
				}(struct_def, field_def, temp_parser)
			}
		}

	}
	return nil
}

// Create a new object of the specified type by instantiating the
// named parser on the reader at the specified offset.
func (self *Profile) Parse(scope vfilter.Scope, type_name string,
	r io.ReaderAt, offset int64) (interface{}, error) {
	parser, pres := self.types[type_name]
	if !pres {
		return nil, fmt.Errorf("%w: %v", NotFoundError, type_name)
	}

	return parser.Parse(scope, r, offset), nil
}

// Recover the declaration line of each struct and field by scanning
// the definition text. The scan is sequential: a struct is searched
// from where the previous one was found, its fields from the struct
// line onward, so repeated names resolve to the right occurrence.
func annotateLines(definitions string, defs []*StructDefinition) {
	lines := strings.Split(definitions, "\n")

	find := func(needle string, from int) int {
		for i := from; i < len(lines); i++ {
			if strings.Contains(lines[i], needle) {
				return i
			}
		}
		return -1
	}

	cursor := 0
	for _, struct_def := range defs {
		idx := find(struct_def.Name, cursor)
		if idx < 0 {
			continue
		}
		struct_def.Line = idx + 1
		cursor = idx

		field_cursor := idx
		for _, field_def := range struct_def.Fields {
			fidx := find(field_def.Name, field_cursor)
			if fidx < 0 {
				continue
			}
			field_def.Line = fidx + 1
			field_cursor = fidx
		}
	}
}
