package profile

import (
	"context"
	"fmt"
	"io"

	"github.com/Velocidex/ordereddict"
	"www.velocidex.com/golang/vfilter"
)

// Union selects one of several delegate types based on a selector
// lambda evaluated against the containing struct. Choices map the
// selector's value to a type name; a "default" choice catches
// everything else.
type Union struct {
	selector     *vfilter.Lambda
	choice_names *ordereddict.Dict

	// Resolved parsers, cached per selector value.
	choices map[string]Parser
	profile *Profile
}

func (self *Union) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	if options == nil {
		return nil, fmt.Errorf("Union parser requires options")
	}

	expression, pres := options.GetString("selector")
	if !pres {
		return nil, fmt.Errorf("Union parser requires a lambda selector")
	}

	selector, err := vfilter.ParseLambda(expression)
	if err != nil {
		return nil, fmt.Errorf("Union parser selector expression '%v': %w",
			expression, err)
	}

	choices, pres := options.Get("choices")
	if !pres {
		choices = ordereddict.NewDict()
	}

	choices_dict, ok := choices.(*ordereddict.Dict)
	if !ok {
		return nil, fmt.Errorf(
			"Union parser requires choices to be a mapping between values and type names")
	}

	return &Union{
		selector:     selector,
		choice_names: choices_dict,
		choices:      make(map[string]Parser),
		profile:      profile,
	}, nil
}

func (self *Union) Parse(
	scope vfilter.Scope, r io.ReaderAt, offset int64) interface{} {

	this_obj, pres := scope.Resolve("this")
	if !pres {
		return vfilter.Null{}
	}

	value := self.selector.Reduce(
		context.Background(), scope, []vfilter.Any{this_obj})
	if IsNil(value) {
		return vfilter.Null{}
	}

	value_str := fmt.Sprintf("%v", value)
	parser, pres := self.choices[value_str]
	if pres {
		return parser.Parse(scope, r, offset)
	}

	parser_name, pres := self.choice_names.GetString(value_str)
	if !pres {
		parser_name, pres = self.choice_names.GetString("default")
		if !pres {
			return vfilter.Null{}
		}
	}

	parser, err := self.profile.GetParser(parser_name, ordereddict.NewDict())
	if err != nil {
		return vfilter.Null{}
	}

	self.choices[value_str] = parser
	return parser.Parse(scope, r, offset)
}
