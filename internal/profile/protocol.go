package profile

import (
	"context"

	"github.com/Velocidex/ordereddict"
	"www.velocidex.com/golang/vfilter"
)

// StructAssociative lets parser program lambdas dereference struct
// fields with dot notation. Besides the declared fields it exposes
// the pseudo members SizeOf, StartOf, EndOf and ParentOf, which
// programs use to compute offsets relative to an enclosing struct.
type StructAssociative struct{}

func (self StructAssociative) Applicable(a vfilter.Any, b vfilter.Any) bool {
	switch a.(type) {
	case StructObject, *StructObject:
		_, ok := b.(string)
		if ok {
			return true
		}
	}
	return false
}

func (self StructAssociative) Associative(scope vfilter.Scope,
	a vfilter.Any, b vfilter.Any) (vfilter.Any, bool) {
	lhs, ok := a.(*StructObject)
	if !ok {
		return vfilter.Null{}, false
	}

	rhs, ok := b.(string)
	if !ok {
		return vfilter.Null{}, false
	}

	switch rhs {
	case "SizeOf":
		return lhs.Size(), true

	case "StartOf":
		return lhs.Start(), true

	case "ParentOf":
		return lhs.Parent(), true

	case "EndOf":
		return lhs.End(), true

	default:
		return lhs.Get(rhs)
	}
}

func (self StructAssociative) GetMembers(scope vfilter.Scope, a vfilter.Any) []string {
	lhs, ok := a.(*StructObject)
	if !ok {
		return nil
	}

	return lhs.parser.field_names
}

// ArrayAssociative resolves members on decoded arrays. SizeOf,
// StartOf and EndOf describe the byte span of the whole run,
// ContentsOf and Value expose the elements, and anything else is
// forwarded to the element slice so `x.Items.Foo` maps over the
// elements.
type ArrayAssociative struct{}

func (self ArrayAssociative) Applicable(a vfilter.Any, b vfilter.Any) bool {
	switch a.(type) {
	case ArrayObject, *ArrayObject:
		_, ok := b.(string)
		if ok {
			return true
		}
	}
	return false
}

func (self ArrayAssociative) Associative(scope vfilter.Scope,
	a vfilter.Any, b vfilter.Any) (vfilter.Any, bool) {
	lhs, ok := a.(*ArrayObject)
	if !ok {
		return vfilter.Null{}, false
	}

	rhs, ok := b.(string)
	if !ok {
		return vfilter.Null{}, false
	}

	switch rhs {
	case "SizeOf":
		return lhs.Size(), true

	case "ContentsOf":
		return lhs.Contents(), true

	case "StartOf":
		return lhs.Start(), true

	case "EndOf":
		return lhs.End(), true

		// Provide a way to access the raw array
	case "Value":
		return lhs.contents, true

	default:
		// Fallback to associative on the underlying array.
		return scope.Associative(lhs.contents, b)
	}
}

func (self ArrayAssociative) GetMembers(scope vfilter.Scope, a vfilter.Any) []string {
	return nil
}

// ArrayIterator makes decoded arrays iterable from lambdas, one row
// per element.
type ArrayIterator struct{}

func (self ArrayIterator) Applicable(a vfilter.Any) bool {
	_, ok := a.(*ArrayObject)
	return ok
}

func (self ArrayIterator) Iterate(
	ctx context.Context, scope vfilter.Scope, a vfilter.Any) <-chan vfilter.Row {
	output_chan := make(chan vfilter.Row)

	go func() {
		defer close(output_chan)

		obj, ok := a.(*ArrayObject)
		if !ok {
			return
		}

		for _, item := range obj.contents {
			switch item.(type) {

			// Rows must support the associative protocol. Structs
			// and dicts already do, scalars get wrapped.
			case *ordereddict.Dict, *StructObject:
			default:
				item = ordereddict.NewDict().Set("_value", item)
			}

			select {
			case <-ctx.Done():
				return

			case output_chan <- item:
			}
		}
	}()

	return output_chan
}
