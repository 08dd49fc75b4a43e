package profile

import "www.velocidex.com/golang/vfilter"

// MakeScope builds the closed evaluation scope handed to parser
// program expressions. It carries the struct/array protocols and
// nothing else - no I/O, no process access.
func MakeScope() vfilter.Scope {
	result := vfilter.NewScope()
	result.AddProtocolImpl(
		&StructAssociative{}, &ArrayAssociative{}, &ArrayIterator{},
	)

	return result
}

// ScopeDebug emits trace output when the scope carries the debug
// flag.
func ScopeDebug(scope vfilter.Scope, format string, args ...interface{}) {
	value, pres := scope.Resolve("DEBUG_BINARY_PARSER")
	if pres && scope.Bool(value) {
		scope.Log(format, args...)
	}
}
