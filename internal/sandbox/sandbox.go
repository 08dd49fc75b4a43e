// Package sandbox runs parser programs against byte buffers in
// isolation. A program only ever sees the decode buffer through a
// bounds checked reader and the profile primitives; a fault inside
// the program surfaces as a Failure with synthetic stack frames,
// never as a process crash.
package sandbox

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"www.velocidex.com/golang/vfilter"

	"github.com/Lee20171010/binary-file-viewer/internal/catalog"
	"github.com/Lee20171010/binary-file-viewer/internal/profile"
	"github.com/Lee20171010/binary-file-viewer/internal/reader"
)

// The frame reported for the dispatch boundary itself. It carries
// no source position.
const dispatchFrame = "decode (dispatch)"

type typeNamer interface {
	TypeName() string
}

// Sandbox executes parser programs. Safe for concurrent use.
type Sandbox struct {
	log zerolog.Logger

	// Collapses duplicate concurrent runs of the same program over
	// the same file.
	runs singleflight.Group
}

func New(log zerolog.Logger) *Sandbox {
	return &Sandbox{log: log}
}

type runResult struct {
	tree    *Tree
	failure *Failure
}

// Execute decodes data with the program. Concurrent calls for the
// same (file, program) pair share one run. On failure the tree is
// nil and the failure describes the fault; a nil failure means the
// tree is complete.
func (self *Sandbox) Execute(
	ctx context.Context,
	program *catalog.Program,
	filePath string, data []byte) (*Tree, *Failure) {

	key := filePath + "\x00" + program.Path
	result, _, _ := self.runs.Do(key, func() (interface{}, error) {
		tree, failure := self.execute(ctx, program, filePath, data)
		return runResult{tree: tree, failure: failure}, nil
	})

	run := result.(runResult)
	return run.tree, run.failure
}

func (self *Sandbox) execute(
	ctx context.Context,
	program *catalog.Program,
	filePath string, data []byte) (tree *Tree, failure *Failure) {

	walker := &treeWalker{
		ctx:     ctx,
		program: program,
		reader:  reader.NewBoundedReaderAt(ctx, data),
	}

	done := make(chan struct{})

	// The program runs in its own goroutine so a fault can be
	// recovered without unwinding the caller, and so cancellation
	// cannot be blocked by a runaway walk (the bounded reader
	// refuses further reads once ctx is done).
	go func() {
		defer close(done)

		defer func() {
			if r := recover(); r != nil {
				failure = walker.toFailure(r)
			}
		}()

		tree = walker.run()
	}()

	<-done

	if failure != nil {
		self.log.Debug().
			Str("program", program.Path).
			Str("file", filePath).
			Str("kind", failure.Kind.String()).
			Msg(failure.Summary())
		return nil, failure
	}

	tree.FilePath = filePath
	tree.ProgramPath = program.Path
	return tree, nil
}

// treeWalker materializes the lazy decode into a Field tree,
// keeping a frame stack so a fault can be attributed to the
// declaration being decoded.
type treeWalker struct {
	ctx     context.Context
	program *catalog.Program
	reader  *reader.BoundedReaderAt

	// Frame stack, outermost first.
	frames []string
}

func (self *treeWalker) run() *Tree {
	prof := profile.NewProfile()
	profile.AddModel(prof)

	err := prof.ParseStructDefinitions(self.program.Body)
	if err != nil {
		panic(err)
	}

	scope := profile.MakeScope()
	defer scope.Close()

	obj, err := prof.Parse(scope, self.program.Root, self.reader, 0)
	if err != nil {
		panic(err)
	}

	root, ok := obj.(*profile.StructObject)
	if !ok {
		panic(fmt.Errorf("root %v is not a struct", self.program.Root))
	}

	return &Tree{Root: self.walkStruct(self.program.Root, root)}
}

func (self *treeWalker) walkStruct(name string, obj *profile.StructObject) *Field {
	result := &Field{
		Name:     name,
		Type:     obj.TypeName(),
		Start:    obj.Start(),
		End:      obj.End(),
		Children: []*Field{},
	}

	parser := obj.Parser()
	for _, field_name := range parser.FieldNames() {
		self.checkCancelled()

		field_parser, line, pres := parser.Field(field_name)
		if !pres {
			continue
		}

		self.push(fmt.Sprintf("%s.%s (%s:%d)",
			obj.TypeName(), field_name, self.program.Path, line))

		result.Children = append(result.Children,
			self.walkField(field_name, field_parser, obj))

		self.pop()
	}

	return result
}

func (self *treeWalker) walkField(
	name string, field_parser *profile.ParseAtOffset,
	parent *profile.StructObject) *Field {

	value, _ := parent.Get(name)

	switch t := value.(type) {
	case *profile.StructObject:
		field := self.walkStruct(name, t)
		field.Name = name
		return field

	case *profile.ArrayObject:
		return self.walkArray(name, t)
	}

	// A leaf. The span comes from the delegate parser; width zero
	// when the delegate has no intrinsic size (computed values).
	start := parent.Start() + field_parser.FieldOffset(parent.Scope())
	end := start

	delegate := field_parser.Delegate()
	switch sizer := delegate.(type) {
	case profile.InstanceSizer:
		end = start + int64(sizer.InstanceSize(parent.Scope(), self.reader, start))
	case profile.Sizer:
		end = start + int64(sizer.Size())
	}

	return &Field{
		Name:  name,
		Type:  delegateType(delegate),
		Start: start,
		End:   end,
		Value: normalize(value),
	}
}

func (self *treeWalker) walkArray(name string, arr *profile.ArrayObject) *Field {
	result := &Field{
		Name:  name,
		Type:  "array",
		Start: arr.Start(),
		End:   arr.End(),
	}

	contents := arr.Contents()

	// Arrays of structs become subtrees. Scalar arrays stay a
	// single leaf holding the element values.
	structured := false
	for _, element := range contents {
		if _, ok := element.(*profile.StructObject); ok {
			structured = true
			break
		}
	}

	if !structured {
		values := make([]interface{}, 0, len(contents))
		for _, element := range contents {
			values = append(values, normalize(element))
		}
		result.Value = values
		return result
	}

	result.Children = []*Field{}
	for idx, element := range contents {
		self.checkCancelled()

		label := name + "[" + strconv.Itoa(idx) + "]"
		if obj, ok := element.(*profile.StructObject); ok {
			result.Children = append(result.Children, self.walkStruct(label, obj))
		} else {
			result.Children = append(result.Children, &Field{
				Name:  label,
				Start: arr.Start(),
				End:   arr.End(),
				Value: normalize(element),
			})
		}
	}

	return result
}

func (self *treeWalker) push(frame string) {
	self.frames = append(self.frames, frame)
}

func (self *treeWalker) pop() {
	self.frames = self.frames[:len(self.frames)-1]
}

func (self *treeWalker) checkCancelled() {
	if err := self.ctx.Err(); err != nil {
		panic(err)
	}
}

// toFailure classifies a recovered panic value. The frame list
// starts with the dispatch frame, then the walker's stack innermost
// first.
func (self *treeWalker) toFailure(recovered interface{}) *Failure {
	frames := []string{dispatchFrame}
	for i := len(self.frames) - 1; i >= 0; i-- {
		frames = append(frames, self.frames[i])
	}

	failure := &Failure{
		Message:     fmt.Sprintf("%v", recovered),
		Frames:      frames,
		ProgramPath: self.program.Path,
		BodyOffset:  self.program.BodyOffset,
	}

	switch {
	case self.ctx.Err() != nil:
		failure.Kind = Cancelled
	case isBoundsViolation(recovered):
		failure.Kind = OutOfBounds
	default:
		failure.Kind = Runtime
	}

	return failure
}

func isBoundsViolation(recovered interface{}) bool {
	_, ok := recovered.(*profile.BoundsViolation)
	return ok
}

func delegateType(parser profile.Parser) string {
	if namer, ok := parser.(typeNamer); ok {
		return namer.TypeName()
	}
	return ""
}

func normalize(value interface{}) interface{} {
	if profile.IsNil(value) {
		return nil
	}
	if _, ok := value.(vfilter.Null); ok {
		return nil
	}
	return value
}
