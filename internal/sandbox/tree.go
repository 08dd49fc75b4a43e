package sandbox

import (
	"github.com/Velocidex/ordereddict"
)

// Field is one decoded node. Leaves carry a value; structs and
// struct arrays carry children. Start and End are byte offsets into
// the decoded buffer, with End exclusive.
type Field struct {
	Name  string
	Type  string
	Start int64
	End   int64

	Value    interface{}
	Children []*Field
}

func (self *Field) dict() *ordereddict.Dict {
	result := ordereddict.NewDict().
		Set("name", self.Name).
		Set("type", self.Type).
		Set("start", self.Start).
		Set("end", self.End)

	if self.Children != nil {
		children := make([]*ordereddict.Dict, 0, len(self.Children))
		for _, child := range self.Children {
			children = append(children, child.dict())
		}
		return result.Set("children", children)
	}

	return result.Set("value", self.Value)
}

func (self *Field) MarshalJSON() ([]byte, error) {
	return self.dict().MarshalJSON()
}

// Tree is the result of a completed decode run.
type Tree struct {
	FilePath    string
	ProgramPath string
	Root        *Field
}

func (self *Tree) MarshalJSON() ([]byte, error) {
	return ordereddict.NewDict().
		Set("file", self.FilePath).
		Set("program", self.ProgramPath).
		Set("root", self.Root).
		MarshalJSON()
}
