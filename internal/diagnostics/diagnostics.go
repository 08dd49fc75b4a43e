// Package diagnostics turns sandbox failures into positioned
// messages against the parser program source. The user edits the
// program file, so every position must land on a line of that file
// rather than on a line of the embedded body.
package diagnostics

import (
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/Lee20171010/binary-file-viewer/internal/sandbox"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one message anchored to a parser program source
// line. Line is 1-based; 0 means the position could not be
// recovered and the whole file is implicated.
type Diagnostic struct {
	Path     string   `json:"path"`
	Line     int      `json:"line"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Matches the trailing ":<line>)" of a walker frame.
var frameLine = regexp.MustCompile(`:(\d+)\)$`)

// Translate maps a failure to a diagnostic against the program
// source. The summary is the first message line. The position comes
// from the first user frame - frame zero is the dispatch boundary -
// translated from body relative to file line by adding the
// program's body offset. Cancellation is not a program error and
// yields no diagnostic.
func Translate(failure *sandbox.Failure) (Diagnostic, bool) {
	if failure == nil || failure.Kind == sandbox.Cancelled {
		return Diagnostic{}, false
	}

	line := 0
	if len(failure.Frames) > 1 {
		if m := frameLine.FindStringSubmatch(failure.Frames[1]); m != nil {
			line, _ = strconv.Atoi(m[1])
		}
	}
	if line > 0 {
		line += failure.BodyOffset
	}

	return Diagnostic{
		Path:     failure.ProgramPath,
		Line:     line,
		Severity: SeverityError,
		Message:  failure.Summary(),
	}, true
}

// Collection holds at most one diagnostic per parser program. A
// later report for the same program replaces the earlier one; a
// successful decode clears it.
type Collection struct {
	mu      sync.Mutex
	entries map[string]Diagnostic
}

func NewCollection() *Collection {
	return &Collection{
		entries: make(map[string]Diagnostic),
	}
}

// Report records the diagnostic for its program path, replacing
// any previous one.
func (self *Collection) Report(d Diagnostic) {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.entries[d.Path] = d
}

// ClearFor removes the diagnostic for a program path. Called on a
// successful decode and when a program is deleted.
func (self *Collection) ClearFor(path string) {
	self.mu.Lock()
	defer self.mu.Unlock()
	delete(self.entries, path)
}

// Get returns the current diagnostic for a program path.
func (self *Collection) Get(path string) (Diagnostic, bool) {
	self.mu.Lock()
	defer self.mu.Unlock()
	d, pres := self.entries[path]
	return d, pres
}

// All returns the diagnostics sorted by program path.
func (self *Collection) All() []Diagnostic {
	self.mu.Lock()
	defer self.mu.Unlock()

	result := make([]Diagnostic, 0, len(self.entries))
	for _, d := range self.entries {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Path < result[j].Path
	})
	return result
}
