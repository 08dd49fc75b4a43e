// Package catalog discovers parser programs on disk and selects the
// right program for a file. It owns the selection cache and is the
// only component that mutates it.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Velocidex/yaml"
	"www.velocidex.com/golang/vfilter"

	"github.com/Lee20171010/binary-file-viewer/internal/profile"
	"github.com/Lee20171010/binary-file-viewer/internal/reader"
)

var (
	// ErrInvalidMetadata marks a parser program whose declared match
	// metadata is malformed. The program is excluded from the
	// catalog; discovery of the others continues.
	ErrInvalidMetadata = errors.New("invalid parser metadata")
)

// Parser program files carry one of these suffixes.
var programSuffixes = []string{".bfv.yaml", ".bfv.yml"}

// Revision identifies the on-disk state of a parser program at the
// time it was read. Invalidation decisions compare revisions, never
// event arrival order.
type Revision struct {
	ModTime int64 `json:"mtime"`
	Size    int64 `json:"size"`
}

func (self Revision) Equal(other Revision) bool {
	return self.ModTime == other.ModTime && self.Size == other.Size
}

func revisionOf(path string) (Revision, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Revision{}, err
	}
	return Revision{
		ModTime: info.ModTime().UnixNano(),
		Size:    info.Size(),
	}, nil
}

// programSpec is the top level metadata of a parser program file.
type programSpec struct {
	Name       string   `yaml:"name"`
	Extensions []string `yaml:"extensions"`
	Sniff      string   `yaml:"sniff"`
	SniffType  string   `yaml:"sniff_type"`
	Root       string   `yaml:"root"`
	Structs    string   `yaml:"structs"`
}

// Program is one discovered parser program.
type Program struct {
	Path   string
	Name   string
	Source string

	// Extensions are stored lower case, with the leading dot.
	Extensions []string

	// The executable body - struct definitions in the profile
	// definition language.
	Body string

	// Number of lines ahead of the body inside the source file.
	// Diagnostics add this to body relative lines so they land on
	// the user's actual source line.
	BodyOffset int

	// Root is the struct decoded at offset 0.
	Root string

	// SniffType, when set, is the struct the sniff lambda receives.
	// Otherwise the lambda receives the raw prefix as a string.
	SniffType string

	Revision Revision

	sniff     *vfilter.Lambda
	sniff_src string
}

// HasSniff reports whether the program declared a content sniff
// predicate.
func (self *Program) HasSniff() bool {
	return self.sniff != nil
}

// MatchesExtension checks the extension (with leading dot) against
// the declared match list, case insensitively.
func (self *Program) MatchesExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range self.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Sniff runs the declared content predicate over a prefix of the
// target file. A program without a predicate reports false - the
// selector treats it as undistinguished, not as matched. Any error
// inside the predicate counts as no match.
func (self *Program) Sniff(prefix []byte) (matched bool) {
	if self.sniff == nil {
		return false
	}

	defer func() {
		// A sniff over a short prefix may read out of bounds. That
		// only means this predicate cannot claim the file.
		if r := recover(); r != nil {
			matched = false
		}
	}()

	scope := profile.MakeScope()
	defer scope.Close()

	var arg vfilter.Any = string(prefix)

	if self.SniffType != "" {
		prof := profile.NewProfile()
		profile.AddModel(prof)
		if err := prof.ParseStructDefinitions(self.Body); err != nil {
			return false
		}

		r := reader.NewBoundedReaderAt(context.Background(), prefix)
		obj, err := prof.Parse(scope, self.SniffType, r, 0)
		if err != nil {
			return false
		}
		arg = obj
	}

	result := self.sniff.Reduce(
		context.Background(), scope, []vfilter.Any{arg})
	return scope.Bool(result)
}

// LoadProgram reads and validates one parser program file.
func LoadProgram(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	revision, err := revisionOf(path)
	if err != nil {
		return nil, err
	}

	var spec programSpec
	err = yaml.Unmarshal(data, &spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %v", ErrInvalidMetadata, path, err)
	}

	if len(spec.Extensions) == 0 {
		return nil, fmt.Errorf("%w: %v: no extensions declared",
			ErrInvalidMetadata, path)
	}

	if spec.Root == "" {
		return nil, fmt.Errorf("%w: %v: no root struct declared",
			ErrInvalidMetadata, path)
	}

	if strings.TrimSpace(spec.Structs) == "" {
		return nil, fmt.Errorf("%w: %v: empty structs body",
			ErrInvalidMetadata, path)
	}

	result := &Program{
		Path:       path,
		Name:       spec.Name,
		Source:     string(data),
		Body:       spec.Structs,
		BodyOffset: bodyOffset(string(data), spec.Structs),
		Root:       spec.Root,
		SniffType:  spec.SniffType,
		Revision:   revision,
		sniff_src:  spec.Sniff,
	}

	for _, ext := range spec.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" || !strings.HasPrefix(ext, ".") {
			return nil, fmt.Errorf("%w: %v: extension %q must start with a dot",
				ErrInvalidMetadata, path, ext)
		}
		result.Extensions = append(result.Extensions, ext)
	}

	if spec.Sniff != "" {
		result.sniff, err = vfilter.ParseLambda(spec.Sniff)
		if err != nil {
			return nil, fmt.Errorf("%w: %v: sniff expression: %v",
				ErrInvalidMetadata, path, err)
		}
	}

	// Compile the body once at load so definition errors surface
	// during discovery rather than at decode time.
	prof := profile.NewProfile()
	profile.AddModel(prof)
	err = prof.ParseStructDefinitions(result.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %v", ErrInvalidMetadata, path, err)
	}

	if _, ok := prof.GetStruct(spec.Root); !ok {
		return nil, fmt.Errorf("%w: %v: root struct %v is not defined",
			ErrInvalidMetadata, path, spec.Root)
	}

	return result, nil
}

// bodyOffset derives the number of source lines ahead of the body
// block from the actual file layout - line 1 of the body plus the
// offset is its line in the file. The body is a YAML block scalar,
// so it starts on the line after the "structs:" key.
func bodyOffset(source, body string) int {
	lines := strings.Split(source, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "structs:") {
			rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "structs:"))
			if rest == "" || rest == "|" || rest == ">" || rest == "|-" || rest == ">-" {
				return i + 1
			}
			// Inline body - it sits on the structs line itself.
			return i
		}
	}
	return 0
}

// IsParserDoc reports whether path looks like a parser program
// source file.
func IsParserDoc(path string) bool {
	lower := strings.ToLower(path)
	for _, suffix := range programSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
