package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lee20171010/binary-file-viewer/internal/sandbox"
)

func TestTranslatePosition(t *testing.T) {
	failure := &sandbox.Failure{
		Kind:    sandbox.OutOfBounds,
		Message: "read of 4 bytes at 12 exceeds buffer of 8\nwhile decoding",
		Frames: []string{
			"decode (dispatch)",
			"Header.Magic (/parsers/gif.bfv.yaml:3)",
			"Image.Header (/parsers/gif.bfv.yaml:9)",
		},
		ProgramPath: "/parsers/gif.bfv.yaml",
		BodyOffset:  5,
	}

	d, ok := Translate(failure)
	require.True(t, ok)
	assert.Equal(t, "/parsers/gif.bfv.yaml", d.Path)
	assert.Equal(t, 8, d.Line) // body line 3 plus 5 lines of metadata
	assert.Equal(t, SeverityError, d.Severity)
	assert.Equal(t, "read of 4 bytes at 12 exceeds buffer of 8", d.Message)
}

func TestTranslateNoUserFrames(t *testing.T) {
	failure := &sandbox.Failure{
		Kind:        sandbox.Runtime,
		Message:     "root Header is not a struct",
		Frames:      []string{"decode (dispatch)"},
		ProgramPath: "/parsers/gif.bfv.yaml",
		BodyOffset:  5,
	}

	d, ok := Translate(failure)
	require.True(t, ok)

	// No position could be recovered - line 0 implicates the file.
	assert.Equal(t, 0, d.Line)
}

func TestTranslateCancelledSuppressed(t *testing.T) {
	failure := &sandbox.Failure{
		Kind:    sandbox.Cancelled,
		Message: "context canceled",
	}

	_, ok := Translate(failure)
	assert.False(t, ok)

	_, ok = Translate(nil)
	assert.False(t, ok)
}

func TestCollectionReplaces(t *testing.T) {
	c := NewCollection()

	c.Report(Diagnostic{Path: "a.bfv.yaml", Line: 3, Message: "first"})
	c.Report(Diagnostic{Path: "a.bfv.yaml", Line: 7, Message: "second"})
	c.Report(Diagnostic{Path: "b.bfv.yaml", Line: 1, Message: "other"})

	d, pres := c.Get("a.bfv.yaml")
	require.True(t, pres)
	assert.Equal(t, "second", d.Message)
	assert.Equal(t, 7, d.Line)

	all := c.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a.bfv.yaml", all[0].Path)
	assert.Equal(t, "b.bfv.yaml", all[1].Path)

	c.ClearFor("a.bfv.yaml")
	_, pres = c.Get("a.bfv.yaml")
	assert.False(t, pres)
	assert.Len(t, c.All(), 1)
}
