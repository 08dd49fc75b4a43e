package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lee20171010/binary-file-viewer/internal/catalog"
)

const headerProgram = `
name: header
extensions: [".bin"]
root: Header
structs: |
  [
    ["Header", 8, [
      ["Magic", 0, "uint32"],
      ["Count", 4, "uint16"],
      ["Items", 8, "Array", {"type": "Item", "count": "x=>x.Count"}]
    ]],
    ["Item", 2, [
      ["Value", 0, "uint16"]
    ]]
  ]
`

func loadTestProgram(t *testing.T, source string) *catalog.Program {
	t.Helper()
	path := filepath.Join(t.TempDir(), "header.bfv.yaml")
	require.NoError(t, os.WriteFile(path, []byte(source), 0644))

	program, err := catalog.LoadProgram(path)
	require.NoError(t, err)
	return program
}

func TestExecuteTree(t *testing.T) {
	program := loadTestProgram(t, headerProgram)

	data := []byte{
		0x4D, 0x41, 0x47, 0x43, // Magic
		0x02, 0x00, // Count = 2
		0x00, 0x00, // padding
		0x0A, 0x00, // Items[0].Value = 10
		0x14, 0x00, // Items[1].Value = 20
	}

	sb := New(zerolog.Nop())
	tree, failure := sb.Execute(context.Background(), program, "sample.bin", data)
	require.Nil(t, failure)
	require.NotNil(t, tree)

	root := tree.Root
	assert.Equal(t, "Header", root.Type)
	assert.Equal(t, int64(0), root.Start)
	assert.Equal(t, int64(8), root.End)
	require.Len(t, root.Children, 3)

	magic := root.Children[0]
	assert.Equal(t, "Magic", magic.Name)
	assert.Equal(t, "uint32", magic.Type)
	assert.Equal(t, int64(0), magic.Start)
	assert.Equal(t, int64(4), magic.End)
	assert.Equal(t, uint64(0x4347414D), magic.Value)

	count := root.Children[1]
	assert.Equal(t, "Count", count.Name)
	assert.Equal(t, int64(4), count.Start)
	assert.Equal(t, int64(6), count.End)
	assert.Equal(t, uint64(2), count.Value)

	items := root.Children[2]
	assert.Equal(t, "Items", items.Name)
	assert.Equal(t, "array", items.Type)
	require.Len(t, items.Children, 2)

	assert.Equal(t, "Items[0]", items.Children[0].Name)
	assert.Equal(t, int64(8), items.Children[0].Start)
	assert.Equal(t, int64(10), items.Children[0].End)
	assert.Equal(t, uint64(10), items.Children[0].Children[0].Value)
	assert.Equal(t, uint64(20), items.Children[1].Children[0].Value)
}

func TestExecuteOutOfBounds(t *testing.T) {
	program := loadTestProgram(t, headerProgram)

	// Only two bytes - the Magic read cannot fit.
	sb := New(zerolog.Nop())
	tree, failure := sb.Execute(
		context.Background(), program, "short.bin", []byte{0x01, 0x02})

	assert.Nil(t, tree)
	require.NotNil(t, failure)
	assert.Equal(t, OutOfBounds, failure.Kind)
	assert.Equal(t, program.Path, failure.ProgramPath)

	// The dispatch frame leads, then the faulting declaration.
	require.True(t, len(failure.Frames) >= 2)
	assert.Equal(t, dispatchFrame, failure.Frames[0])
	assert.Contains(t, failure.Frames[1], "Header.Magic")
	assert.Contains(t, failure.Frames[1], program.Path+":3")
}

func TestExecuteCancelled(t *testing.T) {
	program := loadTestProgram(t, headerProgram)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sb := New(zerolog.Nop())
	tree, failure := sb.Execute(ctx, program, "sample.bin", make([]byte, 16))

	assert.Nil(t, tree)
	require.NotNil(t, failure)
	assert.Equal(t, Cancelled, failure.Kind)
}

func TestFailureSummary(t *testing.T) {
	failure := &Failure{
		Kind:    Runtime,
		Message: "first line\nsecond line",
	}
	assert.Equal(t, "first line", failure.Summary())
	assert.Equal(t, "runtime: first line", failure.Error())
}

func TestRegistrySupersede(t *testing.T) {
	registry := NewRegistry()

	first, release1 := registry.Begin(context.Background(), "a.bin")
	defer release1()

	second, release2 := registry.Begin(context.Background(), "a.bin")
	defer release2()

	// Opening the second session cancels the first.
	assert.Error(t, first.Err())
	assert.NoError(t, second.Err())

	// An unrelated document is untouched.
	other, releaseOther := registry.Begin(context.Background(), "b.bin")
	defer releaseOther()
	assert.NoError(t, other.Err())

	registry.Close("a.bin")
	assert.Error(t, second.Err())
	assert.NoError(t, other.Err())

	registry.CloseAll()
	assert.Error(t, other.Err())
}

func TestTreeJSON(t *testing.T) {
	program := loadTestProgram(t, headerProgram)

	data := []byte{
		0x4D, 0x41, 0x47, 0x43,
		0x00, 0x00, // Count = 0
		0x00, 0x00,
	}

	sb := New(zerolog.Nop())
	tree, failure := sb.Execute(context.Background(), program, "sample.bin", data)
	require.Nil(t, failure)

	serialized, err := tree.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(serialized), `"name":"Magic"`)
	assert.Contains(t, string(serialized), `"program":`)
}