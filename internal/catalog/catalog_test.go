package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plainProgram = `
name: plain
extensions: [".bin"]
root: Header
structs: |
  [
    ["Header", 4, [
      ["Magic", 0, "uint32"]
    ]]
  ]
`

const magicProgram = `
name: magic
extensions: [".bin"]
sniff: "x=>x =~ 'MAGC'"
root: Header
structs: |
  [
    ["Header", 4, [
      ["Magic", 0, "uint32"]
    ]]
  ]
`

const decodedSniffProgram = `
name: decoded
extensions: [".dat"]
sniff: "x=>x.Magic = 1128743245"
sniff_type: Header
root: Header
structs: |
  [
    ["Header", 4, [
      ["Magic", 0, "uint32"]
    ]]
  ]
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newTestCatalog(t *testing.T, dirs ...string) *Catalog {
	t.Helper()
	c := New(Options{Logger: zerolog.Nop()})
	require.NoError(t, c.Init(dirs))
	return c
}

func TestSniffWinsOverDiscoveryOrder(t *testing.T) {
	dir := t.TempDir()

	// The sniff-less program is discovered first. The sniffing
	// program must still win when its predicate matches.
	writeFile(t, dir, "a_plain.bfv.yaml", plainProgram)
	magicPath := writeFile(t, dir, "b_magic.bfv.yaml", magicProgram)

	target := writeFile(t, dir, "sample.bin", "MAGC payload")

	c := newTestCatalog(t, dir)
	program, err := c.SelectParser(target)
	require.NoError(t, err)
	assert.Equal(t, magicPath, program.Path)
	assert.Empty(t, c.TestedParserFilePaths())
}

func TestFallbackToSniffless(t *testing.T) {
	dir := t.TempDir()

	plainPath := writeFile(t, dir, "a_plain.bfv.yaml", plainProgram)
	writeFile(t, dir, "b_magic.bfv.yaml", magicProgram)

	target := writeFile(t, dir, "sample.bin", "not the magic")

	c := newTestCatalog(t, dir)
	program, err := c.SelectParser(target)
	require.NoError(t, err)
	assert.Equal(t, plainPath, program.Path)
}

func TestAllSniffsRejected(t *testing.T) {
	dir := t.TempDir()

	magicPath := writeFile(t, dir, "magic.bfv.yaml", magicProgram)
	target := writeFile(t, dir, "sample.bin", "something else")

	c := newTestCatalog(t, dir)
	program, err := c.SelectParser(target)
	assert.Nil(t, program)
	assert.ErrorIs(t, err, ErrNoParserAvailable)

	// The rejected candidates must be reported for display.
	assert.Equal(t, []string{magicPath}, c.TestedParserFilePaths())
}

func TestNoExtensionMatch(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "magic.bfv.yaml", magicProgram)
	target := writeFile(t, dir, "sample.unknown", "MAGC")

	c := newTestCatalog(t, dir)
	_, err := c.SelectParser(target)
	assert.ErrorIs(t, err, ErrNoParserAvailable)
	assert.Empty(t, c.TestedParserFilePaths())
}

func TestSniffOverDecodedPrefix(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "decoded.bfv.yaml", decodedSniffProgram)
	target := writeFile(t, dir, "sample.dat", "MAGC and more")

	c := newTestCatalog(t, dir)
	program, err := c.SelectParser(target)
	require.NoError(t, err)
	assert.Equal(t, "decoded", program.Name)
}

func TestSniffShortFile(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "magic.bfv.yaml", magicProgram)

	// The file is far shorter than the sniff window. The predicate
	// must still see every byte the file has.
	target := writeFile(t, dir, "tiny.bin", "MAGC")

	c := newTestCatalog(t, dir)
	program, err := c.SelectParser(target)
	require.NoError(t, err)
	assert.Equal(t, "magic", program.Name)
}

func TestMalformedProgramExcludedNotFatal(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "broken.bfv.yaml", "name: broken\nroot: Missing\n")
	plainPath := writeFile(t, dir, "plain.bfv.yaml", plainProgram)

	c := newTestCatalog(t, dir)
	require.Len(t, c.Programs(), 1)

	target := writeFile(t, dir, "sample.bin", "data")
	program, err := c.SelectParser(target)
	require.NoError(t, err)
	assert.Equal(t, plainPath, program.Path)
}

func TestProgramChangeInvalidatesSelection(t *testing.T) {
	dir := t.TempDir()

	progPath := writeFile(t, dir, "plain.bfv.yaml", plainProgram)
	target := writeFile(t, dir, "sample.bin", "data")

	c := newTestCatalog(t, dir)
	program, err := c.SelectParser(target)
	require.NoError(t, err)
	assert.Equal(t, "plain", program.Name)

	// Rewrite the program under a new name. The size change plus a
	// bumped mtime guarantees a new revision token.
	updated := plainProgram + "\n# revised\n"
	require.NoError(t, os.WriteFile(progPath, []byte(updated), 0644))
	require.NoError(t, os.Chtimes(progPath,
		time.Now().Add(time.Second), time.Now().Add(time.Second)))

	removed := c.UpdateIfParserFile([]string{progPath})
	assert.Empty(t, removed)

	program, err = c.SelectParser(target)
	require.NoError(t, err)
	assert.Equal(t, updated, program.Source)
}

func TestProgramRemoval(t *testing.T) {
	dir := t.TempDir()

	magicPath := writeFile(t, dir, "magic.bfv.yaml", magicProgram)
	plainPath := writeFile(t, dir, "plain.bfv.yaml", plainProgram)
	target := writeFile(t, dir, "sample.bin", "MAGC")

	c := newTestCatalog(t, dir)
	program, err := c.SelectParser(target)
	require.NoError(t, err)
	assert.Equal(t, magicPath, program.Path)

	require.NoError(t, os.Remove(magicPath))
	removed := c.UpdateIfParserFile([]string{magicPath})
	assert.Equal(t, []string{magicPath}, removed)

	program, err = c.SelectParser(target)
	require.NoError(t, err)
	assert.Equal(t, plainPath, program.Path)
}

func TestTargetFileChangeDropsOnlyItsSelection(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "magic.bfv.yaml", magicProgram)
	matching := writeFile(t, dir, "match.bin", "MAGC data")

	c := newTestCatalog(t, dir)
	program, err := c.SelectParser(matching)
	require.NoError(t, err)
	assert.Equal(t, "magic", program.Name)

	// The file changes so the previous sniff decision no longer
	// applies. The next selection re-sniffs and now fails.
	require.NoError(t, os.WriteFile(matching, []byte("different"), 0644))
	removed := c.UpdateIfParserFile([]string{matching})
	assert.Empty(t, removed)

	_, err = c.SelectParser(matching)
	assert.ErrorIs(t, err, ErrNoParserAvailable)
}

func TestPersistentSelectionStore(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "selections.db")

	magicPath := writeFile(t, dir, "magic.bfv.yaml", magicProgram)
	target := writeFile(t, dir, "sample.bin", "MAGC")

	store, err := OpenStore(dbPath)
	require.NoError(t, err)

	c := New(Options{Store: store, Logger: zerolog.Nop()})
	require.NoError(t, c.Init([]string{dir}))

	program, err := c.SelectParser(target)
	require.NoError(t, err)
	assert.Equal(t, magicPath, program.Path)

	entry, found := store.Get(target)
	require.True(t, found)
	assert.Equal(t, magicPath, entry.ProgramPath)
	require.NoError(t, c.Close())

	// A fresh catalog over the same store reuses the decision.
	store, err = OpenStore(dbPath)
	require.NoError(t, err)
	c = New(Options{Store: store, Logger: zerolog.Nop()})
	require.NoError(t, c.Init([]string{dir}))

	program, err = c.SelectParser(target)
	require.NoError(t, err)
	assert.Equal(t, magicPath, program.Path)
	require.NoError(t, c.Close())
}

func TestStoreDeleteByProgram(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "selections.db")
	store, err := OpenStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put("/data/a.bin",
		selection{ProgramPath: "/parsers/a.bfv.yaml"}))
	require.NoError(t, store.Put("/data/b.bin",
		selection{ProgramPath: "/parsers/b.bfv.yaml"}))

	require.NoError(t, store.DeleteByProgram("/parsers/a.bfv.yaml"))

	_, found := store.Get("/data/a.bin")
	assert.False(t, found)
	_, found = store.Get("/data/b.bin")
	assert.True(t, found)
}

func TestProgramLineOffsets(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "plain.bfv.yaml", plainProgram)

	program, err := LoadProgram(path)
	require.NoError(t, err)

	// The body starts on the line after the structs key. The
	// program text begins with a blank line, so the key sits on
	// line index 4.
	assert.Equal(t, 5, program.BodyOffset)
}
