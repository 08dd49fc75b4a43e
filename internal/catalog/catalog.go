package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNoParserAvailable reports a selection that found no
	// candidate. The tested candidate list is available from
	// TestedParserFilePaths for display.
	ErrNoParserAvailable = errors.New("no parser available")
)

// selection is one cached selection decision. It stays valid only
// while the chosen program's revision still matches.
type selection struct {
	ProgramPath string   `json:"program"`
	Revision    Revision `json:"revision"`
}

// Options configure a Catalog.
type Options struct {
	// SniffBytes is the prefix length handed to content sniff
	// predicates.
	SniffBytes int

	// Store persists selections across runs. Optional.
	Store *Store

	Logger zerolog.Logger
}

// Catalog holds the discovered parser programs and the selection
// cache. All mutation goes through its methods; the maps are never
// shared out.
type Catalog struct {
	mu sync.RWMutex

	dirs []string

	// programs keyed by source path, order preserving discovery
	// order for the deterministic tie break.
	programs map[string]*Program
	order    []string

	cache map[string]selection

	// The candidates evaluated and rejected by the most recent
	// failed selection.
	tested []string

	sniffBytes int
	store      *Store
	log        zerolog.Logger

	// Collapses concurrent selections of the same file so a slow
	// sniff on one path never holds up unrelated paths.
	selecting singleflight.Group
}

func New(opts Options) *Catalog {
	if opts.SniffBytes <= 0 {
		opts.SniffBytes = 64
	}
	return &Catalog{
		programs:   make(map[string]*Program),
		cache:      make(map[string]selection),
		sniffBytes: opts.SniffBytes,
		store:      opts.Store,
		log:        opts.Logger,
	}
}

// Init rebuilds the catalog from the configured directories. The
// entire selection cache is invalidated. Invalid directories are
// skipped with a warning; a malformed program excludes only itself.
func (c *Catalog) Init(directories []string) error {
	programs := make(map[string]*Program)
	var order []string

	var dirs []string
	for _, dir := range directories {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			c.log.Warn().Str("dir", dir).
				Msg("parser directory is not usable, skipping")
			continue
		}
		dirs = append(dirs, dir)

		err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil // skip inaccessible paths
			}
			if d.IsDir() || !IsParserDoc(path) {
				return nil
			}

			program, err := LoadProgram(path)
			if err != nil {
				c.log.Warn().Str("program", path).Err(err).
					Msg("excluding parser program")
				return nil
			}

			programs[path] = program
			order = append(order, path)
			return nil
		})
		if err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.dirs = dirs
	c.programs = programs
	c.order = order
	c.cache = make(map[string]selection)
	c.tested = nil

	c.log.Info().Int("programs", len(order)).
		Strs("dirs", dirs).Msg("parser catalog rebuilt")
	return nil
}

// Close releases the persistent store, if one was configured.
func (c *Catalog) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// Dirs returns the directories the catalog was built from.
func (c *Catalog) Dirs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.dirs...)
}

// Programs lists the catalog in discovery order.
func (c *Catalog) Programs() []*Program {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*Program, 0, len(c.order))
	for _, path := range c.order {
		if p, pres := c.programs[path]; pres {
			result = append(result, p)
		}
	}
	return result
}

// IsParserDoc reports whether path is a parser program under one of
// the configured directories.
func (c *Catalog) IsParserDoc(path string) bool {
	if !IsParserDoc(path) {
		return false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.underWatchedDirLocked(path)
}

func (c *Catalog) underWatchedDirLocked(path string) bool {
	for _, dir := range c.dirs {
		rel, err := filepath.Rel(dir, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// SelectParser resolves the parser program for filePath, consulting
// the cache first. It returns nil (with ErrNoParserAvailable) when
// nothing matches; the rejected candidates are then available from
// TestedParserFilePaths.
func (c *Catalog) SelectParser(filePath string) (*Program, error) {
	result, err, _ := c.selecting.Do(filePath, func() (interface{}, error) {
		return c.selectParser(filePath)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Program), nil
}

func (c *Catalog) selectParser(filePath string) (*Program, error) {
	if program := c.cachedSelection(filePath); program != nil {
		return program, nil
	}

	ext := strings.ToLower(filepath.Ext(filePath))

	c.mu.RLock()
	var candidates []*Program
	for _, path := range c.order {
		program := c.programs[path]
		if program != nil && program.MatchesExtension(ext) {
			candidates = append(candidates, program)
		}
	}
	c.mu.RUnlock()

	if len(candidates) == 0 {
		c.setTested(nil)
		return nil, fmt.Errorf("%w for %v", ErrNoParserAvailable, filePath)
	}

	chosen, rejected := c.sniffCandidates(filePath, candidates)
	if chosen == nil {
		c.setTested(rejected)
		return nil, fmt.Errorf("%w for %v (tested %v)",
			ErrNoParserAvailable, filePath, rejected)
	}

	c.setTested(nil)
	c.remember(filePath, chosen)
	return chosen, nil
}

// sniffCandidates picks the winner among extension matched
// candidates. A candidate whose declared predicate matches the file
// prefix wins outright, whatever its discovery position. With no
// predicate match the earliest candidate without a predicate is
// taken, so the user always gets a result when one program is
// undemanding. Only when every candidate declared a predicate and
// all predicates rejected the file does selection fail.
func (c *Catalog) sniffCandidates(filePath string, candidates []*Program) (*Program, []string) {
	// Single candidate without a sniff needs no file read at all.
	if len(candidates) == 1 && !candidates[0].HasSniff() {
		return candidates[0], nil
	}

	prefix := c.readPrefix(filePath)

	var fallback *Program
	var rejected []string
	for _, candidate := range candidates {
		if !candidate.HasSniff() {
			if fallback == nil {
				fallback = candidate
			}
			continue
		}
		if candidate.Sniff(prefix) {
			return candidate, nil
		}
		rejected = append(rejected, candidate.Path)
	}

	if fallback != nil {
		return fallback, nil
	}
	return nil, rejected
}

func (c *Catalog) readPrefix(filePath string) []byte {
	f, err := os.Open(filePath)
	if err != nil {
		return nil
	}
	defer f.Close()

	// A short file is fine, a short read is not: sniff predicates
	// must always see everything the file has up to the window size.
	buf := make([]byte, c.sniffBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil
	}
	return buf[:n]
}

// cachedSelection returns the cached program if the entry is still
// valid: the program must still exist at the cached revision and
// the target file must still exist.
func (c *Catalog) cachedSelection(filePath string) *Program {
	c.mu.RLock()
	entry, pres := c.cache[filePath]
	if !pres && c.store != nil {
		entry, pres = c.store.Get(filePath)
	}
	var program *Program
	if pres {
		program = c.programs[entry.ProgramPath]
	}
	c.mu.RUnlock()

	if program == nil {
		return nil
	}

	if !program.Revision.Equal(entry.Revision) {
		c.invalidateFile(filePath)
		return nil
	}

	if _, err := os.Stat(filePath); err != nil {
		c.invalidateFile(filePath)
		return nil
	}

	return program
}

func (c *Catalog) remember(filePath string, program *Program) {
	entry := selection{
		ProgramPath: program.Path,
		Revision:    program.Revision,
	}

	c.mu.Lock()
	c.cache[filePath] = entry
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Put(filePath, entry); err != nil {
			c.log.Warn().Err(err).Msg("persisting selection failed")
		}
	}
}

func (c *Catalog) invalidateFile(filePath string) {
	c.mu.Lock()
	delete(c.cache, filePath)
	c.mu.Unlock()

	if c.store != nil {
		_ = c.store.Delete(filePath)
	}
}

func (c *Catalog) setTested(paths []string) {
	c.mu.Lock()
	c.tested = paths
	c.mu.Unlock()
}

// TestedParserFilePaths reports the programs evaluated and rejected
// by the most recent failed selection, for user display.
func (c *Catalog) TestedParserFilePaths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.tested...)
}

// UpdateIfParserFile applies a batch of file change notifications.
// Parser sources under a watched directory are reloaded (or dropped
// when deleted) and every selection that referenced them is
// invalidated. Any other path only loses its own cached selection
// so the next open recomputes it.
//
// Returns the parser program paths that were removed, so callers
// can clear diagnostics for them.
func (c *Catalog) UpdateIfParserFile(paths []string) []string {
	var removed []string

	for _, path := range paths {
		if !c.IsParserDoc(path) {
			c.invalidateFile(path)
			continue
		}

		if c.updateProgram(path) {
			removed = append(removed, path)
		}
	}

	return removed
}

// updateProgram re-reads one parser source. Reports true when the
// program was removed from the catalog.
func (c *Catalog) updateProgram(path string) bool {
	program, err := LoadProgram(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, existed := c.programs[path]

	if err != nil {
		// Deleted, or now malformed. Either way it can no longer be
		// selected.
		if existed {
			delete(c.programs, path)
			for i, p := range c.order {
				if p == path {
					c.order = append(c.order[:i], c.order[i+1:]...)
					break
				}
			}
			c.invalidateProgramLocked(path)
		}
		if !errors.Is(err, os.ErrNotExist) {
			c.log.Warn().Str("program", path).Err(err).
				Msg("excluding parser program")
		}
		return existed
	}

	// A stale notification may arrive after a newer state was
	// already read. The revision decides which metadata is current.
	if existed && existing.Revision.Equal(program.Revision) {
		return false
	}

	c.programs[path] = program
	if !existed {
		c.order = append(c.order, path)
	}
	c.invalidateProgramLocked(path)
	return false
}

// invalidateProgramLocked drops every selection that referenced the
// program. Caller holds mu.
func (c *Catalog) invalidateProgramLocked(programPath string) {
	for filePath, entry := range c.cache {
		if entry.ProgramPath == programPath {
			delete(c.cache, filePath)
			if c.store != nil {
				_ = c.store.Delete(filePath)
			}
		}
	}
	if c.store != nil {
		_ = c.store.DeleteByProgram(programPath)
	}
}
