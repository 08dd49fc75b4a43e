package catalog

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForBatch(ch <-chan []string, timeout time.Duration) ([]string, bool) {
	select {
	case batch := <-ch:
		return batch, true
	case <-time.After(timeout):
		return nil, false
	}
}

func TestWatcherAppliesProgramChange(t *testing.T) {
	dir := t.TempDir()
	progPath := writeFile(t, dir, "plain.bfv.yaml", plainProgram)

	c := newTestCatalog(t, dir)
	require.Len(t, c.Programs(), 1)

	w, err := NewWatcher(c, 20*time.Millisecond, zerolog.Nop())
	require.NoError(t, err)

	applied := make(chan []string, 10)
	w.OnApplied = func(changed, removed []string) {
		applied <- changed
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Give the watcher time to start.
	time.Sleep(50 * time.Millisecond)

	updated := plainProgram + "\n# revised\n"
	require.NoError(t, os.WriteFile(progPath, []byte(updated), 0644))

	batch, ok := waitForBatch(applied, 2*time.Second)
	require.True(t, ok, "expected a change batch")
	assert.Contains(t, batch, progPath)

	// The catalog picked up the new source.
	programs := c.Programs()
	require.Len(t, programs, 1)
	assert.Equal(t, updated, programs[0].Source)
}

func TestWatcherReportsRemovedProgram(t *testing.T) {
	dir := t.TempDir()
	progPath := writeFile(t, dir, "plain.bfv.yaml", plainProgram)

	c := newTestCatalog(t, dir)

	w, err := NewWatcher(c, 20*time.Millisecond, zerolog.Nop())
	require.NoError(t, err)

	removedCh := make(chan []string, 10)
	w.OnApplied = func(changed, removed []string) {
		if len(removed) > 0 {
			removedCh <- removed
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.Remove(progPath))

	removed, ok := waitForBatch(removedCh, 2*time.Second)
	require.True(t, ok, "expected a removal notification")
	assert.Equal(t, []string{progPath}, removed)
	assert.Empty(t, c.Programs())
}
