package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Lee20171010/binary-file-viewer/internal/catalog"
	"github.com/Lee20171010/binary-file-viewer/internal/diagnostics"
	"github.com/Lee20171010/binary-file-viewer/internal/sandbox"
)

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Decode a file and re-decode it as parser programs change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer cat.Close()

		ctx, stop := signal.NotifyContext(
			context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		filePath := args[0]
		sb := sandbox.New(log)
		registry := sandbox.NewRegistry()
		defer registry.CloseAll()
		collection := diagnostics.NewCollection()

		// Serializes re-decode requests. A burst of changes only
		// needs one more decode after the one in flight.
		trigger := make(chan struct{}, 1)
		kick := func() {
			select {
			case trigger <- struct{}{}:
			default:
			}
		}

		watcher, err := catalog.NewWatcher(cat, cfg.Debounce.Duration, log)
		if err != nil {
			return err
		}
		watcher.OnApplied = func(changed, removed []string) {
			for _, path := range removed {
				collection.ClearFor(path)
			}
			kick()
		}

		group, ctx := errgroup.WithContext(ctx)
		group.Go(func() error {
			return watcher.Run(ctx)
		})

		group.Go(func() error {
			kick() // initial decode
			for {
				select {
				case <-trigger:
					redecode(ctx, cat, sb, registry, collection, filePath)
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		})

		err = group.Wait()
		if err == context.Canceled {
			return nil
		}
		return err
	},
}

// redecode runs one decode of the file, superseding any decode of
// the same file still in flight.
func redecode(ctx context.Context, cat *catalog.Catalog,
	sb *sandbox.Sandbox, registry *sandbox.Registry,
	collection *diagnostics.Collection, filePath string) {

	runCtx, release := registry.Begin(ctx, filePath)
	defer release()

	program, err := cat.SelectParser(filePath)
	if err != nil {
		printSelectionFailure(cat, err)
		return
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		errColor.Fprintln(os.Stderr, err.Error())
		return
	}

	tree, failure := sb.Execute(runCtx, program, filePath, data)
	if failure != nil {
		if diagnostic, ok := diagnostics.Translate(failure); ok {
			collection.Report(diagnostic)
			printFailure(failure)
		}
		return
	}

	collection.ClearFor(program.Path)
	printField(tree.Root, 0)
}
