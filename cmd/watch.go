package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zjrosen/structds/internal/flags"
	"github.com/zjrosen/structds/internal/literal"
	"github.com/zjrosen/structds/internal/log"
	"github.com/zjrosen/structds/internal/presentation"
	"github.com/zjrosen/structds/internal/watcher"
)

// literalSuffix replaces the .csv extension of a watched file.
const literalSuffix = ".literal.yaml"

var datasetWatchCmd = &cobra.Command{
	Use:   "dataset:watch [inbox]",
	Short: "Encode every CSV file dropped into an inbox directory",
	Long: `Watch an inbox directory and encode each CSV file once writes to it settle.
The literal is written next to the file as <name>.literal.yaml and every
dispatch is reported on stdout.

watch.protocol and watch.format in the config override the type defaults.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inbox := cfg.Watch.Inbox
		if len(args) == 1 {
			inbox = args[0]
		}
		if err := os.MkdirAll(inbox, 0o750); err != nil {
			return fmt.Errorf("creating inbox: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		wcfg := watcher.DefaultConfig(inbox)
		if cfg.Watch.Debounce > 0 {
			wcfg.DebounceDur = cfg.Watch.Debounce
		}
		w, err := watcher.New(wcfg)
		if err != nil {
			return err
		}
		defer func() { _ = w.Stop() }()
		batches, err := w.Start()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if !current.flags.Enabled(flags.FlagDispatchEvents) {
			current.mirrorEvents(ctx, presentation.NewFormatter(out, jsonOut))
		}
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "watching %s\n", inbox)

		for {
			select {
			case <-ctx.Done():
				return nil
			case batch := <-batches:
				processBatch(ctx, out, batch)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(datasetWatchCmd)
}

// processBatch encodes each file and writes its literal alongside. Failures
// are reported and do not stop the batch.
func processBatch(ctx context.Context, out io.Writer, paths []string) int {
	ok := 0
	for _, path := range paths {
		if err := encodeInboxFile(ctx, path); err != nil {
			log.ErrorErr(log.CatWatcher, "Encode failed", err, "path", path)
			_, _ = fmt.Fprintf(out, "error %s: %v\n", path, err)
			continue
		}
		ok++
	}
	return ok
}

func encodeInboxFile(ctx context.Context, path string) error {
	f, err := readCSVFile(path)
	if err != nil {
		return err
	}

	var uri string
	if p := cfg.Watch.Protocol; p != "" {
		store, err := current.router.For(p)
		if err != nil {
			return err
		}
		uri = store.NewURI(filepath.Base(path))
	}
	lit, err := encodeFrame(ctx, f, uri, cfg.Watch.Format)
	if err != nil {
		return err
	}
	return literal.WriteFile(literalPath(path), lit)
}

func literalPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + literalSuffix
}
