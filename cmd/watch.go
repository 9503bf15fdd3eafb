package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/pkgbuild/internal/config"
	"github.com/conneroisu/pkgbuild/internal/errors"
	"github.com/conneroisu/pkgbuild/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Build, then rebuild whenever sources change",
	Long: `Build the package once, then watch the source directory and rebuild
after each burst of changes settles. Changes to package.json or
tsconfig*.json in the package directory also trigger a rebuild.

A failed rebuild is reported and watching continues.

Examples:
  pkgbuild watch                  # Watch ./src and rebuild into ./pkg
  pkgbuild watch --verbose        # List the changed files on each rebuild`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return SetViperBindings(cmd, buildBindings)
	},
	RunE: runWatch,
}

var (
	watchFlags   *BuildFlags
	watchVerbose bool
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchFlags = AddBuildFlags(watchCmd)
	watchCmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "List changed files")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	w := &watchSession{
		pipeline: &pipeline{cwd: cwd, cfg: cfg, out: out, logger: newLogger(cfg, cmd.ErrOrStderr())},
		verbose:  watchVerbose,
	}

	fileWatcher, err := w.setup(ctx, watchFlags.Clean)
	if err != nil {
		return err
	}
	defer fileWatcher.Stop()

	fmt.Fprintln(out, "👀 Watching for changes... (Press Ctrl+C to stop)")
	<-ctx.Done()
	fmt.Fprintln(out, "\n🛑 Stopping file watcher...")
	return nil
}

// watchSession serializes rebuilds triggered by the file watcher.
type watchSession struct {
	pipeline *pipeline
	verbose  bool
	mu       sync.Mutex
	builds   int
}

// setup runs the initial build and starts a watcher wired to rebuild.
func (w *watchSession) setup(ctx context.Context, clean bool) (*watcher.FileWatcher, error) {
	w.build(ctx, clean)

	cfg := w.pipeline.cfg
	fileWatcher, err := watcher.NewFileWatcher(cfg.Watch.Debounce, w.pipeline.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	outDir := w.pipeline.outDir()
	fileWatcher.SkipDirs(watcher.Not(watcher.IgnoreFilter(cfg.Watch.Ignore)))
	fileWatcher.SkipDirs(watcher.UnderFilter(outDir))
	fileWatcher.AddFilter(watcher.IgnoreFilter(cfg.Watch.Ignore))
	fileWatcher.AddFilter(watcher.Not(watcher.UnderFilter(outDir)))
	fileWatcher.AddFilter(w.relevant)
	fileWatcher.AddHandler(w.onChange)

	srcRoot := w.pipeline.sources().Root()
	if _, err := os.Stat(srcRoot); err == nil {
		if err := fileWatcher.AddRecursive(srcRoot); err != nil {
			fileWatcher.Stop()
			return nil, fmt.Errorf("failed to watch %s: %w", srcRoot, err)
		}
	}
	if err := fileWatcher.AddPath(w.pipeline.cwd); err != nil {
		fileWatcher.Stop()
		return nil, fmt.Errorf("failed to watch %s: %w", w.pipeline.cwd, err)
	}

	if err := fileWatcher.Start(ctx); err != nil {
		fileWatcher.Stop()
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}
	return fileWatcher, nil
}

// relevant accepts source files and the package's own configuration files.
func (w *watchSession) relevant(path string) bool {
	if isPackageConfig(w.pipeline, path) {
		return true
	}
	src := w.pipeline.sources()
	rel, err := filepath.Rel(src.Root(), path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	return watcher.ExtensionFilter(w.pipeline.cfg.Package.Extensions)(path) && !src.Excluded(rel)
}

func isPackageConfig(p *pipeline, path string) bool {
	if filepath.Dir(path) != filepath.Clean(p.cwd) {
		return false
	}
	base := filepath.Base(path)
	if base == filepath.Base(p.cfg.Package.Manifest) {
		return true
	}
	ok, _ := filepath.Match("tsconfig*.json", base)
	return ok
}

func (w *watchSession) onChange(ctx context.Context, events []watcher.ChangeEvent) error {
	out := w.pipeline.out
	if w.verbose {
		fmt.Fprintln(out, "📁 File changes detected:")
		for _, event := range events {
			fmt.Fprintf(out, "   %s: %s\n", event.Type, event.Path)
		}
	} else {
		fmt.Fprintf(out, "📁 %d file(s) changed\n", len(events))
	}

	configChanged := false
	for _, event := range events {
		if isPackageConfig(w.pipeline, event.Path) {
			configChanged = true
			break
		}
	}
	if !configChanged {
		changed, _, err := w.pipeline.sources().Changed(ctx)
		if err != nil {
			return err
		}
		if !changed {
			w.pipeline.logger.Debug(ctx, "No content changes, skipping rebuild")
			return nil
		}
	}

	w.build(ctx, false)
	return nil
}

func (w *watchSession) build(ctx context.Context, clean bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.builds++
	out := w.pipeline.out
	fmt.Fprintln(out, "🔨 Building package...")
	result, err := w.pipeline.run(ctx, clean)
	if err != nil {
		fmt.Fprintln(out, "❌ "+errors.FormatErrorWithSuggestions(err))
		return
	}
	fmt.Fprintf(out, "✅ Built in %v\n", result.Duration)
}

func (w *watchSession) buildCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.builds
}
