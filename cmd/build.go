package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/pkgbuild/internal/config"
	"github.com/conneroisu/pkgbuild/internal/errors"
	"github.com/conneroisu/pkgbuild/internal/logging"
	"github.com/conneroisu/pkgbuild/internal/manifest"
	"github.com/conneroisu/pkgbuild/internal/plugins"
	"github.com/conneroisu/pkgbuild/internal/plugins/builtin"
	"github.com/conneroisu/pkgbuild/internal/reporter"
	"github.com/conneroisu/pkgbuild/internal/scanner"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Build the package",
	Long: `Run the builder pipeline over the package in the current directory.

Every builder's manifest hook runs first, then every before-build hook,
then every build hook, then every after-job hook. The resulting manifest is
written to <out>/package.json.

Examples:
  pkgbuild build                          # Build into ./pkg
  pkgbuild build --out dist --clean       # Fresh build into ./dist
  pkgbuild build --builders types,deno    # Run only two builders`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return SetViperBindings(cmd, buildBindings)
	},
	RunE: runBuild,
}

var buildFlags *BuildFlags

func init() {
	rootCmd.AddCommand(buildCmd)
	buildFlags = AddBuildFlags(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	out := cmd.OutOrStdout()
	logger := newLogger(cfg, cmd.ErrOrStderr())

	fmt.Fprintln(out, "🔨 Building package...")
	p := &pipeline{cwd: cwd, cfg: cfg, out: out, logger: logger}
	result, err := p.run(cmd.Context(), buildFlags.Clean)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "✅ Built %s in %v\n", p.outDir(), result.Duration.Round(time.Millisecond))
	return nil
}

// pipeline runs one package build for cwd. The scanner is kept between
// runs so the watch loop can tell real content changes from touches.
type pipeline struct {
	cwd     string
	cfg     *config.Config
	out     io.Writer
	logger  logging.Logger
	scanner *scanner.SourceScanner
}

func (p *pipeline) outDir() string {
	if filepath.IsAbs(p.cfg.Package.Out) {
		return p.cfg.Package.Out
	}
	return filepath.Join(p.cwd, p.cfg.Package.Out)
}

func (p *pipeline) sources() *scanner.SourceScanner {
	if p.scanner == nil {
		p.scanner = scanner.NewSourceScanner(p.cwd, p.cfg.Package)
	}
	return p.scanner
}

func (p *pipeline) run(ctx context.Context, clean bool) (*plugins.RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	outDir := p.outDir()

	if clean {
		if err := os.RemoveAll(outDir); err != nil {
			return nil, errors.WrapIO(err, errors.ErrCodeInvalidPath, "failed to clean output directory").WithPath(outDir)
		}
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeInvalidPath, "failed to create output directory").WithPath(outDir)
	}

	manifestPath := filepath.Join(p.cwd, p.cfg.Package.Manifest)
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}

	files, err := p.sources().Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to discover sources: %w", err)
	}
	p.logger.Debug(ctx, "Sources discovered", "count", len(files), "root", p.sources().Root())

	pm := plugins.NewPluginManager(p.logger)
	for _, name := range p.cfg.Pipeline.Builders {
		builder, err := builtin.New(name)
		if err != nil {
			return nil, err
		}
		if err := pm.RegisterPlugin(ctx, builder, plugins.PluginConfig{
			Name:    name,
			Config:  p.cfg.BuilderConfig(name),
			Enabled: true,
		}); err != nil {
			return nil, err
		}
	}

	rep := reporter.NewConsole(p.out, p.logger, p.cwd)
	result, err := pm.Run(ctx, m, plugins.BuildOptions{
		Cwd:      p.cwd,
		Out:      outDir,
		Src:      plugins.Sources{Files: files},
		Reporter: rep,
	})
	if err != nil {
		return nil, err
	}

	target := filepath.Join(outDir, "package.json")
	if err := m.Save(target); err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeInvalidPath, "failed to write manifest").WithPath(target)
	}
	rep.Created(target, "manifest")

	return result, nil
}
