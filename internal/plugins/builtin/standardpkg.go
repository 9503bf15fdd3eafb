package builtin

import (
	"context"
	"path/filepath"

	"github.com/conneroisu/pkgbuild/internal/build"
	"github.com/conneroisu/pkgbuild/internal/lint"
	"github.com/conneroisu/pkgbuild/internal/manifest"
	"github.com/conneroisu/pkgbuild/internal/plugins"
	"github.com/conneroisu/pkgbuild/internal/tsconfig"
)

// StandardPkgName is the registry name of the transpiling builder.
const StandardPkgName = "standard-pkg"

// StandardPkgBuilder transpiles the package with the project's tsc into
// ES2018/ESNext sources under dist-src/ with declarations in dist-types/,
// then lints the result. Packages without a local tsc or a tsconfig.json are
// skipped.
//
// Options:
//
//	lint  run the output linter after the job (default true)
type StandardPkgBuilder struct {
	runner   build.Runner
	baseline tsconfig.Baseline
}

// NewStandardPkgBuilder creates the transpiling builder.
func NewStandardPkgBuilder() *StandardPkgBuilder {
	return &StandardPkgBuilder{
		runner:   build.NewExecRunner(),
		baseline: tsconfig.DefaultBaseline,
	}
}

func (b *StandardPkgBuilder) Name() string    { return StandardPkgName }
func (b *StandardPkgBuilder) Version() string { return builtinVersion }

func (b *StandardPkgBuilder) Description() string {
	return "ES2018 modules in dist-src/ and declarations in dist-types/, via tsc"
}

// Initialize implements plugins.Plugin.
func (b *StandardPkgBuilder) Initialize(ctx context.Context, config plugins.PluginConfig) error {
	return nil
}

// Enabled requires node_modules/.bin/tsc and tsconfig.json in the package.
func (b *StandardPkgBuilder) Enabled(opts plugins.BuildOptions) bool {
	_, hasTSC := build.LocateTSC(opts.Cwd)
	return hasTSC && tsconfig.Exists(tsconfig.ResolvePath(opts.Cwd, ""))
}

// Manifest implements plugins.ManifestPlugin.
func (b *StandardPkgBuilder) Manifest(m *manifest.Manifest, opts plugins.BuildOptions) {
	m.DefaultField(manifest.FieldSource, "dist-src/index.js")
	m.DefaultField(manifest.FieldTypes, typesEntry)
}

// BeforeBuild loads tsconfig.json, failing when it is malformed, and warns
// about target or module settings that differ from what the build uses.
func (b *StandardPkgBuilder) BeforeBuild(ctx context.Context, opts plugins.BuildOptions) error {
	cfg, err := tsconfig.Load(tsconfig.ResolvePath(opts.Cwd, ""))
	if err != nil {
		return err
	}

	tsconfig.Validate(cfg, b.baseline, opts.Reporter)
	return nil
}

// Build implements plugins.BuildPlugin.
func (b *StandardPkgBuilder) Build(ctx context.Context, opts plugins.BuildOptions) error {
	bin, _ := build.LocateTSC(opts.Cwd)
	tc := build.NewTSCompiler(bin, opts.Cwd, b.runner)
	if err := tc.Transpile(ctx, opts.Out, opts.Reporter); err != nil {
		return err
	}

	opts.Reporter.Created(filepath.Join(opts.Out, build.DistSrcDir, "index.js"), "esnext")
	opts.Reporter.Created(filepath.Join(opts.Out, build.DistTypesDir, "index.d.ts"), TypesName)
	return nil
}

// AfterJob lints dist-src/. Findings are warnings.
func (b *StandardPkgBuilder) AfterJob(ctx context.Context, opts plugins.BuildOptions) error {
	if !opts.BoolOption("lint", true) {
		return nil
	}

	opts.Reporter.Info("Linting with standard-pkg...")
	result, err := lint.New(filepath.Join(opts.Out, build.DistSrcDir)).Run(ctx)
	if err != nil {
		return err
	}

	for _, issue := range result.Issues {
		opts.Reporter.Warning(issue.String())
	}
	opts.Reporter.Info(result.Summary())
	return nil
}
