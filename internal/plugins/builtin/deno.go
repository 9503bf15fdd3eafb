package builtin

import (
	"context"
	"path/filepath"

	"github.com/conneroisu/pkgbuild/internal/build"
	"github.com/conneroisu/pkgbuild/internal/manifest"
	"github.com/conneroisu/pkgbuild/internal/plugins"
	"github.com/conneroisu/pkgbuild/internal/tsconfig"
)

// DenoName is the registry name of the Deno source builder.
const DenoName = "deno"

// DenoBuilder copies the TypeScript sources verbatim into dist-deno/, the
// layout Deno imports directly. Packages without a tsconfig.json are
// skipped.
type DenoBuilder struct{}

// NewDenoBuilder creates the Deno source builder.
func NewDenoBuilder() *DenoBuilder {
	return &DenoBuilder{}
}

func (b *DenoBuilder) Name() string        { return DenoName }
func (b *DenoBuilder) Version() string     { return builtinVersion }
func (b *DenoBuilder) Description() string { return "TypeScript sources for Deno in dist-deno/" }

// Initialize implements plugins.Plugin.
func (b *DenoBuilder) Initialize(ctx context.Context, config plugins.PluginConfig) error {
	return nil
}

// Enabled requires tsconfig.json in the package.
func (b *DenoBuilder) Enabled(opts plugins.BuildOptions) bool {
	return tsconfig.Exists(tsconfig.ResolvePath(opts.Cwd, ""))
}

// Manifest implements plugins.ManifestPlugin.
func (b *DenoBuilder) Manifest(m *manifest.Manifest, opts plugins.BuildOptions) {
	m.DefaultField(manifest.FieldDeno, "dist-deno/index.ts")
}

// Build implements plugins.BuildPlugin.
func (b *DenoBuilder) Build(ctx context.Context, opts plugins.BuildOptions) error {
	m := &build.Materializer{
		Cwd:  opts.Cwd,
		Out:  opts.Out,
		From: "src",
		To:   build.DistDenoDir,
	}
	dests, err := m.Materialize(opts.Src.Files)
	if err != nil {
		return err
	}

	if len(dests) > 0 {
		opts.Reporter.Created(filepath.Join(opts.Out, build.DistDenoDir), DenoName)
	}
	return nil
}
