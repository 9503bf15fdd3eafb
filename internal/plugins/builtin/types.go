package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conneroisu/pkgbuild/internal/build"
	"github.com/conneroisu/pkgbuild/internal/errors"
	"github.com/conneroisu/pkgbuild/internal/manifest"
	"github.com/conneroisu/pkgbuild/internal/plugins"
	"github.com/conneroisu/pkgbuild/internal/tsconfig"
)

// TypesName is the registry name of the declaration builder.
const TypesName = "types"

// AutoGeneratedNamespace names the namespace of synthesized declarations.
const AutoGeneratedNamespace = "AutoGeneratedTypings"

const typesEntry = "dist-types/index.d.ts"

const remediation = `⚠️  dist-types/: Attempted to generate type definitions, but "typescript" package was not found.
                Please install either locally or globally and try again.
       $ npm install --save-dev typescript
[alt.] $ npm install --global typescript
[alt.] *   Write your own type definition file to "index.d.ts"`

// TypesBuilder produces <out>/dist-types/index.d.ts from the first strategy
// that applies: a hand-written root declaration, a hand-written source
// declaration, tsc, then auto-generation from the built node entry.
//
// Options:
//
//	tsconfig  configuration file relative to cwd (default tsconfig.json)
//	node      node binary used for auto-generation; a bare name is looked
//	          up on PATH, a relative path is taken from cwd (default: node)
type TypesBuilder struct {
	runner    build.Runner
	toolchain ToolchainLoader
}

// NewTypesBuilder creates the declaration builder.
func NewTypesBuilder() *TypesBuilder {
	return &TypesBuilder{runner: build.NewExecRunner()}
}

func (b *TypesBuilder) Name() string    { return TypesName }
func (b *TypesBuilder) Version() string { return builtinVersion }

func (b *TypesBuilder) Description() string {
	return "TypeScript declarations in dist-types/"
}

// Initialize implements plugins.Plugin.
func (b *TypesBuilder) Initialize(ctx context.Context, config plugins.PluginConfig) error {
	return requireStringOptions(config, "tsconfig", "node")
}

// Manifest implements plugins.ManifestPlugin.
func (b *TypesBuilder) Manifest(m *manifest.Manifest, opts plugins.BuildOptions) {
	m.DefaultField(manifest.FieldTypes, typesEntry)
}

// BeforeBuild fails when a tsconfig was named explicitly but does not exist.
func (b *TypesBuilder) BeforeBuild(ctx context.Context, opts plugins.BuildOptions) error {
	name, explicit := opts.StringOption("tsconfig")
	if !explicit {
		return nil
	}

	path := tsconfig.ResolvePath(opts.Cwd, name)
	if !tsconfig.Exists(path) {
		return errors.NewPreconditionError(errors.ErrCodeConfigMissing,
			fmt.Sprintf("%q file does not exist.", path)).WithPath(path)
	}
	return nil
}

// Build runs the fallback chain and reports the declaration file once.
func (b *TypesBuilder) Build(ctx context.Context, opts plugins.BuildOptions) error {
	dest := filepath.Join(opts.Out, build.DistTypesDir, "index.d.ts")

	if err := b.produce(ctx, opts, dest); err != nil {
		return err
	}

	opts.Reporter.Created(dest, TypesName)
	return nil
}

func (b *TypesBuilder) produce(ctx context.Context, opts plugins.BuildOptions, dest string) error {
	for _, candidate := range []string{
		filepath.Join(opts.Cwd, "index.d.ts"),
		filepath.Join(opts.Cwd, "src", "index.d.ts"),
	} {
		if build.Exists(candidate) {
			return build.CopyFile(candidate, dest)
		}
	}

	name, _ := opts.StringOption("tsconfig")
	project := tsconfig.ResolvePath(opts.Cwd, name)
	if bin, ok := build.LocateTSC(opts.Cwd); ok && tsconfig.Exists(project) {
		tc := build.NewTSCompiler(bin, opts.Cwd, b.runner)
		return tc.EmitDeclarations(ctx, project, filepath.Dir(dest), opts.Reporter)
	}

	opts.Reporter.Info("no type definitions found, auto-generating...")
	generated, err := b.autoGenerate(ctx, opts, dest)
	if err != nil {
		opts.Reporter.Warning(fmt.Sprintf("auto-generation failed: %v", err))
	}
	if generated {
		return nil
	}

	opts.Reporter.Warning(remediation)
	return errors.NewDeclarationError("Failed to build: dist-types/").
		WithSuggestions(errors.DeclarationSuggestions()...)
}

// autoGenerate reports whether declarations were written. A missing
// toolchain or capability is not an error.
func (b *TypesBuilder) autoGenerate(ctx context.Context, opts plugins.BuildOptions, dest string) (bool, error) {
	load := b.toolchain
	if load == nil {
		node, _ := opts.StringOption("node")
		load = NewNodeToolchainLoader(node, b.runner)
	}

	tc, err := load(ctx, opts.Cwd)
	if err != nil {
		return false, nil
	}
	gen, ok := tc.(ModuleTypeGenerator)
	if !ok {
		return false, nil
	}

	entry := filepath.Join(opts.Out, build.DistNodeDir, "index.js")
	if _, err := os.Stat(entry); err != nil {
		return false, fmt.Errorf("%s has not been built", entry)
	}

	data, err := gen.GenerateTypesForModule(ctx, AutoGeneratedNamespace, entry)
	if err != nil {
		return false, err
	}
	if err := build.WriteFile(dest, data); err != nil {
		return false, err
	}
	return true, nil
}
