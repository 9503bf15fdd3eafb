package builtin

import (
	"context"
	goerrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pkgbuild/internal/errors"
	"github.com/conneroisu/pkgbuild/internal/manifest"
	"github.com/conneroisu/pkgbuild/internal/plugins"
	"github.com/conneroisu/pkgbuild/internal/reporter"
	"github.com/conneroisu/pkgbuild/internal/testutils"
)

// stubGenerator is a toolchain with the type generation capability.
type stubGenerator struct {
	output []byte
	err    error
	entry  string
}

func (s *stubGenerator) Name() string { return "stub" }

func (s *stubGenerator) GenerateTypesForModule(ctx context.Context, namespace, entry string) ([]byte, error) {
	s.entry = entry
	return s.output, s.err
}

// plainToolchain lacks the capability.
type plainToolchain struct{}

func (plainToolchain) Name() string { return "plain" }

func loaderOf(tc Toolchain, err error) ToolchainLoader {
	return func(ctx context.Context, cwd string) (Toolchain, error) {
		return tc, err
	}
}

func buildOptions(cwd, out string, rec reporter.Reporter, options map[string]interface{}) plugins.BuildOptions {
	if options == nil {
		options = map[string]interface{}{}
	}
	return plugins.BuildOptions{Cwd: cwd, Out: out, Options: options, Reporter: rec}
}

func runPipeline(t *testing.T, opts plugins.BuildOptions, m *manifest.Manifest, builders ...plugins.Plugin) (*plugins.RunResult, error) {
	t.Helper()
	pm := plugins.NewPluginManager(nil)
	for _, b := range builders {
		require.NoError(t, pm.RegisterPlugin(context.Background(), b, plugins.PluginConfig{Enabled: true, Config: opts.Options}))
	}
	return pm.Run(context.Background(), m, opts)
}

func TestStandardPkg_EndToEnd(t *testing.T) {
	cwd := testutils.CreateTempPackage(t)
	testutils.WriteTSConfig(t, cwd, testutils.DefaultTSConfig)
	testutils.InstallFakeTSC(t, cwd, false)
	out := testutils.CreateOutDir(t)
	rec := reporter.NewRecorder()
	m := manifest.New()

	result, err := runPipeline(t, buildOptions(cwd, out, rec, nil), m, NewStandardPkgBuilder())
	require.NoError(t, err)
	assert.Equal(t, []string{StandardPkgName}, result.Ran)

	assert.FileExists(t, filepath.Join(out, "dist-src", "index.js"))
	assert.FileExists(t, filepath.Join(out, "dist-types", "index.d.ts"))
	assert.Equal(t, []reporter.Artifact{
		{Path: filepath.Join(out, "dist-src", "index.js"), Kind: "esnext"},
		{Path: filepath.Join(out, "dist-types", "index.d.ts"), Kind: "types"},
	}, rec.Artifacts())

	assert.Empty(t, rec.Warnings())
	assert.Equal(t, []string{
		"tsc: emitted",
		"Linting with standard-pkg...",
		"1 file checked, no issues found.",
	}, rec.Infos())

	assert.Equal(t, "dist-src/index.js", m.String(manifest.FieldSource))
	assert.Equal(t, "dist-types/index.d.ts", m.String(manifest.FieldTypes))

	invocations := testutils.TSCInvocations(t, cwd)
	require.Len(t, invocations, 1)
	assert.Contains(t, invocations[0], "--target es2018 --module esnext")
}

func TestStandardPkg_KeepsUserManifestFields(t *testing.T) {
	cwd := testutils.CreateTempPackage(t)
	testutils.WriteTSConfig(t, cwd, testutils.DefaultTSConfig)
	testutils.InstallFakeTSC(t, cwd, false)
	m := manifest.FromMap(map[string]interface{}{"source": "lib/main.js", "types": ""})

	NewStandardPkgBuilder().Manifest(m, buildOptions(cwd, t.TempDir(), reporter.NewRecorder(), nil))

	assert.Equal(t, "lib/main.js", m.String(manifest.FieldSource))
	assert.Equal(t, "dist-types/index.d.ts", m.String(manifest.FieldTypes))
}

func TestStandardPkg_DriftWarnings(t *testing.T) {
	cwd := testutils.CreateTempPackage(t)
	testutils.WriteTSConfig(t, cwd, `{"compilerOptions": {"target": "es5", "module": "commonjs"}}`)
	testutils.InstallFakeTSC(t, cwd, false)
	out := testutils.CreateOutDir(t)
	rec := reporter.NewRecorder()

	_, err := runPipeline(t, buildOptions(cwd, out, rec, nil), nil, NewStandardPkgBuilder())
	require.NoError(t, err)

	assert.Equal(t, []string{
		`tsconfig.json [compilerOptions.target] should be "es2018", but found "es5". You may encounter problems building.`,
		`tsconfig.json [compilerOptions.module] should be "esnext", but found "commonjs". You may encounter problems building.`,
	}, rec.Warnings())
	assert.Len(t, rec.Artifacts(), 2)
}

func TestStandardPkg_MalformedConfigIsFatal(t *testing.T) {
	cwd := testutils.CreateTempPackage(t)
	testutils.WriteTSConfig(t, cwd, `{"compilerOptions": {"target": 2018}}`)
	testutils.InstallFakeTSC(t, cwd, false)

	_, err := runPipeline(t, buildOptions(cwd, t.TempDir(), reporter.NewRecorder(), nil), nil, NewStandardPkgBuilder())
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
	assert.Contains(t, err.Error(), "builder:"+StandardPkgName)
	assert.Empty(t, testutils.TSCInvocations(t, cwd))
}

func TestStandardPkg_FailingCompilerPropagates(t *testing.T) {
	cwd := testutils.CreateTempPackage(t)
	testutils.WriteTSConfig(t, cwd, testutils.DefaultTSConfig)
	testutils.InstallFakeTSC(t, cwd, true)
	rec := reporter.NewRecorder()

	_, err := runPipeline(t, buildOptions(cwd, t.TempDir(), rec, nil), nil, NewStandardPkgBuilder())
	require.Error(t, err)
	assert.True(t, errors.IsProcessError(err))

	var be *errors.BuildError
	require.True(t, goerrors.As(err, &be))
	assert.Equal(t, StandardPkgName, be.Builder)
	assert.Empty(t, rec.Artifacts())
	assert.NotContains(t, rec.Infos(), "Linting with standard-pkg...")
}

func TestStandardPkg_Gating(t *testing.T) {
	b := NewStandardPkgBuilder()

	cwd := testutils.CreateTempPackage(t)
	assert.False(t, b.Enabled(buildOptions(cwd, "", nil, nil)), "no tsc, no tsconfig")

	testutils.WriteTSConfig(t, cwd, testutils.DefaultTSConfig)
	assert.False(t, b.Enabled(buildOptions(cwd, "", nil, nil)), "no tsc")

	testutils.InstallFakeTSC(t, cwd, false)
	assert.True(t, b.Enabled(buildOptions(cwd, "", nil, nil)))

	other := testutils.CreateTempPackage(t)
	testutils.InstallFakeTSC(t, other, false)
	assert.False(t, b.Enabled(buildOptions(other, "", nil, nil)), "no tsconfig")
}

func TestStandardPkg_LintFindings(t *testing.T) {
	out := testutils.CreateOutDir(t)
	testutils.WriteFile(t, out, "dist-src/index.js", "import { a } from './a';\nmodule.exports = a;\n")
	rec := reporter.NewRecorder()

	require.NoError(t, NewStandardPkgBuilder().AfterJob(context.Background(), buildOptions(t.TempDir(), out, rec, nil)))

	require.Len(t, rec.Warnings(), 2)
	assert.Contains(t, rec.Warnings()[0], "index.js:1")
	assert.Contains(t, rec.Warnings()[1], "index.js:2")
	assert.Equal(t, "2 issues found in 1 of 1 file.", rec.Infos()[1])
}

func TestStandardPkg_LintDisabled(t *testing.T) {
	rec := reporter.NewRecorder()
	opts := buildOptions(t.TempDir(), t.TempDir(), rec, map[string]interface{}{"lint": false})

	require.NoError(t, NewStandardPkgBuilder().AfterJob(context.Background(), opts))
	assert.Empty(t, rec.Infos())
}

func TestTypes_Manifest(t *testing.T) {
	m := manifest.New()
	NewTypesBuilder().Manifest(m, plugins.BuildOptions{})
	assert.Equal(t, "dist-types/index.d.ts", m.String(manifest.FieldTypes))

	custom := manifest.FromMap(map[string]interface{}{"types": "index.d.ts"})
	NewTypesBuilder().Manifest(custom, plugins.BuildOptions{})
	assert.Equal(t, "index.d.ts", custom.String(manifest.FieldTypes))
}

func TestTypes_BeforeBuild(t *testing.T) {
	cwd := testutils.CreateTempPackage(t)
	b := NewTypesBuilder()

	require.NoError(t, b.BeforeBuild(context.Background(), buildOptions(cwd, "", nil, nil)),
		"implicit tsconfig may be missing")

	err := b.BeforeBuild(context.Background(), buildOptions(cwd, "", nil, map[string]interface{}{"tsconfig": "tsconfig.build.json"}))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypePrecondition))
	assert.Contains(t, err.Error(), filepath.Join(cwd, "tsconfig.build.json"))
	assert.Contains(t, err.Error(), "file does not exist.")

	testutils.WriteFile(t, cwd, "tsconfig.build.json", "{}")
	require.NoError(t, b.BeforeBuild(context.Background(), buildOptions(cwd, "", nil, map[string]interface{}{"tsconfig": "tsconfig.build.json"})))
}

func TestTypes_MissingExplicitConfigFailsPipeline(t *testing.T) {
	cwd := testutils.CreateTempPackage(t)
	testutils.WriteFile(t, cwd, "index.d.ts", "export declare const answer: number;\n")
	out := testutils.CreateOutDir(t)
	rec := reporter.NewRecorder()

	_, err := runPipeline(t, buildOptions(cwd, out, rec, map[string]interface{}{"tsconfig": "missing.json"}), nil, NewTypesBuilder())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypePrecondition))
	testutils.AssertNotExists(t, filepath.Join(out, "dist-types"))
	assert.Empty(t, rec.Artifacts())
}

func TestTypes_FallbackChain(t *testing.T) {
	const rootDecl = "// root\nexport declare const answer: number;\n"
	const srcDecl = "// src\nexport declare const answer: number;\n"

	tests := []struct {
		name     string
		setup    func(t *testing.T, cwd, out string)
		want     string
		wantTSC  bool
		wantInfo bool
	}{
		{
			name: "root declaration wins over everything",
			setup: func(t *testing.T, cwd, out string) {
				testutils.WriteFile(t, cwd, "index.d.ts", rootDecl)
				testutils.WriteFile(t, cwd, "src/index.d.ts", srcDecl)
				testutils.WriteTSConfig(t, cwd, testutils.DefaultTSConfig)
				testutils.InstallFakeTSC(t, cwd, false)
			},
			want: rootDecl,
		},
		{
			name: "source declaration wins over tsc",
			setup: func(t *testing.T, cwd, out string) {
				testutils.WriteFile(t, cwd, "src/index.d.ts", srcDecl)
				testutils.WriteTSConfig(t, cwd, testutils.DefaultTSConfig)
				testutils.InstallFakeTSC(t, cwd, false)
			},
			want: srcDecl,
		},
		{
			name: "tsc emits declarations",
			setup: func(t *testing.T, cwd, out string) {
				testutils.WriteTSConfig(t, cwd, testutils.DefaultTSConfig)
				testutils.InstallFakeTSC(t, cwd, false)
			},
			want:    "export declare const answer: number;\n",
			wantTSC: true,
		},
		{
			name: "auto-generation when tsc has no config",
			setup: func(t *testing.T, cwd, out string) {
				testutils.InstallFakeTSC(t, cwd, false)
				testutils.WriteFile(t, out, "dist-node/index.js", "exports.answer = 42;\n")
			},
			want:     "declare namespace AutoGeneratedTypings {}\n",
			wantInfo: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cwd := testutils.CreateTempPackage(t)
			out := testutils.CreateOutDir(t)
			tt.setup(t, cwd, out)
			rec := reporter.NewRecorder()

			b := NewTypesBuilder()
			b.toolchain = loaderOf(&stubGenerator{output: []byte("declare namespace AutoGeneratedTypings {}\n")}, nil)

			require.NoError(t, b.Build(context.Background(), buildOptions(cwd, out, rec, nil)))

			dest := filepath.Join(out, "dist-types", "index.d.ts")
			assert.Equal(t, tt.want, testutils.ReadFile(t, dest))
			assert.Equal(t, []reporter.Artifact{{Path: dest, Kind: "types"}}, rec.Artifacts(), "reported exactly once")

			if tt.wantTSC {
				invocations := testutils.TSCInvocations(t, cwd)
				require.Len(t, invocations, 1)
				assert.Equal(t, "-d --emitDeclarationOnly --declarationMap false --project "+
					filepath.Join(cwd, "tsconfig.json")+" --declarationDir "+filepath.Join(out, "dist-types")+"/", invocations[0])
			} else {
				assert.Empty(t, testutils.TSCInvocations(t, cwd))
			}

			if tt.wantInfo {
				assert.Contains(t, rec.Infos(), "no type definitions found, auto-generating...")
			} else {
				assert.NotContains(t, rec.Infos(), "no type definitions found, auto-generating...")
			}
		})
	}
}

func TestTypes_ExplicitConfigUsedByTSC(t *testing.T) {
	cwd := testutils.CreateTempPackage(t)
	testutils.WriteFile(t, cwd, "tsconfig.build.json", testutils.DefaultTSConfig)
	testutils.InstallFakeTSC(t, cwd, false)
	out := testutils.CreateOutDir(t)

	b := NewTypesBuilder()
	require.NoError(t, b.Build(context.Background(), buildOptions(cwd, out, reporter.NewRecorder(),
		map[string]interface{}{"tsconfig": "tsconfig.build.json"})))

	invocations := testutils.TSCInvocations(t, cwd)
	require.Len(t, invocations, 1)
	assert.Contains(t, invocations[0], "--project "+filepath.Join(cwd, "tsconfig.build.json"))
}

func TestTypes_FailingTSCPropagates(t *testing.T) {
	cwd := testutils.CreateTempPackage(t)
	testutils.WriteTSConfig(t, cwd, testutils.DefaultTSConfig)
	testutils.InstallFakeTSC(t, cwd, true)
	rec := reporter.NewRecorder()

	err := NewTypesBuilder().Build(context.Background(), buildOptions(cwd, t.TempDir(), rec, nil))
	require.Error(t, err)
	assert.True(t, errors.IsProcessError(err))
	assert.Empty(t, rec.Artifacts())
}

func TestTypes_AutoGenerationUsesNodeEntry(t *testing.T) {
	cwd := testutils.CreateTempPackage(t)
	out := testutils.CreateOutDir(t)
	entry := testutils.WriteFile(t, out, "dist-node/index.js", "exports.answer = 42;\n")
	gen := &stubGenerator{output: []byte("declare namespace AutoGeneratedTypings {}\n")}

	b := NewTypesBuilder()
	b.toolchain = loaderOf(gen, nil)
	require.NoError(t, b.Build(context.Background(), buildOptions(cwd, out, reporter.NewRecorder(), nil)))

	assert.Equal(t, entry, gen.entry)
}

func TestTypes_ChainExhausted(t *testing.T) {
	tests := []struct {
		name        string
		loader      ToolchainLoader
		nodeEntry   bool
		wantWarning string
	}{
		{
			name:   "no toolchain",
			loader: loaderOf(nil, goerrors.New(`"typescript" package was not found`)),
		},
		{
			name:   "toolchain without capability",
			loader: loaderOf(plainToolchain{}, nil),
		},
		{
			name:        "no built node entry",
			loader:      loaderOf(&stubGenerator{output: []byte("x")}, nil),
			wantWarning: "has not been built",
		},
		{
			name:        "generator fails",
			loader:      loaderOf(&stubGenerator{err: goerrors.New("cannot load module")}, nil),
			nodeEntry:   true,
			wantWarning: "cannot load module",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cwd := testutils.CreateTempPackage(t)
			out := testutils.CreateOutDir(t)
			if tt.nodeEntry {
				testutils.WriteFile(t, out, "dist-node/index.js", "exports.answer = 42;\n")
			}
			rec := reporter.NewRecorder()

			b := NewTypesBuilder()
			b.toolchain = tt.loader
			err := b.Build(context.Background(), buildOptions(cwd, out, rec, nil))

			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeDeclaration))
			assert.Contains(t, err.Error(), "Failed to build: dist-types/")

			var be *errors.BuildError
			require.True(t, goerrors.As(err, &be))
			assert.NotEmpty(t, be.Suggestions)

			testutils.AssertNotExists(t, filepath.Join(out, "dist-types"))
			assert.Empty(t, rec.Artifacts())
			assert.Equal(t, []string{"no type definitions found, auto-generating..."}, rec.Infos())

			warnings := rec.Warnings()
			require.NotEmpty(t, warnings)
			last := warnings[len(warnings)-1]
			assert.Contains(t, last, `"typescript" package was not found`)
			assert.Contains(t, last, `Write your own type definition file to "index.d.ts"`)
			assert.Greater(t, strings.Count(last, "\n"), 2, "remediation spans several lines")
			assert.True(t, strings.HasPrefix(last, "⚠️  dist-types/: Attempted to generate type definitions"), last)
			assert.Contains(t, last, "\n                Please install either locally or globally")

			if tt.wantWarning != "" {
				require.Len(t, warnings, 2)
				assert.Contains(t, warnings[0], tt.wantWarning)
			} else {
				assert.Len(t, warnings, 1)
			}
		})
	}
}

func TestDeno_SkipsWithoutConfig(t *testing.T) {
	cwd := testutils.CreateTempPackage(t)
	files := []string{
		filepath.Join(cwd, "src", "index.ts"),
		testutils.WriteFile(t, cwd, "src/a.ts", "export const a = 1;\n"),
		testutils.WriteFile(t, cwd, "src/b/c.ts", "export const c = 1;\n"),
	}
	out := testutils.CreateOutDir(t)
	rec := reporter.NewRecorder()
	m := manifest.New()

	opts := buildOptions(cwd, out, rec, nil)
	opts.Src.Files = files
	result, err := runPipeline(t, opts, m, NewDenoBuilder())
	require.NoError(t, err)

	assert.Equal(t, []string{DenoName}, result.Skipped)
	testutils.AssertNotExists(t, filepath.Join(out, "dist-deno"))
	assert.Empty(t, rec.Infos())
	assert.Empty(t, rec.Warnings())
	assert.Empty(t, rec.Artifacts())
	_, has := m.Get(manifest.FieldDeno)
	assert.False(t, has)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDeno_CopiesSources(t *testing.T) {
	cwd := testutils.CreateTempPackage(t)
	testutils.WriteTSConfig(t, cwd, testutils.DefaultTSConfig)
	files := []string{
		testutils.WriteFile(t, cwd, "src/b/c.ts", "export const c = 1;\n"),
		filepath.Join(cwd, "src", "index.ts"),
	}
	out := testutils.CreateOutDir(t)
	rec := reporter.NewRecorder()
	m := manifest.New()

	opts := buildOptions(cwd, out, rec, nil)
	opts.Src.Files = files
	_, err := runPipeline(t, opts, m, NewDenoBuilder())
	require.NoError(t, err)

	assert.Equal(t, "export const answer = 42;\n", testutils.ReadFile(t, filepath.Join(out, "dist-deno", "index.ts")))
	assert.Equal(t, "export const c = 1;\n", testutils.ReadFile(t, filepath.Join(out, "dist-deno", "b", "c.ts")))
	assert.Equal(t, "dist-deno/index.ts", m.String(manifest.FieldDeno))
	assert.Equal(t, []reporter.Artifact{{Path: filepath.Join(out, "dist-deno"), Kind: DenoName}}, rec.Artifacts())
	assert.Empty(t, rec.Warnings())
}

func TestDeno_EmptySourceList(t *testing.T) {
	cwd := testutils.CreateTempPackage(t)
	testutils.WriteTSConfig(t, cwd, testutils.DefaultTSConfig)
	out := testutils.CreateOutDir(t)
	rec := reporter.NewRecorder()

	require.NoError(t, NewDenoBuilder().Build(context.Background(), buildOptions(cwd, out, rec, nil)))
	testutils.AssertNotExists(t, filepath.Join(out, "dist-deno"))
	assert.Empty(t, rec.Artifacts())
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"deno", "standard-pkg", "types"}, Names())
	assert.True(t, IsBuiltin("types"))
	assert.False(t, IsBuiltin("babel"))

	for _, name := range DefaultOrder {
		p, err := New(name)
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
		assert.NotEmpty(t, p.Description())
	}

	_, err := New("babel")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown builder "babel"`)
}

func TestBuiltinHooks(t *testing.T) {
	tests := []struct {
		name  string
		hooks []string
		gated bool
	}{
		{StandardPkgName, []string{plugins.HookManifest, plugins.HookBeforeBuild, plugins.HookBuild, plugins.HookAfterJob}, true},
		{TypesName, []string{plugins.HookManifest, plugins.HookBeforeBuild, plugins.HookBuild}, false},
		{DenoName, []string{plugins.HookManifest, plugins.HookBuild}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.name)
			require.NoError(t, err)
			info := plugins.Describe(p)
			assert.Equal(t, tt.hooks, info.Hooks)
			assert.Equal(t, tt.gated, info.Gated)
		})
	}
}

func TestTypes_InitializeRejectsBadOptions(t *testing.T) {
	err := NewTypesBuilder().Initialize(context.Background(), plugins.PluginConfig{
		Config: map[string]interface{}{"tsconfig": 42},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "option tsconfig must be a string")
}
