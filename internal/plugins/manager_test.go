package plugins

import (
	"context"
	goerrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pkgbuild/internal/errors"
	"github.com/conneroisu/pkgbuild/internal/manifest"
	"github.com/conneroisu/pkgbuild/internal/reporter"
)

// callLog records hook invocations across builders.
type callLog struct {
	calls []string
}

func (l *callLog) add(s string) { l.calls = append(l.calls, s) }

// MockPlugin implements every hook and records each call.
type MockPlugin struct {
	name        string
	log         *callLog
	enabled     bool
	gated       bool
	initErr     error
	beforeErr   error
	buildErr    error
	afterErr    error
	initialized PluginConfig
}

func (p *MockPlugin) Name() string        { return p.name }
func (p *MockPlugin) Version() string     { return "1.0.0" }
func (p *MockPlugin) Description() string { return "mock builder" }

func (p *MockPlugin) Initialize(ctx context.Context, config PluginConfig) error {
	p.initialized = config
	return p.initErr
}

func (p *MockPlugin) Manifest(m *manifest.Manifest, opts BuildOptions) {
	p.log.add(p.name + ":manifest")
	m.DefaultField(p.name, "dist-"+p.name)
}

func (p *MockPlugin) BeforeBuild(ctx context.Context, opts BuildOptions) error {
	p.log.add(p.name + ":beforeBuild")
	return p.beforeErr
}

func (p *MockPlugin) Build(ctx context.Context, opts BuildOptions) error {
	p.log.add(p.name + ":build")
	return p.buildErr
}

func (p *MockPlugin) AfterJob(ctx context.Context, opts BuildOptions) error {
	p.log.add(p.name + ":afterJob")
	return p.afterErr
}

// MockGatedPlugin adds the Enabled gate.
type MockGatedPlugin struct {
	MockPlugin
}

func (p *MockGatedPlugin) Enabled(opts BuildOptions) bool {
	p.log.add(p.name + ":enabled")
	return p.enabled
}

// manifestOnly implements a single hook.
type manifestOnly struct {
	name string
}

func (p *manifestOnly) Name() string                                       { return p.name }
func (p *manifestOnly) Version() string                                    { return "0.1.0" }
func (p *manifestOnly) Description() string                                { return "defaults only" }
func (p *manifestOnly) Initialize(ctx context.Context, c PluginConfig) error { return nil }
func (p *manifestOnly) Manifest(m *manifest.Manifest, opts BuildOptions) {
	m.DefaultField("source", "dist-src/index.js")
}

// optionsProbe records the options it sees.
type optionsProbe struct {
	manifestOnly
	seen map[string]interface{}
}

func (p *optionsProbe) Build(ctx context.Context, opts BuildOptions) error {
	p.seen = opts.Options
	return nil
}

func enabled(options map[string]interface{}) PluginConfig {
	return PluginConfig{Enabled: true, Config: options}
}

func newManager(t *testing.T, plugins ...Plugin) *PluginManager {
	t.Helper()
	pm := NewPluginManager(nil)
	for _, p := range plugins {
		require.NoError(t, pm.RegisterPlugin(context.Background(), p, enabled(nil)))
	}
	return pm
}

func TestPluginManager_PhaseOrdering(t *testing.T) {
	log := &callLog{}
	a := &MockPlugin{name: "a", log: log}
	b := &MockPlugin{name: "b", log: log}
	pm := newManager(t, a, b)

	result, err := pm.Run(context.Background(), manifest.New(), BuildOptions{Cwd: "/pkg", Out: "/out"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"a:manifest", "b:manifest",
		"a:beforeBuild", "b:beforeBuild",
		"a:build", "b:build",
		"a:afterJob", "b:afterJob",
	}, log.calls)
	assert.Equal(t, []string{"a", "b"}, result.Ran)
	assert.Empty(t, result.Skipped)
	assert.Empty(t, result.AfterJobErrors)
}

func TestPluginManager_ManifestDefaults(t *testing.T) {
	pm := newManager(t, &manifestOnly{name: "defaults"})
	m := manifest.FromMap(map[string]interface{}{"name": "pkg"})

	_, err := pm.Run(context.Background(), m, BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, "dist-src/index.js", m.String("source"))
	assert.Equal(t, "pkg", m.String("name"))
}

func TestPluginManager_BeforeBuildFailureAbortsBuilds(t *testing.T) {
	log := &callLog{}
	a := &MockPlugin{name: "a", log: log}
	b := &MockPlugin{name: "b", log: log, beforeErr: errors.NewPreconditionError(errors.ErrCodeConfigMissing, "missing tsconfig")}
	c := &MockPlugin{name: "c", log: log}
	pm := newManager(t, a, b, c)

	_, err := pm.Run(context.Background(), nil, BuildOptions{})
	require.Error(t, err)

	var be *errors.BuildError
	require.True(t, goerrors.As(err, &be))
	assert.Equal(t, "b", be.Builder)
	assert.Equal(t, errors.ErrorTypePrecondition, be.Type)

	assert.Equal(t, []string{
		"a:manifest", "b:manifest", "c:manifest",
		"a:beforeBuild", "b:beforeBuild",
	}, log.calls)
}

func TestPluginManager_BuildFailureSkipsAfterJob(t *testing.T) {
	log := &callLog{}
	a := &MockPlugin{name: "a", log: log, buildErr: goerrors.New("tsc exploded")}
	b := &MockPlugin{name: "b", log: log}
	pm := newManager(t, a, b)

	_, err := pm.Run(context.Background(), nil, BuildOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
	assert.Contains(t, err.Error(), "builder:a")
	assert.Contains(t, err.Error(), "tsc exploded")

	assert.NotContains(t, log.calls, "b:build")
	assert.NotContains(t, log.calls, "a:afterJob")
	assert.NotContains(t, log.calls, "b:afterJob")
}

func TestPluginManager_AfterJobErrorsAreWarnings(t *testing.T) {
	log := &callLog{}
	a := &MockPlugin{name: "a", log: log, afterErr: goerrors.New("lint crashed")}
	b := &MockPlugin{name: "b", log: log}
	pm := newManager(t, a, b)
	rec := reporter.NewRecorder()

	result, err := pm.Run(context.Background(), nil, BuildOptions{Reporter: rec})
	require.NoError(t, err)

	require.Len(t, result.AfterJobErrors, 1)
	assert.Contains(t, result.AfterJobErrors[0].Error(), "lint crashed")
	require.Len(t, rec.Warnings(), 1)
	assert.Contains(t, rec.Warnings()[0], "builder:a")
	assert.Contains(t, log.calls, "b:afterJob")
}

func TestPluginManager_GatedBuilderIsSilent(t *testing.T) {
	log := &callLog{}
	gated := &MockGatedPlugin{MockPlugin{name: "deno", log: log, enabled: false}}
	open := &MockGatedPlugin{MockPlugin{name: "types", log: log, enabled: true}}
	pm := newManager(t, gated, open)
	rec := reporter.NewRecorder()
	m := manifest.New()

	result, err := pm.Run(context.Background(), m, BuildOptions{Reporter: rec})
	require.NoError(t, err)

	assert.Equal(t, []string{"deno"}, result.Skipped)
	assert.Equal(t, []string{"types"}, result.Ran)
	assert.Equal(t, []string{
		"deno:enabled", "types:enabled",
		"types:manifest", "types:beforeBuild", "types:build", "types:afterJob",
	}, log.calls)
	_, has := m.Get("deno")
	assert.False(t, has)
	assert.Empty(t, rec.Infos())
	assert.Empty(t, rec.Warnings())
	assert.Empty(t, rec.Artifacts())
}

func TestPluginManager_DisabledConfig(t *testing.T) {
	log := &callLog{}
	a := &MockPlugin{name: "a", log: log}
	pm := NewPluginManager(nil)
	require.NoError(t, pm.RegisterPlugin(context.Background(), a, PluginConfig{Enabled: false}))

	result, err := pm.Run(context.Background(), nil, BuildOptions{})
	require.NoError(t, err)
	assert.Empty(t, log.calls)
	assert.Empty(t, result.Ran)
}

func TestPluginManager_PerBuilderOptions(t *testing.T) {
	probe := &optionsProbe{manifestOnly: manifestOnly{name: "probe"}}
	pm := NewPluginManager(nil)
	require.NoError(t, pm.RegisterPlugin(context.Background(), probe, enabled(map[string]interface{}{"tsconfig": "tsconfig.build.json"})))

	_, err := pm.Run(context.Background(), nil, BuildOptions{Options: map[string]interface{}{"other": true}})
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{"tsconfig": "tsconfig.build.json"}, probe.seen)
}

func TestPluginManager_RegisterPlugin(t *testing.T) {
	pm := NewPluginManager(nil)
	a := &MockPlugin{name: "a", log: &callLog{}}

	require.NoError(t, pm.RegisterPlugin(context.Background(), a, enabled(map[string]interface{}{"k": "v"})))
	assert.Equal(t, "a", a.initialized.Name)
	assert.Equal(t, "v", a.initialized.Config["k"])

	err := pm.RegisterPlugin(context.Background(), &MockPlugin{name: "a", log: &callLog{}}, enabled(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	failing := &MockPlugin{name: "broken", log: &callLog{}, initErr: goerrors.New("bad option")}
	err = pm.RegisterPlugin(context.Background(), failing, enabled(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad option")

	_, err = pm.GetPlugin("broken")
	assert.Error(t, err)

	got, err := pm.GetPlugin("a")
	require.NoError(t, err)
	assert.Same(t, a, got)
}

func TestPluginManager_ListPlugins(t *testing.T) {
	pm := newManager(t,
		&MockPlugin{name: "full", log: &callLog{}},
		&manifestOnly{name: "defaults"},
		&MockGatedPlugin{MockPlugin{name: "gated", log: &callLog{}}},
	)

	infos := pm.ListPlugins()
	require.Len(t, infos, 3)

	assert.Equal(t, "full", infos[0].Name)
	assert.Equal(t, []string{HookManifest, HookBeforeBuild, HookBuild, HookAfterJob}, infos[0].Hooks)
	assert.False(t, infos[0].Gated)

	assert.Equal(t, []string{HookManifest}, infos[1].Hooks)
	assert.True(t, infos[2].Gated)
	assert.Equal(t, "defaults@0.1.0 [manifest]", infos[1].String())
}

func TestPluginManager_CancelledContext(t *testing.T) {
	log := &callLog{}
	pm := newManager(t, &MockPlugin{name: "a", log: log})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pm.Run(ctx, nil, BuildOptions{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a:manifest"}, log.calls)
}

func TestBuildOptions_Accessors(t *testing.T) {
	opts := BuildOptions{Options: map[string]interface{}{
		"tsconfig": "tsconfig.build.json",
		"empty":    "",
		"number":   3,
		"lint":     false,
	}}

	s, ok := opts.StringOption("tsconfig")
	assert.True(t, ok)
	assert.Equal(t, "tsconfig.build.json", s)

	_, ok = opts.StringOption("empty")
	assert.False(t, ok)
	_, ok = opts.StringOption("number")
	assert.False(t, ok)
	_, ok = opts.StringOption("absent")
	assert.False(t, ok)

	assert.False(t, opts.BoolOption("lint", true))
	assert.True(t, opts.BoolOption("absent", true))
}
