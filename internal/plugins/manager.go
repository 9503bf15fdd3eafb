package plugins

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/conneroisu/pkgbuild/internal/errors"
	"github.com/conneroisu/pkgbuild/internal/logging"
	"github.com/conneroisu/pkgbuild/internal/manifest"
	"github.com/conneroisu/pkgbuild/internal/reporter"
)

// PluginManager registers builders and runs the lifecycle over them.
type PluginManager struct {
	plugins []Plugin
	byName  map[string]Plugin
	configs map[string]PluginConfig
	logger  logging.Logger
	mu      sync.RWMutex
}

// RunResult summarizes one pipeline run.
type RunResult struct {
	// Ran lists the builders whose hooks were invoked, in order.
	Ran []string
	// Skipped lists gated builders that opted out.
	Skipped        []string
	AfterJobErrors []error
	Duration       time.Duration
}

// NewPluginManager creates a new plugin manager
func NewPluginManager(logger logging.Logger) *PluginManager {
	if logger == nil {
		logger = logging.Discard()
	}

	return &PluginManager{
		byName:  make(map[string]Plugin),
		configs: make(map[string]PluginConfig),
		logger:  logger.WithComponent("plugins"),
	}
}

// RegisterPlugin initializes plugin with config and appends it to the run
// order. Names must be unique.
func (pm *PluginManager) RegisterPlugin(ctx context.Context, plugin Plugin, config PluginConfig) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	name := plugin.Name()
	if _, exists := pm.byName[name]; exists {
		return errors.NewValidationError(errors.ErrCodeValidationFailed,
			fmt.Sprintf("builder %s already registered", name))
	}

	if config.Name == "" {
		config.Name = name
	}
	if config.Config == nil {
		config.Config = make(map[string]interface{})
	}

	if err := plugin.Initialize(ctx, config); err != nil {
		return errors.WrapBuilder(fmt.Errorf("failed to initialize builder %s: %w", name, err), name)
	}

	pm.plugins = append(pm.plugins, plugin)
	pm.byName[name] = plugin
	pm.configs[name] = config

	pm.logger.Debug(ctx, "Builder registered", "builder", name, "hooks", Hooks(plugin))

	return nil
}

// GetPlugin retrieves a builder by name
func (pm *PluginManager) GetPlugin(name string) (Plugin, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	plugin, exists := pm.byName[name]
	if !exists {
		return nil, fmt.Errorf("builder %s not found", name)
	}

	return plugin, nil
}

// ListPlugins returns registered builders in run order.
func (pm *PluginManager) ListPlugins() []PluginInfo {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	infos := make([]PluginInfo, 0, len(pm.plugins))
	for _, p := range pm.plugins {
		infos = append(infos, Describe(p))
	}

	return infos
}

// Run executes one package build. Phases are global: every Manifest hook,
// then every BeforeBuild, then every Build, then every AfterJob. Within a
// phase builders run in registration order, one at a time.
//
// A BeforeBuild or Build error stops the run and is returned attributed to
// its builder. AfterJob errors are reported as warnings and collected in
// the result.
func (pm *PluginManager) Run(ctx context.Context, m *manifest.Manifest, opts BuildOptions) (*RunResult, error) {
	pm.mu.RLock()
	plugins := make([]Plugin, len(pm.plugins))
	copy(plugins, pm.plugins)
	configs := make(map[string]PluginConfig, len(pm.configs))
	for k, v := range pm.configs {
		configs[k] = v
	}
	pm.mu.RUnlock()

	if opts.Reporter == nil {
		opts.Reporter = reporter.NewRecorder()
	}
	if m == nil {
		m = manifest.New()
	}

	perf := logging.StartOperation(pm.logger, "pipeline")
	result := &RunResult{}

	type active struct {
		plugin Plugin
		opts   BuildOptions
	}
	var builders []active

	for _, p := range plugins {
		cfg := configs[p.Name()]
		if !cfg.Enabled {
			continue
		}
		bopts := opts.withOptions(cfg.Config)
		if g, ok := p.(GatedPlugin); ok && !g.Enabled(bopts) {
			pm.logger.Debug(ctx, "Builder skipped", "builder", p.Name())
			result.Skipped = append(result.Skipped, p.Name())
			continue
		}
		builders = append(builders, active{plugin: p, opts: bopts})
		result.Ran = append(result.Ran, p.Name())
	}

	for _, b := range builders {
		if mp, ok := b.plugin.(ManifestPlugin); ok {
			pm.logger.Debug(ctx, "Running hook", "builder", b.plugin.Name(), "hook", HookManifest)
			mp.Manifest(m, b.opts)
		}
	}

	for _, b := range builders {
		if err := ctx.Err(); err != nil {
			return pm.fail(ctx, perf, result, err)
		}
		if bp, ok := b.plugin.(BeforeBuildPlugin); ok {
			pm.logger.Debug(ctx, "Running hook", "builder", b.plugin.Name(), "hook", HookBeforeBuild)
			if err := bp.BeforeBuild(ctx, b.opts); err != nil {
				return pm.fail(ctx, perf, result, errors.WrapBuilder(err, b.plugin.Name()))
			}
		}
	}

	for _, b := range builders {
		if err := ctx.Err(); err != nil {
			return pm.fail(ctx, perf, result, err)
		}
		if bp, ok := b.plugin.(BuildPlugin); ok {
			pm.logger.Debug(ctx, "Running hook", "builder", b.plugin.Name(), "hook", HookBuild)
			if err := bp.Build(ctx, b.opts); err != nil {
				return pm.fail(ctx, perf, result, errors.WrapBuilder(err, b.plugin.Name()))
			}
		}
	}

	for _, b := range builders {
		ap, ok := b.plugin.(AfterJobPlugin)
		if !ok {
			continue
		}
		pm.logger.Debug(ctx, "Running hook", "builder", b.plugin.Name(), "hook", HookAfterJob)
		if err := ap.AfterJob(ctx, b.opts); err != nil {
			err = errors.WrapBuilder(err, b.plugin.Name())
			pm.logger.Warn(ctx, err, "After-job hook failed", "builder", b.plugin.Name())
			b.opts.Reporter.Warning(err.Error())
			result.AfterJobErrors = append(result.AfterJobErrors, err)
		}
	}

	result.Duration = perf.End(ctx)
	return result, nil
}

func (pm *PluginManager) fail(ctx context.Context, perf *logging.PerfLogger, result *RunResult, err error) (*RunResult, error) {
	result.Duration = perf.EndWithError(ctx, err)
	return result, err
}
