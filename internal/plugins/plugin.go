// Package plugins defines the builder lifecycle and the manager that drives
// it.
//
// A builder implements Plugin plus any subset of the hook interfaces below.
// The manager discovers the hooks by type assertion, so a builder that only
// needs to fill manifest defaults implements ManifestPlugin and nothing else.
package plugins

import (
	"context"
	"fmt"

	"github.com/conneroisu/pkgbuild/internal/manifest"
	"github.com/conneroisu/pkgbuild/internal/reporter"
)

// Plugin represents a builder
type Plugin interface {
	// Name returns the unique name of the builder
	Name() string

	// Version returns the version of the builder
	Version() string

	// Description returns a description of what the builder produces
	Description() string

	// Initialize receives the builder's configuration once, at registration
	Initialize(ctx context.Context, config PluginConfig) error
}

// ManifestPlugin fills manifest fields describing the artifacts it will
// produce. It must only default fields, never overwrite them.
type ManifestPlugin interface {
	Plugin

	Manifest(m *manifest.Manifest, opts BuildOptions)
}

// BeforeBuildPlugin checks preconditions. An error aborts the pipeline
// before any Build hook runs.
type BeforeBuildPlugin interface {
	Plugin

	BeforeBuild(ctx context.Context, opts BuildOptions) error
}

// BuildPlugin produces artifacts under opts.Out.
type BuildPlugin interface {
	Plugin

	Build(ctx context.Context, opts BuildOptions) error
}

// AfterJobPlugin runs once every Build hook has succeeded. Errors are
// reported as warnings.
type AfterJobPlugin interface {
	Plugin

	AfterJob(ctx context.Context, opts BuildOptions) error
}

// GatedPlugin can opt out of a run. A builder that reports false is skipped
// for every hook without any output.
type GatedPlugin interface {
	Plugin

	Enabled(opts BuildOptions) bool
}

// PluginConfig contains configuration for a builder
type PluginConfig struct {
	// Name of the builder
	Name string `json:"name"`

	// Options specific to the builder
	Config map[string]interface{} `json:"config"`

	// Whether the builder is enabled
	Enabled bool `json:"enabled"`
}

// Sources lists the files a build operates on.
type Sources struct {
	// Files holds absolute paths.
	Files []string
}

// BuildOptions is the per-invocation context handed to every hook. Hooks
// must not modify it.
type BuildOptions struct {
	// Cwd is the package directory.
	Cwd string
	// Out is the absolute, already existing output directory.
	Out      string
	Src      Sources
	Options  map[string]interface{}
	Reporter reporter.Reporter
}

// StringOption returns a string-valued option. A key that is absent, empty
// or not a string reports false.
func (o BuildOptions) StringOption(key string) (string, bool) {
	s, ok := o.Options[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// BoolOption returns a boolean option, or def when it is absent.
func (o BuildOptions) BoolOption(key string, def bool) bool {
	if b, ok := o.Options[key].(bool); ok {
		return b
	}
	return def
}

// withOptions returns a copy of o carrying options.
func (o BuildOptions) withOptions(options map[string]interface{}) BuildOptions {
	if options == nil {
		options = map[string]interface{}{}
	}
	o.Options = options
	return o
}

// Hook names as reported by Hooks.
const (
	HookManifest    = "manifest"
	HookBeforeBuild = "beforeBuild"
	HookBuild       = "build"
	HookAfterJob    = "afterJob"
)

// Hooks lists the lifecycle hooks p implements, in execution order.
func Hooks(p Plugin) []string {
	var hooks []string

	if _, ok := p.(ManifestPlugin); ok {
		hooks = append(hooks, HookManifest)
	}
	if _, ok := p.(BeforeBuildPlugin); ok {
		hooks = append(hooks, HookBeforeBuild)
	}
	if _, ok := p.(BuildPlugin); ok {
		hooks = append(hooks, HookBuild)
	}
	if _, ok := p.(AfterJobPlugin); ok {
		hooks = append(hooks, HookAfterJob)
	}

	return hooks
}

// PluginInfo contains information about a registered builder
type PluginInfo struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Hooks       []string `json:"hooks"`
	Gated       bool     `json:"gated"`
}

// Describe builds the PluginInfo of p.
func Describe(p Plugin) PluginInfo {
	_, gated := p.(GatedPlugin)
	return PluginInfo{
		Name:        p.Name(),
		Version:     p.Version(),
		Description: p.Description(),
		Hooks:       Hooks(p),
		Gated:       gated,
	}
}

// String renders the info on one line.
func (i PluginInfo) String() string {
	return fmt.Sprintf("%s@%s %v", i.Name, i.Version, i.Hooks)
}
