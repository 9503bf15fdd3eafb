// Package builtin holds the builders shipped with pkgbuild: "types"
// (declarations through a fallback chain), "standard-pkg" (tsc transpile
// plus output lint) and "deno" (a dist-deno/ copy of the sources).
package builtin

import (
	"fmt"
	"sort"

	"github.com/conneroisu/pkgbuild/internal/plugins"
)

const builtinVersion = "1.0.0"

var constructors = map[string]func() plugins.Plugin{
	StandardPkgName: func() plugins.Plugin { return NewStandardPkgBuilder() },
	TypesName:       func() plugins.Plugin { return NewTypesBuilder() },
	DenoName:        func() plugins.Plugin { return NewDenoBuilder() },
}

// DefaultOrder is the run order used when the configuration names none.
var DefaultOrder = []string{StandardPkgName, TypesName, DenoName}

// Names returns every builtin builder name, sorted.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsBuiltin reports whether name is a builtin builder.
func IsBuiltin(name string) bool {
	_, ok := constructors[name]
	return ok
}

// New creates a fresh builtin builder.
func New(name string) (plugins.Plugin, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown builder %q (available: %v)", name, Names())
	}
	return ctor(), nil
}

func requireStringOptions(config plugins.PluginConfig, keys ...string) error {
	for _, key := range keys {
		v, ok := config.Config[key]
		if !ok {
			continue
		}
		if _, isString := v.(string); !isString {
			return fmt.Errorf("option %s must be a string, got %T", key, v)
		}
	}
	return nil
}
