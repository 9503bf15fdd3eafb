// Package tsconfig locates, loads and sanity-checks TypeScript compiler
// configuration files.
//
// Loading is two-phase. ReadRaw reads the file verbatim and distinguishes a
// missing file from an empty one. Load then parses the comment-tolerant
// JSON, follows the "extends" chain and merges it into one option set.
// Every problem found along the chain is collected before Load fails, so a
// single run reports all of them.
package tsconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/conneroisu/pkgbuild/internal/errors"
)

// DefaultName is the configuration file looked up when none is given.
const DefaultName = "tsconfig.json"

var (
	// ErrConfigNotFound matches a configuration file that does not exist.
	ErrConfigNotFound = &errors.BuildError{Type: errors.ErrorTypeConfig, Code: errors.ErrCodeConfigNotFound}
	// ErrConfigEmpty matches a configuration file without content.
	ErrConfigEmpty = &errors.BuildError{Type: errors.ErrorTypeConfig, Code: errors.ErrCodeConfigEmpty}
	// ErrConfigMalformed matches a configuration that failed to parse or resolve.
	ErrConfigMalformed = &errors.BuildError{Type: errors.ErrorTypeConfig, Code: errors.ErrCodeConfigMalformed}
)

// compilerOptions whose values are paths relative to the declaring file.
var pathOptions = map[string]bool{
	"outDir":          true,
	"rootDir":         true,
	"declarationDir":  true,
	"baseUrl":         true,
	"outFile":         true,
	"tsBuildInfoFile": true,
}

// CompilerConfig is the merged view of a configuration file and its bases.
type CompilerConfig struct {
	// Path is the absolute path of the file that was loaded.
	Path string
	// Chain lists the files that contributed, starting with Path.
	Chain           []string
	CompilerOptions map[string]interface{}
	Files           []string
	Include         []string
	Exclude         []string
}

// Option returns a compiler option by name.
func (c *CompilerConfig) Option(name string) (interface{}, bool) {
	v, ok := c.CompilerOptions[name]
	return v, ok
}

// Target returns compilerOptions.target as written, or "".
func (c *CompilerConfig) Target() string {
	s, _ := c.CompilerOptions["target"].(string)
	return s
}

// Module returns compilerOptions.module as written, or "".
func (c *CompilerConfig) Module() string {
	s, _ := c.CompilerOptions["module"].(string)
	return s
}

// ResolvePath returns the absolute configuration path for name relative to
// cwd. An empty name means DefaultName.
func ResolvePath(cwd, name string) string {
	if name == "" {
		name = DefaultName
	}
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}
	return filepath.Join(cwd, name)
}

// Exists reports whether a regular file exists at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ReadRaw reads path verbatim.
func ReadRaw(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.NewConfigError(errors.ErrCodeConfigNotFound,
			fmt.Sprintf("ENOENT: no such file or directory, open '%s'", path), nil).WithPath(path)
	}
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigMalformed, "failed to read configuration", err).
			WithPath(path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.NewConfigError(errors.ErrCodeConfigEmpty, "configuration file is empty", nil).
			WithPath(path)
	}
	return data, nil
}

// Load reads path and resolves its inheritance chain.
func Load(path string) (*CompilerConfig, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigMalformed, "invalid configuration path")
	}

	raw, err := ReadRaw(abs)
	if err != nil {
		return nil, err
	}

	l := &loader{}
	merged := l.resolve(abs, raw, nil)

	if len(l.errs) > 0 {
		msgs := make([]string, len(l.errs))
		for i, e := range l.errs {
			msgs[i] = e.Error()
		}
		return nil, errors.NewConfigError(errors.ErrCodeConfigMalformed,
			fmt.Sprintf("Some errors occurred while attempting to read from %s:\n%s", abs, strings.Join(msgs, "\n")),
			nil,
		).WithPath(abs).WithSuggestions(errors.ConfigurationSuggestions(abs)...)
	}

	return &CompilerConfig{
		Path:            abs,
		Chain:           merged.chain,
		CompilerOptions: merged.options,
		Files:           merged.files,
		Include:         merged.include,
		Exclude:         merged.exclude,
	}, nil
}

// layer is one partially merged configuration.
type layer struct {
	chain   []string
	options map[string]interface{}
	files   []string
	include []string
	exclude []string
}

func newLayer() *layer {
	return &layer{options: make(map[string]interface{})}
}

// apply merges other on top of l.
func (l *layer) apply(other *layer) {
	for k, v := range other.options {
		l.options[k] = v
	}
	if other.files != nil {
		l.files = other.files
	}
	if other.include != nil {
		l.include = other.include
	}
	if other.exclude != nil {
		l.exclude = other.exclude
	}
}

type loader struct {
	errs []error
}

func (ld *loader) addf(path, format string, args ...interface{}) {
	ld.errs = append(ld.errs, fmt.Errorf("%s: %s", path, fmt.Sprintf(format, args...)))
}

// resolve parses data (the content of path) and every base it extends.
// stack holds the files currently being resolved, for cycle detection.
func (ld *loader) resolve(path string, data []byte, stack []string) *layer {
	result := newLayer()
	result.chain = []string{path}

	doc, ok := ld.parse(path, data)
	if !ok {
		return result
	}

	stack = append(stack, path)
	dir := filepath.Dir(path)

	for _, ext := range ld.extendsList(path, doc["extends"]) {
		basePath, err := resolveExtends(ext, dir)
		if err != nil {
			ld.addf(path, "%v", err)
			continue
		}
		if cycle := indexOf(stack, basePath); cycle >= 0 {
			ld.addf(path, "circular \"extends\" chain: %s -> %s", strings.Join(stack[cycle:], " -> "), basePath)
			continue
		}

		raw, err := ReadRaw(basePath)
		if err != nil {
			ld.addf(path, "cannot read base configuration %q: %v", ext, err)
			continue
		}

		base := ld.resolve(basePath, raw, stack)
		result.apply(base)
		result.chain = append(result.chain, base.chain...)
	}

	own := newLayer()
	if v, present := doc["compilerOptions"]; present && v != nil {
		opts, isObject := v.(map[string]interface{})
		if !isObject {
			ld.addf(path, "\"compilerOptions\" must be an object")
		}
		for k, val := range opts {
			if s, isString := val.(string); isString && pathOptions[k] && s != "" && !filepath.IsAbs(s) {
				val = filepath.Join(dir, filepath.FromSlash(s))
			}
			own.options[k] = val
		}
		for _, key := range []string{"target", "module"} {
			if val, set := opts[key]; set && val != nil {
				if _, isString := val.(string); !isString {
					ld.addf(path, "compilerOptions.%s must be a string, found %v", key, val)
				}
			}
		}
	}
	own.files = ld.stringList(path, doc, "files")
	own.include = ld.stringList(path, doc, "include")
	own.exclude = ld.stringList(path, doc, "exclude")

	result.apply(own)
	return result
}

func (ld *loader) parse(path string, data []byte) (map[string]interface{}, bool) {
	std, err := hujson.Standardize(data)
	if err != nil {
		ld.addf(path, "%v", err)
		return nil, false
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(std, &doc); err != nil {
		ld.addf(path, "configuration must be a JSON object: %v", err)
		return nil, false
	}
	if doc == nil {
		ld.addf(path, "configuration must be a JSON object")
		return nil, false
	}
	return doc, true
}

func (ld *loader) extendsList(path string, v interface{}) []string {
	switch ext := v.(type) {
	case nil:
		return nil
	case string:
		if ext == "" {
			ld.addf(path, "\"extends\" must not be empty")
			return nil
		}
		return []string{ext}
	case []interface{}:
		out := make([]string, 0, len(ext))
		for _, item := range ext {
			s, ok := item.(string)
			if !ok || s == "" {
				ld.addf(path, "\"extends\" entries must be non-empty strings, found %v", item)
				continue
			}
			out = append(out, s)
		}
		return out
	default:
		ld.addf(path, "\"extends\" must be a string or an array of strings")
		return nil
	}
}

func (ld *loader) stringList(path string, doc map[string]interface{}, key string) []string {
	v, present := doc[key]
	if !present || v == nil {
		return nil
	}
	items, ok := v.([]interface{})
	if !ok {
		ld.addf(path, "%q must be an array of strings", key)
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			ld.addf(path, "%q entries must be strings, found %v", key, item)
			continue
		}
		out = append(out, s)
	}
	return out
}

// resolveExtends finds the file an "extends" entry refers to. Relative and
// absolute entries resolve against dir; anything else is looked up as a
// package in node_modules directories from dir upwards.
func resolveExtends(ext, dir string) (string, error) {
	slashed := filepath.ToSlash(ext)
	if strings.HasPrefix(slashed, "./") || strings.HasPrefix(slashed, "../") || filepath.IsAbs(ext) {
		p := ext
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, filepath.FromSlash(ext))
		}
		if found, ok := withJSONFallback(p); ok {
			return found, nil
		}
		return "", fmt.Errorf("cannot find base configuration %q", ext)
	}

	for current := dir; ; current = filepath.Dir(current) {
		candidate := filepath.Join(current, "node_modules", filepath.FromSlash(ext))
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			if p := filepath.Join(candidate, DefaultName); Exists(p) {
				return p, nil
			}
		} else if found, ok := withJSONFallback(candidate); ok {
			return found, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
	}
	return "", fmt.Errorf("cannot resolve base configuration package %q", ext)
}

func withJSONFallback(p string) (string, bool) {
	if Exists(p) {
		return p, true
	}
	if !strings.HasSuffix(p, ".json") && Exists(p+".json") {
		return p + ".json", true
	}
	return "", false
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
