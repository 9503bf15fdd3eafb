package builtin

import (
	"context"
	goerrors "errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/conneroisu/pkgbuild/internal/build"
	"github.com/conneroisu/pkgbuild/internal/errors"
)

// Toolchain is a loaded type-checking toolchain. What it can do beyond
// existing is discovered through capability interfaces.
type Toolchain interface {
	Name() string
}

// ModuleTypeGenerator synthesizes a declaration file from the runtime shape
// of an already built module. Output is a best guess.
type ModuleTypeGenerator interface {
	Toolchain

	GenerateTypesForModule(ctx context.Context, namespace, entry string) ([]byte, error)
}

// ToolchainLoader loads the toolchain visible from cwd.
type ToolchainLoader func(ctx context.Context, cwd string) (Toolchain, error)

// typescriptPackage is the manifest that marks an installed typescript.
const typescriptPackage = "node_modules/typescript/package.json"

const probeScript = `const ts = require(require.resolve("typescript", { paths: [process.cwd()] }));
process.exit(ts && typeof ts.generateTypesForModule === "function" ? 0 : 3);
`

const generateScript = `const ts = require(require.resolve("typescript", { paths: [process.cwd()] }));
const mod = require(process.argv[2]);
process.stdout.write(ts.generateTypesForModule(process.argv[3], mod, {}));
`

// NodeToolchain is the typescript package, driven through node.
type NodeToolchain struct {
	node   string
	cwd    string
	runner build.Runner
}

// Name implements Toolchain.
func (t *NodeToolchain) Name() string {
	return "typescript"
}

// NodeTypeGenerator is a NodeToolchain whose typescript exposes
// generateTypesForModule.
type NodeTypeGenerator struct {
	*NodeToolchain
}

// GenerateTypesForModule loads entry in node and returns the declarations
// typescript infers for it under namespace.
func (g *NodeTypeGenerator) GenerateTypesForModule(ctx context.Context, namespace, entry string) ([]byte, error) {
	res, err := g.runScript(ctx, "pkgbuild-typegen-*.js", generateScript, entry, namespace)
	if err != nil {
		return nil, err
	}
	if len(res.Stdout) == 0 {
		return nil, fmt.Errorf("typescript generated no declarations for %s", entry)
	}
	return res.Stdout, nil
}

// NewNodeToolchainLoader returns a loader that looks for typescript in
// node_modules from cwd upwards and runs it with node. An empty node path
// or a bare command name is looked up on PATH.
func NewNodeToolchainLoader(node string, runner build.Runner) ToolchainLoader {
	if runner == nil {
		runner = build.NewExecRunner()
	}

	return func(ctx context.Context, cwd string) (Toolchain, error) {
		if !hasTypescript(cwd) {
			return nil, errors.NewPreconditionError(errors.ErrCodeConfigMissing,
				`"typescript" package was not found`)
		}

		abs, err := resolveNode(node, cwd)
		if err != nil {
			return nil, err
		}

		tc := &NodeToolchain{node: abs, cwd: cwd, runner: runner}
		if _, err := tc.runScript(ctx, "pkgbuild-probe-*.js", probeScript); err != nil {
			// typescript without the capability is still a toolchain.
			return tc, nil
		}
		return &NodeTypeGenerator{NodeToolchain: tc}, nil
	}
}

// resolveNode turns the node option into an absolute path. A bare command
// name is looked up on PATH, a relative path is taken from cwd.
func resolveNode(node, cwd string) (string, error) {
	if node == "" {
		node = "node"
	}
	if filepath.IsAbs(node) {
		return node, nil
	}
	if !strings.ContainsAny(node, `/\`) {
		found, err := exec.LookPath(node)
		if err != nil && !goerrors.Is(err, exec.ErrDot) {
			return "", errors.NewPreconditionError(errors.ErrCodeConfigMissing,
				fmt.Sprintf("node executable %q not found", node))
		}
		return filepath.Abs(found)
	}
	return filepath.Join(cwd, node), nil
}

func hasTypescript(cwd string) bool {
	for dir := cwd; ; dir = filepath.Dir(dir) {
		if build.Exists(filepath.Join(dir, filepath.FromSlash(typescriptPackage))) {
			return true
		}
		if parent := filepath.Dir(dir); parent == dir {
			return false
		}
	}
}

// runScript writes script to a temporary file and runs it with node in the
// package directory. Output is captured, not reported.
func (t *NodeToolchain) runScript(ctx context.Context, pattern, script string, args ...string) (*build.Result, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeMaterialize, "failed to create toolchain script")
	}
	defer os.Remove(f.Name())

	if _, err := f.WriteString(script); err != nil {
		f.Close()
		return nil, errors.WrapIO(err, errors.ErrCodeMaterialize, "failed to write toolchain script")
	}
	if err := f.Close(); err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeMaterialize, "failed to write toolchain script")
	}

	return t.runner.Run(ctx, build.Command{
		Bin:  t.node,
		Args: append([]string{f.Name()}, args...),
		Dir:  t.cwd,
	}, nil)
}
