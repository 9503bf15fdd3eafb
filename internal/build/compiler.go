// Package build wraps the external TypeScript compiler and the file
// materialization used by the builtin builders.
package build

import (
	"context"
	"os"
	"path/filepath"

	"github.com/conneroisu/pkgbuild/internal/reporter"
)

// TSCRelPath is where a project-local TypeScript install puts its compiler.
const TSCRelPath = "node_modules/.bin/tsc"

// Output directories under the package output directory.
const (
	DistSrcDir   = "dist-src"
	DistTypesDir = "dist-types"
	DistNodeDir  = "dist-node"
	DistDenoDir  = "dist-deno"
)

// LocateTSC returns the project-local tsc binary under cwd and whether it
// exists.
func LocateTSC(cwd string) (string, bool) {
	bin := filepath.Join(cwd, filepath.FromSlash(TSCRelPath))
	info, err := os.Stat(bin)
	return bin, err == nil && !info.IsDir()
}

// TSCompiler drives tsc.
type TSCompiler struct {
	bin    string
	cwd    string
	runner Runner
}

// NewTSCompiler creates a compiler for the tsc binary at bin, run in cwd.
func NewTSCompiler(bin, cwd string, runner Runner) *TSCompiler {
	if runner == nil {
		runner = NewExecRunner()
	}
	return &TSCompiler{
		bin:    bin,
		cwd:    cwd,
		runner: runner,
	}
}

// Bin returns the compiler binary path.
func (tc *TSCompiler) Bin() string {
	return tc.bin
}

// EmitDeclarations runs tsc in declaration-only mode for project, writing
// into declDir without declaration maps.
func (tc *TSCompiler) EmitDeclarations(ctx context.Context, project, declDir string, rep reporter.Reporter) error {
	_, err := tc.runner.Run(ctx, Command{
		Bin:  tc.bin,
		Args: DeclarationArgs(project, declDir),
		Dir:  tc.cwd,
	}, rep)
	return err
}

// Transpile compiles the project to ES2018/ESNext sources in out/dist-src
// with declarations in out/dist-types.
func (tc *TSCompiler) Transpile(ctx context.Context, out string, rep reporter.Reporter) error {
	_, err := tc.runner.Run(ctx, Command{
		Bin:  tc.bin,
		Args: TranspileArgs(out),
		Dir:  tc.cwd,
	}, rep)
	return err
}

// DeclarationArgs builds the tsc arguments for declaration-only emission.
func DeclarationArgs(project, declDir string) []string {
	return []string{
		"-d",
		"--emitDeclarationOnly",
		"--declarationMap", "false",
		"--project", project,
		"--declarationDir", withTrailingSlash(declDir),
	}
}

// TranspileArgs builds the tsc arguments for the standard package build.
func TranspileArgs(out string) []string {
	return []string{
		"--outDir", withTrailingSlash(filepath.Join(out, DistSrcDir)),
		"-d",
		"--declarationDir", withTrailingSlash(filepath.Join(out, DistTypesDir)),
		"--declarationMap", "false",
		"--target", "es2018",
		"--module", "esnext",
	}
}

func withTrailingSlash(dir string) string {
	if dir == "" || os.IsPathSeparator(dir[len(dir)-1]) {
		return dir
	}
	return dir + string(filepath.Separator)
}
