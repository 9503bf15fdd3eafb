// Package testutils builds throwaway package directories and fake
// toolchain binaries for tests. The fakes are POSIX shell scripts, so tests
// using them skip on Windows.
package testutils

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// DefaultTSConfig targets the pkgbuild baseline.
const DefaultTSConfig = `{
  // baseline for the standard package build
  "compilerOptions": {
    "target": "es2018",
    "module": "esnext",
    "strict": true,
  },
  "include": ["src"]
}
`

// RequirePOSIX skips the test when shell-script fakes cannot run.
func RequirePOSIX(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake toolchain scripts need a POSIX shell")
	}
}

// CreateTempPackage creates a package directory with a package.json and
// src/index.ts, and returns its absolute path.
func CreateTempPackage(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	WriteFile(t, dir, "package.json", `{"name":"fixture","version":"1.0.0"}`)
	WriteFile(t, dir, "src/index.ts", "export const answer = 42;\n")

	return dir
}

// CreateOutDir creates an empty output directory.
func CreateOutDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

// WriteFile writes content to dir/rel, creating parents, and returns the
// absolute path.
func WriteFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// WriteTSConfig writes tsconfig.json into dir.
func WriteTSConfig(t *testing.T, dir, content string) string {
	t.Helper()
	return WriteFile(t, dir, "tsconfig.json", content)
}

// ReadFile returns the content of path.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// AssertNotExists fails when path exists.
func AssertNotExists(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err), "expected %s not to exist", path)
}

const fakeTSCScript = `#!/bin/sh
echo "$@" >> "$(dirname "$0")/tsc.log"
out=""
decl=""
while [ $# -gt 0 ]; do
  case "$1" in
    --outDir) out="$2"; shift ;;
    --declarationDir) decl="$2"; shift ;;
  esac
  shift
done
if [ -n "$out" ]; then
  mkdir -p "$out"
  echo "export const answer = 42;" > "$out/index.js"
fi
if [ -n "$decl" ]; then
  mkdir -p "$decl"
  echo "export declare const answer: number;" > "$decl/index.d.ts"
fi
echo "tsc: emitted"
exit 0
`

const failingTSCScript = `#!/bin/sh
echo "$@" >> "$(dirname "$0")/tsc.log"
echo "src/index.ts(1,1): error TS2304: Cannot find name 'nope'." >&2
exit 2
`

// InstallFakeTSC writes an executable node_modules/.bin/tsc into cwd. The
// fake records its arguments, one invocation per line, in tsc.log next to
// itself. A failing fake prints a diagnostic to stderr and exits 2.
func InstallFakeTSC(t *testing.T, cwd string, failing bool) string {
	t.Helper()
	RequirePOSIX(t)

	script := fakeTSCScript
	if failing {
		script = failingTSCScript
	}
	return writeExecutable(t, filepath.Join(cwd, "node_modules", ".bin", "tsc"), script)
}

// TSCInvocations returns the argument lines recorded by the fake tsc.
func TSCInvocations(t *testing.T, cwd string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(cwd, "node_modules", ".bin", "tsc.log"))
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

// InstallTypescriptPackage makes node_modules/typescript resolvable from cwd.
func InstallTypescriptPackage(t *testing.T, cwd string) {
	t.Helper()
	WriteFile(t, cwd, "node_modules/typescript/package.json", `{"name":"typescript","version":"3.4.5"}`)
}

const fakeNodeScript = `#!/bin/sh
case "$1" in
  *probe*) exit %PROBE% ;;
esac
echo "declare namespace AutoGeneratedTypings {"
echo "  const answer: number;"
echo "}"
echo "export = AutoGeneratedTypings;"
`

// InstallFakeNode writes a fake node binary into dir. Probe scripts exit 0
// when capable is true and 3 otherwise; any other script prints a
// declaration file.
func InstallFakeNode(t *testing.T, dir string, capable bool) string {
	t.Helper()
	RequirePOSIX(t)

	code := "3"
	if capable {
		code = "0"
	}
	return writeExecutable(t, filepath.Join(dir, "node"), strings.ReplaceAll(fakeNodeScript, "%PROBE%", code))
}

func writeExecutable(t *testing.T, path, script string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// WaitFor polls cond until it holds or the timeout elapses.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
