// Package internal contains the core implementation packages for pkgbuild.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - plugins: builder contract, lifecycle hooks and the pipeline manager
//   - plugins/builtin: the standard-pkg, types and deno builders
//   - manifest: package.json loading, default filling and saving
//   - tsconfig: tsconfig.json resolution with extends, plus drift checks
//   - build: external process runner, tsc invocations and file copies
//   - reporter: progress, warnings and artifact reporting
//   - lint: post-build checks on emitted sources
//   - config: layered configuration with validation
//   - scanner: source discovery and change detection
//   - watcher: debounced file system monitoring
//   - errors: typed build errors with remediation steps
//   - validation: path and argument checks for external commands
//   - logging: structured logging on top of log/slog
//   - version: build information
//
// # Pipeline Flow
//
// A build runs each lifecycle phase across every builder before moving to
// the next phase:
//
//  1. manifest: builders fill package.json fields the user left empty
//  2. beforeBuild: preconditions such as tsconfig existence are checked
//  3. build: builders emit artifacts into the output directory
//  4. afterJob: follow-up checks such as linting
//
// The first fatal error stops the pipeline and no manifest is written.
//
// # Testing Strategy
//
// Unit tests use testify. Fake tsc and node binaries live in testutils,
// and testutils/faults injects process failures. Property tests run with
// gopter behind the property build tag.
package internal
