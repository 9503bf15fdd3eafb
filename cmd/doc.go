// Package cmd provides the command-line interface for pkgbuild.
//
// # Available Commands
//
//   - build: run the builder pipeline and write <out>/package.json
//   - watch: build, then rebuild on debounced source changes
//   - init: write a default .pkgbuild.yml
//   - list: show the builtin builders and their hooks
//   - version: show build information
//
// # Configuration Integration
//
// Commands read their configuration from, in order of precedence:
//
//  1. Command-line flags (--out, --builders, --log-level)
//  2. Environment variables (PKGBUILD_PACKAGE_OUT, PKGBUILD_PIPELINE_BUILDERS, ...)
//  3. The configuration file (.pkgbuild.yml, --config or PKGBUILD_CONFIG_FILE)
//  4. Default values
//
// # Error Handling
//
// A failed command prints the error and, for pipeline failures, the
// remediation steps attached to it, then exits with status 1.
package cmd
