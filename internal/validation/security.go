// Package validation provides the checks applied before pkgbuild hands a
// path or an argument to the filesystem or to an external process.
package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidateArgument validates a command line argument. Processes are never
// spawned through a shell, so only control characters and shell
// substitution markers are rejected; absolute paths are expected.
func ValidateArgument(arg string) error {
	if strings.ContainsRune(arg, 0) {
		return fmt.Errorf("contains null byte")
	}

	for _, r := range arg {
		if r == '\n' || r == '\r' {
			return fmt.Errorf("contains line break")
		}
	}

	dangerous := []string{"`", "$("}
	for _, seq := range dangerous {
		if strings.Contains(arg, seq) {
			return fmt.Errorf("contains dangerous sequence: %s", seq)
		}
	}

	return nil
}

// ValidateBinary checks that bin is an absolute path to an executable
// regular file.
func ValidateBinary(bin string) error {
	if bin == "" {
		return fmt.Errorf("binary path cannot be empty")
	}
	if !filepath.IsAbs(bin) {
		return fmt.Errorf("binary path must be absolute: %s", bin)
	}
	if err := ValidateArgument(bin); err != nil {
		return fmt.Errorf("invalid binary path '%s': %w", bin, err)
	}

	info, err := os.Stat(bin)
	if err != nil {
		return fmt.Errorf("binary not found: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("binary path is a directory: %s", bin)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("binary is not executable: %s", bin)
	}

	return nil
}

// ValidatePath validates a project-relative path from configuration so it
// cannot escape the package directory.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if filepath.IsAbs(path) {
		return fmt.Errorf("path must be relative to the package: %s", path)
	}

	cleanPath := filepath.Clean(path)
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">"}
	for _, char := range dangerousChars {
		if strings.Contains(path, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}

// ValidateFileExtension validates a configured extension such as ".ts".
func ValidateFileExtension(ext string) error {
	if ext == "" {
		return fmt.Errorf("extension cannot be empty")
	}
	if !strings.HasPrefix(ext, ".") {
		return fmt.Errorf("extension must start with a dot: %s", ext)
	}
	if strings.ContainsAny(ext, `/\*?`) {
		return fmt.Errorf("extension contains invalid characters: %s", ext)
	}

	return nil
}

// Within reports whether target lies inside base (or is base itself).
func Within(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
