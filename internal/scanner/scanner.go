// Package scanner discovers the source files of a package.
//
// The scanner walks <cwd>/<src>, keeps files whose extension is configured
// and drops files matching the exclude globs. Globs are matched against the
// slash separated path relative to the source directory with doublestar
// semantics, so "**" spans any number of directories and "{a,b}"
// alternates. The scanner remembers a CRC32 hash per file so a later scan
// can report whether anything actually changed, which the watch loop uses
// to skip rebuilds on touch-only events.
package scanner

import (
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/conneroisu/pkgbuild/internal/config"
)

// SourceFile is one discovered file.
type SourceFile struct {
	Path string
	Hash string
}

// SourceScanner finds the files the pipeline builds from.
type SourceScanner struct {
	root       string
	extensions map[string]bool
	exclude    []string

	mu     sync.RWMutex
	hashes map[string]string
}

// NewSourceScanner creates a scanner for the package rooted at cwd.
func NewSourceScanner(cwd string, pkg config.PackageConfig) *SourceScanner {
	exts := make(map[string]bool, len(pkg.Extensions))
	for _, ext := range pkg.Extensions {
		exts[strings.ToLower(ext)] = true
	}
	return &SourceScanner{
		root:       filepath.Join(cwd, pkg.Src),
		extensions: exts,
		exclude:    append([]string(nil), pkg.Exclude...),
		hashes:     make(map[string]string),
	}
}

// Root returns the absolute source directory.
func (s *SourceScanner) Root() string {
	abs, err := filepath.Abs(s.root)
	if err != nil {
		return s.root
	}
	return abs
}

// Scan returns the sorted absolute paths of every source file. A missing
// source directory yields an empty list.
func (s *SourceScanner) Scan(ctx context.Context) ([]string, error) {
	files, err := s.walk(ctx)
	if err != nil {
		return nil, err
	}

	paths := make([]string, len(files))
	hashes := make(map[string]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
		hashes[f.Path] = f.Hash
	}

	s.mu.Lock()
	s.hashes = hashes
	s.mu.Unlock()

	return paths, nil
}

// Changed rescans and reports whether any file was added, removed or
// modified since the previous Scan or Changed call.
func (s *SourceScanner) Changed(ctx context.Context) (bool, []string, error) {
	s.mu.RLock()
	previous := s.hashes
	s.mu.RUnlock()

	paths, err := s.Scan(ctx)
	if err != nil {
		return false, nil, err
	}

	s.mu.RLock()
	current := s.hashes
	s.mu.RUnlock()

	if len(previous) != len(current) {
		return true, paths, nil
	}
	for p, hash := range current {
		if previous[p] != hash {
			return true, paths, nil
		}
	}
	return false, paths, nil
}

// Excluded reports whether rel, relative to the source directory, matches
// one of the exclude globs.
func (s *SourceScanner) Excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range s.exclude {
		if MatchGlob(pattern, rel) {
			return true
		}
	}
	return false
}

func (s *SourceScanner) walk(ctx context.Context) ([]SourceFile, error) {
	root := s.Root()
	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path %s is not a directory", root)
	}

	var files []SourceFile
	err = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !s.extensions[strings.ToLower(filepath.Ext(p))] {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if s.Excluded(rel) {
			return nil
		}

		hash, err := hashFile(p)
		if err != nil {
			return fmt.Errorf("hashing %s: %w", p, err)
		}
		files = append(files, SourceFile{Path: p, Hash: hash})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func hashFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := crc32.NewIEEE()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%08x", h.Sum32()), nil
}

// MatchGlob matches a slash separated name against pattern with doublestar
// semantics: "**" matches zero or more directories and a trailing "/**"
// also matches the directory itself. A malformed pattern matches nothing.
func MatchGlob(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}
