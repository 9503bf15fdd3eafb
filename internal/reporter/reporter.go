// Package reporter is the user-facing output channel handed to every builder
// hook through BuildOptions.
package reporter

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/conneroisu/pkgbuild/internal/logging"
)

// Reporter receives progress messages, warnings and artifact notifications.
type Reporter interface {
	Info(msg string)
	Warning(msg string)
	Created(path, kind string)
}

// Console writes human-readable lines to an io.Writer and mirrors every
// event into a structured logger.
type Console struct {
	out    io.Writer
	logger logging.Logger
	base   string
	mu     sync.Mutex
}

// NewConsole creates a console reporter. Created paths are printed relative
// to base when possible; pass "" to always print them as given.
func NewConsole(out io.Writer, logger logging.Logger, base string) *Console {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Console{
		out:    out,
		logger: logger.WithComponent("reporter"),
		base:   base,
	}
}

// Info prints an informational message.
func (c *Console) Info(msg string) {
	c.println("   " + msg)
	c.logger.Debug(context.Background(), msg)
}

// Warning prints a warning. Multi-line warnings keep their layout.
func (c *Console) Warning(msg string) {
	line := strings.TrimLeft(msg, "\n")
	if !strings.HasPrefix(line, warningPrefix) {
		line = warningPrefix + "  " + line
	}
	c.println(line)
	c.logger.Warn(context.Background(), nil, msg)
}

const warningPrefix = "⚠️"

// Created announces an artifact.
func (c *Console) Created(path, kind string) {
	c.println(fmt.Sprintf("📦 %s [%s]", c.display(path), kind))
	c.logger.Info(context.Background(), "artifact created", "path", path, "kind", kind)
}

func (c *Console) display(path string) string {
	if c.base == "" {
		return path
	}
	rel, err := filepath.Rel(c.base, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

func (c *Console) println(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, line)
}

// Artifact is a (kind, path) pair announced through Created.
type Artifact struct {
	Path string
	Kind string
}

// Recorder keeps every event in memory. The watch command uses it to
// summarize a rebuild and tests use it to assert on output.
type Recorder struct {
	mu        sync.Mutex
	infos     []string
	warnings  []string
	artifacts []Artifact
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Info implements Reporter.
func (r *Recorder) Info(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, msg)
}

// Warning implements Reporter.
func (r *Recorder) Warning(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, msg)
}

// Created implements Reporter.
func (r *Recorder) Created(path, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts = append(r.artifacts, Artifact{Path: path, Kind: kind})
}

// Infos returns a copy of the recorded info messages.
func (r *Recorder) Infos() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.infos...)
}

// Warnings returns a copy of the recorded warnings.
func (r *Recorder) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.warnings...)
}

// Artifacts returns a copy of the recorded artifacts in announcement order.
func (r *Recorder) Artifacts() []Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Artifact(nil), r.artifacts...)
}

// Tee fans every event out to several reporters.
type Tee []Reporter

// Info implements Reporter.
func (t Tee) Info(msg string) {
	for _, r := range t {
		r.Info(msg)
	}
}

// Warning implements Reporter.
func (t Tee) Warning(msg string) {
	for _, r := range t {
		r.Warning(msg)
	}
}

// Created implements Reporter.
func (t Tee) Created(path, kind string) {
	for _, r := range t {
		r.Created(path, kind)
	}
}
