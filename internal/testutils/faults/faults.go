// Package faults injects process failures into the build pipeline for
// tests. Operations are keyed by the base name of the binary being run,
// so "tsc" targets every compiler invocation and "node" every toolchain
// script.
package faults

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/conneroisu/pkgbuild/internal/build"
	"github.com/conneroisu/pkgbuild/internal/errors"
	"github.com/conneroisu/pkgbuild/internal/reporter"
)

// Target is one configured injection point.
type Target struct {
	Name      string
	Error     error
	Skip      int64 // calls to let through before failing
	Remaining int64 // -1 for unlimited
	Count     int64 // failures injected so far
}

// Injector decides which operations fail.
type Injector struct {
	mu      sync.Mutex
	targets map[string]*Target
	calls   map[string]int64
	enabled bool
}

// NewInjector creates an enabled injector with no targets.
func NewInjector() *Injector {
	return &Injector{
		targets: make(map[string]*Target),
		calls:   make(map[string]int64),
		enabled: true,
	}
}

// InjectError makes every call to operation fail with err.
func (i *Injector) InjectError(operation string, err error) *Target {
	i.mu.Lock()
	defer i.mu.Unlock()

	target := &Target{Name: operation, Error: err, Remaining: -1}
	i.targets[operation] = target
	return target
}

// InjectErrorOnce fails the next call to operation only.
func (i *Injector) InjectErrorOnce(operation string, err error) *Target {
	return i.InjectErrorCount(operation, err, 1)
}

// InjectErrorCount fails the next count calls to operation.
func (i *Injector) InjectErrorCount(operation string, err error, count int64) *Target {
	target := i.InjectError(operation, err)
	i.mu.Lock()
	target.Remaining = count
	i.mu.Unlock()
	return target
}

// InjectErrorAfter lets skip calls to operation succeed, then fails the
// next one.
func (i *Injector) InjectErrorAfter(operation string, err error, skip int64) *Target {
	target := i.InjectErrorOnce(operation, err)
	i.mu.Lock()
	target.Skip = skip
	i.mu.Unlock()
	return target
}

// ShouldFail records a call to operation and returns the error to inject,
// or nil.
func (i *Injector) ShouldFail(operation string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.calls[operation]++
	if !i.enabled {
		return nil
	}

	target, ok := i.targets[operation]
	if !ok || target.Remaining == 0 {
		return nil
	}
	if target.Skip > 0 {
		target.Skip--
		return nil
	}

	target.Count++
	if target.Remaining > 0 {
		target.Remaining--
	}
	return target.Error
}

// Calls returns how often operation was attempted, failed or not.
func (i *Injector) Calls(operation string) int64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.calls[operation]
}

// Enable turns injection back on.
func (i *Injector) Enable() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.enabled = true
}

// Disable lets every call through while still counting calls.
func (i *Injector) Disable() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.enabled = false
}

// Clear removes all targets and call counts.
func (i *Injector) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.targets = make(map[string]*Target)
	i.calls = make(map[string]int64)
}

// Runner wraps a build.Runner and fails the commands the injector selects
// without starting them.
type Runner struct {
	next     build.Runner
	injector *Injector
}

// NewRunner wraps next. A nil next means the os/exec runner.
func NewRunner(next build.Runner, injector *Injector) *Runner {
	if next == nil {
		next = build.NewExecRunner()
	}
	return &Runner{next: next, injector: injector}
}

// Run implements build.Runner. Injected failures look like a process that
// exited with code 1 and printed the injected error.
func (r *Runner) Run(ctx context.Context, cmd build.Command, rep reporter.Reporter) (*build.Result, error) {
	op := Operation(cmd)
	injected := r.injector.ShouldFail(op)
	if injected == nil {
		return r.next.Run(ctx, cmd, rep)
	}

	result := &build.Result{Stderr: []byte(injected.Error() + "\n"), ExitCode: 1}
	if rep != nil {
		rep.Warning(injected.Error())
	}
	return result, errors.NewProcessError(fmt.Sprintf("%s exited with code %d", cmd.Bin, result.ExitCode),
		&build.ProcessError{
			Bin:      cmd.Bin,
			Args:     append([]string(nil), cmd.Args...),
			Dir:      cmd.Dir,
			ExitCode: result.ExitCode,
			Output:   string(result.Stderr),
			Err:      injected,
		})
}

// Operation names the injection point for cmd.
func Operation(cmd build.Command) string {
	name := filepath.Base(cmd.Bin)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
