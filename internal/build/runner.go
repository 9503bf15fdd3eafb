package build

import (
	"bufio"
	"bytes"
	"context"
	goerrors "errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/conneroisu/pkgbuild/internal/errors"
	"github.com/conneroisu/pkgbuild/internal/reporter"
	"github.com/conneroisu/pkgbuild/internal/validation"
)

// Command describes one external binary execution.
type Command struct {
	Bin  string
	Args []string
	Dir  string
}

// String renders the command line for diagnostics.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Bin
	}
	return c.Bin + " " + strings.Join(c.Args, " ")
}

// Result holds the captured output of a finished process.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Runner executes external processes.
type Runner interface {
	Run(ctx context.Context, cmd Command, rep reporter.Reporter) (*Result, error)
}

// ProcessError carries everything needed to diagnose a failed process.
type ProcessError struct {
	Bin      string
	Args     []string
	Dir      string
	ExitCode int
	Output   string
	Err      error
}

// Error implements the error interface.
func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("%s: %v", Command{Bin: e.Bin, Args: e.Args}.String(), e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\nOutput: " + out
	}
	return msg
}

// Unwrap returns the underlying exec error.
func (e *ProcessError) Unwrap() error {
	return e.Err
}

// ExecRunner runs processes with os/exec, never through a shell. Output is
// captured and then forwarded line by line: stdout as info, stderr as
// warnings.
type ExecRunner struct{}

// NewExecRunner creates a runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes cmd in cmd.Dir and waits for it to exit. No timeout is
// applied; ctx only carries caller cancellation.
func (r *ExecRunner) Run(ctx context.Context, cmd Command, rep reporter.Reporter) (*Result, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, &errors.BuildError{
			Type:    errors.ErrorTypeProcess,
			Code:    errors.ErrCodeInvalidCommand,
			Message: "refusing to run " + cmd.Bin,
			Cause:   err,
		}
	}

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, cmd.Bin, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	runErr := c.Run()
	result := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode(c, runErr),
		Duration: time.Since(start),
	}

	if rep != nil {
		forwardLines(result.Stdout, rep.Info)
		forwardLines(result.Stderr, rep.Warning)
	}

	if runErr != nil {
		pe := &ProcessError{
			Bin:      cmd.Bin,
			Args:     append([]string(nil), cmd.Args...),
			Dir:      cmd.Dir,
			ExitCode: result.ExitCode,
			Output:   combinedOutput(result),
			Err:      runErr,
		}
		if ctx.Err() != nil {
			return result, errors.NewProcessError("process cancelled", pe)
		}
		return result, errors.NewProcessError(
			fmt.Sprintf("%s exited with code %d", cmd.Bin, result.ExitCode), pe)
	}

	return result, nil
}

func validateCommand(cmd Command) error {
	if err := validation.ValidateBinary(cmd.Bin); err != nil {
		return err
	}
	for _, arg := range cmd.Args {
		if err := validation.ValidateArgument(arg); err != nil {
			return fmt.Errorf("invalid argument '%s': %w", arg, err)
		}
	}
	if cmd.Dir == "" {
		return fmt.Errorf("working directory is required")
	}
	return nil
}

func exitCode(c *exec.Cmd, err error) int {
	var exitErr *exec.ExitError
	if goerrors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if err != nil {
		return -1
	}
	if c.ProcessState != nil {
		return c.ProcessState.ExitCode()
	}
	return 0
}

func combinedOutput(r *Result) string {
	var b strings.Builder
	b.Write(r.Stdout)
	if len(r.Stdout) > 0 && len(r.Stderr) > 0 && !bytes.HasSuffix(r.Stdout, []byte("\n")) {
		b.WriteByte('\n')
	}
	b.Write(r.Stderr)
	return b.String()
}

func forwardLines(data []byte, emit func(string)) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		emit(line)
	}
}
