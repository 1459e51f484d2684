package exec

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// Exit codes reported for failures that never produced a process status.
const (
	ExitTimeout  = 124
	ExitNotFound = 127
)

// Result holds the execution result.
type Result struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
	ExitCode int
}

// TimedOut reports whether the process was killed by a context deadline.
func (r Result) TimedOut() bool { return r.ExitCode == ExitTimeout }

// NotFound reports whether the executable could not be located.
func (r Result) NotFound() bool { return r.ExitCode == ExitNotFound }

// Runner runs an external command. The orchestrator depends on this
// interface so tests can substitute canned tool behavior.
type Runner interface {
	Run(ctx context.Context, name string, args []string, dir string) (Result, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, name string, args []string, dir string) (Result, error)

func (f RunnerFunc) Run(ctx context.Context, name string, args []string, dir string) (Result, error) {
	return f(ctx, name, args, dir)
}

// Default is the Runner backed by os/exec.
var Default Runner = RunnerFunc(Run)

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// Available reports whether name resolves to an executable on PATH.
// It never starts the process.
func Available(name string) bool {
	_, err := lookPath(name)
	return err == nil
}

// Run executes a command with context/timeout, capturing output and duration.
// It returns specific exit codes for timeout (124) and not found (127).
func Run(ctx context.Context, name string, args []string, dir string) (Result, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	// Give a killed tool a moment to release its pipes before Wait returns.
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = 1
		}

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			res.ExitCode = ExitTimeout
			err = errors.Join(err, context.DeadlineExceeded)
		} else if errors.Is(err, exec.ErrNotFound) {
			res.ExitCode = ExitNotFound
		}
	}

	return res, err
}
