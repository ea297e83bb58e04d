package dispatch

import (
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/kingrea/render-loop/internal/plan"
)

// Runner starts one planned invocation and blocks until it is done.
type Runner interface {
	Run(inv plan.Invocation) error
}

// RunnerFunc adapts a plain function to Runner.
type RunnerFunc func(inv plan.Invocation) error

// Run calls f(inv).
func (f RunnerFunc) Run(inv plan.Invocation) error { return f(inv) }

// ExecRunner starts the renderer directly from the argument vector; no shell
// is involved. The executable is resolved through PATH.
//
// Nil Stdout/Stderr send the child's output to the null device.
type ExecRunner struct {
	Dir    string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes inv and waits for it to exit. A non-zero exit status is
// returned as *exec.ExitError.
func (r *ExecRunner) Run(inv plan.Invocation) error {
	if len(inv.Args) == 0 {
		return fmt.Errorf("dispatch: invocation %d has an empty command", inv.Index)
	}
	cmd := exec.Command(inv.Args[0], inv.Args[1:]...)
	cmd.Dir = r.Dir
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	return cmd.Run()
}

// PrintRunner writes each command line instead of executing it.
type PrintRunner struct {
	W io.Writer
}

// Run prints the command line for inv.
func (r *PrintRunner) Run(inv plan.Invocation) error {
	_, err := fmt.Fprintln(r.W, inv.CommandLine())
	return err
}

// ExitCode maps a Runner error to a process exit code: 0 for nil, the child's
// status for *exec.ExitError, and -1 when the process never ran.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
