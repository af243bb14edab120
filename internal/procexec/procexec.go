// Package procexec runs child processes on behalf of the applier: ad-hoc
// Cmd intents, package-manager adapter probes/installs, and the secret
// provider's pass-cli invocation. All output capture happens here so
// callers never reach for os/exec directly.
package procexec

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
)

// Run executes a command, inheriting stdio, and waits for it to exit. Used
// for Cmd intents, where the manifest author expects to see live output.
func Run(ctx context.Context, program string, args ...string) error {
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	return cmd.Run()
}

// Capture executes a command and returns trimmed stdout, with stderr
// discarded from the result but available via the returned error's message
// when the process exits non-zero. Used for read-only package-manager probes.
func Capture(ctx context.Context, program string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, program, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil && stderr.Len() > 0 {
		return strings.TrimSpace(stdout.String()), &ExitError{Err: err, Stderr: strings.TrimSpace(stderr.String())}
	}
	return strings.TrimSpace(stdout.String()), err
}

// ExitError wraps a command failure with the captured stderr text.
type ExitError struct {
	Err    error
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Stderr
}

func (e *ExitError) Unwrap() error { return e.Err }

// CommandExists reports whether name resolves on PATH.
func CommandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// ExitCode extracts the process exit code from an error returned by Run,
// defaulting to -1 if it can't be determined (e.g. the process was signaled
// or never started).
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
