// Package process runs host binaries (adb, by default) for the device adapters.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/ngabopay/ussdpilot/internal/logging"
)

// ExecError is returned when the command exits with a failure.
type ExecError struct {
	Command string
	Args    []string
	Stderr  string
	Err     error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Command, strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExecError) Unwrap() error { return e.Err }

// Runner executes one fixed command with per-call arguments.
type Runner struct {
	command  string
	baseArgs []string
	env      []string
	baseDir  string
	logger   *slog.Logger
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithBaseArgs prepends args to every invocation (e.g. "-s", serial).
func WithBaseArgs(args ...string) RunnerOption {
	return func(r *Runner) {
		r.baseArgs = append(r.baseArgs, args...)
	}
}

// WithEnv adds KEY=VALUE pairs to the inherited environment.
func WithEnv(env ...string) RunnerOption {
	return func(r *Runner) {
		r.env = append(r.env, env...)
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithLogger sets the logger used for command tracing.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a runner for command.
func NewRunner(command string, opts ...RunnerOption) *Runner {
	r := &Runner{
		command: command,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ADB returns a runner for the adb binary bound to serial. An empty serial
// targets the only attached device.
func ADB(binary, serial string, opts ...RunnerOption) *Runner {
	if binary == "" {
		binary = "adb"
	}
	if serial != "" {
		opts = append([]RunnerOption{WithBaseArgs("-s", serial)}, opts...)
	}
	return NewRunner(binary, opts...)
}

// Run executes the command and returns its stdout. A non-zero exit yields an
// *ExecError carrying stderr.
func (r *Runner) Run(ctx context.Context, args ...string) (string, error) {
	if r.command == "" {
		return "", errors.New("process: no command configured")
	}
	full := append(append([]string(nil), r.baseArgs...), args...)

	cmd := exec.CommandContext(ctx, r.command, full...)
	cmd.Dir = r.baseDir
	if len(r.env) > 0 {
		cmd.Env = append(cmd.Environ(), r.env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("exec", "command", r.command, "args", full)
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return stdout.String(), &ExecError{
			Command: r.command,
			Args:    full,
			Stderr:  strings.TrimSpace(stderr.String()),
			Err:     err,
		}
	}
	return stdout.String(), nil
}

// Shell runs "shell <cmd>" through the runner, the adb device shell form.
func (r *Runner) Shell(ctx context.Context, cmd string) (string, error) {
	return r.Run(ctx, "shell", cmd)
}
