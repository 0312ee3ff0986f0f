package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// maxOutput bounds how much command output is kept for error messages.
const maxOutput = 4096

// Command describes a one-shot external program run.
type Command struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the path to the executable.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Dir is the working directory. If empty, inherits from parent process.
	Dir string

	// Timeout kills the command if it runs longer. Zero means no limit
	// beyond ctx.
	Timeout time.Duration
}

// Runner executes one-shot commands. It exists so callers can be tested
// without spawning processes.
type Runner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes cmd and returns its combined output.
//
// The command runs in its own process group so a timeout kills any
// children it spawned (git starts helpers, for instance).
//
// Returns:
//   - []byte: combined stdout and stderr, truncated
//   - error: ErrCommandFailed wrapping the exit status or timeout
func (ExecRunner) Run(ctx context.Context, c Command) ([]byte, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Binary, c.Args...) //nolint:gosec // binary comes from operator config
	cmd.Dir = c.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	output := out.Bytes()
	if len(output) > maxOutput {
		output = output[:maxOutput]
	}

	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			return output, fmt.Errorf("%w: %s timed out after %v", ErrCommandFailed, name(c), c.Timeout)
		}
		return output, fmt.Errorf("%w: %s: %w: %s", ErrCommandFailed, name(c), err, strings.TrimSpace(string(output)))
	}

	return output, nil
}

func name(c Command) string {
	if c.Name != "" {
		return c.Name
	}
	return c.Binary
}
