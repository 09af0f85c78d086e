package vcpkg

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ProcessError reports an external tool invocation that exited non-zero,
// carrying the captured combined output for diagnosis.
type ProcessError struct {
	// Command is the full argument vector that was executed.
	Command []string
	// Output is the combined stdout/stderr of the failed invocation.
	Output []byte
	// Err is the underlying exec error.
	Err error
}

// Error renders the failed command with its captured output.
func (e *ProcessError) Error() string {
	return fmt.Sprintf("run %s: %v\n%s", strings.Join(e.Command, " "), e.Err, e.Output)
}

// Unwrap exposes the underlying exec error.
func (e *ProcessError) Unwrap() error {
	return e.Err
}

// runProcess is the default RunFunc: synchronous, blocking, no retries.
func runProcess(ctx context.Context, name string, args []string, dir string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return &ProcessError{
			Command: append([]string{name}, args...),
			Output:  output,
			Err:     err,
		}
	}

	return nil
}
