package cli

// CommandError signals a command failure with a specific exit code.
// Commands return this after printing their own message, so main only
// has to exit.
type CommandError struct {
	exitCode int
}

func NewCommandError(exitCode int) *CommandError {
	return &CommandError{exitCode: exitCode}
}

func (e *CommandError) Error() string {
	return "command failed"
}

func (e *CommandError) ExitCode() int {
	return e.exitCode
}

const (
	exitFailure  = 1
	exitRejected = 2
)
