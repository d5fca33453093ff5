package executor

import (
	"fmt"
)

// ActionError reports which action of which target failed. Index is the
// zero-based position of the action within its target.
type ActionError struct {
	Target string
	Index  int
	Type   string
	Label  string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("target %q action #%d (%s %q): %v", e.Target, e.Index+1, e.Type, e.Label, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// ProcessLaunchError is returned when an executable could not be started.
type ProcessLaunchError struct {
	Executable string
	Err        error
}

func (e *ProcessLaunchError) Error() string {
	return fmt.Sprintf("failed to launch %q: %v", e.Executable, e.Err)
}

func (e *ProcessLaunchError) Unwrap() error { return e.Err }

// ProcessExecutionError is returned when a process ran but did not succeed.
// ExitCode is -1 when the process was killed by a signal or its output could
// not be copied.
type ProcessExecutionError struct {
	Executable string
	ExitCode   int
	Err        error
}

func (e *ProcessExecutionError) Error() string {
	if e.ExitCode < 0 && e.Err != nil {
		return fmt.Sprintf("%q failed: %v", e.Executable, e.Err)
	}
	return fmt.Sprintf("%q exited with status %d", e.Executable, e.ExitCode)
}

func (e *ProcessExecutionError) Unwrap() error { return e.Err }

// FileCopyError is returned on any I/O failure while copying files.
type FileCopyError struct {
	Path string
	Err  error
}

func (e *FileCopyError) Error() string {
	return fmt.Sprintf("copy %s: %v", e.Path, e.Err)
}

func (e *FileCopyError) Unwrap() error { return e.Err }

// PromptAbortedError is returned when no value could be read for a prompt.
type PromptAbortedError struct {
	Property string
	Err      error
}

func (e *PromptAbortedError) Error() string {
	return fmt.Sprintf("prompt for %q aborted: %v", e.Property, e.Err)
}

func (e *PromptAbortedError) Unwrap() error { return e.Err }
