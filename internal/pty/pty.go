// Package pty starts child processes attached to a pseudo-terminal, for
// tools that only behave correctly when they see a terminal.
package pty

import "io"

// PTY is a small, cross-platform abstraction over a pseudo-terminal with a
// running child process.
type PTY interface {
	io.ReadWriteCloser
	// Wait blocks until the child process exits.
	Wait() error
	SetSize(rows, cols int) error
}
