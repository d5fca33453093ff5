//go:build windows
// +build windows

package pty

import (
	"io"
	"os"
)

// ForwardInput does not forward console input on Windows: a console read
// cannot be abandoned once started. It returns immediately.
func ForwardInput(done <-chan struct{}, dst io.Writer, src *os.File) error {
	return nil
}
