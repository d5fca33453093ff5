//go:build !windows
// +build !windows

package pty

import (
	"os"
	"os/exec"

	creackpty "github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// unixPTY wraps the master *os.File returned by creack/pty
type unixPTY struct {
	f   *os.File
	cmd *exec.Cmd
}

// Start runs cmd on a new pseudo-terminal. The terminal takes the size of the
// parent's stdout when that is a terminal.
func Start(cmd *exec.Cmd) (PTY, error) {
	var size *creackpty.Winsize
	if ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ); err == nil && ws.Row > 0 {
		size = &creackpty.Winsize{Rows: ws.Row, Cols: ws.Col}
	}
	f, err := creackpty.StartWithSize(cmd, size)
	if err != nil {
		return nil, err
	}
	return &unixPTY{f: f, cmd: cmd}, nil
}

func (p *unixPTY) Wait() error {
	if p.cmd != nil && p.cmd.Process != nil {
		return p.cmd.Wait()
	}
	return nil
}

func (p *unixPTY) Read(b []byte) (int, error)  { return p.f.Read(b) }
func (p *unixPTY) Write(b []byte) (int, error) { return p.f.Write(b) }
func (p *unixPTY) Close() error                { return p.f.Close() }

func (p *unixPTY) SetSize(rows, cols int) error {
	return creackpty.Setsize(p.f, &creackpty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}
