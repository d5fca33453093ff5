//go:build windows
// +build windows

package pty

import (
	"fmt"
	"os"
	"os/exec"

	widepty "github.com/aymanbagabas/go-pty"

	"taskgraph/internal/util"
)

// winConPTY wraps a ConPTY and the command spawned on it.
type winConPTY struct {
	c     widepty.Pty
	child *widepty.Cmd
}

// Start runs cmd on a new ConPTY, copying its path, args, env and dir.
func Start(cmd *exec.Cmd) (PTY, error) {
	p, err := widepty.New()
	if err != nil {
		return nil, fmt.Errorf("pty: failed to create PTY: %w", err)
	}

	name := cmd.Path
	var args []string
	if len(cmd.Args) > 1 {
		args = cmd.Args[1:]
	}

	c := p.Command(name, args...)
	c.Env = cmd.Env
	c.Dir = cmd.Dir

	if err := c.Start(); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("pty: failed to start command in PTY: %w", err)
	}
	w := &winConPTY{c: p, child: c}
	if rows, cols, ok := util.TerminalSize(os.Stdout); ok {
		_ = w.SetSize(rows, cols)
	}
	return w, nil
}

func (w *winConPTY) Wait() error {
	if w.child != nil {
		return w.child.Wait()
	}
	return nil
}

func (w *winConPTY) Read(b []byte) (int, error)  { return w.c.Read(b) }
func (w *winConPTY) Write(b []byte) (int, error) { return w.c.Write(b) }
func (w *winConPTY) Close() error                { return w.c.Close() }

func (w *winConPTY) SetSize(rows, cols int) error { return w.c.Resize(cols, rows) }
