package executor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"

	"taskgraph/internal/util"
)

// ErrNoInput is returned when a prompt cannot read input at all.
var ErrNoInput = errors.New("no input available")

// Prompter asks the operator for a single value.
type Prompter interface {
	Prompt(message, defaultValue string, secret bool) (string, error)
}

// TerminalPrompter uses promptui when In is a terminal and falls back to
// reading one line from In otherwise. An empty answer selects the default.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer
	// NoInput makes every prompt fail with ErrNoInput.
	NoInput bool
}

func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{In: in, Out: out}
}

func (p *TerminalPrompter) Prompt(message, defaultValue string, secret bool) (string, error) {
	if p.NoInput || p.In == nil {
		return "", ErrNoInput
	}
	label := message
	if defaultValue != "" && !secret {
		label = fmt.Sprintf("%s [%s]", message, defaultValue)
	}

	var (
		value string
		err   error
	)
	if f, ok := p.In.(*os.File); ok && util.IsTerminal(f) {
		value, err = p.promptTerminal(f, label, secret)
	} else {
		value, err = p.readLine(label)
	}
	if err != nil {
		return "", err
	}
	if value == "" {
		return defaultValue, nil
	}
	return value, nil
}

func (p *TerminalPrompter) promptTerminal(in *os.File, label string, secret bool) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Stdin: in,
	}
	if out, ok := p.Out.(*os.File); ok {
		prompt.Stdout = out
	}
	if secret {
		prompt.Mask = '*'
	}
	value, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, promptui.ErrAbort) {
			return "", fmt.Errorf("cancelled by operator: %w", err)
		}
		return "", err
	}
	return value, nil
}

// readLine prints label and reads one line from In a byte at a time. In is
// shared with child processes, so nothing past the newline may be consumed.
func (p *TerminalPrompter) readLine(label string) (string, error) {
	if p.Out != nil {
		fmt.Fprintf(p.Out, "%s: ", label)
	}
	var line []byte
	buf := make([]byte, 1)
	for {
		n, err := p.In.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				return strings.TrimRight(string(line), "\r"), nil
			}
			line = append(line, buf[0])
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			if len(line) > 0 {
				return strings.TrimRight(string(line), "\r"), nil
			}
			return "", fmt.Errorf("%w: end of input", ErrNoInput)
		}
		return "", err
	}
}
