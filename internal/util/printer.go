package util

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Printer writes user-facing status lines. It is safe for concurrent use so
// that pass-through process output and status lines do not interleave mid-line.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

// Default prints to stdout.
var Default = NewPrinter(os.Stdout)

// Err prints diagnostics to stderr.
var Err = NewPrinter(os.Stderr)

func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = io.Discard
	}
	return &Printer{out: w}
}

// SetOutput swaps the destination writer.
func (p *Printer) SetOutput(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w == nil {
		w = io.Discard
	}
	p.out = w
}

// Writer returns the current destination.
func (p *Printer) Writer() io.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out
}

func (p *Printer) Print(a ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, a...)
}

func (p *Printer) Printf(format string, a ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, a...)
}

func (p *Printer) Println(a ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, a...)
}

// PrintBlock writes block, adding a trailing newline when missing.
func (p *Printer) PrintBlock(block string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !strings.HasSuffix(block, "\n") {
		block += "\n"
	}
	io.WriteString(p.out, block)
}
