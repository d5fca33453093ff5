package executor

import (
	"bytes"
	"sync"
)

// historyCapBytes bounds the process output kept for error evidence (300 KB).
const historyCapBytes = 307200

// RingBuffer stores lines with a total byte cap. FIFO when cap exceeded.
type RingBuffer struct {
	lines      []string
	totalBytes int
	capBytes   int
}

func NewRingBuffer(capBytes int) *RingBuffer {
	return &RingBuffer{capBytes: capBytes}
}

// Add appends a line and evicts oldest lines while totalBytes > capBytes
func (r *RingBuffer) Add(line string) {
	if line == "" {
		return
	}
	r.lines = append(r.lines, line)
	r.totalBytes += len(line)
	for r.totalBytes > r.capBytes && len(r.lines) > 0 {
		r.totalBytes -= len(r.lines[0])
		r.lines = r.lines[1:]
	}
}

// LastN returns a copy of up to n most recent lines.
func (r *RingBuffer) LastN(n int) []string {
	if n <= 0 || len(r.lines) == 0 {
		return nil
	}
	if n > len(r.lines) {
		n = len(r.lines)
	}
	out := make([]string, n)
	copy(out, r.lines[len(r.lines)-n:])
	return out
}

// All returns a copy of all stored lines in the buffer.
func (r *RingBuffer) All() []string {
	return r.LastN(len(r.lines))
}

// Reset drops every stored line.
func (r *RingBuffer) Reset() {
	r.lines = nil
	r.totalBytes = 0
}

// historyWriter splits a process stream into lines and records them in a
// shared ring buffer. A partial trailing line is held until Flush.
type historyWriter struct {
	mu      *sync.Mutex
	ring    *RingBuffer
	partial bytes.Buffer
}

func (w *historyWriter) Write(p []byte) (int, error) {
	w.partial.Write(p)
	for {
		data := w.partial.Bytes()
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimRight(data[:i], "\r"))
		w.partial.Next(i + 1)
		w.add(line)
	}
	return len(p), nil
}

// Flush records any buffered partial line.
func (w *historyWriter) Flush() {
	if w.partial.Len() == 0 {
		return
	}
	line := w.partial.String()
	w.partial.Reset()
	w.add(line)
}

func (w *historyWriter) add(line string) {
	w.mu.Lock()
	w.ring.Add(stripAnsiCodes(line))
	w.mu.Unlock()
}
