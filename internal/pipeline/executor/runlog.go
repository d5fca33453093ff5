package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

// stripAnsiCodes removes ANSI escape sequences from str
func stripAnsiCodes(str string) string {
	return ansiRegex.ReplaceAllString(str, "")
}

// openRunLog creates <LogDir>/<name>-<timestamp>.log and writes its header.
func (e *Executor) openRunLog(name string) (string, error) {
	if name == "" {
		name = "taskgraph"
	}
	logDir := e.resolvePath(e.LogDir)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("create log dir: %w", err)
	}
	timestamp := time.Now().Format("2006-01-02-15-04-05")
	logPath := filepath.Join(logDir, fmt.Sprintf("%s-%s.log", name, timestamp))
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("open run log: %w", err)
	}
	e.logFile = f
	fmt.Fprintf(f, "=== Project: %s ===\nStarted: %s\n\n", name, timestamp)
	return logPath, nil
}

func (e *Executor) closeRunLog() {
	if e.logFile != nil {
		e.logFile.Close()
		e.logFile = nil
	}
}

// writeLog appends a timestamped line to the run log when one is open.
func (e *Executor) writeLog(format string, a ...interface{}) {
	if e.logFile == nil {
		return
	}
	msg := stripAnsiCodes(fmt.Sprintf(format, a...))
	timestamp := time.Now().Format("[2006-01-02 15:04:05]")
	fmt.Fprintf(e.logFile, "%s %s\n", timestamp, msg)
	e.logFile.Sync()
}

// flushErrorEvidence writes the buffered process output to the run log.
func (e *Executor) flushErrorEvidence() {
	if e.logFile == nil {
		return
	}
	e.historyMu.Lock()
	lines := e.outputHistory.All()
	e.historyMu.Unlock()
	if len(lines) == 0 {
		return
	}
	e.writeLog("=== ERROR EVIDENCE (last %d lines, buffer up to 300KB) ===", len(lines))
	for _, l := range lines {
		e.writeLog("%s", l)
	}
}
