package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/term"

	"taskgraph/internal/logging"
	"taskgraph/internal/pipeline/properties"
	"taskgraph/internal/pipeline/types"
	"taskgraph/internal/pty"
)

// ptyDrainGrace bounds how long tty output is drained after the child exits.
const ptyDrainGrace = 2 * time.Second

func (e *Executor) runProcess(ctx context.Context, action *types.Action, store *properties.Store) error {
	executable, err := store.Interpolate(action.Executable)
	if err != nil {
		return err
	}
	args, err := store.InterpolateAll(action.Args)
	if err != nil {
		return err
	}
	dir, err := store.Interpolate(action.WorkingDir)
	if err != nil {
		return err
	}
	if dir == "" {
		dir = e.baseDir
	}
	dir = e.resolvePath(dir)
	overrides := make(map[string]string, len(action.Env))
	for k, v := range action.Env {
		if overrides[k], err = store.Interpolate(v); err != nil {
			return fmt.Errorf("env %s: %w", k, err)
		}
	}
	env := mergeEnv(e.environ(), overrides)

	path := executable
	if action.SearchPath && !strings.ContainsAny(executable, `/\`) {
		resolved, err := lookPathIn(executable, envValue(env, "PATH"))
		if err != nil {
			return &ProcessLaunchError{Executable: executable, Err: err}
		}
		path = resolved
	}

	logging.Debug("launching process", map[string]interface{}{"event": "process.start", "executable": path, "args": args, "dir": dir})
	e.writeLog("run: %s %s", path, strings.Join(args, " "))

	newCmd := e.ExecCommand
	if newCmd == nil {
		newCmd = exec.Command
	}
	cmd := newCmd(path, args...)
	cmd.Dir = dir
	cmd.Env = env

	if action.TTY {
		return e.waitPTY(executable, cmd)
	}
	return e.waitPiped(executable, cmd)
}

func (e *Executor) waitPiped(executable string, cmd *exec.Cmd) error {
	stdoutHist := e.historyWriter()
	stderrHist := e.historyWriter()
	defer stdoutHist.Flush()
	defer stderrHist.Flush()

	cmd.Stdin = e.Stdin
	cmd.Stdout = io.MultiWriter(writerOrDiscard(e.Stdout), stdoutHist)
	cmd.Stderr = io.MultiWriter(writerOrDiscard(e.Stderr), stderrHist)

	if err := cmd.Start(); err != nil {
		return &ProcessLaunchError{Executable: executable, Err: err}
	}
	return exitError(executable, cmd.Wait())
}

// waitPTY runs cmd on a pseudo-terminal, mirroring its output to Stdout.
func (e *Executor) waitPTY(executable string, cmd *exec.Cmd) error {
	p, err := pty.Start(cmd)
	if err != nil {
		return &ProcessLaunchError{Executable: executable, Err: err}
	}
	defer p.Close()

	stopInput := make(chan struct{})
	var forwarding chan struct{}
	if f, ok := e.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if old, err := term.MakeRaw(int(f.Fd())); err == nil {
			defer term.Restore(int(f.Fd()), old)
		}
		forwarding = make(chan struct{})
		go func() {
			defer close(forwarding)
			if err := pty.ForwardInput(stopInput, p, f); err != nil {
				logging.Debug("stdin forwarding stopped", map[string]interface{}{"event": "process.stdin", "error": err.Error()})
			}
		}()
	}

	hist := e.historyWriter()
	drained := make(chan struct{})
	go func() {
		io.Copy(io.MultiWriter(writerOrDiscard(e.Stdout), hist), p)
		close(drained)
	}()

	waitErr := p.Wait()
	close(stopInput)
	if forwarding != nil {
		<-forwarding
	}
	select {
	case <-drained:
	case <-time.After(ptyDrainGrace):
	}
	hist.Flush()
	return exitError(executable, waitErr)
}

func exitError(executable string, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ProcessExecutionError{Executable: executable, ExitCode: exitErr.ExitCode(), Err: err}
	}
	return &ProcessExecutionError{Executable: executable, ExitCode: -1, Err: err}
}

func (e *Executor) historyWriter() *historyWriter {
	e.historyMu.Lock()
	defer e.historyMu.Unlock()
	if e.outputHistory == nil {
		e.outputHistory = NewRingBuffer(historyCapBytes)
	}
	return &historyWriter{mu: &e.historyMu, ring: e.outputHistory}
}

func (e *Executor) environ() []string {
	if e.Environ == nil {
		return os.Environ()
	}
	return e.Environ()
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// mergeEnv overlays overrides on base. Existing keys keep their position;
// new keys are appended in sorted order.
func mergeEnv(base []string, overrides map[string]string) []string {
	out := make([]string, 0, len(base)+len(overrides))
	applied := make(map[string]bool, len(overrides))
	for _, kv := range base {
		key := kv
		if i := strings.Index(kv, "="); i > 0 {
			key = kv[:i]
		}
		if v, ok := overrides[key]; ok {
			if applied[key] {
				continue
			}
			applied[key] = true
			out = append(out, key+"="+v)
			continue
		}
		out = append(out, kv)
	}
	var added []string
	for k := range overrides {
		if !applied[k] {
			added = append(added, k)
		}
	}
	sort.Strings(added)
	for _, k := range added {
		out = append(out, k+"="+overrides[k])
	}
	return out
}

// envValue returns the last value of key in env.
func envValue(env []string, key string) string {
	val := ""
	prefix := key + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			val = kv[len(prefix):]
		}
	}
	return val
}

// lookPathIn searches the directories of pathList for an executable named file.
func lookPathIn(file, pathList string) (string, error) {
	candidates := []string{file}
	if runtime.GOOS == "windows" && filepath.Ext(file) == "" {
		candidates = []string{file + ".exe", file + ".bat", file + ".cmd", file}
	}
	for _, dir := range filepath.SplitList(pathList) {
		if dir == "" {
			dir = "."
		}
		for _, c := range candidates {
			p := filepath.Join(dir, c)
			if !strings.ContainsRune(p, filepath.Separator) {
				// keep it a path so exec does not search PATH again
				p = "." + string(filepath.Separator) + p
			}
			if isExecutable(p) {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("%q not found in PATH: %w", file, exec.ErrNotFound)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0111 != 0
}
