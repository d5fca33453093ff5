// Package executor runs a resolved plan: targets in plan order, actions in
// declared order, stopping at the first failure.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"taskgraph/internal/logging"
	"taskgraph/internal/pipeline/graph"
	"taskgraph/internal/pipeline/properties"
	"taskgraph/internal/pipeline/types"
	"taskgraph/internal/util"
)

// State is the lifecycle position of an Execute call.
type State int

const (
	StateIdle State = iota
	StateResolving
	StateExecuting
	StateSucceeded
	StateFailed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateExecuting:
		return "executing"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Result describes how an Execute call ended.
type Result struct {
	State State
	Plan  graph.Plan
	// Completed lists the targets whose actions all succeeded, in run order.
	Completed []string
	// LogPath is the run log, when one was written.
	LogPath string
	Err     error
}

// Executor handles plan execution
type Executor struct {
	// ExecCommand builds the child process for run actions. Tests replace it.
	ExecCommand func(name string, arg ...string) *exec.Cmd
	// Environ supplies the inherited environment for child processes.
	Environ  func() []string
	Prompter Prompter

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Out receives status lines and print action output.
	Out *util.Printer

	// LogDir is where run logs go when the definition sets log_output. A
	// relative LogDir is taken from the definition's directory.
	LogDir string

	// baseDir anchors relative paths; it is the definition's directory.
	baseDir       string
	logFile       *os.File
	outputHistory *RingBuffer
	historyMu     sync.Mutex
	completed     []string
}

// NewExecutor creates an executor wired to the process's standard streams.
func NewExecutor() *Executor {
	return &Executor{
		ExecCommand:   exec.Command,
		Environ:       os.Environ,
		Prompter:      NewTerminalPrompter(os.Stdin, os.Stderr),
		Stdin:         os.Stdin,
		Stdout:        os.Stdout,
		Stderr:        os.Stderr,
		Out:           util.Default,
		LogDir:        ".taskgraph/logs",
		outputHistory: NewRingBuffer(historyCapBytes),
	}
}

// Execute resolves requested against def and runs the resulting plan.
// Resolution failures end in StateAborted without running any action; an
// action failure ends in StateFailed.
func (e *Executor) Execute(ctx context.Context, def *types.Definition, requested string, store *properties.Store) Result {
	state := StateIdle
	transition := func(next State) {
		logging.Debug("state change", map[string]interface{}{"event": "executor.state", "from": state.String(), "to": next.String()})
		state = next
	}

	transition(StateResolving)
	plan, err := graph.Resolve(def.Targets, requested)
	if err != nil {
		transition(StateAborted)
		return Result{State: state, Err: err}
	}

	e.baseDir = definitionDir(def)
	var logPath string
	if def.LogOutput {
		if logPath, err = e.openRunLog(def.Name); err != nil {
			logging.Warn("run log unavailable", map[string]interface{}{"event": "executor.runlog", "error": err.Error()})
		}
		defer e.closeRunLog()
	}

	transition(StateExecuting)
	err = e.Run(ctx, plan, def, store)
	res := Result{Plan: plan, Completed: e.completed, LogPath: logPath, Err: err}
	switch {
	case err == nil:
		transition(StateSucceeded)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		transition(StateAborted)
	default:
		transition(StateFailed)
	}
	res.State = state
	return res
}

// Run executes plan in order. The first failing action stops the run and is
// returned as an *ActionError. ctx is checked between actions.
func (e *Executor) Run(ctx context.Context, plan graph.Plan, def *types.Definition, store *properties.Store) error {
	e.completed = nil
	e.baseDir = definitionDir(def)
	e.historyMu.Lock()
	if e.outputHistory == nil {
		e.outputHistory = NewRingBuffer(historyCapBytes)
	}
	e.outputHistory.Reset()
	e.historyMu.Unlock()

	e.writeLog("plan: %s", plan)
	for _, name := range plan.Targets {
		target, ok := def.FindTarget(name)
		if !ok {
			return &graph.UnknownTargetError{Name: name}
		}
		if err := e.runTarget(ctx, target, store); err != nil {
			return err
		}
		e.completed = append(e.completed, name)
	}
	e.writeLog("=== run succeeded ===")
	return nil
}

func (e *Executor) runTarget(ctx context.Context, target *types.Target, store *properties.Store) error {
	log := logging.WithFields(map[string]interface{}{"target": target.Name})
	log.Info("target start", map[string]interface{}{"event": "executor.target", "actions": len(target.Actions)})
	e.out().Printf("▶️  %s\n", target.Name)
	e.writeLog("=== target %s start ===", target.Name)

	for i := range target.Actions {
		if err := ctx.Err(); err != nil {
			e.writeLog("run cancelled before %s action #%d: %v", target.Name, i+1, err)
			return err
		}
		action := &target.Actions[i]
		kind := action.Kind()
		log.Debug("action start", map[string]interface{}{"event": "executor.action", "index": i, "type": kind, "label": action.Label()})
		e.writeLog("%s action #%d (%s) %s", target.Name, i+1, kind, action.Label())

		if err := e.runAction(ctx, action, store); err != nil {
			aerr := &ActionError{Target: target.Name, Index: i, Type: kind, Label: action.Label(), Err: err}
			log.Error("action failed", map[string]interface{}{"event": "executor.action", "index": i, "type": kind, "error": err.Error()})
			e.writeLog("FAILED: %v", aerr)
			e.flushErrorEvidence()
			return aerr
		}
	}

	e.out().Printf("✅ %s\n", target.Name)
	e.writeLog("=== target %s done ===", target.Name)
	return nil
}

func (e *Executor) runAction(ctx context.Context, action *types.Action, store *properties.Store) error {
	switch action.Kind() {
	case types.ActionRun:
		return e.runProcess(ctx, action, store)
	case types.ActionCopy:
		return e.runCopy(action, store)
	case types.ActionPrint:
		return e.runPrint(action, store)
	case types.ActionPrompt:
		return e.runPrompt(action, store)
	}
	return fmt.Errorf("unknown action type %q", action.Kind())
}

func (e *Executor) runPrint(action *types.Action, store *properties.Store) error {
	msg, err := store.Interpolate(action.Message)
	if err != nil {
		return err
	}
	e.out().Println(msg)
	e.writeLog("print: %s", msg)
	return nil
}

func (e *Executor) runPrompt(action *types.Action, store *properties.Store) error {
	msg, err := store.Interpolate(action.Message)
	if err != nil {
		return err
	}
	def, err := store.Interpolate(action.Default)
	if err != nil {
		return err
	}
	if e.Prompter == nil {
		return &PromptAbortedError{Property: action.Property, Err: ErrNoInput}
	}
	value, err := e.Prompter.Prompt(msg, def, action.Secret)
	if err != nil {
		return &PromptAbortedError{Property: action.Property, Err: err}
	}
	store.Set(action.Property, value)
	if action.Secret {
		e.writeLog("prompt: %s set (secret)", action.Property)
	} else {
		e.writeLog("prompt: %s=%s", action.Property, value)
	}
	return nil
}

// definitionDir returns the absolute directory of def's file, or "" for a
// definition built in memory.
func definitionDir(def *types.Definition) string {
	if def.Path == "" {
		return ""
	}
	dir := filepath.Dir(def.Path)
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

// resolvePath anchors a relative path at the definition's directory.
func (e *Executor) resolvePath(p string) string {
	if p == "" || e.baseDir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(e.baseDir, p)
}

func (e *Executor) out() *util.Printer {
	if e.Out == nil {
		return util.Default
	}
	return e.Out
}
