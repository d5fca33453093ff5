package executor

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskgraph/internal/pipeline/graph"
	"taskgraph/internal/pipeline/properties"
	"taskgraph/internal/pipeline/types"
	"taskgraph/internal/util"
)

// syncBuffer is a bytes.Buffer safe for the concurrent stdout/stderr copies.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

// recorder replaces ExecCommand; "fail" exits non-zero, anything else succeeds.
type recorder struct {
	calls [][]string
}

func (r *recorder) command(name string, arg ...string) *exec.Cmd {
	r.calls = append(r.calls, append([]string{name}, arg...))
	if name == "fail" {
		return exec.Command("sh", "-c", "exit 1")
	}
	return exec.Command("sh", "-c", "exit 0")
}

func (r *recorder) executables() []string {
	var out []string
	for _, c := range r.calls {
		out = append(out, c[0])
	}
	return out
}

type scriptedPrompter struct {
	answers map[string]string
	asked   []string
	err     error
}

func (p *scriptedPrompter) Prompt(message, defaultValue string, secret bool) (string, error) {
	p.asked = append(p.asked, message)
	if p.err != nil {
		return "", p.err
	}
	if v, ok := p.answers[message]; ok {
		return v, nil
	}
	return defaultValue, nil
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func newTestExecutor(t *testing.T) (*Executor, *syncBuffer, *recorder) {
	t.Helper()
	out := &syncBuffer{}
	rec := &recorder{}
	e := NewExecutor()
	e.ExecCommand = rec.command
	e.Stdin = nil
	e.Stdout = out
	e.Stderr = out
	e.Out = util.NewPrinter(out)
	e.Prompter = &scriptedPrompter{}
	e.LogDir = filepath.Join(t.TempDir(), "logs")
	return e, out, rec
}

func runCmd(name string, args ...string) types.Action {
	return types.Action{Type: types.ActionRun, Executable: name, Args: args}
}

func echo(msg string) types.Action {
	return types.Action{Type: types.ActionPrint, Message: msg}
}

func TestExecute_FailureInDependencyStopsPipeline(t *testing.T) {
	requireShell(t)
	e, _, rec := newTestExecutor(t)
	def := &types.Definition{Targets: []types.Target{
		{Name: "A", Actions: []types.Action{runCmd("first"), runCmd("fail"), runCmd("third")}},
		{Name: "B", DependsOn: []string{"A"}, Actions: []types.Action{runCmd("b-tool")}},
	}}

	res := e.Execute(context.Background(), def, "B", properties.NewStore(nil))
	require.Equal(t, StateFailed, res.State, "err=%v", res.Err)

	var aerr *ActionError
	require.ErrorAs(t, res.Err, &aerr)
	assert.Equal(t, "A", aerr.Target)
	assert.Equal(t, 1, aerr.Index)
	assert.Equal(t, types.ActionRun, aerr.Type)

	var perr *ProcessExecutionError
	require.ErrorAs(t, res.Err, &perr)
	assert.Equal(t, 1, perr.ExitCode)

	assert.Equal(t, []string{"first", "fail"}, rec.executables(), "only A's first two actions run")
	assert.Empty(t, res.Completed)
}

func TestExecute_PromptFeedsLaterArguments(t *testing.T) {
	requireShell(t)
	e, _, rec := newTestExecutor(t)
	e.Prompter = &scriptedPrompter{answers: map[string]string{"Signing identity?": "Developer ID: Jane"}}
	def := &types.Definition{Targets: []types.Target{{
		Name: "sign",
		Actions: []types.Action{
			{Type: types.ActionPrompt, Message: "Signing identity?", Property: "sign_id"},
			runCmd("codesign", "--id=${sign_id}", "app"),
		},
	}}}
	store := properties.NewStore(nil)

	res := e.Execute(context.Background(), def, "sign", store)
	require.NoError(t, res.Err)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, []string{"codesign", "--id=Developer ID: Jane", "app"}, rec.calls[0])

	v, _ := store.Get("sign_id")
	assert.Equal(t, "Developer ID: Jane", v)
}

func TestExecute_PromptLeavesRemainingInputForProcess(t *testing.T) {
	requireShell(t)
	e, out, _ := newTestExecutor(t)
	e.ExecCommand = exec.Command

	inPath := filepath.Join(t.TempDir(), "stdin")
	require.NoError(t, os.WriteFile(inPath, []byte("my-id\nchild-line\n"), 0644))
	in, err := os.Open(inPath)
	require.NoError(t, err)
	defer in.Close()
	e.Stdin = in
	e.Prompter = NewTerminalPrompter(in, io.Discard)

	def := &types.Definition{Targets: []types.Target{{
		Name: "sign",
		Actions: []types.Action{
			{Type: types.ActionPrompt, Message: "Signing identity?", Property: "sign_id"},
			runCmd("sh", "-c", `read x; echo "child got [$x] id=${sign_id}"`),
		},
	}}}

	res := e.Execute(context.Background(), def, "sign", properties.NewStore(nil))
	require.NoError(t, res.Err)
	assert.Contains(t, out.String(), "child got [child-line] id=my-id")
}

func TestExecute_RelativePathsFollowDefinitionDir(t *testing.T) {
	requireShell(t)
	e, out, _ := newTestExecutor(t)
	e.ExecCommand = exec.Command
	e.LogDir = ".taskgraph/logs"

	root := t.TempDir()
	realRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "a.txt"), []byte("alpha"), 0644))

	def := &types.Definition{
		Path:      filepath.Join(root, "build.yaml"),
		LogOutput: true,
		Targets: []types.Target{{
			Name: "collect",
			Actions: []types.Action{
				{Type: types.ActionCopy, From: "src", To: "out"},
				runCmd("sh", "-c", "echo top=$(pwd -P)"),
				{Type: types.ActionRun, Executable: "sh", Args: []string{"-c", "echo nested=$(pwd -P)"}, WorkingDir: "src"},
			},
		}},
	}

	res := e.Execute(context.Background(), def, "collect", properties.NewStore(nil))
	require.NoError(t, res.Err)

	data, err := os.ReadFile(filepath.Join(root, "out", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))
	assert.Contains(t, out.String(), "top="+realRoot+"\n")
	assert.Contains(t, out.String(), "nested="+filepath.Join(realRoot, "src"))
	assert.Equal(t, filepath.Join(root, ".taskgraph", "logs"), filepath.Dir(res.LogPath))
}

func TestExecute_DiamondRunsSharedTargetOnce(t *testing.T) {
	e, out, _ := newTestExecutor(t)
	def := &types.Definition{Targets: []types.Target{
		{Name: "A", DependsOn: []string{"B", "C"}, Actions: []types.Action{echo("ran A")}},
		{Name: "B", DependsOn: []string{"D"}, Actions: []types.Action{echo("ran B")}},
		{Name: "C", DependsOn: []string{"D"}, Actions: []types.Action{echo("ran C")}},
		{Name: "D", Actions: []types.Action{echo("ran D")}},
	}}

	res := e.Execute(context.Background(), def, "A", properties.NewStore(nil))
	require.Equal(t, StateSucceeded, res.State, "err=%v", res.Err)
	assert.Equal(t, 1, strings.Count(out.String(), "ran D"), out.String())
	assert.Equal(t, []string{"D", "B", "C", "A"}, res.Completed)
}

func TestExecute_ResolutionErrorAbortsBeforeAnyAction(t *testing.T) {
	e, out, rec := newTestExecutor(t)
	def := &types.Definition{Targets: []types.Target{
		{Name: "A", DependsOn: []string{"B"}, Actions: []types.Action{runCmd("a"), echo("A")}},
		{Name: "B", DependsOn: []string{"A"}, Actions: []types.Action{runCmd("b"), echo("B")}},
	}}

	res := e.Execute(context.Background(), def, "A", properties.NewStore(nil))
	assert.Equal(t, StateAborted, res.State)
	var cyc *graph.CyclicDependencyError
	assert.ErrorAs(t, res.Err, &cyc)
	assert.Empty(t, rec.calls)
	assert.Empty(t, out.String())

	res = e.Execute(context.Background(), def, "missing", properties.NewStore(nil))
	assert.Equal(t, StateAborted, res.State)
	var unknown *graph.UnknownTargetError
	assert.ErrorAs(t, res.Err, &unknown)
}

func TestExecute_UnresolvedPropertyFailsAction(t *testing.T) {
	e, _, rec := newTestExecutor(t)
	def := &types.Definition{Targets: []types.Target{{
		Name:    "dist",
		Actions: []types.Action{echo("version ${version}"), runCmd("zip", "${missing}.zip")},
	}}}

	res := e.Execute(context.Background(), def, "dist", properties.NewStore(map[string]string{"version": "1.0"}))
	assert.Equal(t, StateFailed, res.State)
	var unresolved *properties.UnresolvedPropertyError
	require.ErrorAs(t, res.Err, &unresolved)
	assert.Equal(t, "missing", unresolved.Name)
	assert.Empty(t, rec.calls, "process must not start when its arguments fail to resolve")
}

func TestExecute_PromptAbortFails(t *testing.T) {
	e, _, _ := newTestExecutor(t)
	e.Prompter = &scriptedPrompter{err: ErrNoInput}
	def := &types.Definition{Targets: []types.Target{{
		Name:    "ask",
		Actions: []types.Action{{Type: types.ActionPrompt, Message: "Password?", Property: "pw", Secret: true}},
	}}}

	res := e.Execute(context.Background(), def, "ask", properties.NewStore(nil))
	var aborted *PromptAbortedError
	require.ErrorAs(t, res.Err, &aborted)
	assert.Equal(t, "pw", aborted.Property)
	assert.ErrorIs(t, res.Err, ErrNoInput)
	assert.Equal(t, StateFailed, res.State)
}

func TestExecute_CancelledContextAborts(t *testing.T) {
	e, _, rec := newTestExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	def := &types.Definition{Targets: []types.Target{{Name: "A", Actions: []types.Action{runCmd("a")}}}}

	res := e.Execute(ctx, def, "A", properties.NewStore(nil))
	assert.Equal(t, StateAborted, res.State)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Empty(t, rec.calls)
}

func TestExecute_RunLogRecordsErrorEvidence(t *testing.T) {
	requireShell(t)
	e, _, _ := newTestExecutor(t)
	e.ExecCommand = exec.Command
	def := &types.Definition{
		Name:      "demo",
		LogOutput: true,
		Targets: []types.Target{{
			Name:    "broken",
			Actions: []types.Action{runCmd("sh", "-c", "echo working; echo boom >&2; exit 3")},
		}},
	}

	res := e.Execute(context.Background(), def, "broken", properties.NewStore(nil))
	require.Equal(t, StateFailed, res.State)
	require.NotEmpty(t, res.LogPath)
	assert.True(t, strings.HasPrefix(filepath.Base(res.LogPath), "demo-"), res.LogPath)

	data, err := os.ReadFile(res.LogPath)
	require.NoError(t, err)
	for _, want := range []string{"=== Project: demo ===", "target broken start", "ERROR EVIDENCE", "boom", "working", "FAILED"} {
		assert.Contains(t, string(data), want)
	}
}

func TestExecute_NoRunLogUnlessRequested(t *testing.T) {
	e, _, _ := newTestExecutor(t)
	def := &types.Definition{Targets: []types.Target{{Name: "A", Actions: []types.Action{echo("hi")}}}}

	res := e.Execute(context.Background(), def, "A", properties.NewStore(nil))
	require.NoError(t, res.Err)
	assert.Empty(t, res.LogPath)
	_, err := os.Stat(e.LogDir)
	assert.True(t, os.IsNotExist(err), "log dir should not be created, stat err=%v", err)
}

func TestActionKindInference(t *testing.T) {
	requireShell(t)
	e, out, rec := newTestExecutor(t)
	def := &types.Definition{Targets: []types.Target{{
		Name: "A",
		Actions: []types.Action{
			{Message: "inferred print"},
			{Executable: "inferred-run"},
		},
	}}}

	res := e.Execute(context.Background(), def, "A", properties.NewStore(nil))
	require.NoError(t, res.Err)
	assert.Contains(t, out.String(), "inferred print")
	assert.Equal(t, []string{"inferred-run"}, rec.executables())
}

func TestActionErrorMessage(t *testing.T) {
	err := &ActionError{Target: "dmg", Index: 2, Type: "run", Label: "hdiutil", Err: &ProcessExecutionError{Executable: "hdiutil", ExitCode: 1}}
	assert.Equal(t, `target "dmg" action #3 (run "hdiutil"): "hdiutil" exited with status 1`, err.Error())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "aborted", StateAborted.String())
	assert.Equal(t, "succeeded", StateSucceeded.String())
}
