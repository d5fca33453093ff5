package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"taskgraph/internal/pipeline/properties"
	"taskgraph/internal/pipeline/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestDiscoverPrefersYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "build.hcl"), "")
	writeFile(t, filepath.Join(dir, "build.yml"), "")

	got, err := Discover(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(got) != "build.yml" {
		t.Fatalf("expected build.yml, got %s", got)
	}
}

func TestDiscoverSearchesParents(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "build.hcl"), "")
	nested := filepath.Join(dir, "src", "pkg")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	got, err := Discover(nested)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != filepath.Join(dir, "build.hcl") {
		t.Fatalf("expected the parent's build.hcl, got %s", got)
	}
}

func TestDiscoverMissing(t *testing.T) {
	_, err := Discover(t.TempDir())
	if !errors.Is(err, ErrDefinitionNotFound) {
		t.Fatalf("expected ErrDefinitionNotFound, got %v", err)
	}
}

func TestLoadLayersProperties(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "release.env"), strings.Join([]string{
		"version=0.9",
		"channel=beta",
		"dist='${build}/dist'",
	}, "\n"))
	writeFile(t, filepath.Join(dir, "build.yaml"), `
name: tygra
property_files: [release.env]
properties:
  version: "1.0"
  build: ${basedir}/out
targets:
  - name: all
    actions:
      - message: ${project.name} ${version}
`)

	def, store, err := Load(filepath.Join(dir, "build.yaml"), map[string]string{"channel": "stable"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Name != "tygra" {
		t.Fatalf("unexpected definition name %q", def.Name)
	}

	absDir, _ := filepath.Abs(dir)
	want := map[string]string{
		"basedir":      absDir,
		"project.name": "tygra",
		"version":      "1.0",
		"channel":      "stable",
		"build":        absDir + "/out",
		"dist":         absDir + "/out/dist",
	}
	for k, v := range want {
		if got, ok := store.Get(k); !ok || got != v {
			t.Fatalf("property %s: expected %q, got %q (set=%v)", k, v, got, ok)
		}
	}
}

func TestLoadPropertiesCycle(t *testing.T) {
	def := &types.Definition{Properties: map[string]string{"a": "${b}", "b": "${a}"}}
	_, err := LoadProperties(def, nil)
	var circular *properties.CircularPropertyError
	if !errors.As(err, &circular) {
		t.Fatalf("expected CircularPropertyError, got %v", err)
	}
}

func TestLoadPropertiesMissingFile(t *testing.T) {
	def := &types.Definition{Path: filepath.Join(t.TempDir(), "build.yaml"), PropertyFiles: []string{"nope.env"}}
	_, err := LoadProperties(def, nil)
	if err == nil || !strings.Contains(err.Error(), "nope.env") {
		t.Fatalf("expected error naming the property file, got %v", err)
	}
}

func TestLoadRejectsInvalidDefinition(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "build.yaml"), "default: missing\ntargets:\n  - name: a\n    actions:\n      - type: run\n")

	_, _, err := Load(filepath.Join(dir, "build.yaml"), nil)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Problems) != 2 {
		t.Fatalf("expected 2 problems, got %v", verr.Problems)
	}
}

func TestValidateDefinitionCollectsEveryProblem(t *testing.T) {
	def := &types.Definition{
		Default: "ship",
		Targets: []types.Target{
			{Name: "build", Actions: []types.Action{
				{Type: types.ActionRun},
				{Type: types.ActionCopy, Include: []string{"*.txt"}},
				{Type: types.ActionPrompt, Message: "Who?"},
				{Type: "shell", Executable: "ls"},
				{},
			}},
			{Name: "build"},
			{Name: "", DependsOn: []string{"build"}},
			{Name: "docs", DependsOn: []string{""}},
		},
	}

	err := ValidateDefinition(def)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	msg := verr.Error()
	for _, want := range []string{
		`target "build" action #1 (run): executable is required`,
		`target "build" action #2 (copy): to is required`,
		`target "build" action #3 (prompt): property is required`,
		`unknown action type "shell"`,
		`target "build" action #5: cannot infer action type`,
		`duplicate target "build"`,
		`target 3: name cannot be empty`,
		`target "docs": depends_on contains an empty name`,
		`default target "ship" is not defined`,
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in:\n%s", want, msg)
		}
	}
}

func TestValidateDefinitionAcceptsDanglingDependency(t *testing.T) {
	def := &types.Definition{Targets: []types.Target{{Name: "a", DependsOn: []string{"later"}}}}
	if err := ValidateDefinition(def); err != nil {
		t.Fatalf("dangling dependencies are reported at resolution, got %v", err)
	}
}

func TestParseOverrides(t *testing.T) {
	got, err := ParseOverrides([]string{"version=2.0", "empty=", "url=http://x?a=b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["version"] != "2.0" || got["empty"] != "" || got["url"] != "http://x?a=b" {
		t.Fatalf("unexpected overrides: %v", got)
	}
	if _, err := ParseOverrides([]string{"=x"}); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if _, err := ParseOverrides([]string{"novalue"}); err == nil {
		t.Fatalf("expected error for missing '='")
	}
}

func TestUndefinedReferences(t *testing.T) {
	def := &types.Definition{Targets: []types.Target{{
		Name: "sign",
		Actions: []types.Action{
			{Type: types.ActionRun, Executable: "codesign", Args: []string{"--id=${sign_id}", "${app}", "$${literal}"}},
			{Type: types.ActionPrompt, Message: "Identity?", Property: "sign_id"},
			{Type: types.ActionPrint, Message: "${missing} and ${missing}"},
			{Type: types.ActionCopy, From: "${app}", To: "${dest}", Include: []string{"${pattern}"}},
		},
	}}}
	store := properties.NewStore(map[string]string{"app": "App.app"})

	got := UndefinedReferences(def, store)
	want := []string{
		`target "sign" action #3: ${missing} is not defined`,
		`target "sign" action #4: ${dest} is not defined`,
		`target "sign" action #4: ${pattern} is not defined`,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected problems:\n got %q\nwant %q", got, want)
	}

	store.Set("missing", "m")
	store.Set("dest", "out")
	store.Set("pattern", "*")
	if got := UndefinedReferences(def, store); len(got) != 0 {
		t.Fatalf("expected no problems once every name is defined, got %q", got)
	}
}
