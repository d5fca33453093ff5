// Package config finds, loads and validates build definitions and layers
// the property sources into a ready-to-use property store.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"taskgraph/internal/logging"
	"taskgraph/internal/pipeline/graph"
	"taskgraph/internal/pipeline/parser"
	"taskgraph/internal/pipeline/properties"
	"taskgraph/internal/pipeline/types"
	"taskgraph/internal/util"
)

// DefinitionFileNames are tried in order by Discover.
var DefinitionFileNames = []string{"build.yaml", "build.yml", "build.hcl"}

// Built-in property names.
const (
	PropBaseDir     = "basedir"
	PropProjectName = "project.name"
)

// ErrDefinitionNotFound is returned by Discover when no definition exists.
var ErrDefinitionNotFound = errors.New("no build definition found")

// ValidationError lists every problem found in a definition.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("definition validation failed:\n%s", strings.Join(e.Problems, "\n"))
}

// Discover returns the path of the first definition file found in dir or,
// failing that, in the nearest parent directory that has one.
func Discover(dir string) (string, error) {
	if path := util.FindUpward(dir, DefinitionFileNames); path != "" {
		return path, nil
	}
	return "", fmt.Errorf("%w in %s or its parents (looked for %s); run 'taskgraph init' to create one",
		ErrDefinitionNotFound, dir, strings.Join(DefinitionFileNames, ", "))
}

// Load parses and validates the definition at path, then builds its property
// store with overrides applied last.
func Load(path string, overrides map[string]string) (*types.Definition, *properties.Store, error) {
	def, err := parser.ParseDefinition(path)
	if err != nil {
		return nil, nil, err
	}
	if err := ValidateDefinition(def); err != nil {
		return nil, nil, err
	}
	store, err := LoadProperties(def, overrides)
	if err != nil {
		return nil, nil, err
	}
	for _, problem := range UndefinedReferences(def, store) {
		logging.Warn("reference to an undefined property", map[string]interface{}{"event": "config.reference", "problem": problem})
	}
	logging.Debug("definition loaded", map[string]interface{}{
		"event": "config.load", "path": path, "targets": len(def.Targets), "properties": store.Len(),
	})
	return def, store, nil
}

// LoadProperties layers the property sources, lowest precedence first:
// built-ins, property files, inline properties, overrides. Values are then
// expanded against each other once.
func LoadProperties(def *types.Definition, overrides map[string]string) (*properties.Store, error) {
	baseDir := "."
	if def.Path != "" {
		baseDir = filepath.Dir(def.Path)
	}
	if abs, err := filepath.Abs(baseDir); err == nil {
		baseDir = abs
	}

	values := map[string]string{PropBaseDir: baseDir}
	if def.Name != "" {
		values[PropProjectName] = def.Name
	}

	for _, f := range def.PropertyFiles {
		p := f
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		m, err := godotenv.Read(p)
		if err != nil {
			return nil, fmt.Errorf("property file %s: %w", f, err)
		}
		for k, v := range m {
			values[k] = v
		}
	}
	for k, v := range def.Properties {
		values[k] = v
	}
	for k, v := range overrides {
		values[k] = v
	}

	store := properties.NewStore(values)
	if err := store.ExpandAll(); err != nil {
		return nil, err
	}
	return store, nil
}

// UndefinedReferences lists the ${name} references in def's actions that
// neither a property in store nor any prompt action defines. Such a reference
// fails when its action runs.
func UndefinedReferences(def *types.Definition, store *properties.Store) []string {
	defined := make(map[string]bool)
	for _, name := range store.Names() {
		defined[name] = true
	}
	for _, t := range def.Targets {
		for _, a := range t.Actions {
			if a.Kind() == types.ActionPrompt && a.Property != "" {
				defined[a.Property] = true
			}
		}
	}

	var problems []string
	for _, t := range def.Targets {
		for i := range t.Actions {
			reported := make(map[string]bool)
			for _, field := range actionTemplates(&t.Actions[i]) {
				for _, name := range properties.References(field) {
					if defined[name] || reported[name] {
						continue
					}
					reported[name] = true
					problems = append(problems, fmt.Sprintf("target %q action #%d: ${%s} is not defined", t.Name, i+1, name))
				}
			}
		}
	}
	return problems
}

// actionTemplates returns every field of a that is interpolated at run time.
func actionTemplates(a *types.Action) []string {
	fields := []string{a.Executable, a.WorkingDir, a.From, a.To, a.Message, a.Default}
	fields = append(fields, a.Args...)
	fields = append(fields, a.Include...)
	fields = append(fields, a.Exclude...)
	keys := make([]string, 0, len(a.Env))
	for k := range a.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, a.Env[k])
	}
	return fields
}

// ParseOverrides turns key=value pairs from the command line into a map.
func ParseOverrides(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		i := strings.Index(pair, "=")
		if i <= 0 {
			return nil, fmt.Errorf("invalid property %q (want name=value)", pair)
		}
		out[strings.TrimSpace(pair[:i])] = pair[i+1:]
	}
	return out, nil
}

// ValidateDefinition checks names and required action fields. Dependency
// names and cycles are left to resolution.
func ValidateDefinition(def *types.Definition) error {
	var validationErrors []string

	if len(def.Targets) == 0 {
		validationErrors = append(validationErrors, "no targets defined")
	}

	seen := make(map[string]bool, len(def.Targets))
	for i, t := range def.Targets {
		if strings.TrimSpace(t.Name) == "" {
			validationErrors = append(validationErrors, fmt.Sprintf("target %d: name cannot be empty", i+1))
			continue
		}
		if seen[t.Name] {
			validationErrors = append(validationErrors, (&graph.DuplicateTargetError{Name: t.Name}).Error())
		}
		seen[t.Name] = true

		for _, dep := range t.DependsOn {
			if strings.TrimSpace(dep) == "" {
				validationErrors = append(validationErrors, fmt.Sprintf("target %q: depends_on contains an empty name", t.Name))
			}
		}
		for j := range t.Actions {
			validationErrors = append(validationErrors, validateAction(t.Name, j, &t.Actions[j])...)
		}
	}

	if def.Default != "" {
		if _, ok := def.FindTarget(def.Default); !ok {
			validationErrors = append(validationErrors, fmt.Sprintf("default target %q is not defined", def.Default))
		}
	}
	for name := range def.Properties {
		if strings.TrimSpace(name) == "" {
			validationErrors = append(validationErrors, "properties: name cannot be empty")
		}
	}

	if len(validationErrors) > 0 {
		return &ValidationError{Problems: validationErrors}
	}
	return nil
}

func validateAction(target string, index int, a *types.Action) []string {
	var problems []string
	where := fmt.Sprintf("target %q action #%d", target, index+1)
	missing := func(field string) {
		problems = append(problems, fmt.Sprintf("%s (%s): %s is required", where, a.Kind(), field))
	}

	switch a.Kind() {
	case types.ActionRun:
		if strings.TrimSpace(a.Executable) == "" {
			missing("executable")
		}
	case types.ActionCopy:
		if strings.TrimSpace(a.To) == "" {
			missing("to")
		}
	case types.ActionPrint:
		if a.Message == "" {
			missing("message")
		}
	case types.ActionPrompt:
		if strings.TrimSpace(a.Property) == "" {
			missing("property")
		}
		if strings.TrimSpace(a.Message) == "" {
			missing("message")
		}
	case "":
		problems = append(problems, fmt.Sprintf("%s: cannot infer action type (set type, executable, to, property or message)", where))
	default:
		problems = append(problems, fmt.Sprintf("%s: unknown action type %q (want run, copy, print or prompt)", where, a.Type))
	}
	return problems
}
