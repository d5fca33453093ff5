package types

// Action types
const (
	ActionRun    = "run"
	ActionCopy   = "copy"
	ActionPrint  = "print"
	ActionPrompt = "prompt"
)

// Definition represents a loaded build definition
type Definition struct {
	Name          string            `yaml:"name" json:"name,omitempty" jsonschema:"description=Project name exposed as the project.name property"`
	Description   string            `yaml:"description,omitempty" json:"description,omitempty"`
	Default       string            `yaml:"default,omitempty" json:"default,omitempty" jsonschema:"description=Target run when none is requested"`
	Properties    map[string]string `yaml:"properties,omitempty" json:"properties,omitempty"`
	PropertyFiles []string          `yaml:"property_files,omitempty" json:"property_files,omitempty" jsonschema:"description=dotenv-style files relative to the definition"`
	LogOutput     bool              `yaml:"log_output,omitempty" json:"log_output,omitempty" jsonschema:"description=Write a run log under .taskgraph/logs"`
	Targets       []Target          `yaml:"targets" json:"targets"`

	// Path is the file the definition was loaded from (not serialized)
	Path string `yaml:"-" json:"-"`
}

// Target is a named, independently requestable unit of work
type Target struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	DependsOn   []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Actions     []Action `yaml:"actions,omitempty" json:"actions,omitempty"`
}

// Action is one step within a target. Type selects which group of fields applies.
type Action struct {
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	Type string `yaml:"type,omitempty" json:"type,omitempty" jsonschema:"enum=run,enum=copy,enum=print,enum=prompt"`

	// run
	Executable string            `yaml:"executable,omitempty" json:"executable,omitempty"`
	Args       []string          `yaml:"args,omitempty" json:"args,omitempty"`
	WorkingDir string            `yaml:"working_dir,omitempty" json:"working_dir,omitempty"`
	Env        map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	SearchPath bool              `yaml:"search_path,omitempty" json:"search_path,omitempty"`
	TTY        bool              `yaml:"tty,omitempty" json:"tty,omitempty"`

	// copy
	From    string   `yaml:"from,omitempty" json:"from,omitempty"`
	Include []string `yaml:"include,omitempty" json:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	To      string   `yaml:"to,omitempty" json:"to,omitempty"`
	Flatten bool     `yaml:"flatten,omitempty" json:"flatten,omitempty"`

	// print and prompt
	Message string `yaml:"message,omitempty" json:"message,omitempty"`

	// prompt
	Property string `yaml:"property,omitempty" json:"property,omitempty"`
	Default  string `yaml:"default,omitempty" json:"default,omitempty"`
	Secret   bool   `yaml:"secret,omitempty" json:"secret,omitempty"`
}

// Kind returns the action type, inferring it from the populated fields when
// Type is empty. An empty result means the action is not recognizable.
func (a *Action) Kind() string {
	if a.Type != "" {
		return a.Type
	}
	switch {
	case a.Executable != "":
		return ActionRun
	case a.To != "":
		return ActionCopy
	case a.Property != "":
		return ActionPrompt
	case a.Message != "":
		return ActionPrint
	}
	return ""
}

// Label returns a short human readable identifier for diagnostics
func (a *Action) Label() string {
	if a.Name != "" {
		return a.Name
	}
	switch a.Kind() {
	case ActionRun:
		return a.Executable
	case ActionCopy:
		return "copy to " + a.To
	case ActionPrompt:
		return "prompt for " + a.Property
	}
	return a.Kind()
}

// FindTarget returns the target with the given name
func (d *Definition) FindTarget(name string) (*Target, bool) {
	for i := range d.Targets {
		if d.Targets[i].Name == name {
			return &d.Targets[i], true
		}
	}
	return nil, false
}
