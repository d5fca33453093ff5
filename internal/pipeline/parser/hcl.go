package parser

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"taskgraph/internal/pipeline/types"
)

// hclDefinitionFile is the top level of a build.hcl file. HCL evaluates
// "${...}" itself, so property references are written "$${name}".
type hclDefinitionFile struct {
	Name          string         `hcl:"name,optional"`
	Description   string         `hcl:"description,optional"`
	Default       string         `hcl:"default,optional"`
	LogOutput     bool           `hcl:"log_output,optional"`
	PropertyFiles []string       `hcl:"property_files,optional"`
	Properties    hcl.Expression `hcl:"properties,optional"`
	Targets       []*hclTarget   `hcl:"target,block"`
}

type hclTarget struct {
	Name   string   `hcl:"name,label"`
	Remain hcl.Body `hcl:",remain"`
}

type hclRun struct {
	Name       string            `hcl:"name,optional"`
	Executable string            `hcl:"executable"`
	Args       []string          `hcl:"args,optional"`
	WorkingDir string            `hcl:"working_dir,optional"`
	Env        map[string]string `hcl:"env,optional"`
	SearchPath bool              `hcl:"search_path,optional"`
	TTY        bool              `hcl:"tty,optional"`
}

type hclCopy struct {
	Name    string   `hcl:"name,optional"`
	From    string   `hcl:"from,optional"`
	Include []string `hcl:"include,optional"`
	Exclude []string `hcl:"exclude,optional"`
	To      string   `hcl:"to"`
	Flatten bool     `hcl:"flatten,optional"`
}

type hclPrint struct {
	Name    string `hcl:"name,optional"`
	Message string `hcl:"message"`
}

type hclPrompt struct {
	Name     string `hcl:"name,optional"`
	Message  string `hcl:"message"`
	Property string `hcl:"property"`
	Default  string `hcl:"default,optional"`
	Secret   bool   `hcl:"secret,optional"`
}

// targetBodySchema lists what a target block may contain. Action blocks are
// returned in source order regardless of type.
var targetBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "description"},
		{Name: "depends_on"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: types.ActionRun},
		{Type: types.ActionCopy},
		{Type: types.ActionPrint},
		{Type: types.ActionPrompt},
	},
}

// ParseHCL decodes an HCL definition. filename is used in diagnostics only.
func ParseHCL(data []byte, filename string) (*types.Definition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL: %w", diags)
	}

	var parsed hclDefinitionFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %w", diags)
	}

	props, diags := decodeProperties(parsed.Properties)
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid properties: %w", diags)
	}

	def := &types.Definition{
		Name:          parsed.Name,
		Description:   parsed.Description,
		Default:       parsed.Default,
		LogOutput:     parsed.LogOutput,
		PropertyFiles: parsed.PropertyFiles,
		Properties:    props,
	}
	for _, ht := range parsed.Targets {
		target, diags := decodeTarget(ht)
		if diags.HasErrors() {
			return nil, fmt.Errorf("target %q: %w", ht.Name, diags)
		}
		def.Targets = append(def.Targets, target)
	}
	return def, nil
}

// decodeProperties evaluates the properties object and converts every value
// to a string. Numbers and bools are accepted; collections are not.
func decodeProperties(expr hcl.Expression) (map[string]string, hcl.Diagnostics) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() || val.IsNull() {
		return nil, diags
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid properties",
			Detail:   "properties must be an object of name = value pairs.",
			Subject:  expr.Range().Ptr(),
		})
	}

	props := make(map[string]string)
	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		name := k.AsString()
		str, err := convert.Convert(v, cty.String)
		if err != nil || str.IsNull() || !str.IsKnown() {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid property value",
				Detail:   fmt.Sprintf("Property %q must be a string, number or bool.", name),
				Subject:  expr.Range().Ptr(),
			})
			continue
		}
		props[name] = str.AsString()
	}
	return props, diags
}

func decodeTarget(ht *hclTarget) (types.Target, hcl.Diagnostics) {
	target := types.Target{Name: ht.Name}
	content, diags := ht.Remain.Content(targetBodySchema)
	if diags.HasErrors() {
		return target, diags
	}

	// attributes come back as a map; decode in a fixed order for stable diagnostics
	names := make([]string, 0, len(content.Attributes))
	for name := range content.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		attr := content.Attributes[name]
		switch name {
		case "description":
			diags = append(diags, gohcl.DecodeExpression(attr.Expr, nil, &target.Description)...)
		case "depends_on":
			diags = append(diags, gohcl.DecodeExpression(attr.Expr, nil, &target.DependsOn)...)
		}
	}

	for _, block := range content.Blocks {
		action, blockDiags := decodeAction(block)
		diags = append(diags, blockDiags...)
		if blockDiags.HasErrors() {
			continue
		}
		target.Actions = append(target.Actions, action)
	}
	return target, diags
}

func decodeAction(block *hcl.Block) (types.Action, hcl.Diagnostics) {
	switch block.Type {
	case types.ActionRun:
		var r hclRun
		diags := gohcl.DecodeBody(block.Body, nil, &r)
		return types.Action{
			Type: types.ActionRun, Name: r.Name, Executable: r.Executable, Args: r.Args,
			WorkingDir: r.WorkingDir, Env: r.Env, SearchPath: r.SearchPath, TTY: r.TTY,
		}, diags
	case types.ActionCopy:
		var c hclCopy
		diags := gohcl.DecodeBody(block.Body, nil, &c)
		return types.Action{
			Type: types.ActionCopy, Name: c.Name, From: c.From, Include: c.Include,
			Exclude: c.Exclude, To: c.To, Flatten: c.Flatten,
		}, diags
	case types.ActionPrint:
		var p hclPrint
		diags := gohcl.DecodeBody(block.Body, nil, &p)
		return types.Action{Type: types.ActionPrint, Name: p.Name, Message: p.Message}, diags
	case types.ActionPrompt:
		var p hclPrompt
		diags := gohcl.DecodeBody(block.Body, nil, &p)
		return types.Action{
			Type: types.ActionPrompt, Name: p.Name, Message: p.Message,
			Property: p.Property, Default: p.Default, Secret: p.Secret,
		}, diags
	}
	return types.Action{}, hcl.Diagnostics{{
		Severity: hcl.DiagError,
		Summary:  "Unsupported action",
		Detail:   fmt.Sprintf("Block type %q is not an action.", block.Type),
		Subject:  &block.DefRange,
	}}
}
