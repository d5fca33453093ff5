package parser

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"taskgraph/internal/pipeline/types"
)

// ParseDefinition reads a build definition, choosing YAML or HCL by the
// file extension.
func ParseDefinition(filePath string) (*types.Definition, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}

	var def *types.Definition
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		def, err = ParseYAML(data)
	case ".hcl":
		def, err = ParseHCL(data, filePath)
	default:
		return nil, fmt.Errorf("unsupported definition format %q (want .yaml, .yml or .hcl)", filepath.Ext(filePath))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	def.Path = filePath
	return def, nil
}

// ParseYAML decodes a YAML definition. The content may be wrapped in a
// top-level "project:" key. Unknown fields are rejected.
func ParseYAML(data []byte) (*types.Definition, error) {
	// Work on the node tree so scalars keep their original text (1.0 stays "1.0")
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse definition YAML: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("definition is empty")
	}
	content := doc.Content[0]
	if content.Kind == yaml.MappingNode && len(content.Content) == 2 && content.Content[0].Value == "project" {
		content = content.Content[1]
	}

	contentBytes, err := yaml.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal definition data: %w", err)
	}

	var def types.Definition
	dec := yaml.NewDecoder(bytes.NewReader(contentBytes))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("failed to parse definition: %w", err)
	}
	return &def, nil
}
