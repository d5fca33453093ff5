package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"taskgraph/internal/pipeline/types"
	"taskgraph/internal/util"
)

const sampleYAML = `# taskgraph build definition
name: sample
description: Sample project
default: dist

properties:
  version: "1.0"
  build: ${basedir}/build

targets:
  - name: clean
    description: Remove build output
    actions:
      - type: run
        executable: rm
        args: ["-rf", "${build}"]

  - name: docs
    description: Copy documentation into the build directory
    depends_on: [clean]
    actions:
      - type: copy
        from: docs
        include: ["*.md", "*.html"]
        exclude: ["drafts/"]
        to: ${build}/docs

  - name: dist
    description: Package the build directory
    depends_on: [docs]
    actions:
      - type: prompt
        message: Release channel
        property: channel
        default: stable
      - type: run
        executable: tar
        args: ["-czf", "${project.name}-${version}-${channel}.tar.gz", "-C", "${build}", "."]
        search_path: true
      - type: print
        message: Built ${project.name}-${version}-${channel}.tar.gz
`

const sampleHCL = `# taskgraph build definition
# HCL evaluates "${...}" itself; property references are written "$${name}".
name        = "sample"
description = "Sample project"
default     = "dist"

properties = {
  version = "1.0"
  build   = "$${basedir}/build"
}

target "clean" {
  description = "Remove build output"

  run {
    executable = "rm"
    args       = ["-rf", "$${build}"]
  }
}

target "docs" {
  description = "Copy documentation into the build directory"
  depends_on  = ["clean"]

  copy {
    from    = "docs"
    include = ["*.md", "*.html"]
    exclude = ["drafts/"]
    to      = "$${build}/docs"
  }
}

target "dist" {
  description = "Package the build directory"
  depends_on  = ["docs"]

  prompt {
    message  = "Release channel"
    property = "channel"
    default  = "stable"
  }

  run {
    executable  = "tar"
    args        = ["-czf", "$${project.name}-$${version}-$${channel}.tar.gz", "-C", "$${build}", "."]
    search_path = true
  }

  print {
    message = "Built $${project.name}-$${version}-$${channel}.tar.gz"
  }
}
`

// newInitCmd creates the init subcommand
func newInitCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample build definition to the current directory",
		Run: func(cmd *cobra.Command, args []string) {
			cwd, _ := os.Getwd()
			path, err := writeSample(cwd, format)
			if err != nil {
				util.Err.Printf("❌ %v\n", err)
				os.Exit(1)
			}
			util.Default.Printf("✅ Created %s\n", path)
			util.Default.Printf("💡 Run 'taskgraph list' to see its targets and 'taskgraph run' to build the default one\n")
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "Definition format (yaml or hcl)")
	return cmd
}

// writeSample creates build.yaml or build.hcl in dir, refusing to overwrite.
func writeSample(dir, format string) (string, error) {
	var name, content string
	switch format {
	case "yaml", "yml":
		name, content = "build.yaml", sampleYAML
	case "hcl":
		name, content = "build.hcl", sampleHCL
	default:
		return "", fmt.Errorf("unknown format %q (want yaml or hcl)", format)
	}

	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%s already exists; remove it first to recreate it", path)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// newSchemaCmd creates the schema subcommand
func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the YAML definition format",
		Run: func(cmd *cobra.Command, args []string) {
			data, err := definitionSchema()
			if err != nil {
				util.Err.Printf("❌ %v\n", err)
				os.Exit(1)
			}
			util.Default.PrintBlock(string(data))
		},
	}
}

func definitionSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(&types.Definition{})
	schema.Title = "taskgraph build definition"
	return json.MarshalIndent(schema, "", "  ")
}
