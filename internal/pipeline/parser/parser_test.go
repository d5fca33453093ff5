package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskgraph/internal/pipeline/types"
)

const sampleYAML = `
project:
  name: tygra
  default: dist
  properties:
    version: 1.0
    build: out
  targets:
    - name: docs
      description: Generate API documentation
      actions:
        - executable: doxygen
          args: [Doxyfile]
          working_dir: ${build}
        - type: copy
          from: html
          include: ["*.html"]
          to: ${build}/docs
    - name: dist
      depends_on: [docs]
      actions:
        - property: sign_id
          message: Signing identity?
          secret: true
        - message: built ${version}
`

const sampleHCL = `
name        = "tygra"
default     = "dist"
log_output  = true

properties = {
  version = 1.0
  build   = "out"
  dmg     = "$${build}/tygra.dmg"
}

target "docs" {
  description = "Generate API documentation"

  run {
    executable  = "doxygen"
    args        = ["Doxyfile"]
    search_path = true
    env = {
      DOXY_OUT = "$${build}"
    }
  }

  copy {
    from    = "html"
    include = ["*.html"]
    exclude = ["drafts/"]
    to      = "$${build}/docs"
  }
}

target "dist" {
  depends_on = ["docs"]

  prompt {
    message  = "Signing identity?"
    property = "sign_id"
    default  = "-"
  }

  print {
    message = "signed with $${sign_id}"
  }

  run {
    name       = "codesign"
    executable = "codesign"
    args       = ["--sign", "$${sign_id}", "$${dmg}"]
  }
}
`

func TestParseYAML_ProjectWrapperAndInference(t *testing.T) {
	def, err := ParseYAML([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "tygra", def.Name)
	assert.Equal(t, "dist", def.Default)
	assert.Equal(t, map[string]string{"version": "1.0", "build": "out"}, def.Properties)
	require.Len(t, def.Targets, 2)

	docs := def.Targets[0]
	assert.Equal(t, "Generate API documentation", docs.Description)
	require.Len(t, docs.Actions, 2)
	assert.Equal(t, types.ActionRun, docs.Actions[0].Kind())
	assert.Equal(t, "${build}", docs.Actions[0].WorkingDir)
	assert.Equal(t, types.ActionCopy, docs.Actions[1].Kind())

	dist := def.Targets[1]
	assert.Equal(t, []string{"docs"}, dist.DependsOn)
	assert.Equal(t, types.ActionPrompt, dist.Actions[0].Kind())
	assert.True(t, dist.Actions[0].Secret)
	assert.Equal(t, types.ActionPrint, dist.Actions[1].Kind())
}

func TestParseYAML_WithoutWrapper(t *testing.T) {
	def, err := ParseYAML([]byte("name: plain\ntargets:\n  - name: a\n"))
	require.NoError(t, err)
	assert.Equal(t, "plain", def.Name)
	require.Len(t, def.Targets, 1)
	assert.Equal(t, "a", def.Targets[0].Name)
}

func TestParseYAML_RejectsUnknownFields(t *testing.T) {
	_, err := ParseYAML([]byte("name: x\ntargets:\n  - name: a\n    depends: [b]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depends")
}

func TestParseYAML_Empty(t *testing.T) {
	_, err := ParseYAML([]byte(""))
	assert.Error(t, err)
}

func TestParseHCL(t *testing.T) {
	def, err := ParseHCL([]byte(sampleHCL), "build.hcl")
	require.NoError(t, err)

	assert.Equal(t, "tygra", def.Name)
	assert.True(t, def.LogOutput)
	assert.Equal(t, map[string]string{"version": "1", "build": "out", "dmg": "${build}/tygra.dmg"}, def.Properties)
	require.Len(t, def.Targets, 2)

	docs := def.Targets[0]
	assert.Equal(t, "docs", docs.Name)
	require.Len(t, docs.Actions, 2)
	run := docs.Actions[0]
	assert.Equal(t, types.ActionRun, run.Type)
	assert.True(t, run.SearchPath)
	assert.Equal(t, map[string]string{"DOXY_OUT": "${build}"}, run.Env)
	assert.Equal(t, []string{"drafts/"}, docs.Actions[1].Exclude)

	dist := def.Targets[1]
	assert.Equal(t, []string{"docs"}, dist.DependsOn)
	var kinds []string
	for _, a := range dist.Actions {
		kinds = append(kinds, a.Type)
	}
	assert.Equal(t, []string{types.ActionPrompt, types.ActionPrint, types.ActionRun}, kinds, "action blocks keep source order")
	assert.Equal(t, []string{"--sign", "${sign_id}", "${dmg}"}, dist.Actions[2].Args)
	assert.Equal(t, "codesign", dist.Actions[2].Label())
}

func TestParseHCL_Errors(t *testing.T) {
	cases := map[string]string{
		"syntax":             `target "a" {`,
		"unknown block":      "target \"a\" {\n  shell {\n    cmd = \"ls\"\n  }\n}\n",
		"missing required":   "target \"a\" {\n  run {\n    args = [\"x\"]\n  }\n}\n",
		"bare interpolation": "target \"a\" {\n  print {\n    message = \"${version}\"\n  }\n}\n",
		"nested property":    "properties = {\n  list = [\"a\"]\n}\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseHCL([]byte(src), "build.hcl")
			assert.Error(t, err)
		})
	}
}

func TestParseDefinition_ByExtension(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "build.yml")
	hclPath := filepath.Join(dir, "build.hcl")
	require.NoError(t, os.WriteFile(yamlPath, []byte(sampleYAML), 0644))
	require.NoError(t, os.WriteFile(hclPath, []byte(sampleHCL), 0644))

	def, err := ParseDefinition(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, yamlPath, def.Path)

	def, err = ParseDefinition(hclPath)
	require.NoError(t, err)
	assert.Equal(t, hclPath, def.Path)
	assert.True(t, def.LogOutput)

	txt := filepath.Join(dir, "build.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0644))
	_, err = ParseDefinition(txt)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unsupported definition format"))

	_, err = ParseDefinition(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
