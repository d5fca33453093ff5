package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"taskgraph/internal/config"
	"taskgraph/internal/logging"
	"taskgraph/internal/pipeline/properties"
	"taskgraph/internal/pipeline/types"
)

var (
	definitionFile string
	propertyFlags  []string
	logLevel       string

	rootCmd = &cobra.Command{
		Use:   "taskgraph",
		Short: "Declarative task-graph build orchestrator",
		Long: `taskgraph runs named build targets from a build.yaml, build.yml or
build.hcl definition. Each target runs its dependencies first, then its own
actions in order; the first failure stops the whole run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := logging.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logging.Init(os.Stderr, lvl, map[string]interface{}{"app": "taskgraph"})
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&definitionFile, "file", "f", "", "Definition file (default: build.yaml, build.yml or build.hcl in the current directory or a parent)")
	rootCmd.PersistentFlags().StringArrayVarP(&propertyFlags, "property", "D", nil, "Set a property (name=value); overrides the definition")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newMenuCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newSchemaCmd())
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return err
	}
	return nil
}

// loadProject finds and loads the definition selected by the global flags.
func loadProject() (*types.Definition, *properties.Store, error) {
	path := definitionFile
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, nil, err
		}
		if path, err = config.Discover(cwd); err != nil {
			return nil, nil, err
		}
	}
	overrides, err := config.ParseOverrides(propertyFlags)
	if err != nil {
		return nil, nil, err
	}
	return config.Load(path, overrides)
}

// requestedTarget picks the target named on the command line, or the
// definition's default.
func requestedTarget(def *types.Definition, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if def.Default == "" {
		return "", errors.New("no target given and the definition has no default target")
	}
	return def.Default, nil
}
