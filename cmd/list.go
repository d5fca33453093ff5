package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"taskgraph/internal/logging"
	"taskgraph/internal/pipeline/graph"
	"taskgraph/internal/pipeline/types"
	"taskgraph/internal/util"
)

// newPlanCmd creates the plan subcommand
func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan [target]",
		Short: "Show the execution order for a target without running it",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			def, _, err := loadProject()
			if err != nil {
				util.Err.Printf("❌ Failed to load definition: %v\n", err)
				os.Exit(1)
			}
			requested, err := requestedTarget(def, args)
			if err != nil {
				util.Err.Printf("❌ %v\n", err)
				os.Exit(1)
			}
			if err := printPlan(util.Default, def, requested); err != nil {
				util.Err.Printf("❌ %v\n", err)
				os.Exit(1)
			}
		},
	}
}

func printPlan(p *util.Printer, def *types.Definition, requested string) error {
	plan, err := graph.Resolve(def.Targets, requested)
	if err != nil {
		return err
	}
	p.Printf("📋 Plan for %s:\n", requested)
	for i, name := range plan.Targets {
		t, _ := def.FindTarget(name)
		noun := "actions"
		if len(t.Actions) == 1 {
			noun = "action"
		}
		p.Printf("  %d. %s (%d %s)\n", i+1, name, len(t.Actions), noun)
	}
	return nil
}

// newListCmd creates the list subcommand
func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the targets of the definition",
		Run: func(cmd *cobra.Command, args []string) {
			def, _, err := loadProject()
			if err != nil {
				util.Err.Printf("❌ Failed to load definition: %v\n", err)
				os.Exit(1)
			}
			if err := printTargets(util.Default, def); err != nil {
				util.Err.Printf("❌ %v\n", err)
				os.Exit(1)
			}
		},
	}
}

// printTargets lists targets in declaration order. The default target is
// starred; targets nothing depends on are marked as entry points.
func printTargets(p *util.Printer, def *types.Definition) error {
	g, err := graph.New(def.Targets)
	if err != nil {
		return err
	}
	entry := make(map[string]bool)
	for _, name := range g.Unreferenced(def.Default) {
		entry[name] = true
	}
	if len(entry) > 0 {
		logging.Debug("targets not referenced by any other target", map[string]interface{}{"event": "config.unreferenced", "targets": g.Unreferenced(def.Default)})
	}

	width := 0
	for _, t := range def.Targets {
		if len(t.Name) > width {
			width = len(t.Name)
		}
	}

	title := def.Name
	if title == "" {
		title = def.Path
	}
	p.Printf("Targets in %s:\n", title)
	for _, t := range def.Targets {
		marker := " "
		if t.Name == def.Default {
			marker = "*"
		}
		line := t.Description
		if entry[t.Name] {
			line += " [entry point]"
		}
		p.Printf("%s %-*s  %s\n", marker, width, t.Name, line)
	}
	return nil
}
