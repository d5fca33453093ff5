package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"taskgraph/internal/pipeline/types"
	"taskgraph/internal/util"
)

// newMenuCmd creates the menu subcommand
func newMenuCmd() *cobra.Command {
	var noInput bool

	cmd := &cobra.Command{
		Use:   "menu",
		Short: "Pick a target from an interactive menu and run it",
		Run: func(cmd *cobra.Command, args []string) {
			if !util.IsTerminal(os.Stdin) {
				util.Err.Printf("❌ menu needs an interactive terminal; use 'taskgraph run <target>'\n")
				os.Exit(1)
			}
			def, store, err := loadProject()
			if err != nil {
				util.Err.Printf("❌ Failed to load definition: %v\n", err)
				util.Err.Printf("💡 Run 'taskgraph init' to create a sample definition\n")
				os.Exit(1)
			}

			items := menuItems(def)
			prompt := promptui.Select{
				Label: "Select a target",
				Items: items,
				Size:  menuSize(len(items), os.Stdout),
			}
			idx, _, err := prompt.Run()
			if err != nil {
				util.Err.Printf("❌ Menu cancelled: %v\n", err)
				os.Exit(1)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			if err := runTarget(ctx, newExecutor(noInput), def, store, def.Targets[idx].Name); err != nil {
				stop()
				os.Exit(1)
			}
		},
	}

	cmd.Flags().BoolVar(&noInput, "no-input", false, "Fail prompts instead of waiting for input")
	return cmd
}

// menuItems renders one entry per target, in declaration order.
func menuItems(def *types.Definition) []string {
	items := make([]string, 0, len(def.Targets))
	for _, t := range def.Targets {
		item := "▶️  " + t.Name
		if t.Description != "" {
			item = fmt.Sprintf("%s: %s", item, t.Description)
		}
		if t.Name == def.Default {
			item += " (default)"
		}
		items = append(items, item)
	}
	return items
}

// menuSize fits the list into out's terminal, leaving room for the label
// and the line under the menu.
func menuSize(items int, out *os.File) int {
	size := items
	if rows, _, ok := util.TerminalSize(out); ok && rows-2 < size {
		size = rows - 2
	}
	if size < 1 {
		size = 1
	}
	return size
}
