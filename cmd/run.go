package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"taskgraph/internal/pipeline/executor"
	"taskgraph/internal/pipeline/properties"
	"taskgraph/internal/pipeline/types"
	"taskgraph/internal/util"
)

// newRunCmd creates the run subcommand
func newRunCmd() *cobra.Command {
	var noInput bool

	cmd := &cobra.Command{
		Use:   "run [target]",
		Short: "Run a target and everything it depends on",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			def, store, err := loadProject()
			if err != nil {
				util.Err.Printf("❌ Failed to load definition: %v\n", err)
				os.Exit(1)
			}
			requested, err := requestedTarget(def, args)
			if err != nil {
				util.Err.Printf("❌ %v\n", err)
				os.Exit(1)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			if err := runTarget(ctx, newExecutor(noInput), def, store, requested); err != nil {
				stop()
				os.Exit(1)
			}
		},
	}

	cmd.Flags().BoolVar(&noInput, "no-input", false, "Fail prompts instead of waiting for input")
	return cmd
}

func newExecutor(noInput bool) *executor.Executor {
	ex := executor.NewExecutor()
	ex.Prompter = &executor.TerminalPrompter{In: os.Stdin, Out: os.Stderr, NoInput: noInput}
	return ex
}

// runTarget executes requested and reports the outcome. The returned error is
// the run's failure, already printed.
func runTarget(ctx context.Context, ex *executor.Executor, def *types.Definition, store *properties.Store, requested string) error {
	out, errOut := ex.Out, util.Err
	if out == nil {
		out = util.Default
	}

	out.Printf("🚀 Running %s\n", requested)
	res := ex.Execute(ctx, def, requested, store)
	if res.Err == nil {
		out.Printf("✅ %s succeeded (%s)\n", requested, res.Plan)
		return nil
	}

	var aerr *executor.ActionError
	if errors.As(res.Err, &aerr) {
		errOut.Printf("❌ Target %q failed at action #%d (%s %q): %v\n", aerr.Target, aerr.Index+1, aerr.Type, aerr.Label, aerr.Err)
	} else {
		errOut.Printf("❌ Run %s: %v\n", res.State, res.Err)
	}
	if res.LogPath != "" {
		errOut.Printf("📄 Run log: %s\n", res.LogPath)
	}
	return res.Err
}
