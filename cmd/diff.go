package cmd

import (
	"context"

	"bookmark-reconciler/core/reconcile"

	"github.com/spf13/cobra"
)

var (
	diffTargetFile   string
	diffOriginalFile string
	diffJSON         bool
)

// diffCmd computes a plan without applying it.
var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compute the plan turning the stored tree into a target tree",
	Long: `Computes and reports the reconciliation plan without changing anything.

The original tree is the stored tree unless --original is given, in which case
no database is needed.

Examples:
  diff --target target.json
  diff --original before.json --target after.json --json`,
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().StringVar(&diffTargetFile, "target", "", "Target tree JSON file ('-' for stdin)")
	diffCmd.Flags().StringVar(&diffOriginalFile, "original", "", "Original tree JSON file instead of the stored tree")
	diffCmd.Flags().BoolVar(&diffJSON, "json", false, "Print the full plan as JSON on stdout")
	_ = diffCmd.MarkFlagRequired("target")
	RootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	target, err := readTree(diffTargetFile)
	if err != nil {
		return err
	}

	var plan *reconcile.DiffResult
	if diffOriginalFile != "" {
		original, err := readTree(diffOriginalFile)
		if err != nil {
			return err
		}
		// Planning two files needs neither database nor storage.
		cfg, l, err := loadConfigAndLogger()
		if err != nil {
			return err
		}
		defer l.Sync()
		plan, err = reconcile.NewEngine(nil, cfg.Reconcile, reconcile.WithLogger(l)).ComputeDiff(original, target)
		if err != nil {
			return err
		}
		printPlanReport(l, plan)
	} else {
		env, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer env.logger.Sync()
		plan, err = env.service.Plan(ctx, nil, target)
		if err != nil {
			return err
		}
		printPlanReport(env.logger, plan)
	}

	if diffJSON {
		return writeJSON(plan)
	}
	return nil
}
