package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bookmark-reconciler/core/reconcile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	applyTargetFile   string
	applyFromSnapshot string
	applyDryRun       bool
	applyNoBackup     bool
)

// applyCmd plans and executes a target tree against the stored tree.
var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Transform the stored bookmark tree into a target tree",
	Long: `Plans the changes needed to turn the stored tree into the target tree,
asks for confirmation and executes them.

The current tree is backed up to object storage first (unless --no-backup) and
an execution report is uploaded afterwards. A target can also be a stored
snapshot, which restores a previous backup.

Examples:
  # Preview against an in-memory copy
  apply --target target.json --dry-run

  # Apply with auto-confirm (non-interactive)
  apply --target target.json --yes

  # Restore a backup
  apply --from-snapshot reconcile/trees/20260301T120000.000000000Z-before-apply.json`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringVar(&applyTargetFile, "target", "", "Target tree JSON file ('-' for stdin)")
	applyCmd.Flags().StringVar(&applyFromSnapshot, "from-snapshot", "", "Use a stored snapshot as the target tree")
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Execute against an in-memory copy; the stored tree is not changed")
	applyCmd.Flags().BoolVar(&applyNoBackup, "no-backup", false, "Skip the snapshot of the current tree")
	applyCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm destructive actions (non-interactive)")
	applyCmd.MarkFlagsMutuallyExclusive("target", "from-snapshot")
	applyCmd.MarkFlagsOneRequired("target", "from-snapshot")
	RootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	// Ctrl-C stops execution between operations; the partial result is still reported.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer env.logger.Sync()
	l := env.logger

	target, err := loadTarget(ctx, env)
	if err != nil {
		return err
	}

	// Step 1: Plan (always runs)
	l.Info("Planning reconciliation...")
	plan, err := env.service.Plan(ctx, nil, target)
	if err != nil {
		return fmt.Errorf("failed to plan reconciliation: %w", err)
	}

	// Step 2: Print report
	printPlanReport(l, plan)
	if plan.IsEmpty() {
		l.Info("Stored tree already matches the target. No changes required.")
		return nil
	}
	if plan.Strategy.Type == reconcile.StrategyRebuild {
		return &reconcile.UnsupportedStrategyError{Strategy: plan.Strategy.Type, Reason: plan.Strategy.Reason}
	}

	// Step 3: Confirm unless nothing is written
	if !applyDryRun && !confirmDestructiveAction() {
		l.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}

	// Step 4: Apply
	svc := env.service
	if applyNoBackup {
		opts := env.cfg.Apply
		opts.Backup = false
		svc = newService(env, opts)
	}

	l.Info("Applying plan...", zap.Bool("dry_run", applyDryRun))
	res, err := svc.Apply(ctx, target, applyDryRun, logProgress(l))
	if res != nil {
		printApplyReport(l, res)
	}
	if err != nil {
		return fmt.Errorf("failed to apply plan: %w", err)
	}

	if applyDryRun {
		l.Info("Dry-run mode: No changes were made.")
	}
	if !res.Converged {
		return fmt.Errorf("tree did not converge: %d operations remaining", res.Remaining)
	}
	return nil
}

func loadTarget(ctx context.Context, env *environment) ([]reconcile.Node, error) {
	if applyFromSnapshot == "" {
		return readTree(applyTargetFile)
	}
	if env.snapshots == nil {
		return nil, fmt.Errorf("snapshot storage is not available")
	}
	return env.snapshots.LoadTree(ctx, applyFromSnapshot)
}
