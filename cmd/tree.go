package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importTreeFile string

// treeCmd prints or replaces the stored tree.
var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the stored bookmark tree as JSON",
	Long: `Prints the stored bookmark tree as JSON on stdout.

With --import the stored tree is replaced by the given file without computing a
plan. Nodes without an id receive a new one.

Examples:
  # Export
  tree > bookmarks.json

  # Seed an empty database
  tree --import seed.json --yes`,
	RunE: runTree,
}

func init() {
	treeCmd.Flags().StringVar(&importTreeFile, "import", "", "Replace the stored tree with this JSON file ('-' for stdin)")
	treeCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm destructive actions (non-interactive)")
	RootCmd.AddCommand(treeCmd)
}

func runTree(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	env, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer env.logger.Sync()

	if importTreeFile == "" {
		tree, err := env.store.LoadTree(ctx)
		if err != nil {
			return err
		}
		return writeJSON(tree)
	}

	nodes, err := readTree(importTreeFile)
	if err != nil {
		return err
	}
	if !confirmDestructiveAction() {
		env.logger.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}
	stored, err := env.store.ReplaceTree(ctx, nodes)
	if err != nil {
		return fmt.Errorf("failed to import tree: %w", err)
	}
	env.logger.Info("Imported tree", zap.Int("top_level_nodes", len(stored)))
	return nil
}
