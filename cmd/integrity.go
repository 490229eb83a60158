package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"bookmark-reconciler/core/database"
	"bookmark-reconciler/feature/integrity"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var fixFlag bool
var integrityJSON bool

// integrityCmd represents the integrity command
var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Perform integrity checks on the bookmark store and snapshot storage",
	Long:  `Checks the stored bookmark tree for orphans, cycles and position gaps, and the snapshot bucket for existence.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return cmd.Help()
		}
		return runIntegrityChecks(cmd.Context(), true, true)
	},
}

// treeCheckCmd represents the integrity tree command
var treeCheckCmd = &cobra.Command{
	Use:   "tree",
	Short: "Check and fix the stored bookmark tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIntegrityChecks(cmd.Context(), true, false)
	},
}

// storageCheckCmd represents the integrity storage command
var storageCheckCmd = &cobra.Command{
	Use:   "storage",
	Short: "Check and fix the snapshot bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIntegrityChecks(cmd.Context(), false, true)
	},
}

func init() {
	RootCmd.AddCommand(integrityCmd)
	integrityCmd.AddCommand(treeCheckCmd, storageCheckCmd)

	treeCheckCmd.Flags().BoolVar(&fixFlag, "fix", false, "Renumber sibling positions")
	storageCheckCmd.Flags().BoolVar(&fixFlag, "fix", false, "Create the snapshot bucket")
	integrityCmd.PersistentFlags().BoolVar(&integrityJSON, "json", false, "Save a detailed JSON report")
}

func runIntegrityChecks(ctx context.Context, runTree, runStorage bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	startTime := time.Now()

	cfg, logg, err := loadConfigAndLogger()
	if err != nil {
		return err
	}

	// Both backends are optional; a check against a missing one is reported.
	var db *gorm.DB
	if runTree {
		if conn, err := database.Connect(cfg.Database); err != nil {
			logg.Warn("Optional database connection failed", zap.Error(err))
		} else {
			db = conn
		}
	}
	svc := integrity.NewService(db, newStorageClient(cfg, logg), cfg.Storage, logg)

	report := map[string]any{}
	healthy := true

	if runTree {
		logg.Info("Checking bookmark tree...")
		tree, err := svc.CheckTree(ctx)
		switch {
		case errors.Is(err, integrity.ErrUnavailable):
			logg.Warn("Tree check skipped, database not available")
		case err != nil:
			return fmt.Errorf("tree check failed: %w", err)
		case tree.Healthy():
			report["tree"] = tree
			logg.Info("Bookmark tree is intact.", zap.Int("nodes", tree.Nodes))
		default:
			report["tree"] = tree
			healthy = false
			logg.Warn("Bookmark tree problems detected",
				zap.Int("nodes", tree.Nodes),
				zap.Strings("orphans", tree.Orphans),
				zap.Strings("unreachable", tree.Unreachable),
				zap.Strings("leaf_parents", tree.LeafParents),
				zap.Strings("position_gaps", tree.PositionGaps),
			)

			switch {
			case fixFlag && len(tree.PositionGaps) > 0:
				logg.Info("Renumbering sibling positions...")
				if err := svc.FixTree(ctx, tree); err != nil {
					return fmt.Errorf("failed to fix positions: %w", err)
				}
				logg.Info("Positions fixed successfully.", zap.Int("parents", len(tree.PositionGaps)))
			case len(tree.PositionGaps) > 0:
				logg.Info("Run 'integrity tree --fix' to renumber positions.")
			}
		}
	}

	if runStorage {
		logg.Info("Checking snapshot storage...", zap.String("bucket", cfg.Storage.Bucket))
		st, err := svc.CheckStorage(ctx)
		switch {
		case errors.Is(err, integrity.ErrUnavailable):
			logg.Warn("Storage check skipped, storage client not available")
		case err != nil:
			return fmt.Errorf("storage check failed: %w", err)
		case st.Exists:
			report["storage"] = st
			logg.Info("Snapshot bucket is present.",
				zap.Int("trees", st.Trees),
				zap.Int("reports", st.Reports),
			)
		default:
			report["storage"] = st
			healthy = false
			logg.Warn("Snapshot bucket is missing", zap.String("bucket", st.Bucket))
			if fixFlag {
				if err := svc.FixStorage(ctx); err != nil {
					return fmt.Errorf("failed to create bucket: %w", err)
				}
				logg.Info("Snapshot bucket created.")
			} else {
				logg.Info("Run 'integrity storage --fix' to create the bucket.")
			}
		}
	}

	if integrityJSON {
		filename := fmt.Sprintf("integrity_%d.json", time.Now().Unix())
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		if err := os.WriteFile(filename, data, 0644); err != nil {
			return fmt.Errorf("failed to save JSON file: %w", err)
		}
		logg.Info("Detailed JSON report saved", zap.String("file", filename))
	}

	logg.Info("Integrity check completed",
		zap.Bool("healthy", healthy),
		zap.Duration("execution_time", time.Since(startTime)),
	)
	return nil
}
