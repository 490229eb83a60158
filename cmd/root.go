package cmd

import (
	"errors"
	"fmt"
	"os"

	"bookmark-reconciler/core/logger"
	"bookmark-reconciler/core/reconcile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// configDir is the directory holding the .env file read by every command.
var configDir string

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "bookmark-reconciler",
	Short: "Bookmark tree reconciliation service",
	Long: `Bookmark Reconciler turns a stored bookmark tree into a target tree with a
minimal, dependency ordered set of create, delete, update, move and reorder
operations. It runs as an HTTP service or as one-shot CLI commands.

Trees are JSON arrays of nodes: {"id", "title", "url", "children"}. A node
without "url" is a folder; a node without "id" is created.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		info, err := os.Stat(configDir)
		if err != nil {
			return fmt.Errorf("config dir: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("config dir %s is not a directory", configDir)
		}
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "Directory containing the .env file")
}

// Execute runs the root command and exits with status 1 on failure.
func Execute() {
	err := RootCmd.Execute()
	if err == nil {
		return
	}

	// Commands fail before their own logger exists, so errors go through a console logger.
	l, logErr := logger.New(&logger.Config{Level: "debug", Format: "console"})
	if logErr != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	l.Error("command failed", errorFields(err)...)
	_ = l.Sync()
	os.Exit(1)
}

// errorFields adds the offending node of tree validation errors.
func errorFields(err error) []zap.Field {
	fields := []zap.Field{zap.Error(err)}
	var verr *reconcile.ValidationError
	if errors.As(err, &verr) {
		fields = append(fields,
			zap.String("tree", verr.Tree),
			zap.String("node", verr.NodeID),
			zap.String("path", verr.Path),
		)
	}
	return fields
}
