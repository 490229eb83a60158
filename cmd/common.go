package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"bookmark-reconciler/core/config"
	"bookmark-reconciler/core/database"
	"bookmark-reconciler/core/logger"
	"bookmark-reconciler/core/reconcile"
	"bookmark-reconciler/core/storage"
	"bookmark-reconciler/feature/bookmarks"
	"bookmark-reconciler/feature/reconciliation"
	"bookmark-reconciler/feature/snapshot"

	"go.uber.org/zap"
)

// yesConfirm skips the interactive confirmation of destructive commands.
var yesConfirm bool

// environment bundles what the one-shot commands need.
type environment struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     *bookmarks.Store
	snapshots *snapshot.Store
	service   *reconciliation.Service
}

// loadConfigAndLogger loads configuration and builds the logger.
func loadConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, l, nil
}

// bootstrap loads configuration, connects the bookmark database and, when
// available, snapshot storage.
func bootstrap(ctx context.Context) (*environment, error) {
	cfg, l, err := loadConfigAndLogger()
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := bookmarks.NewStore(db)
	// Creates the table on first use and widens legacy columns.
	if err := store.Prepare(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare schema: %w", err)
	}

	env := &environment{
		cfg:       cfg,
		logger:    l,
		store:     store,
		snapshots: connectSnapshots(cfg, newStorageClient(cfg, l), l),
	}
	env.service = newService(env, cfg.Apply)
	return env, nil
}

// newStorageClient returns nil when the client cannot be created.
func newStorageClient(cfg *config.Config, l *zap.Logger) storage.Client {
	client, err := storage.NewClient(cfg.Storage)
	if err != nil {
		l.Warn("Snapshot storage disabled", zap.Error(err))
		return nil
	}
	return client
}

// newService builds a reconciliation service with the given apply settings.
func newService(env *environment, opts reconciliation.Config) *reconciliation.Service {
	return reconciliation.NewService(env.store, asSnapshots(env.snapshots), env.cfg.Reconcile, opts, env.logger)
}

// readTree reads a JSON tree from path, or from stdin when path is "-".
func readTree(path string) ([]reconcile.Node, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open tree file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var nodes []reconcile.Node
	if err := json.NewDecoder(r).Decode(&nodes); err != nil {
		return nil, fmt.Errorf("failed to parse tree %s: %w", path, err)
	}
	return nodes, nil
}

// writeJSON prints v as indented JSON on stdout.
func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printPlanReport prints a formatted plan summary using logger.
func printPlanReport(l *zap.Logger, plan *reconcile.DiffResult) {
	s := plan.Stats

	l.Info("Reconciliation plan",
		zap.Int("total_operations", s.TotalOperations),
		zap.Int("estimated_cost", s.EstimatedTime),
		zap.Int("api_calls", s.APICalls),
		zap.String("complexity", string(s.Complexity)),
		zap.String("strategy", string(plan.Strategy.Type)),
		zap.String("reason", plan.Strategy.Reason),
	)

	if len(plan.Operations) == 0 {
		return
	}

	counts := make(map[reconcile.OperationType]int)
	for _, op := range plan.Operations {
		counts[op.Type]++
	}
	l.Info("Planned operations",
		zap.Int("create", counts[reconcile.OpCreate]),
		zap.Int("update", counts[reconcile.OpUpdate]),
		zap.Int("move", counts[reconcile.OpMove]),
		zap.Int("reorder", counts[reconcile.OpReorder]),
		zap.Int("delete", counts[reconcile.OpDelete]),
	)

	// Show sample of operations (max 5 for logger)
	maxShow := 5
	if len(plan.Operations) < maxShow {
		maxShow = len(plan.Operations)
	}
	for _, op := range plan.Operations[:maxShow] {
		l.Info("Sample operation",
			zap.String("type", string(op.Type)),
			zap.String("description", op.Describe()),
			zap.Int("priority", op.Priority),
			zap.Int("dependencies", len(op.Dependencies)),
		)
	}
	if len(plan.Operations) > maxShow {
		l.Info("Additional operations not shown", zap.Int("count", len(plan.Operations)-maxShow))
	}

	for _, rec := range plan.Strategy.Recommendations {
		l.Info("Recommendation", zap.String("text", rec))
	}
}

// printApplyReport prints the outcome of every pass.
func printApplyReport(l *zap.Logger, res *reconciliation.ApplyResult) {
	for i, pass := range res.Passes {
		l.Info("Pass result",
			zap.Int("pass", i+1),
			zap.Bool("success", pass.Success),
			zap.Int("executed", pass.ExecutedOperations),
			zap.Int("failed", pass.FailedOperations),
			zap.Duration("total_time", pass.TotalTime),
			zap.Int64("api_calls", pass.Performance.APICallsActual),
		)
		for _, e := range pass.Errors {
			l.Warn("Failed operation",
				zap.String("description", e.Operation.Describe()),
				zap.String("error", e.Error),
			)
		}
	}

	fields := []zap.Field{
		zap.Bool("converged", res.Converged),
		zap.Int("remaining", res.Remaining),
	}
	if res.Snapshot != "" {
		fields = append(fields, zap.String("snapshot", res.Snapshot))
	}
	if res.Report != "" {
		fields = append(fields, zap.String("report", res.Report))
	}
	l.Info("Apply finished", fields...)
}

// logProgress returns a progress callback logging through l.
func logProgress(l *zap.Logger) reconcile.ProgressFunc {
	return func(ev reconcile.ProgressEvent) {
		l.Info("Progress",
			zap.Int("completed", ev.Completed),
			zap.Int("total", ev.Total),
			zap.String("current", ev.CurrentOperation),
			zap.Duration("eta", ev.EstimatedTimeRemaining),
		)
	}
}

// confirmDestructiveAction prompts the user for confirmation or uses --yes flag.
func confirmDestructiveAction() bool {
	if yesConfirm {
		fmt.Println("\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Print("\n⚠️  Type 'yes' to confirm changes to the bookmark tree: ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(response)
	return response == "yes"
}
