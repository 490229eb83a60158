package reconciliation

import (
	"context"
	"fmt"

	"bookmark-reconciler/core/reconcile"
	"bookmark-reconciler/core/reconcile/memtree"
	"bookmark-reconciler/feature/snapshot"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// TreeStore is the backend holding the live bookmark tree.
type TreeStore interface {
	reconcile.Mutator
	LoadTree(ctx context.Context) ([]reconcile.Node, error)
}

// Snapshots persists backups and reports. It is optional.
type Snapshots interface {
	SaveTree(ctx context.Context, label string, nodes []reconcile.Node) (string, error)
	SaveReport(ctx context.Context, report snapshot.Report) (string, error)
	List(ctx context.Context, kind snapshot.Kind) ([]snapshot.Object, error)
	Prune(ctx context.Context, kind snapshot.Kind, keep int) (int, error)
}

// ApplyResult describes one apply run.
type ApplyResult struct {
	DryRun bool                  `json:"dry_run"`
	Plan   *reconcile.DiffResult `json:"plan"`
	// Passes holds one result per executed pass; the first executes Plan.
	Passes []*reconcile.ExecutionResult `json:"passes"`
	// Converged reports whether the tree matched the target after the last pass.
	Converged bool `json:"converged"`
	// Remaining is the size of the plan that would still be needed.
	Remaining int    `json:"remaining"`
	Snapshot  string `json:"snapshot,omitempty"`
	Report    string `json:"report,omitempty"`
	// Tree is the resulting tree of a dry run.
	Tree []reconcile.Node `json:"tree,omitempty"`
}

// Service plans and applies target trees against the store.
type Service struct {
	store     TreeStore
	snapshots Snapshots
	engineCfg reconcile.Config
	cfg       Config
	logger    *zap.Logger
	opts      []reconcile.Option
	loads     singleflight.Group
}

// NewService creates a reconciliation service. snapshots may be nil.
func NewService(store TreeStore, snapshots Snapshots, engineCfg reconcile.Config, cfg Config, logger *zap.Logger, opts ...reconcile.Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxPasses < 1 {
		cfg.MaxPasses = 1
	}
	return &Service{
		store:     store,
		snapshots: snapshots,
		engineCfg: engineCfg,
		cfg:       cfg,
		logger:    logger,
		opts:      append([]reconcile.Option{reconcile.WithLogger(logger)}, opts...),
	}
}

func (s *Service) engine(m reconcile.Mutator) *reconcile.Engine {
	return reconcile.NewEngine(m, s.engineCfg, s.opts...)
}

// CurrentTree loads the stored tree. Concurrent callers share one load.
func (s *Service) CurrentTree(ctx context.Context) ([]reconcile.Node, error) {
	v, err, shared := s.loads.Do("tree", func() (any, error) {
		return s.store.LoadTree(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load current tree: %w", err)
	}
	if shared {
		s.logger.Debug("Shared tree load")
	}
	return v.([]reconcile.Node), nil
}

// Plan computes the diff from original to target. A nil original plans against
// the stored tree.
func (s *Service) Plan(ctx context.Context, original, target []reconcile.Node) (*reconcile.DiffResult, error) {
	if original == nil {
		current, err := s.CurrentTree(ctx)
		if err != nil {
			return nil, err
		}
		original = current
	}
	return s.engine(nil).ComputeDiff(original, target)
}

// Snapshots lists stored objects of a kind. It returns nil when snapshots are disabled.
func (s *Service) Snapshots(ctx context.Context, kind snapshot.Kind) ([]snapshot.Object, error) {
	if s.snapshots == nil {
		return nil, nil
	}
	return s.snapshots.List(ctx, kind)
}

// Apply transforms the stored tree into target. A dry run executes the plan
// against an in-memory copy and leaves the store untouched.
//
// Per-operation failures are reported in the result. An error is returned when
// planning fails, the backup cannot be written, or execution is interrupted; in
// the latter case the partial result is returned too.
func (s *Service) Apply(ctx context.Context, target []reconcile.Node, dryRun bool, progress reconcile.ProgressFunc) (*ApplyResult, error) {
	original, err := s.CurrentTree(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := s.engine(nil).ComputeDiff(original, target)
	if err != nil {
		return nil, err
	}

	res := &ApplyResult{DryRun: dryRun, Plan: plan, Passes: []*reconcile.ExecutionResult{}}
	if plan.IsEmpty() {
		res.Converged = true
		return res, nil
	}
	if plan.Strategy.Type == reconcile.StrategyRebuild {
		return nil, &reconcile.UnsupportedStrategyError{Strategy: plan.Strategy.Type, Reason: plan.Strategy.Reason}
	}

	var mutator TreeStore = s.store
	if dryRun {
		mutator = &memStore{Tree: memtree.New(original, "dry-run:")}
	} else if err := s.backup(ctx, original, res); err != nil {
		return nil, err
	}

	execErr := s.execute(ctx, mutator, plan, target, progress, res)

	if dryRun {
		res.Tree = mutator.(*memStore).Nodes()
	}
	s.report(ctx, res, execErr)
	return res, execErr
}

// execute runs plan and, while the tree still differs from target, further
// passes up to MaxPasses.
func (s *Service) execute(ctx context.Context, m TreeStore, plan *reconcile.DiffResult, target []reconcile.Node, progress reconcile.ProgressFunc, res *ApplyResult) error {
	engine := s.engine(m)
	for pass := 1; ; pass++ {
		result, err := engine.ExecuteDiff(ctx, plan, progress)
		if result != nil {
			res.Passes = append(res.Passes, result)
		}
		if err != nil {
			res.Remaining = len(plan.Operations)
			if result != nil {
				res.Remaining -= result.ExecutedOperations
			}
			return err
		}

		target = reconcile.BindCreated(target, result.CreatedIDs)
		current, err := m.LoadTree(ctx)
		if err != nil {
			return err
		}
		plan, err = engine.ComputeDiff(current, target)
		if err != nil {
			return fmt.Errorf("failed to verify pass %d: %w", pass, err)
		}
		res.Remaining = len(plan.Operations)
		if plan.IsEmpty() {
			res.Converged = true
			return nil
		}
		if pass >= s.cfg.MaxPasses {
			s.logger.Warn("Tree did not converge",
				zap.Int("passes", pass),
				zap.Int("remaining", len(plan.Operations)),
			)
			return nil
		}
		s.logger.Info("Running follow-up pass",
			zap.Int("pass", pass+1),
			zap.Int("operations", len(plan.Operations)),
		)
	}
}

func (s *Service) backup(ctx context.Context, original []reconcile.Node, res *ApplyResult) error {
	if !s.cfg.Backup || s.snapshots == nil {
		return nil
	}
	key, err := s.snapshots.SaveTree(ctx, "before-apply", original)
	if err != nil {
		return fmt.Errorf("failed to back up current tree: %w", err)
	}
	res.Snapshot = key
	s.logger.Info("Stored tree snapshot", zap.String("key", key))

	if removed, err := s.snapshots.Prune(ctx, snapshot.KindTree, s.cfg.KeepSnapshots); err != nil {
		s.logger.Warn("Failed to prune snapshots", zap.Error(err))
	} else if removed > 0 {
		s.logger.Debug("Pruned snapshots", zap.Int("removed", removed))
	}
	return nil
}

func (s *Service) report(ctx context.Context, res *ApplyResult, execErr error) {
	if !s.cfg.Reports || s.snapshots == nil {
		return
	}
	r := snapshot.Report{DryRun: res.DryRun, Snapshot: res.Snapshot, Plan: res.Plan}
	if n := len(res.Passes); n > 0 {
		r.Result = res.Passes[n-1]
	}
	if execErr != nil {
		r.Error = execErr.Error()
	}
	// The run context may already be cancelled; the report is still worth keeping.
	key, err := s.snapshots.SaveReport(context.WithoutCancel(ctx), r)
	if err != nil {
		s.logger.Warn("Failed to store execution report", zap.Error(err))
		return
	}
	res.Report = key
}

// memStore adapts a memtree to TreeStore for dry runs.
type memStore struct {
	*memtree.Tree
}

func (m *memStore) LoadTree(context.Context) ([]reconcile.Node, error) {
	return m.Nodes(), nil
}
