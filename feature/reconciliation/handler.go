package reconciliation

import (
	"context"
	"errors"

	"bookmark-reconciler/core/logger"
	"bookmark-reconciler/core/reconcile"
	"bookmark-reconciler/feature/snapshot"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// DiffRequest is the body of POST /reconcile/diff.
type DiffRequest struct {
	// Original is optional; the stored tree is used when it is absent.
	Original []reconcile.Node `json:"original"`
	Target   []reconcile.Node `json:"target"`
}

// ApplyRequest is the body of POST /reconcile/apply.
type ApplyRequest struct {
	Target []reconcile.Node `json:"target"`
	DryRun bool             `json:"dry_run"`
}

// Handler handles HTTP requests for reconciliation.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the reconciliation routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Get("/tree", h.HandleGetTree)

	group := app.Group("/reconcile")
	group.Post("/diff", h.HandleDiff)
	group.Post("/apply", h.HandleApply)
	group.Get("/snapshots", h.HandleListSnapshots)
}

// HandleGetTree returns the stored bookmark tree.
func (h *Handler) HandleGetTree(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	tree, err := h.service.CurrentTree(c.UserContext())
	if err != nil {
		l.Error("Tree load failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(tree)
}

// HandleDiff computes a plan without applying it.
func (h *Handler) HandleDiff(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req DiffRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body: " + err.Error()})
	}

	plan, err := h.service.Plan(c.UserContext(), req.Original, req.Target)
	if err != nil {
		return h.fail(c, l, "Diff failed", err)
	}
	return c.JSON(plan)
}

// HandleApply applies a target tree to the store.
func (h *Handler) HandleApply(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req ApplyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body: " + err.Error()})
	}

	l.Info("Apply requested", zap.Bool("dry_run", req.DryRun))
	result, err := h.service.Apply(c.UserContext(), req.Target, req.DryRun, nil)
	if err != nil {
		if result != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			l.Warn("Apply interrupted", zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error(), "result": result})
		}
		return h.fail(c, l, "Apply failed", err)
	}
	return c.JSON(result)
}

// HandleListSnapshots lists stored tree snapshots, or reports with ?kind=reports.
func (h *Handler) HandleListSnapshots(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	kind := snapshot.Kind(c.Query("kind", string(snapshot.KindTree)))
	if kind != snapshot.KindTree && kind != snapshot.KindReport {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "kind must be trees or reports"})
	}

	objects, err := h.service.Snapshots(c.UserContext(), kind)
	if err != nil {
		l.Error("Snapshot listing failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if objects == nil {
		objects = []snapshot.Object{}
	}
	return c.JSON(objects)
}

// fail maps planning errors to status codes.
func (h *Handler) fail(c *fiber.Ctx, l *zap.Logger, msg string, err error) error {
	var validation *reconcile.ValidationError
	var unsupported *reconcile.UnsupportedStrategyError
	switch {
	case errors.As(err, &validation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &unsupported):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}
	l.Error(msg, zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
