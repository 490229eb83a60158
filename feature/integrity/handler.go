package integrity

import (
	"errors"

	"bookmark-reconciler/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for integrity checks.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the integrity routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/integrity")
	group.Get("/", h.HandleIntegrityCheck)
	group.Get("/tree", h.HandleTreeCheck)
	group.Get("/storage", h.HandleStorageCheck)
}

// HandleIntegrityCheck runs all checks without fixing anything.
func (h *Handler) HandleIntegrityCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	l.Info("Triggering all integrity checks")

	ctx := c.UserContext()
	report := make(map[string]any)

	if tree, err := h.service.CheckTree(ctx); err != nil {
		report["tree"] = statusOf(err)
	} else {
		report["tree"] = fiber.Map{"status": healthStatus(tree.Healthy()), "report": tree}
	}

	if st, err := h.service.CheckStorage(ctx); err != nil {
		report["storage"] = statusOf(err)
	} else {
		report["storage"] = fiber.Map{"status": healthStatus(st.Exists), "report": st}
	}

	return c.JSON(report)
}

// HandleTreeCheck checks and optionally fixes the bookmark table.
func (h *Handler) HandleTreeCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	fix := c.Query("fix") == "true"

	report, err := h.service.CheckTree(c.UserContext())
	if err != nil {
		return h.fail(c, l, "Tree check failed", err)
	}

	if len(report.PositionGaps) > 0 {
		l.Warn("Position gaps detected", zap.Strings("parents", report.PositionGaps))
		if fix {
			if err := h.service.FixTree(c.UserContext(), report); err != nil {
				return h.fail(c, l, "Tree fix failed", err)
			}
			l.Info("Renumbered positions", zap.Int("parents", len(report.PositionGaps)))
			return c.JSON(fiber.Map{"status": "fixed", "fixed": report.PositionGaps, "report": report})
		}
	}

	return c.JSON(fiber.Map{"status": healthStatus(report.Healthy()), "report": report})
}

// HandleStorageCheck checks and optionally creates the snapshot bucket.
func (h *Handler) HandleStorageCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	fix := c.Query("fix") == "true"

	report, err := h.service.CheckStorage(c.UserContext())
	if err != nil {
		return h.fail(c, l, "Storage check failed", err)
	}

	if !report.Exists {
		l.Warn("Snapshot bucket missing", zap.String("bucket", report.Bucket))
		if fix {
			if err := h.service.FixStorage(c.UserContext()); err != nil {
				return h.fail(c, l, "Storage fix failed", err)
			}
			return c.JSON(fiber.Map{"status": "fixed", "bucket": report.Bucket})
		}
	}

	return c.JSON(fiber.Map{"status": healthStatus(report.Exists), "report": report})
}

func (h *Handler) fail(c *fiber.Ctx, l *zap.Logger, msg string, err error) error {
	if errors.Is(err, ErrUnavailable) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	l.Error(msg, zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

func statusOf(err error) fiber.Map {
	if errors.Is(err, ErrUnavailable) {
		return fiber.Map{"status": "disabled"}
	}
	return fiber.Map{"status": "error", "error": err.Error()}
}

func healthStatus(ok bool) string {
	if ok {
		return "ok"
	}
	return "issues"
}
