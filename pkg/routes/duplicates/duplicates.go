package duplicates

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/duplicates"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/routes/validation"
)

// Handler serves the duplicate review endpoints. Emitter and lineage may be nil.
type Handler struct {
	service *duplicates.Service
	emitter *events.Emitter
	lineage *graph.LineageService
	logger  ectologger.Logger
}

func NewHandler(service *duplicates.Service, emitter *events.Emitter, lineage *graph.LineageService, logger ectologger.Logger) *Handler {
	return &Handler{
		service: service,
		emitter: emitter,
		lineage: lineage,
		logger:  logger,
	}
}

// Register registers duplicate routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.FindDuplicates)
	g.POST("/archive", h.Archive)
	g.POST("/restore", h.Restore)
	g.POST("/delete", h.Delete)
	g.POST("/merge", h.Merge)
	g.POST("/merge/preview", h.PreviewMerge)
	g.POST("/explain", h.Explain)
}

// FindDuplicates scans for duplicate groups; omitted query parameters use the configured defaults
func (h *Handler) FindDuplicates(c echo.Context) error {
	ctx := c.Request().Context()

	var withinDays *int
	if raw := c.QueryParam("within_days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "within_days must be an integer")
		}
		withinDays = &v
	}

	var includeFuzzy *bool
	if raw := c.QueryParam("include_fuzzy"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "include_fuzzy must be a boolean")
		}
		includeFuzzy = &v
	}

	resp, err := h.service.FindDuplicatesWithDefaults(ctx, withinDays, includeFuzzy)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Archive hides a group from future scans
func (h *Handler) Archive(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := validation.Bind[models.GroupActionRequest](c)
	if err != nil {
		return err
	}

	ids, err := h.service.Archive(ctx, models.DuplicateGroup{MemberIDs: req.MemberIDs})
	if err != nil {
		return toHTTPError(err)
	}
	if err := h.emitter.EmitArchived(ctx, ids); err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("Archive applied but event was not published")
	}
	return c.JSON(http.StatusOK, models.GroupActionResponse{Action: "archive", IDs: ids})
}

// Restore un-archives customers
func (h *Handler) Restore(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := validation.Bind[models.RestoreRequest](c)
	if err != nil {
		return err
	}

	ids, err := h.service.Restore(ctx, req.IDs)
	if err != nil {
		return toHTTPError(err)
	}
	if err := h.emitter.EmitRestored(ctx, ids); err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("Restore applied but event was not published")
	}
	return c.JSON(http.StatusOK, models.GroupActionResponse{Action: "restore", IDs: ids})
}

// Delete permanently removes a group
func (h *Handler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := validation.Bind[models.GroupActionRequest](c)
	if err != nil {
		return err
	}

	ids, err := h.service.Delete(ctx, models.DuplicateGroup{MemberIDs: req.MemberIDs})
	if err != nil {
		return toHTTPError(err)
	}
	if err := h.emitter.EmitDeleted(ctx, ids); err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("Delete applied but event was not published")
	}
	if err := h.lineage.RecordRemoved(ctx, ids, graph.ReasonDeleted); err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("Delete applied but lineage was not recorded")
	}
	return c.JSON(http.StatusOK, models.GroupActionResponse{Action: "delete", IDs: ids})
}

// Merge folds duplicates into the primary customer
func (h *Handler) Merge(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := validation.Bind[models.MergeRequest](c)
	if err != nil {
		return err
	}

	result, err := h.service.Merge(ctx, req.PrimaryID, req.DuplicateIDs)
	if err != nil {
		return toHTTPError(err)
	}
	if err := h.emitter.EmitMerged(ctx, result); err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("Merge applied but event was not published")
	}
	if err := h.lineage.RecordMerge(ctx, result); err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("Merge applied but lineage was not recorded")
	}
	return c.JSON(http.StatusOK, result)
}

// PreviewMerge returns the merged primary without writing it
func (h *Handler) PreviewMerge(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := validation.Bind[models.MergeRequest](c)
	if err != nil {
		return err
	}

	preview, err := h.service.PreviewMerge(ctx, req.PrimaryID, req.DuplicateIDs)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, preview)
}

// Explain scores the given customers as one group field by field
func (h *Handler) Explain(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := validation.Bind[models.GroupActionRequest](c)
	if err != nil {
		return err
	}

	breakdown, err := h.service.ExplainGroup(ctx, req.MemberIDs)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, breakdown)
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, duplicates.ErrConfigUnavailable):
		return httperror.NewHTTPError(http.StatusServiceUnavailable, "dedupe configuration unavailable")
	case errors.Is(err, merging.ErrPrimaryNotFound):
		return httperror.NewHTTPError(http.StatusNotFound, "primary customer not found")
	default:
		return err
	}
}
