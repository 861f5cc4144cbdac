package dedupeconfig

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/routes/validation"
)

// Store reads and replaces the field-weight configuration
type Store interface {
	GetDedupeConfig(ctx context.Context) (*models.DedupeConfig, error)
	UpdateDedupeConfig(ctx context.Context, req models.UpdateDedupeConfigRequest) (*models.DedupeConfig, error)
}

type Handler struct {
	store  Store
	logger ectologger.Logger
}

func NewHandler(store Store, logger ectologger.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Register registers dedupe configuration routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.Get)
	g.PUT("", h.Update)
}

func (h *Handler) Get(c echo.Context) error {
	cfg, err := h.store.GetDedupeConfig(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *Handler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := validation.Bind[models.UpdateDedupeConfigRequest](c)
	if err != nil {
		return err
	}

	cfg, err := h.store.UpdateDedupeConfig(ctx, req)
	if err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"fields":          len(req.Fields),
		"score_threshold": req.ScoreThreshold,
	}).Info("Dedupe configuration updated")
	return c.JSON(http.StatusOK, cfg)
}
