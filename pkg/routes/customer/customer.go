package customer

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/routes/validation"
)

// Store loads and inserts customers. A missing customer is a 404 httperror.
type Store interface {
	GetByID(ctx context.Context, id int64) (*models.Customer, error)
	Create(ctx context.Context, c *models.Customer) error
}

// LineageResponse lists the customers merged into a survivor
type LineageResponse struct {
	ID         int64   `json:"id"`
	MergedFrom []int64 `json:"merged_from"`
}

type Handler struct {
	store   Store
	lineage *graph.LineageService
	logger  ectologger.Logger
}

func NewHandler(store Store, lineage *graph.LineageService, logger ectologger.Logger) *Handler {
	return &Handler{store: store, lineage: lineage, logger: logger}
}

// Register registers customer routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.GET("/:id/lineage", h.Lineage)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	customer, err := h.store.GetByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, customer)
}

func (h *Handler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := validation.Bind[models.CreateCustomerRequest](c)
	if err != nil {
		return err
	}

	customer := req.Customer()
	if err := h.store.Create(ctx, customer); err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithField("customer_id", customer.ID).Info("Customer created")
	return c.JSON(http.StatusCreated, customer)
}

func (h *Handler) Lineage(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	ids, err := h.lineage.MergedInto(c.Request().Context(), id)
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadGateway, "failed to read merge lineage")
	}
	return c.JSON(http.StatusOK, LineageResponse{ID: id, MergedFrom: ids})
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, httperror.NewHTTPError(http.StatusBadRequest, "id must be a positive integer")
	}
	return id, nil
}
