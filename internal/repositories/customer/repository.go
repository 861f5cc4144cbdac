package customer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var columns = []string{
	"id", "name", "phone", "assigned_at", "last_contact_at", "archived",
	"gender", "address", "job_title", "marital_status", "proof_number",
	"headquarters", "insurance_name", "price", "join_date", "notes",
	"created_at", "updated_at",
}

// Repository handles customer persistence in Postgres
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new customer repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// WithinTx runs fn in a transaction; repository calls made with the ctx it receives join it
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartSpan(ctx, "customer.Repository.WithinTx")
	defer span.End()

	return database.WithinTx(ctx, r.logger, r.db, fn)
}

// Create inserts a customer and fills in its generated id and timestamps
func (r *Repository) Create(ctx context.Context, c *models.Customer) error {
	ctx, span := tracing.StartSpan(ctx, "customer.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	ib := database.NewInsertBuilder()
	ib.InsertInto("customers")
	ib.Cols("name", "phone", "assigned_at", "last_contact_at", "archived",
		"gender", "address", "job_title", "marital_status", "proof_number",
		"headquarters", "insurance_name", "price", "join_date", "notes",
		"created_at", "updated_at")
	ib.Values(c.Name, c.Phone, c.AssignedAt, c.LastContactAt, c.Archived,
		c.Gender, c.Address, c.JobTitle, c.MaritalStatus, c.ProofNumber,
		c.Headquarters, c.InsuranceName, c.Price, c.JoinDate, c.Notes,
		c.CreatedAt, c.UpdatedAt)

	query, args := ib.Build()
	query += " RETURNING id"

	if err := database.QuerierFromContext(ctx, r.db).GetContext(ctx, &c.ID, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create customer")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create customer")
	}
	return nil
}

// GetByID returns a single customer, archived or not
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Customer, error) {
	ctx, span := tracing.StartSpan(ctx, "customer.Repository.GetByID")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("customers")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var c models.Customer
	if err := database.QuerierFromContext(ctx, r.db).GetContext(ctx, &c, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("customer %d not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get customer")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get customer")
	}
	return &c, nil
}

// GetForUpdate locks the customer row for the rest of the transaction.
// It returns nil without an error when the customer does not exist.
func (r *Repository) GetForUpdate(ctx context.Context, id int64) (*models.Customer, error) {
	ctx, span := tracing.StartSpan(ctx, "customer.Repository.GetForUpdate")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("customers")
	sb.Where(sb.Equal("id", id))
	sb.ForUpdate()

	query, args := sb.Build()
	var c models.Customer
	if err := database.QuerierFromContext(ctx, r.db).GetContext(ctx, &c, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("Failed to lock customer")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to lock customer")
	}
	return &c, nil
}

// ListActive returns every customer that is not archived
func (r *Repository) ListActive(ctx context.Context) ([]models.Customer, error) {
	ctx, span := tracing.StartSpan(ctx, "customer.Repository.ListActive")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("customers")
	sb.Where(sb.Equal("archived", false))
	sb.OrderBy("id")

	query, args := sb.Build()
	customers := []models.Customer{}
	if err := database.QuerierFromContext(ctx, r.db).SelectContext(ctx, &customers, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list active customers")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list customers")
	}
	return customers, nil
}

// GetByIDs returns the customers that exist among ids, archived ones included
func (r *Repository) GetByIDs(ctx context.Context, ids []int64) ([]models.Customer, error) {
	ctx, span := tracing.StartSpan(ctx, "customer.Repository.GetByIDs")
	defer span.End()

	customers := []models.Customer{}
	if len(ids) == 0 {
		return customers, nil
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("customers")
	sb.Where(sb.In("id", database.Int64sToAny(ids)...))
	sb.OrderBy("id")

	query, args := sb.Build()
	if err := database.QuerierFromContext(ctx, r.db).SelectContext(ctx, &customers, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("count", len(ids)).Error("Failed to get customers")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get customers")
	}
	return customers, nil
}

// Archive sets the archived flag; unknown ids are ignored
func (r *Repository) Archive(ctx context.Context, ids []int64) error {
	ctx, span := tracing.StartSpan(ctx, "customer.Repository.Archive")
	defer span.End()

	return r.setArchived(ctx, ids, true)
}

// Restore clears the archived flag; unknown ids are ignored
func (r *Repository) Restore(ctx context.Context, ids []int64) error {
	ctx, span := tracing.StartSpan(ctx, "customer.Repository.Restore")
	defer span.End()

	return r.setArchived(ctx, ids, false)
}

func (r *Repository) setArchived(ctx context.Context, ids []int64, archived bool) error {
	if len(ids) == 0 {
		return nil
	}

	ub := database.NewUpdateBuilder()
	ub.Update("customers")
	ub.Set(
		ub.Assign("archived", archived),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(ub.In("id", database.Int64sToAny(ids)...))

	query, args := ub.Build()
	res, err := database.QuerierFromContext(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("archived", archived).Error("Failed to update archived flag")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update customers")
	}

	affected, _ := res.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"archived": archived,
		"ids":      ids,
		"affected": affected,
	}).Debug("Updated archived flag")
	return nil
}

// Delete permanently removes customers; unknown ids are ignored
func (r *Repository) Delete(ctx context.Context, ids []int64) error {
	ctx, span := tracing.StartSpan(ctx, "customer.Repository.Delete")
	defer span.End()

	if len(ids) == 0 {
		return nil
	}

	db := database.NewDeleteBuilder()
	db.DeleteFrom("customers")
	db.Where(db.In("id", database.Int64sToAny(ids)...))

	query, args := db.Build()
	if _, err := database.QuerierFromContext(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("ids", ids).Error("Failed to delete customers")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete customers")
	}
	return nil
}

// Update writes every mutable attribute of the customer. A missing row is not an error.
func (r *Repository) Update(ctx context.Context, c *models.Customer) error {
	ctx, span := tracing.StartSpan(ctx, "customer.Repository.Update")
	defer span.End()

	c.UpdatedAt = time.Now().UTC()

	ub := database.NewUpdateBuilder()
	ub.Update("customers")
	ub.Set(
		ub.Assign("name", c.Name),
		ub.Assign("phone", c.Phone),
		ub.Assign("assigned_at", c.AssignedAt),
		ub.Assign("last_contact_at", c.LastContactAt),
		ub.Assign("archived", c.Archived),
		ub.Assign("gender", c.Gender),
		ub.Assign("address", c.Address),
		ub.Assign("job_title", c.JobTitle),
		ub.Assign("marital_status", c.MaritalStatus),
		ub.Assign("proof_number", c.ProofNumber),
		ub.Assign("headquarters", c.Headquarters),
		ub.Assign("insurance_name", c.InsuranceName),
		ub.Assign("price", c.Price),
		ub.Assign("join_date", c.JoinDate),
		ub.Assign("notes", c.Notes),
		ub.Assign("updated_at", c.UpdatedAt),
	)
	ub.Where(ub.Equal("id", c.ID))

	query, args := ub.Build()
	if _, err := database.QuerierFromContext(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", c.ID).Error("Failed to update customer")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update customer")
	}
	return nil
}
