package fieldweight

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// ErrSettingsMissing is returned when the dedupe_settings row has not been seeded
var ErrSettingsMissing = errors.New("dedupe settings row is missing")

const settingsRowID = 1

// Repository handles field-weight configuration persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new field-weight repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// GetDedupeConfig reads the weights and the scan-wide settings
func (r *Repository) GetDedupeConfig(ctx context.Context) (*models.DedupeConfig, error) {
	ctx, span := tracing.StartSpan(ctx, "fieldweight.Repository.GetDedupeConfig")
	defer span.End()

	q := database.QuerierFromContext(ctx, r.db)

	sb := database.NewSelectBuilder()
	sb.Select("field_id", "enabled", "weight", "updated_at")
	sb.From("dedupe_field_weights")

	query, args := sb.Build()
	weights := []models.FieldWeight{}
	if err := q.SelectContext(ctx, &weights, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list field weights")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get dedupe configuration")
	}

	settings, err := r.getSettings(ctx, q)
	if err != nil {
		return nil, err
	}

	return &models.DedupeConfig{
		Fields:              orderFields(weights),
		ScoreThreshold:      settings.ScoreThreshold,
		IncludeFuzzyDefault: settings.IncludeFuzzyDefault,
		DefaultWithinDays:   settings.DefaultWithinDays,
	}, nil
}

func (r *Repository) getSettings(ctx context.Context, q database.Querier) (*models.DedupeSettings, error) {
	sb := database.NewSelectBuilder()
	sb.Select("score_threshold", "include_fuzzy_default", "default_within_days", "updated_at")
	sb.From("dedupe_settings")
	sb.Where(sb.Equal("id", settingsRowID))

	query, args := sb.Build()
	var settings models.DedupeSettings
	if err := q.GetContext(ctx, &settings, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSettingsMissing
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get dedupe settings")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get dedupe configuration")
	}
	return &settings, nil
}

// UpdateDedupeConfig upserts the given weights and the settings row in one transaction.
// Fields not named in the request keep their stored values.
func (r *Repository) UpdateDedupeConfig(ctx context.Context, req models.UpdateDedupeConfigRequest) (*models.DedupeConfig, error) {
	ctx, span := tracing.StartSpan(ctx, "fieldweight.Repository.UpdateDedupeConfig")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":          "UpdateDedupeConfig",
		"fields":          len(req.Fields),
		"score_threshold": req.ScoreThreshold,
	})

	if err := validateFields(req.Fields); err != nil {
		return nil, err
	}

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	if len(req.Fields) > 0 {
		query, args := buildUpsertWeights(req.Fields, now)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			log.WithError(err).Error("Failed to upsert field weights")
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update field weights")
		}
	}

	query, args := buildUpsertSettings(req, now)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to upsert dedupe settings")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update dedupe settings")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit")
	}

	log.Info("Updated dedupe configuration")
	return r.GetDedupeConfig(ctx)
}

func buildUpsertWeights(fields []models.FieldWeight, now time.Time) (string, []any) {
	ib := database.NewInsertBuilder()
	ib.InsertInto("dedupe_field_weights")
	ib.Cols("field_id", "enabled", "weight", "updated_at")
	for _, f := range fields {
		ib.Values(string(f.FieldID), f.Enabled, f.Weight, now)
	}

	query, args := ib.Build()
	query += " ON CONFLICT (field_id) DO UPDATE SET enabled = EXCLUDED.enabled, weight = EXCLUDED.weight, updated_at = EXCLUDED.updated_at"
	return query, args
}

func buildUpsertSettings(req models.UpdateDedupeConfigRequest, now time.Time) (string, []any) {
	ib := database.NewInsertBuilder()
	ib.InsertInto("dedupe_settings")
	ib.Cols("id", "score_threshold", "include_fuzzy_default", "default_within_days", "updated_at")
	ib.Values(settingsRowID, req.ScoreThreshold, req.IncludeFuzzyDefault, req.DefaultWithinDays, now)

	query, args := ib.Build()
	query += " ON CONFLICT (id) DO UPDATE SET score_threshold = EXCLUDED.score_threshold, include_fuzzy_default = EXCLUDED.include_fuzzy_default, default_within_days = EXCLUDED.default_within_days, updated_at = EXCLUDED.updated_at"
	return query, args
}

// validateFields rejects unknown and repeated field ids
func validateFields(fields []models.FieldWeight) error {
	seen := make(map[models.FieldID]bool, len(fields))
	for _, f := range fields {
		if !f.FieldID.IsValid() {
			return httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown field %q", f.FieldID))
		}
		if seen[f.FieldID] {
			return httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("field %q listed more than once", f.FieldID))
		}
		if f.Weight < 0 {
			return httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("field %q has a negative weight", f.FieldID))
		}
		seen[f.FieldID] = true
	}
	return nil
}

// orderFields sorts weights into display order; unknown ids go last by name
func orderFields(fields []models.FieldWeight) []models.FieldWeight {
	rank := make(map[models.FieldID]int, len(models.AllFieldIDs))
	for i, id := range models.AllFieldIDs {
		rank[id] = i
	}
	position := func(id models.FieldID) int {
		if r, ok := rank[id]; ok {
			return r
		}
		return len(rank)
	}

	out := append([]models.FieldWeight(nil), fields...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := position(out[i].FieldID), position(out[j].FieldID)
		if pi != pj {
			return pi < pj
		}
		return out[i].FieldID < out[j].FieldID
	})
	return out
}
