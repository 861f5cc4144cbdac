// Package duplicates is the entry point for finding and resolving duplicate customers.
// Every call reads the current configuration and customer snapshot; nothing is cached.
package duplicates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/appctx"
	"github.com/Ramsey-B/clover/pkg/grouping"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// ErrConfigUnavailable is returned when the dedupe configuration is missing or unreachable
var ErrConfigUnavailable = errors.New("dedupe configuration unavailable")

// CustomerStore is the customer storage the service works against.
// Archive, Restore, Delete and Update ignore unknown ids.
type CustomerStore interface {
	// ListActive returns every customer that is not archived
	ListActive(ctx context.Context) ([]models.Customer, error)
	// GetByIDs returns the customers that exist, archived ones included
	GetByIDs(ctx context.Context, ids []int64) ([]models.Customer, error)
	Archive(ctx context.Context, ids []int64) error
	Restore(ctx context.Context, ids []int64) error
	Delete(ctx context.Context, ids []int64) error
	Update(ctx context.Context, customer *models.Customer) error
}

// Transactor is implemented by stores that can run a merge's writes atomically
type Transactor = merging.Transactor

// ConfigProvider supplies the field-weight configuration
type ConfigProvider interface {
	GetDedupeConfig(ctx context.Context) (*models.DedupeConfig, error)
}

// Service exposes duplicate detection and the archive, delete and merge actions
type Service struct {
	logger  ectologger.Logger
	store   CustomerStore
	config  ConfigProvider
	grouper *grouping.Engine
	scorer  *matching.Scorer
	merger  *merging.Engine
}

// NewService creates a new duplicate service
func NewService(logger ectologger.Logger, store CustomerStore, config ConfigProvider, opts ...grouping.Option) *Service {
	scorer := matching.NewScorer()
	return &Service{
		logger:  logger,
		store:   store,
		config:  config,
		grouper: grouping.NewEngine(logger, scorer, opts...),
		scorer:  scorer,
		merger:  merging.NewEngine(logger, store),
	}
}

// FindDuplicates scans the live customers assigned within the last withinDays days
func (s *Service) FindDuplicates(ctx context.Context, withinDays int, includeFuzzy bool) ([]models.DuplicateGroup, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicates.Service.FindDuplicates")
	defer span.End()

	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	return s.scan(ctx, cfg, grouping.Params{WithinDays: withinDays, IncludeFuzzy: includeFuzzy})
}

// FindDuplicatesWithDefaults scans like FindDuplicates; nil arguments fall back to the configuration
func (s *Service) FindDuplicatesWithDefaults(ctx context.Context, withinDays *int, includeFuzzy *bool) (*models.FindDuplicatesResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicates.Service.FindDuplicatesWithDefaults")
	defer span.End()

	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	params := grouping.Params{
		WithinDays:   models.DefaultWithinDays,
		IncludeFuzzy: cfg.IncludeFuzzyDefault,
	}
	if cfg.DefaultWithinDays > 0 {
		params.WithinDays = cfg.DefaultWithinDays
	}
	if withinDays != nil {
		params.WithinDays = *withinDays
	}
	if includeFuzzy != nil {
		params.IncludeFuzzy = *includeFuzzy
	}

	groups, err := s.scan(ctx, cfg, params)
	if err != nil {
		return nil, err
	}

	return &models.FindDuplicatesResponse{
		Groups:       groups,
		WithinDays:   models.ClampWithinDays(params.WithinDays),
		IncludeFuzzy: params.IncludeFuzzy,
		TotalCount:   len(groups),
	}, nil
}

// ExplainGroup scores the given customers as one group and reports which fields matched.
// Customers are ordered most recently assigned first, like a detected group.
func (s *Service) ExplainGroup(ctx context.Context, ids []int64) (*matching.ScoreBreakdown, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicates.Service.ExplainGroup")
	defer span.End()

	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	customers, err := s.store.GetByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, err
	}
	group := s.grouper.Order(customers)

	breakdown := s.scorer.Breakdown(group, cfg)
	return &breakdown, nil
}

// Archive hides every member of the group from future scans. It can be undone with Restore.
func (s *Service) Archive(ctx context.Context, group models.DuplicateGroup) ([]int64, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicates.Service.Archive")
	defer span.End()

	return s.apply(ctx, "archive", group.MemberIDs, s.store.Archive)
}

// Restore clears the archived flag on the given customers
func (s *Service) Restore(ctx context.Context, ids []int64) ([]int64, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicates.Service.Restore")
	defer span.End()

	return s.apply(ctx, "restore", ids, s.store.Restore)
}

// Delete permanently removes every member of the group
func (s *Service) Delete(ctx context.Context, group models.DuplicateGroup) ([]int64, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicates.Service.Delete")
	defer span.End()

	return s.apply(ctx, "delete", group.MemberIDs, s.store.Delete)
}

// Merge folds the duplicates into the primary and removes them
func (s *Service) Merge(ctx context.Context, primaryID int64, duplicateIDs []int64) (*models.MergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicates.Service.Merge")
	defer span.End()

	result, err := s.merger.MergeCustomers(ctx, primaryID, duplicateIDs)
	if err != nil {
		metrics.RecordAction("merge", "error", 0)
		return nil, err
	}
	metrics.RecordAction("merge", "success", len(result.RemovedIDs))
	return result, nil
}

// PreviewMerge returns what Merge would write without changing anything
func (s *Service) PreviewMerge(ctx context.Context, primaryID int64, duplicateIDs []int64) (*models.MergePreview, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicates.Service.PreviewMerge")
	defer span.End()

	return s.merger.ResolveMerge(ctx, primaryID, duplicateIDs)
}

func (s *Service) scan(ctx context.Context, cfg *models.DedupeConfig, params grouping.Params) ([]models.DuplicateGroup, error) {
	trigger := appctx.GetTrigger(ctx)
	start := time.Now()

	customers, err := s.store.ListActive(ctx)
	if err != nil {
		metrics.RecordScan(trigger, "error", time.Since(start).Seconds())
		return nil, err
	}

	groups := s.grouper.Group(ctx, customers, params, cfg)
	if groups == nil {
		groups = []models.DuplicateGroup{}
	}

	metrics.RecordScan(trigger, "success", time.Since(start).Seconds())
	for _, g := range groups {
		metrics.RecordGroupFound(string(g.Kind))
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"trigger":       trigger,
		"within_days":   models.ClampWithinDays(params.WithinDays),
		"include_fuzzy": params.IncludeFuzzy,
		"groups":        len(groups),
	}).Info("Duplicate scan finished")

	return groups, nil
}

func (s *Service) loadConfig(ctx context.Context) (*models.DedupeConfig, error) {
	if s.config == nil {
		return nil, ErrConfigUnavailable
	}
	cfg, err := s.config.GetDedupeConfig(ctx)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to load dedupe configuration")
		return nil, fmt.Errorf("%w: %w", ErrConfigUnavailable, err)
	}
	if cfg == nil {
		return nil, ErrConfigUnavailable
	}
	return cfg, nil
}

func (s *Service) apply(ctx context.Context, action string, ids []int64, fn func(ctx context.Context, ids []int64) error) ([]int64, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return ids, nil
	}

	if err := fn(ctx, ids); err != nil {
		metrics.RecordAction(action, "error", 0)
		s.logger.WithContext(ctx).WithError(err).WithField("action", action).Error("Customer action failed")
		return nil, err
	}

	metrics.RecordAction(action, "success", len(ids))
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"action": action,
		"ids":    ids,
	}).Info("Customer action applied")
	return ids, nil
}

// uniqueIDs drops repeated and non-positive ids, keeping first-seen order
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
