// Package merging collapses a duplicate group into its primary customer.
package merging

import (
	"context"
	"errors"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// ErrPrimaryNotFound is returned by a preview whose primary customer no longer exists
var ErrPrimaryNotFound = errors.New("primary customer not found")

// Store is the slice of the customer store a merge needs
type Store interface {
	// GetByIDs returns the customers that exist, archived ones included. Unknown ids are skipped.
	GetByIDs(ctx context.Context, ids []int64) ([]models.Customer, error)
	Update(ctx context.Context, customer *models.Customer) error
	Delete(ctx context.Context, ids []int64) error
}

// Transactor is implemented by stores that can run several writes atomically
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RowLocker is implemented by stores that can lock a customer for the rest of a transaction
type RowLocker interface {
	GetForUpdate(ctx context.Context, id int64) (*models.Customer, error)
}

// Engine merges duplicates into a primary customer through the store
type Engine struct {
	logger      ectologger.Logger
	store       Store
	fieldMerger *FieldMerger
}

// NewEngine creates a new merge engine
func NewEngine(logger ectologger.Logger, store Store) *Engine {
	return &Engine{
		logger:      logger,
		store:       store,
		fieldMerger: NewFieldMerger(),
	}
}

// MergeCustomers folds the duplicates into the primary and deletes them.
//
// Behavior:
//   - If the primary is gone the listed duplicates are deleted and nothing else happens
//   - If none of the duplicates still exist the call is a no-op
//   - Otherwise the primary's empty attributes are filled, notes are appended,
//     the primary is updated and every listed duplicate is deleted
//
// The primary id is never deleted even if it appears among the duplicates.
func (e *Engine) MergeCustomers(ctx context.Context, primaryID int64, duplicateIDs []int64) (*models.MergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.MergeCustomers")
	defer span.End()

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"primary_id":    primaryID,
		"duplicate_ids": duplicateIDs,
	})

	ids := duplicatesExcluding(duplicateIDs, primaryID)
	result := &models.MergeResult{
		PrimaryID:    primaryID,
		RemovedIDs:   []int64{},
		FilledFields: []models.FilledField{},
	}
	if len(ids) == 0 {
		log.Debug("No duplicates to merge")
		return result, nil
	}

	err := e.withinTx(ctx, func(ctx context.Context) error {
		primary, err := e.fetchPrimary(ctx, primaryID)
		if err != nil {
			return err
		}

		if primary == nil {
			log.Info("Primary customer no longer exists; removing duplicates only")
			if err := e.store.Delete(ctx, ids); err != nil {
				return err
			}
			result.PrimaryMissing = true
			result.RemovedIDs = ids
			return nil
		}

		duplicates, err := e.store.GetByIDs(ctx, ids)
		if err != nil {
			return err
		}
		if len(duplicates) == 0 {
			log.Debug("No surviving duplicates; nothing to merge")
			result.Primary = primary
			return nil
		}

		resolution := e.fieldMerger.Resolve(*primary, duplicates)
		if err := e.store.Update(ctx, &resolution.Primary); err != nil {
			return err
		}
		if err := e.store.Delete(ctx, ids); err != nil {
			return err
		}

		result.RemovedIDs = ids
		result.FilledFields = resolution.FilledFields
		result.NotesAppended = resolution.NotesAppended
		result.Primary = &resolution.Primary
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to merge customers")
		return nil, err
	}

	log.WithFields(map[string]any{
		"removed":         len(result.RemovedIDs),
		"filled_fields":   len(result.FilledFields),
		"notes_appended":  result.NotesAppended,
		"primary_missing": result.PrimaryMissing,
	}).Info("Merged customers")

	return result, nil
}

// ResolveMerge computes the merged primary without writing anything
func (e *Engine) ResolveMerge(ctx context.Context, primaryID int64, duplicateIDs []int64) (*models.MergePreview, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.ResolveMerge")
	defer span.End()

	ids := duplicatesExcluding(duplicateIDs, primaryID)

	found, err := e.store.GetByIDs(ctx, []int64{primaryID})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrPrimaryNotFound
	}

	duplicates := []models.Customer{}
	if len(ids) > 0 {
		duplicates, err = e.store.GetByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	resolution := e.fieldMerger.Resolve(found[0], duplicates)
	return &models.MergePreview{
		Primary:       resolution.Primary,
		FilledFields:  resolution.FilledFields,
		NotesAppended: resolution.NotesAppended,
		DuplicateIDs:  models.CustomerIDs(duplicates),
	}, nil
}

func (e *Engine) withinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := e.store.(Transactor); ok {
		return tx.WithinTx(ctx, fn)
	}
	return fn(ctx)
}

func (e *Engine) fetchPrimary(ctx context.Context, id int64) (*models.Customer, error) {
	if locker, ok := e.store.(RowLocker); ok {
		return locker.GetForUpdate(ctx, id)
	}

	found, err := e.store.GetByIDs(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

// duplicatesExcluding drops the primary id and repeated ids, keeping first-seen order
func duplicatesExcluding(ids []int64, primaryID int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == primaryID || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
