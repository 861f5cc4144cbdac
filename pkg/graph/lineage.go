package graph

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	mergeCypher = `
		MERGE (p:Customer {id: $primary_id})
		SET p.updated_at = $at
		WITH p
		UNWIND $duplicates AS dup
		MERGE (d:Customer {id: dup.id})
		SET d.removed_at = $at, d.removed_reason = 'merged'
		MERGE (d)-[r:MERGED_INTO]->(p)
		SET r.merged_at = $at, r.filled_fields = dup.filled_fields
	`

	removedCypher = `
		UNWIND $ids AS id
		MERGE (c:Customer {id: id})
		SET c.removed_at = $at, c.removed_reason = $reason
	`

	mergedIntoCypher = `
		MATCH (d:Customer)-[:MERGED_INTO*1..]->(p:Customer {id: $id})
		RETURN DISTINCT d.id AS id
		ORDER BY id
	`
)

// Removal reasons stored on customer nodes
const (
	ReasonDeleted        = "deleted"
	ReasonPrimaryMissing = "primary_missing"
)

// Executor runs managed transactions
type Executor interface {
	ExecuteWrite(ctx context.Context, work neo4j.ManagedTransactionWork) (any, error)
	ExecuteRead(ctx context.Context, work neo4j.ManagedTransactionWork) (any, error)
}

// LineageService keeps (:Customer)-[:MERGED_INTO]->(:Customer) edges for every merge.
// A nil executor turns every call into a no-op.
type LineageService struct {
	client Executor
	logger ectologger.Logger
	now    func() time.Time
}

// NewLineageService creates a new lineage service
func NewLineageService(client Executor, logger ectologger.Logger) *LineageService {
	return &LineageService{
		client: client,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *LineageService) enabled() bool {
	return s != nil && s.client != nil
}

// RecordMerge links every removed duplicate to the surviving primary
func (s *LineageService) RecordMerge(ctx context.Context, result *models.MergeResult) error {
	if !s.enabled() || !result.Merged() {
		return nil
	}
	if result.PrimaryMissing {
		return s.RecordRemoved(ctx, result.RemovedIDs, ReasonPrimaryMissing)
	}

	ctx, span := tracing.StartSpan(ctx, "graph.LineageService.RecordMerge")
	defer span.End()

	params := mergeParams(result, s.now())
	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, mergeCypher, params)
		return nil, err
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("primary_id", result.PrimaryID).Error("Failed to record merge lineage")
		return err
	}
	return nil
}

// RecordRemoved marks customers as removed without linking them to anyone
func (s *LineageService) RecordRemoved(ctx context.Context, ids []int64, reason string) error {
	if !s.enabled() || len(ids) == 0 {
		return nil
	}

	ctx, span := tracing.StartSpan(ctx, "graph.LineageService.RecordRemoved")
	defer span.End()

	params := map[string]any{
		"ids":    ids,
		"at":     s.now().Format(time.RFC3339),
		"reason": reason,
	}
	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, removedCypher, params)
		return nil, err
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("reason", reason).Error("Failed to record removed customers")
		return err
	}
	return nil
}

// MergedInto returns every customer folded into id, directly or through earlier merges
func (s *LineageService) MergedInto(ctx context.Context, id int64) ([]int64, error) {
	ids := []int64{}
	if !s.enabled() {
		return ids, nil
	}

	ctx, span := tracing.StartSpan(ctx, "graph.LineageService.MergedInto")
	defer span.End()

	res, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, mergedIntoCypher, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		out := []int64{}
		for result.Next(ctx) {
			if v, ok := result.Record().Get("id"); ok {
				if n, ok := v.(int64); ok {
					out = append(out, n)
				}
			}
		}
		return out, result.Err()
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("Failed to read merge lineage")
		return nil, err
	}
	if found, ok := res.([]int64); ok {
		ids = found
	}
	return ids, nil
}

// mergeParams groups the filled fields by the duplicate that donated them
func mergeParams(result *models.MergeResult, at time.Time) map[string]any {
	donated := make(map[int64][]string, len(result.RemovedIDs))
	for _, f := range result.FilledFields {
		donated[f.DonorID] = append(donated[f.DonorID], string(f.FieldID))
	}

	duplicates := make([]map[string]any, 0, len(result.RemovedIDs))
	for _, id := range result.RemovedIDs {
		fields := donated[id]
		if fields == nil {
			fields = []string{}
		}
		duplicates = append(duplicates, map[string]any{
			"id":            id,
			"filled_fields": fields,
		})
	}

	return map[string]any{
		"primary_id": result.PrimaryID,
		"at":         at.Format(time.RFC3339),
		"duplicates": duplicates,
	}
}
