// Package events publishes customer lifecycle notifications
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/appctx"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Publisher sends events to the broker
type Publisher interface {
	PublishCustomerEvent(ctx context.Context, event *kafka.CustomerEvent) error
}

// Emitter turns duplicate actions into customer events.
// A nil publisher disables emission.
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

func (e *Emitter) EmitArchived(ctx context.Context, ids []int64) error {
	return e.emit(ctx, EventTypeCustomerArchived, ids, 0, nil)
}

func (e *Emitter) EmitRestored(ctx context.Context, ids []int64) error {
	return e.emit(ctx, EventTypeCustomerRestored, ids, 0, nil)
}

func (e *Emitter) EmitDeleted(ctx context.Context, ids []int64) error {
	return e.emit(ctx, EventTypeCustomerDeleted, ids, 0, nil)
}

// EmitMerged publishes a merge that removed at least one customer
func (e *Emitter) EmitMerged(ctx context.Context, result *models.MergeResult) error {
	if !result.Merged() {
		return nil
	}
	return e.emit(ctx, EventTypeCustomerMerged, result.RemovedIDs, result.PrimaryID, MergedData{
		FilledFields:   result.FilledFields,
		NotesAppended:  result.NotesAppended,
		PrimaryMissing: result.PrimaryMissing,
	})
}

// EmitDuplicatesDetected publishes the groups found by a scan; an empty scan emits nothing
func (e *Emitter) EmitDuplicatesDetected(ctx context.Context, resp *models.FindDuplicatesResponse) error {
	if resp == nil || len(resp.Groups) == 0 {
		return nil
	}

	groups := ectolinq.Map(resp.Groups, func(g models.DuplicateGroup) DetectedGroup {
		return DetectedGroup{Key: g.Key, Kind: g.Kind, MemberIDs: g.MemberIDs, Score: g.Score}
	})

	ids := []int64{}
	for _, g := range resp.Groups {
		ids = append(ids, g.MemberIDs...)
	}

	return e.emit(ctx, EventTypeDuplicatesDetected, ids, 0, DetectedData{
		WithinDays:   resp.WithinDays,
		IncludeFuzzy: resp.IncludeFuzzy,
		Groups:       groups,
	})
}

func (e *Emitter) emit(ctx context.Context, eventType EventType, ids []int64, primaryID int64, data any) error {
	if e == nil || e.publisher == nil || (len(ids) == 0 && primaryID == 0) {
		return nil
	}

	ctx, span := tracing.StartSpan(ctx, "events.Emitter.emit")
	defer span.End()

	event := &kafka.CustomerEvent{
		EventID:     uuid.New().String(),
		EventType:   string(eventType),
		CustomerIDs: ids,
		PrimaryID:   primaryID,
		RequestID:   appctx.GetRequestID(ctx),
		TraceParent: tracing.GetTraceParent(ctx),
		Trigger:     appctx.GetTrigger(ctx),
	}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		event.Data = raw
	}

	if err := e.publisher.PublishCustomerEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to emit %s event", eventType)
		return err
	}
	return nil
}
