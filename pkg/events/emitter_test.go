package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/appctx"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
)

type recordingPublisher struct {
	events []*kafka.CustomerEvent
	err    error
}

func (p *recordingPublisher) PublishCustomerEvent(_ context.Context, event *kafka.CustomerEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func newTestEmitter(p Publisher) *Emitter {
	return NewEmitter(p, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
}

func TestEmitter_Actions(t *testing.T) {
	ctx := appctx.SetRequestID(context.Background(), "req-1")

	tests := []struct {
		name     string
		emit     func(e *Emitter) error
		expected EventType
	}{
		{name: "archived", emit: func(e *Emitter) error { return e.EmitArchived(ctx, []int64{1, 2}) }, expected: EventTypeCustomerArchived},
		{name: "restored", emit: func(e *Emitter) error { return e.EmitRestored(ctx, []int64{1, 2}) }, expected: EventTypeCustomerRestored},
		{name: "deleted", emit: func(e *Emitter) error { return e.EmitDeleted(ctx, []int64{1, 2}) }, expected: EventTypeCustomerDeleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &recordingPublisher{}
			require.NoError(t, tt.emit(newTestEmitter(p)))
			require.Len(t, p.events, 1)

			event := p.events[0]
			assert.Equal(t, string(tt.expected), event.EventType)
			assert.Equal(t, []int64{1, 2}, event.CustomerIDs)
			assert.Equal(t, "req-1", event.RequestID)
			assert.Equal(t, appctx.TriggerAPI, event.Trigger)
			assert.NotEmpty(t, event.EventID)
		})
	}
}

func TestEmitter_Merged(t *testing.T) {
	p := &recordingPublisher{}
	e := newTestEmitter(p)
	ctx := context.Background()

	require.NoError(t, e.EmitMerged(ctx, &models.MergeResult{PrimaryID: 5}))
	assert.Empty(t, p.events)

	require.NoError(t, e.EmitMerged(ctx, &models.MergeResult{
		PrimaryID:     5,
		RemovedIDs:    []int64{6},
		FilledFields:  []models.FilledField{{FieldID: models.FieldAddress, DonorID: 6}},
		NotesAppended: true,
	}))
	require.Len(t, p.events, 1)
	assert.Equal(t, int64(5), p.events[0].PrimaryID)

	var data MergedData
	require.NoError(t, json.Unmarshal(p.events[0].Data, &data))
	assert.True(t, data.NotesAppended)
	require.Len(t, data.FilledFields, 1)
	assert.Equal(t, models.FieldAddress, data.FilledFields[0].FieldID)
}

func TestEmitter_DuplicatesDetected(t *testing.T) {
	p := &recordingPublisher{}
	e := newTestEmitter(p)
	ctx := appctx.SetTrigger(context.Background(), appctx.TriggerMonitor)

	require.NoError(t, e.EmitDuplicatesDetected(ctx, &models.FindDuplicatesResponse{}))
	assert.Empty(t, p.events)

	require.NoError(t, e.EmitDuplicatesDetected(ctx, &models.FindDuplicatesResponse{
		WithinDays: 30,
		Groups: []models.DuplicateGroup{
			{Key: "01012345678", Kind: models.GroupKindExact, MemberIDs: []int64{101, 102}, Score: 100},
		},
	}))
	require.Len(t, p.events, 1)
	assert.Equal(t, appctx.TriggerMonitor, p.events[0].Trigger)
	assert.Equal(t, []int64{101, 102}, p.events[0].CustomerIDs)

	var data DetectedData
	require.NoError(t, json.Unmarshal(p.events[0].Data, &data))
	assert.Equal(t, 30, data.WithinDays)
	require.Len(t, data.Groups, 1)
	assert.Equal(t, "01012345678", data.Groups[0].Key)
}

func TestEmitter_Disabled(t *testing.T) {
	ctx := context.Background()

	var nilEmitter *Emitter
	assert.NoError(t, nilEmitter.EmitArchived(ctx, []int64{1}))
	assert.NoError(t, newTestEmitter(nil).EmitDeleted(ctx, []int64{1}))

	p := &recordingPublisher{}
	assert.NoError(t, newTestEmitter(p).EmitArchived(ctx, nil))
	assert.Empty(t, p.events)
}

func TestEmitter_PublishError(t *testing.T) {
	boom := errors.New("broker down")
	err := newTestEmitter(&recordingPublisher{err: boom}).EmitDeleted(context.Background(), []int64{3})
	assert.ErrorIs(t, err, boom)
}
