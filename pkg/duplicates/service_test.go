package duplicates_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/internal/repositories/customer"
	"github.com/Ramsey-B/clover/internal/repositories/fieldweight"
	"github.com/Ramsey-B/clover/pkg/duplicates"
	"github.com/Ramsey-B/clover/pkg/grouping"
	"github.com/Ramsey-B/clover/pkg/models"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) *time.Time {
	t := fixedNow.AddDate(0, 0, -n)
	return &t
}

type failingConfig struct{ err error }

func (f failingConfig) GetDedupeConfig(context.Context) (*models.DedupeConfig, error) {
	return nil, f.err
}

type nilConfig struct{}

func (nilConfig) GetDedupeConfig(context.Context) (*models.DedupeConfig, error) {
	return nil, nil
}

func addressOnly(threshold int) models.DedupeConfig {
	return models.DedupeConfig{
		Fields: []models.FieldWeight{
			{FieldID: models.FieldAddress, Enabled: true, Weight: 1},
		},
		ScoreThreshold:    threshold,
		DefaultWithinDays: 30,
	}
}

func seedCustomers() []models.Customer {
	return []models.Customer{
		{ID: 101, Name: "Kim", Phone: "010-1234-5678", Address: "Seoul", AssignedAt: daysAgo(1)},
		{ID: 102, Name: "Kim M", Phone: "+82 (10) 1234 5678", Address: "Seoul", AssignedAt: daysAgo(3)},
		{ID: 103, Name: "Lee", Phone: "010-9999-0000", Address: "Busan", AssignedAt: daysAgo(2)},
		{ID: 104, Name: "Lee J", Phone: "01099990000", Address: "Busan", AssignedAt: daysAgo(45)},
	}
}

func newService(store duplicates.CustomerStore, cfg duplicates.ConfigProvider) *duplicates.Service {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return duplicates.NewService(logger, store, cfg, grouping.WithClock(func() time.Time { return fixedNow }))
}

func TestService_FindDuplicates(t *testing.T) {
	ctx := context.Background()
	store := customer.NewMemory(seedCustomers()...)
	svc := newService(store, fieldweight.NewStatic(addressOnly(0)))

	t.Run("groups within the window", func(t *testing.T) {
		groups, err := svc.FindDuplicates(ctx, 30, false)
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, "01012345678", groups[0].Key)
		assert.Equal(t, []int64{101, 102}, groups[0].MemberIDs)
		assert.Equal(t, 100.0, groups[0].Score)
	})

	t.Run("wider window picks up older customers", func(t *testing.T) {
		groups, err := svc.FindDuplicates(ctx, 60, false)
		require.NoError(t, err)
		require.Len(t, groups, 2)
	})

	t.Run("no customers gives an empty list", func(t *testing.T) {
		empty := newService(customer.NewMemory(), fieldweight.NewStatic(addressOnly(0)))
		groups, err := empty.FindDuplicates(ctx, 30, true)
		require.NoError(t, err)
		assert.NotNil(t, groups)
		assert.Empty(t, groups)
	})
}

func TestService_FindDuplicatesWithDefaults(t *testing.T) {
	ctx := context.Background()
	store := customer.NewMemory(seedCustomers()...)
	cfg := addressOnly(0)
	cfg.DefaultWithinDays = 60
	svc := newService(store, fieldweight.NewStatic(cfg))

	resp, err := svc.FindDuplicatesWithDefaults(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 60, resp.WithinDays)
	assert.False(t, resp.IncludeFuzzy)
	assert.Equal(t, 2, resp.TotalCount)

	days := 400
	fuzzy := true
	resp, err = svc.FindDuplicatesWithDefaults(ctx, &days, &fuzzy)
	require.NoError(t, err)
	assert.Equal(t, 365, resp.WithinDays)
	assert.True(t, resp.IncludeFuzzy)
}

func TestService_ConfigUnavailable(t *testing.T) {
	ctx := context.Background()
	store := customer.NewMemory(seedCustomers()...)
	boom := errors.New("connection refused")

	tests := []struct {
		name string
		cfg  duplicates.ConfigProvider
	}{
		{name: "provider error", cfg: failingConfig{err: boom}},
		{name: "nil config", cfg: nilConfig{}},
		{name: "no provider", cfg: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(store, tt.cfg)

			_, err := svc.FindDuplicates(ctx, 30, false)
			require.Error(t, err)
			assert.ErrorIs(t, err, duplicates.ErrConfigUnavailable)

			_, err = svc.ExplainGroup(ctx, []int64{101, 102})
			assert.ErrorIs(t, err, duplicates.ErrConfigUnavailable)
		})
	}

	t.Run("cause is kept", func(t *testing.T) {
		svc := newService(store, failingConfig{err: boom})
		_, err := svc.FindDuplicates(ctx, 30, false)
		assert.ErrorIs(t, err, boom)
	})
}

func TestService_ArchiveRestore(t *testing.T) {
	ctx := context.Background()
	store := customer.NewMemory(seedCustomers()...)
	svc := newService(store, fieldweight.NewStatic(addressOnly(0)))

	groups, err := svc.FindDuplicates(ctx, 30, false)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	ids, err := svc.Archive(ctx, groups[0])
	require.NoError(t, err)
	assert.Equal(t, []int64{101, 102}, ids)

	groups, err = svc.FindDuplicates(ctx, 30, false)
	require.NoError(t, err)
	assert.Empty(t, groups)
	assert.Equal(t, 4, store.Len())

	ids, err = svc.Restore(ctx, []int64{101, 102, 101, 0})
	require.NoError(t, err)
	assert.Equal(t, []int64{101, 102}, ids)

	groups, err = svc.FindDuplicates(ctx, 30, false)
	require.NoError(t, err)
	assert.Len(t, groups, 1)
}

func TestService_EmptyActionsAreNoOps(t *testing.T) {
	ctx := context.Background()
	store := customer.NewMemory(seedCustomers()...)
	svc := newService(store, fieldweight.NewStatic(addressOnly(0)))

	ids, err := svc.Archive(ctx, models.DuplicateGroup{})
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = svc.Delete(ctx, models.DuplicateGroup{})
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = svc.Restore(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, ids)

	assert.Equal(t, 4, store.Len())
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	store := customer.NewMemory(seedCustomers()...)
	svc := newService(store, fieldweight.NewStatic(addressOnly(0)))

	ids, err := svc.Delete(ctx, models.DuplicateGroup{MemberIDs: []int64{103, 104, 999}})
	require.NoError(t, err)
	assert.Equal(t, []int64{103, 104, 999}, ids)
	assert.Equal(t, 2, store.Len())
}

func TestService_Merge(t *testing.T) {
	ctx := context.Background()

	t.Run("fills the primary and removes duplicates", func(t *testing.T) {
		seed := seedCustomers()
		seed[0].Address = ""
		seed[0].Notes = "first call"
		seed[1].Notes = "prefers email"
		store := customer.NewMemory(seed...)
		svc := newService(store, fieldweight.NewStatic(addressOnly(0)))

		result, err := svc.Merge(ctx, 101, []int64{102, 101})
		require.NoError(t, err)
		assert.True(t, result.Merged())
		assert.Equal(t, []int64{102}, result.RemovedIDs)
		assert.True(t, result.NotesAppended)

		primary, err := store.GetByID(ctx, 101)
		require.NoError(t, err)
		assert.Equal(t, "Seoul", primary.Address)
		assert.Equal(t, "first call\nprefers email", primary.Notes)
		assert.Equal(t, 3, store.Len())

		groups, err := svc.FindDuplicates(ctx, 30, false)
		require.NoError(t, err)
		assert.Empty(t, groups)
	})

	t.Run("missing primary removes the duplicates only", func(t *testing.T) {
		store := customer.NewMemory(seedCustomers()...)
		svc := newService(store, fieldweight.NewStatic(addressOnly(0)))

		result, err := svc.Merge(ctx, 555, []int64{102})
		require.NoError(t, err)
		assert.True(t, result.PrimaryMissing)
		assert.Equal(t, 3, store.Len())
	})
}

func TestService_PreviewMerge(t *testing.T) {
	ctx := context.Background()
	seed := seedCustomers()
	seed[0].Address = ""
	store := customer.NewMemory(seed...)
	svc := newService(store, fieldweight.NewStatic(addressOnly(0)))

	preview, err := svc.PreviewMerge(ctx, 101, []int64{102})
	require.NoError(t, err)
	assert.Equal(t, "Seoul", preview.Primary.Address)
	assert.Equal(t, []int64{102}, preview.DuplicateIDs)

	unchanged, err := store.GetByID(ctx, 101)
	require.NoError(t, err)
	assert.Empty(t, unchanged.Address)
	assert.Equal(t, 4, store.Len())
}

func TestService_ExplainGroup(t *testing.T) {
	ctx := context.Background()
	store := customer.NewMemory(seedCustomers()...)
	svc := newService(store, fieldweight.NewStatic(addressOnly(0)))

	breakdown, err := svc.ExplainGroup(ctx, []int64{102, 101, 101})
	require.NoError(t, err)
	assert.Equal(t, int64(101), breakdown.ReferenceID)
	assert.Equal(t, 100.0, breakdown.Score)
	require.Len(t, breakdown.Members, 1)
}
