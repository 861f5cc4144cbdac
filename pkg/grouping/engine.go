// Package grouping partitions a customer snapshot into scored duplicate groups.
//
// An exact pass groups customers by their digits-only phone number. An optional
// fuzzy pass groups by phone tail plus name prefix and skips any group whose
// members were already reported together by the exact pass.
package grouping

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Engine builds duplicate groups from a snapshot of live customers
type Engine struct {
	logger       ectologger.Logger
	scorer       *matching.Scorer
	now          func() time.Time
	tailLength   int
	prefixLength int
}

// Option configures an Engine
type Option func(*Engine)

// WithClock replaces the wall clock used for the lookback window
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithFuzzyKey overrides the phone tail and name prefix lengths of the fuzzy key
func WithFuzzyKey(tailLength, prefixLength int) Option {
	return func(e *Engine) {
		e.tailLength = tailLength
		e.prefixLength = prefixLength
	}
}

// NewEngine creates a new grouping engine
func NewEngine(logger ectologger.Logger, scorer *matching.Scorer, opts ...Option) *Engine {
	e := &Engine{
		logger:       logger,
		scorer:       scorer,
		now:          time.Now,
		tailLength:   normalizers.DefaultTailLength,
		prefixLength: normalizers.DefaultPrefixLength,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Params are the inputs of a single scan
type Params struct {
	WithinDays   int
	IncludeFuzzy bool
}

// Group returns the duplicate groups found in customers, best first.
// Archived customers are ignored even if the caller passes them in.
func (e *Engine) Group(ctx context.Context, customers []models.Customer, params Params, cfg *models.DedupeConfig) []models.DuplicateGroup {
	ctx, span := tracing.StartSpan(ctx, "grouping.Engine.Group")
	defer span.End()

	withinDays := models.ClampWithinDays(params.WithinDays)
	recent := e.withinWindow(customers, withinDays)

	exact, exactSets := e.exactPass(recent, cfg)
	groups := exact
	if params.IncludeFuzzy {
		groups = append(groups, e.fuzzyPass(recent, exactSets, cfg)...)
	}

	threshold := cfg.ClampedThreshold()
	kept := ectolinq.Filter(groups, func(g models.DuplicateGroup) bool {
		return g.Score >= threshold
	})
	sortGroups(kept)

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"snapshot_size": len(customers),
		"in_window":     len(recent),
		"within_days":   withinDays,
		"include_fuzzy": params.IncludeFuzzy,
		"threshold":     threshold,
		"candidates":    len(groups),
		"groups":        len(kept),
	}).Debug("Duplicate grouping complete")

	return kept
}

// withinWindow keeps live customers assigned between today-withinDays and today, by calendar day
func (e *Engine) withinWindow(customers []models.Customer, withinDays int) []models.Customer {
	now := e.now()
	today := startOfDay(now, now.Location())
	earliest := today.AddDate(0, 0, -withinDays)

	return ectolinq.Filter(customers, func(c models.Customer) bool {
		if c.Archived || c.AssignedAt == nil || c.AssignedAt.IsZero() {
			return false
		}
		day := startOfDay(*c.AssignedAt, now.Location())
		return !day.Before(earliest) && !day.After(today)
	})
}

func (e *Engine) exactPass(customers []models.Customer, cfg *models.DedupeConfig) ([]models.DuplicateGroup, []map[int64]bool) {
	buckets := bucketize(customers, func(c models.Customer) string {
		return normalizers.NormalizeDigits(c.Phone)
	})

	groups := make([]models.DuplicateGroup, 0)
	memberSets := make([]map[int64]bool, 0)
	for _, b := range buckets {
		if b.key == "" || len(b.members) < 2 {
			continue
		}
		group := e.buildGroup(b.members, b.key, models.GroupKindExact, b.key, cfg)
		groups = append(groups, group)
		memberSets = append(memberSets, toSet(group.MemberIDs))
	}
	return groups, memberSets
}

func (e *Engine) fuzzyPass(customers []models.Customer, exactSets []map[int64]bool, cfg *models.DedupeConfig) []models.DuplicateGroup {
	type fuzzyKey struct {
		tail   string
		prefix string
	}
	keys := make(map[string]fuzzyKey)
	buckets := bucketize(customers, func(c models.Customer) string {
		k := fuzzyKey{
			tail:   normalizers.PhoneTail(c.Phone, e.tailLength),
			prefix: normalizers.NamePrefix(c.Name, e.prefixLength),
		}
		if k.tail == "" {
			return ""
		}
		id := fmt.Sprintf("fuzzy:%s:%s", k.tail, k.prefix)
		keys[id] = k
		return id
	})

	groups := make([]models.DuplicateGroup, 0)
	for _, b := range buckets {
		if b.key == "" || len(b.members) < 2 {
			continue
		}
		ids := models.CustomerIDs(b.members)
		if coveredByAny(ids, exactSets) {
			continue
		}
		k := keys[b.key]
		label := fmt.Sprintf("Fuzzy match · ****%s / %s", k.tail, k.prefix)
		groups = append(groups, e.buildGroup(b.members, b.key, models.GroupKindFuzzy, label, cfg))
	}
	return groups
}

// Order returns a copy of customers in candidate order: most recently assigned first, ties by ascending id
func (e *Engine) Order(customers []models.Customer) []models.Customer {
	ordered := make([]models.Customer, len(customers))
	copy(ordered, customers)
	sortByRecency(ordered)
	return ordered
}

func (e *Engine) buildGroup(members []models.Customer, key string, kind models.GroupKind, label string, cfg *models.DedupeConfig) models.DuplicateGroup {
	ordered := e.Order(members)

	return models.DuplicateGroup{
		Key:       key,
		Kind:      kind,
		Label:     label,
		MemberIDs: models.CustomerIDs(ordered),
		Candidates: ectolinq.Map(ordered, func(c models.Customer) models.DuplicateCandidate {
			return models.DuplicateCandidate{ID: c.ID, Name: c.Name, AssignedAt: c.AssignedAt}
		}),
		Score: e.scorer.Score(ordered, cfg),
	}
}

type bucket struct {
	key     string
	members []models.Customer
}

// bucketize groups customers by key, keeping buckets in first-seen order
func bucketize(customers []models.Customer, keyFn func(models.Customer) string) []*bucket {
	index := make(map[string]*bucket)
	order := make([]*bucket, 0)
	for _, c := range customers {
		k := keyFn(c)
		b, ok := index[k]
		if !ok {
			b = &bucket{key: k}
			index[k] = b
			order = append(order, b)
		}
		b.members = append(b.members, c)
	}
	return order
}

// coveredByAny reports whether every id is a member of one single exact group
func coveredByAny(ids []int64, sets []map[int64]bool) bool {
	for _, set := range sets {
		covered := true
		for _, id := range ids {
			if !set[id] {
				covered = false
				break
			}
		}
		if covered {
			return true
		}
	}
	return false
}

func toSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// sortByRecency orders customers most recently assigned first, ties by ascending id
func sortByRecency(customers []models.Customer) {
	sort.SliceStable(customers, func(i, j int) bool {
		ai, aj := assignedAt(customers[i]), assignedAt(customers[j])
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return customers[i].ID < customers[j].ID
	})
}

// sortGroups orders by score, then size, then most recent assignment, then key
func sortGroups(groups []models.DuplicateGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		gi, gj := groups[i], groups[j]
		if gi.Score != gj.Score {
			return gi.Score > gj.Score
		}
		if len(gi.MemberIDs) != len(gj.MemberIDs) {
			return len(gi.MemberIDs) > len(gj.MemberIDs)
		}
		ri, rj := gi.MostRecentAssignment(), gj.MostRecentAssignment()
		if !ri.Equal(rj) {
			return ri.After(rj)
		}
		return gi.Key < gj.Key
	})
}

func assignedAt(c models.Customer) time.Time {
	if c.AssignedAt == nil {
		return time.Time{}
	}
	return *c.AssignedAt
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
