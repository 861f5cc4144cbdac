package matching

import (
	"math"

	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/clover/pkg/models"
)

// MemberScore is how one non-reference member agrees with the reference
type MemberScore struct {
	ID            int64            `json:"id"`
	MatchedFields []models.FieldID `json:"matched_fields"`
	MatchWeight   int              `json:"match_weight"`
	Ratio         float64          `json:"ratio"`
}

// ScoreBreakdown explains a group score field by field
type ScoreBreakdown struct {
	ReferenceID  int64            `json:"reference_id"`
	ActiveFields []models.FieldID `json:"active_fields"`
	TotalWeight  int              `json:"total_weight"`
	Members      []MemberScore    `json:"members"`
	Score        float64          `json:"score"`
}

// Scorer computes the weighted confidence that a group of customers is one person
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score returns the 0-100 confidence for candidates ordered most recently assigned first.
// The first candidate is the reference every other member is compared against.
func (s *Scorer) Score(candidates []models.Customer, cfg *models.DedupeConfig) float64 {
	return s.Breakdown(candidates, cfg).Score
}

// Breakdown scores a group and reports the fields each member matched on
func (s *Scorer) Breakdown(candidates []models.Customer, cfg *models.DedupeConfig) ScoreBreakdown {
	result := ScoreBreakdown{}
	if len(candidates) > 0 {
		result.ReferenceID = candidates[0].ID
	}

	active := s.activeFields(cfg)
	result.ActiveFields = ectolinq.Map(active, func(w weightedField) models.FieldID {
		return w.field.ID
	})
	if len(active) == 0 || len(candidates) < 2 {
		return result
	}

	for _, w := range active {
		result.TotalWeight += w.weight
	}

	reference := &candidates[0]
	var sum float64
	for i := 1; i < len(candidates); i++ {
		member := &candidates[i]
		ms := MemberScore{ID: member.ID, MatchedFields: []models.FieldID{}}
		for _, w := range active {
			if w.field.Equal(reference, member) {
				ms.MatchWeight += w.weight
				ms.MatchedFields = append(ms.MatchedFields, w.field.ID)
			}
		}
		ms.Ratio = float64(ms.MatchWeight) / float64(result.TotalWeight)
		sum += ms.Ratio * 100
		result.Members = append(result.Members, ms)
	}

	result.Score = round2(sum / float64(len(candidates)-1))
	return result
}

type weightedField struct {
	field  ComparableField
	weight int
}

// activeFields resolves enabled, positively weighted config entries against the field table.
// Unknown ids are ignored and a repeated id only counts once.
func (s *Scorer) activeFields(cfg *models.DedupeConfig) []weightedField {
	seen := make(map[models.FieldID]bool)
	active := make([]weightedField, 0)
	for _, fw := range cfg.ActiveFields() {
		field, ok := LookupField(fw.FieldID)
		if !ok || seen[fw.FieldID] {
			continue
		}
		seen[fw.FieldID] = true
		active = append(active, weightedField{field: field, weight: fw.Weight})
	}
	return active
}

func round2(v float64) float64 {
	r := math.Round(v*100) / 100
	return math.Max(0, math.Min(100, r))
}
