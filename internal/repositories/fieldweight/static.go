package fieldweight

import (
	"context"
	"sync"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// DefaultWeights mirrors the rows seeded by the dedupe config migration
var DefaultWeights = map[models.FieldID]int{
	models.FieldGender:        1,
	models.FieldAddress:       3,
	models.FieldJobTitle:      1,
	models.FieldMaritalStatus: 1,
	models.FieldProofNumber:   5,
	models.FieldPrice:         1,
	models.FieldHeadquarters:  1,
	models.FieldInsuranceName: 2,
	models.FieldJoinDate:      2,
	models.FieldNotes:         1,
}

// defaultDisabled are seeded with a weight but switched off
var defaultDisabled = map[models.FieldID]bool{
	models.FieldPrice: true,
	models.FieldNotes: true,
}

// DefaultScoreThreshold is the seeded minimum group score
const DefaultScoreThreshold = 60

// DefaultConfig returns the seeded configuration
func DefaultConfig() models.DedupeConfig {
	fields := make([]models.FieldWeight, 0, len(models.AllFieldIDs))
	for _, id := range models.AllFieldIDs {
		w := DefaultWeights[id]
		fields = append(fields, models.FieldWeight{FieldID: id, Enabled: !defaultDisabled[id], Weight: w})
	}
	return models.DedupeConfig{
		Fields:            fields,
		ScoreThreshold:    DefaultScoreThreshold,
		DefaultWithinDays: models.DefaultWithinDays,
	}
}

// Static serves a configuration held in memory
type Static struct {
	mu  sync.RWMutex
	cfg models.DedupeConfig
}

// NewStatic creates a provider holding a copy of cfg
func NewStatic(cfg models.DedupeConfig) *Static {
	return &Static{cfg: copyConfig(cfg)}
}

func (s *Static) GetDedupeConfig(_ context.Context) (*models.DedupeConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg := copyConfig(s.cfg)
	return &cfg, nil
}

// UpdateDedupeConfig merges the request into the held configuration like the Postgres upsert does
func (s *Static) UpdateDedupeConfig(ctx context.Context, req models.UpdateDedupeConfigRequest) (*models.DedupeConfig, error) {
	if err := validateFields(req.Fields); err != nil {
		return nil, err
	}

	s.mu.Lock()
	now := time.Now().UTC()
	byID := make(map[models.FieldID]int, len(s.cfg.Fields))
	for i, f := range s.cfg.Fields {
		byID[f.FieldID] = i
	}
	for _, f := range req.Fields {
		f.UpdatedAt = now
		if i, ok := byID[f.FieldID]; ok {
			s.cfg.Fields[i] = f
			continue
		}
		byID[f.FieldID] = len(s.cfg.Fields)
		s.cfg.Fields = append(s.cfg.Fields, f)
	}
	s.cfg.Fields = orderFields(s.cfg.Fields)
	s.cfg.ScoreThreshold = req.ScoreThreshold
	s.cfg.IncludeFuzzyDefault = req.IncludeFuzzyDefault
	s.cfg.DefaultWithinDays = req.DefaultWithinDays
	s.mu.Unlock()

	return s.GetDedupeConfig(ctx)
}

func copyConfig(cfg models.DedupeConfig) models.DedupeConfig {
	out := cfg
	out.Fields = append([]models.FieldWeight(nil), cfg.Fields...)
	return out
}
