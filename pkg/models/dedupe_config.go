package models

import "time"

// FieldID identifies a comparable customer attribute
type FieldID string

const (
	FieldGender        FieldID = "gender"
	FieldAddress       FieldID = "address"
	FieldJobTitle      FieldID = "job_title"
	FieldMaritalStatus FieldID = "marital_status"
	FieldProofNumber   FieldID = "proof_number"
	FieldPrice         FieldID = "price"
	FieldHeadquarters  FieldID = "headquarters"
	FieldInsuranceName FieldID = "insurance_name"
	FieldJoinDate      FieldID = "join_date"
	FieldNotes         FieldID = "notes"
)

// AllFieldIDs lists every comparable attribute in display order
var AllFieldIDs = []FieldID{
	FieldGender,
	FieldAddress,
	FieldJobTitle,
	FieldMaritalStatus,
	FieldProofNumber,
	FieldPrice,
	FieldHeadquarters,
	FieldInsuranceName,
	FieldJoinDate,
	FieldNotes,
}

// IsValid reports whether the id names a known comparable attribute
func (f FieldID) IsValid() bool {
	for _, id := range AllFieldIDs {
		if id == f {
			return true
		}
	}
	return false
}

const (
	// MinWithinDays is the shortest lookback window a scan accepts
	MinWithinDays = 1
	// MaxWithinDays is the longest lookback window a scan accepts
	MaxWithinDays = 365
	// DefaultWithinDays is used when neither the caller nor the configuration gives a window
	DefaultWithinDays = 30
)

// FieldWeight says whether an attribute participates in scoring and how much it counts
type FieldWeight struct {
	FieldID   FieldID   `json:"field_id" db:"field_id" validate:"required"`
	Enabled   bool      `json:"enabled" db:"enabled"`
	Weight    int       `json:"weight" db:"weight" validate:"gte=0"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DedupeConfig is the field-weight configuration used by duplicate scans
type DedupeConfig struct {
	Fields              []FieldWeight `json:"fields" validate:"dive"`
	ScoreThreshold      int           `json:"score_threshold" validate:"gte=0,lte=100"`
	IncludeFuzzyDefault bool          `json:"include_fuzzy_default"`
	DefaultWithinDays   int           `json:"default_within_days" validate:"gte=0,lte=365"`
}

// ActiveFields returns the entries that participate in scoring with a positive weight
func (c *DedupeConfig) ActiveFields() []FieldWeight {
	if c == nil {
		return nil
	}
	active := make([]FieldWeight, 0, len(c.Fields))
	for _, f := range c.Fields {
		if f.Enabled && f.Weight > 0 {
			active = append(active, f)
		}
	}
	return active
}

// ClampedThreshold returns the score threshold limited to [0, 100]
func (c *DedupeConfig) ClampedThreshold() float64 {
	if c == nil {
		return 0
	}
	return float64(ClampInt(c.ScoreThreshold, 0, 100))
}

// ClampWithinDays limits a lookback window to [MinWithinDays, MaxWithinDays]
func ClampWithinDays(days int) int {
	return ClampInt(days, MinWithinDays, MaxWithinDays)
}

// ClampInt limits v to [lo, hi]
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DedupeSettings is the singleton row holding the scan-wide settings
type DedupeSettings struct {
	ScoreThreshold      int       `json:"score_threshold" db:"score_threshold"`
	IncludeFuzzyDefault bool      `json:"include_fuzzy_default" db:"include_fuzzy_default"`
	DefaultWithinDays   int       `json:"default_within_days" db:"default_within_days"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// UpdateDedupeConfigRequest is the request to replace the field-weight configuration
type UpdateDedupeConfigRequest struct {
	Fields              []FieldWeight `json:"fields" validate:"required,dive"`
	ScoreThreshold      int           `json:"score_threshold" validate:"gte=0,lte=100"`
	IncludeFuzzyDefault bool          `json:"include_fuzzy_default"`
	DefaultWithinDays   int           `json:"default_within_days" validate:"gte=0,lte=365"`
}
