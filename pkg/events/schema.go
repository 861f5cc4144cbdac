package events

import (
	"github.com/Ramsey-B/clover/pkg/models"
)

// EventType names a customer lifecycle event
type EventType string

const (
	EventTypeCustomerArchived   EventType = "customer.archived"
	EventTypeCustomerRestored   EventType = "customer.restored"
	EventTypeCustomerDeleted    EventType = "customer.deleted"
	EventTypeCustomerMerged     EventType = "customer.merged"
	EventTypeDuplicatesDetected EventType = "duplicates.detected"
)

// MergedData is the data block of a customer.merged event
type MergedData struct {
	FilledFields   []models.FilledField `json:"filled_fields"`
	NotesAppended  bool                 `json:"notes_appended"`
	PrimaryMissing bool                 `json:"primary_missing"`
}

// DetectedGroup summarizes one group in a duplicates.detected event
type DetectedGroup struct {
	Key       string           `json:"key"`
	Kind      models.GroupKind `json:"kind"`
	MemberIDs []int64          `json:"member_ids"`
	Score     float64          `json:"score"`
}

// DetectedData is the data block of a duplicates.detected event
type DetectedData struct {
	WithinDays   int             `json:"within_days"`
	IncludeFuzzy bool            `json:"include_fuzzy"`
	Groups       []DetectedGroup `json:"groups"`
}
