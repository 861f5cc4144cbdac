package models

import "time"

// GroupKind tells which grouping pass produced a duplicate group
type GroupKind string

const (
	// GroupKindExact groups customers sharing the same normalized phone number
	GroupKindExact GroupKind = "exact"
	// GroupKindFuzzy groups customers sharing a phone tail and a name prefix
	GroupKindFuzzy GroupKind = "fuzzy"
)

// DuplicateCandidate is the summary of one group member shown to callers
type DuplicateCandidate struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	AssignedAt *time.Time `json:"assigned_at,omitempty"`
}

// DuplicateGroup is a set of customers that likely represent the same person.
// Groups are derived from the current snapshot on every scan and never stored.
type DuplicateGroup struct {
	Key        string               `json:"key"`
	Kind       GroupKind            `json:"kind"`
	Label      string               `json:"label"`
	MemberIDs  []int64              `json:"member_ids"`
	Candidates []DuplicateCandidate `json:"candidates"`
	Score      float64              `json:"score"`
}

// MostRecentAssignment returns the assignment time of the first candidate, if any
func (g DuplicateGroup) MostRecentAssignment() time.Time {
	if len(g.Candidates) == 0 || g.Candidates[0].AssignedAt == nil {
		return time.Time{}
	}
	return *g.Candidates[0].AssignedAt
}

// FindDuplicatesResponse is the response for a duplicate scan
type FindDuplicatesResponse struct {
	Groups       []DuplicateGroup `json:"groups"`
	WithinDays   int              `json:"within_days"`
	IncludeFuzzy bool             `json:"include_fuzzy"`
	TotalCount   int              `json:"total_count"`
}

// GroupActionRequest is the request body for archiving or deleting a group
type GroupActionRequest struct {
	MemberIDs []int64 `json:"member_ids" validate:"required,min=1,dive,gt=0"`
}

// RestoreRequest is the request body for restoring archived customers
type RestoreRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
}

// GroupActionResponse reports the customers affected by an archive, restore or delete
type GroupActionResponse struct {
	Action string  `json:"action"`
	IDs    []int64 `json:"ids"`
}
