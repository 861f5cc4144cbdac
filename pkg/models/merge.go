package models

// MergeRequest is the request to merge duplicates into a primary customer
type MergeRequest struct {
	PrimaryID    int64   `json:"primary_id" validate:"required,gt=0"`
	DuplicateIDs []int64 `json:"duplicate_ids" validate:"required,min=1,dive,gt=0"`
}

// FilledField records a primary attribute that was empty and got its value from a duplicate
type FilledField struct {
	FieldID FieldID `json:"field_id"`
	DonorID int64   `json:"donor_id"`
}

// MergeResult describes what a merge changed
type MergeResult struct {
	PrimaryID int64 `json:"primary_id"`
	// RemovedIDs are the duplicate ids deleted by the merge
	RemovedIDs    []int64       `json:"removed_ids"`
	FilledFields  []FilledField `json:"filled_fields"`
	NotesAppended bool          `json:"notes_appended"`
	// PrimaryMissing is set when the primary no longer existed and only the duplicates were cleaned up
	PrimaryMissing bool      `json:"primary_missing"`
	Primary        *Customer `json:"primary,omitempty"`
}

// Merged reports whether the merge touched any record
func (r *MergeResult) Merged() bool {
	return r != nil && len(r.RemovedIDs) > 0
}

// MergePreview is the resolved primary a merge would persist, without side effects
type MergePreview struct {
	Primary       Customer      `json:"primary"`
	FilledFields  []FilledField `json:"filled_fields"`
	NotesAppended bool          `json:"notes_appended"`
	DuplicateIDs  []int64       `json:"duplicate_ids"`
}
