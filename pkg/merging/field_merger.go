package merging

import (
	"sort"
	"strings"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// NotesSeparator joins note segments gathered from merged duplicates
const NotesSeparator = "\n"

// MergePolicy defines how a primary attribute takes a value from its duplicates
type MergePolicy string

const (
	// MergePolicyFillIfEmpty copies a duplicate's value only when the primary's is blank
	MergePolicyFillIfEmpty MergePolicy = "fill_if_empty"
	// MergePolicyFillIfNull copies a duplicate's value only when the primary's is nil
	MergePolicyFillIfNull MergePolicy = "fill_if_null"
	// MergePolicyAppendUnique appends each new segment to the primary's text
	MergePolicyAppendUnique MergePolicy = "append_unique"
)

// fieldRule is one row of the merge table
type fieldRule struct {
	ID     models.FieldID
	Policy MergePolicy
	// missing reports whether the attribute has no value on c
	missing func(c *models.Customer) bool
	// take copies the attribute from src into dst
	take func(dst, src *models.Customer)
}

var fillRules = []fieldRule{
	stringRule(models.FieldGender, func(c *models.Customer) *string { return &c.Gender }),
	stringRule(models.FieldAddress, func(c *models.Customer) *string { return &c.Address }),
	stringRule(models.FieldJobTitle, func(c *models.Customer) *string { return &c.JobTitle }),
	stringRule(models.FieldMaritalStatus, func(c *models.Customer) *string { return &c.MaritalStatus }),
	stringRule(models.FieldProofNumber, func(c *models.Customer) *string { return &c.ProofNumber }),
	stringRule(models.FieldHeadquarters, func(c *models.Customer) *string { return &c.Headquarters }),
	stringRule(models.FieldInsuranceName, func(c *models.Customer) *string { return &c.InsuranceName }),
	{
		ID:      models.FieldPrice,
		Policy:  MergePolicyFillIfNull,
		missing: func(c *models.Customer) bool { return c.Price == nil },
		take: func(dst, src *models.Customer) {
			v := *src.Price
			dst.Price = &v
		},
	},
	{
		ID:      models.FieldJoinDate,
		Policy:  MergePolicyFillIfNull,
		missing: func(c *models.Customer) bool { return c.JoinDate == nil },
		take: func(dst, src *models.Customer) {
			v := *src.JoinDate
			dst.JoinDate = &v
		},
	},
}

func stringRule(id models.FieldID, ref func(c *models.Customer) *string) fieldRule {
	return fieldRule{
		ID:      id,
		Policy:  MergePolicyFillIfEmpty,
		missing: func(c *models.Customer) bool { return normalizers.IsBlank(*ref(c)) },
		take:    func(dst, src *models.Customer) { *ref(dst) = *ref(src) },
	}
}

// Resolution is the primary as it looks after absorbing its duplicates
type Resolution struct {
	Primary       models.Customer
	FilledFields  []models.FilledField
	NotesAppended bool
}

// FieldMerger resolves a primary customer against its duplicates field by field.
// The primary's own values always win.
type FieldMerger struct {
	separator string
}

// NewFieldMerger creates a new FieldMerger
func NewFieldMerger() *FieldMerger {
	return &FieldMerger{separator: NotesSeparator}
}

// Resolve returns the merged primary. Neither argument is modified.
func (m *FieldMerger) Resolve(primary models.Customer, duplicates []models.Customer) Resolution {
	resolved := primary.Clone()
	ordered := make([]models.Customer, len(duplicates))
	copy(ordered, duplicates)
	sortMostRecentFirst(ordered)

	res := Resolution{FilledFields: []models.FilledField{}}
	for _, rule := range fillRules {
		if !rule.missing(&resolved) {
			continue
		}
		for i := range ordered {
			donor := &ordered[i]
			if rule.missing(donor) {
				continue
			}
			rule.take(&resolved, donor)
			res.FilledFields = append(res.FilledFields, models.FilledField{FieldID: rule.ID, DonorID: donor.ID})
			break
		}
	}

	resolved.Notes, res.NotesAppended = m.appendNotes(resolved.Notes, ordered)
	res.Primary = resolved
	return res
}

// appendNotes adds every duplicate note segment the primary does not already carry
func (m *FieldMerger) appendNotes(notes string, duplicates []models.Customer) (string, bool) {
	seen := make(map[string]bool)
	parts := make([]string, 0)
	if !normalizers.IsBlank(notes) {
		trimmed := strings.TrimSpace(notes)
		parts = append(parts, trimmed)
		for _, segment := range strings.Split(trimmed, m.separator) {
			seen[strings.TrimSpace(segment)] = true
		}
	}

	appended := false
	for _, d := range duplicates {
		if normalizers.IsBlank(d.Notes) {
			continue
		}
		for _, segment := range strings.Split(strings.TrimSpace(d.Notes), m.separator) {
			segment = strings.TrimSpace(segment)
			if segment == "" || seen[segment] {
				continue
			}
			seen[segment] = true
			parts = append(parts, segment)
			appended = true
		}
	}

	if !appended {
		return notes, false
	}
	return strings.Join(parts, m.separator), true
}

// sortMostRecentFirst orders by assignment time descending, unassigned last, ties by ascending id
func sortMostRecentFirst(customers []models.Customer) {
	sort.SliceStable(customers, func(i, j int) bool {
		ai, aj := toTime(customers[i].AssignedAt), toTime(customers[j].AssignedAt)
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return customers[i].ID < customers[j].ID
	})
}

func toTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
