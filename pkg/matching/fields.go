package matching

import (
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// FieldKind selects the equality used to compare an attribute
type FieldKind string

const (
	FieldKindString  FieldKind = "string"
	FieldKindNumeric FieldKind = "numeric"
	FieldKindDate    FieldKind = "date"
)

// ComparableField binds an attribute id to how its value is read and compared
type ComparableField struct {
	ID    models.FieldID
	Kind  FieldKind
	Value func(c *models.Customer) any
}

// comparableFields is the fixed table of attributes that can take part in scoring
var comparableFields = []ComparableField{
	{ID: models.FieldGender, Kind: FieldKindString, Value: func(c *models.Customer) any { return c.Gender }},
	{ID: models.FieldAddress, Kind: FieldKindString, Value: func(c *models.Customer) any { return c.Address }},
	{ID: models.FieldJobTitle, Kind: FieldKindString, Value: func(c *models.Customer) any { return c.JobTitle }},
	{ID: models.FieldMaritalStatus, Kind: FieldKindString, Value: func(c *models.Customer) any { return c.MaritalStatus }},
	{ID: models.FieldProofNumber, Kind: FieldKindString, Value: func(c *models.Customer) any { return c.ProofNumber }},
	{ID: models.FieldPrice, Kind: FieldKindNumeric, Value: func(c *models.Customer) any { return c.Price }},
	{ID: models.FieldHeadquarters, Kind: FieldKindString, Value: func(c *models.Customer) any { return c.Headquarters }},
	{ID: models.FieldInsuranceName, Kind: FieldKindString, Value: func(c *models.Customer) any { return c.InsuranceName }},
	{ID: models.FieldJoinDate, Kind: FieldKindDate, Value: func(c *models.Customer) any { return c.JoinDate }},
	{ID: models.FieldNotes, Kind: FieldKindString, Value: func(c *models.Customer) any { return c.Notes }},
}

// ComparableFields returns a copy of the comparable-field table
func ComparableFields() []ComparableField {
	out := make([]ComparableField, len(comparableFields))
	copy(out, comparableFields)
	return out
}

// LookupField returns the table entry for an attribute id
func LookupField(id models.FieldID) (ComparableField, bool) {
	for _, f := range comparableFields {
		if f.ID == id {
			return f, true
		}
	}
	return ComparableField{}, false
}

// Equal compares the attribute on two customers. Two absent values do not match.
func (f ComparableField) Equal(a, b *models.Customer) bool {
	va, vb := f.Value(a), f.Value(b)
	switch f.Kind {
	case FieldKindString:
		sa, _ := va.(string)
		sb, _ := vb.(string)
		if normalizers.IsBlank(sa) && normalizers.IsBlank(sb) {
			return false
		}
		return normalizers.StringEqual(sa, sb)
	case FieldKindNumeric:
		return normalizers.NumericEqual(va, vb)
	case FieldKindDate:
		return normalizers.DateEqual(va, vb)
	default:
		return false
	}
}
