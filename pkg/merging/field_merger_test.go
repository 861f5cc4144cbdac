package merging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/clover/pkg/models"
)

func at(days int) *time.Time {
	t := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC).AddDate(0, 0, -days)
	return &t
}

func price(v float64) *float64 { return &v }

func TestFieldMerger_Resolve(t *testing.T) {
	merger := NewFieldMerger()

	t.Run("primary values always win", func(t *testing.T) {
		primary := models.Customer{ID: 1, Address: "Seoul", Gender: "F", Price: price(10), JoinDate: at(100)}
		dup := models.Customer{ID: 2, AssignedAt: at(0), Address: "Busan", Gender: "M", Price: price(99), JoinDate: at(5)}

		res := merger.Resolve(primary, []models.Customer{dup})

		assert.Equal(t, "Seoul", res.Primary.Address)
		assert.Equal(t, "F", res.Primary.Gender)
		assert.Equal(t, 10.0, *res.Primary.Price)
		assert.Equal(t, at(100), res.Primary.JoinDate)
		assert.Empty(t, res.FilledFields)
		assert.False(t, res.NotesAppended)
	})

	t.Run("blank fields take the most recent non-blank duplicate value", func(t *testing.T) {
		primary := models.Customer{ID: 1, Address: "   "}
		older := models.Customer{ID: 2, AssignedAt: at(10), Address: "Busan", JobTitle: "Nurse"}
		newer := models.Customer{ID: 3, AssignedAt: at(1), Address: "Seoul"}
		newestBlank := models.Customer{ID: 4, AssignedAt: at(0)}

		res := merger.Resolve(primary, []models.Customer{older, newestBlank, newer})

		assert.Equal(t, "Seoul", res.Primary.Address)
		assert.Equal(t, "Nurse", res.Primary.JobTitle)
		assert.Equal(t, []models.FilledField{
			{FieldID: models.FieldAddress, DonorID: 3},
			{FieldID: models.FieldJobTitle, DonorID: 2},
		}, res.FilledFields)
	})

	t.Run("nil price and join date are filled", func(t *testing.T) {
		primary := models.Customer{ID: 1}
		dup := models.Customer{ID: 2, AssignedAt: at(0), Price: price(0), JoinDate: at(30)}

		res := merger.Resolve(primary, []models.Customer{dup})

		if assert.NotNil(t, res.Primary.Price) {
			assert.Equal(t, 0.0, *res.Primary.Price)
		}
		assert.Equal(t, at(30), res.Primary.JoinDate)

		*dup.Price = 5
		assert.Equal(t, 0.0, *res.Primary.Price, "resolved primary must not alias the donor")
	})

	t.Run("inputs are not modified", func(t *testing.T) {
		primary := models.Customer{ID: 1}
		dups := []models.Customer{
			{ID: 3, AssignedAt: at(5), Address: "A"},
			{ID: 2, AssignedAt: at(0), Address: "B"},
		}

		_ = merger.Resolve(primary, dups)

		assert.Empty(t, primary.Address)
		assert.Equal(t, int64(3), dups[0].ID)
	})
}

func TestFieldMerger_Notes(t *testing.T) {
	merger := NewFieldMerger()

	tests := []struct {
		name         string
		primary      string
		duplicates   []models.Customer
		expected     string
		wantAppended bool
	}{
		{
			name:         "appends most recent first",
			primary:      "vip",
			duplicates:   []models.Customer{{ID: 2, AssignedAt: at(5), Notes: " old note "}, {ID: 3, AssignedAt: at(1), Notes: "new note"}},
			expected:     "vip\nnew note\nold note",
			wantAppended: true,
		},
		{
			name:         "empty primary takes duplicate notes",
			primary:      "",
			duplicates:   []models.Customer{{ID: 2, AssignedAt: at(0), Notes: "call after 6pm"}},
			expected:     "call after 6pm",
			wantAppended: true,
		},
		{
			name:         "exact duplicate segments are dropped",
			primary:      "vip\ncall after 6pm",
			duplicates:   []models.Customer{{ID: 2, AssignedAt: at(0), Notes: "call after 6pm"}, {ID: 3, AssignedAt: at(1), Notes: "vip\nnew"}},
			expected:     "vip\ncall after 6pm\nnew",
			wantAppended: true,
		},
		{
			name:         "nothing new leaves notes untouched",
			primary:      "vip ",
			duplicates:   []models.Customer{{ID: 2, AssignedAt: at(0), Notes: "vip"}},
			expected:     "vip ",
			wantAppended: false,
		},
		{
			name:         "blank duplicate notes are ignored",
			primary:      "keep",
			duplicates:   []models.Customer{{ID: 2, AssignedAt: at(0), Notes: "   "}},
			expected:     "keep",
			wantAppended: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := merger.Resolve(models.Customer{ID: 1, Notes: tt.primary}, tt.duplicates)
			assert.Equal(t, tt.expected, res.Primary.Notes)
			assert.Equal(t, tt.wantAppended, res.NotesAppended)
		})
	}
}
