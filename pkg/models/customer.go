package models

import (
	"time"
)

// Customer is a CRM customer record. Archived customers are kept in storage
// but are hidden from every duplicate scan.
// Field order matches schema: id, name, phone, assigned_at, last_contact_at, archived, ...
type Customer struct {
	ID            int64      `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	Phone         string     `json:"phone" db:"phone"`
	AssignedAt    *time.Time `json:"assigned_at,omitempty" db:"assigned_at"`
	LastContactAt *time.Time `json:"last_contact_at,omitempty" db:"last_contact_at"`
	Archived      bool       `json:"archived" db:"archived"`

	Gender        string     `json:"gender" db:"gender"`
	Address       string     `json:"address" db:"address"`
	JobTitle      string     `json:"job_title" db:"job_title"`
	MaritalStatus string     `json:"marital_status" db:"marital_status"`
	ProofNumber   string     `json:"proof_number" db:"proof_number"`
	Headquarters  string     `json:"headquarters" db:"headquarters"`
	InsuranceName string     `json:"insurance_name" db:"insurance_name"`
	Price         *float64   `json:"price,omitempty" db:"price"`
	JoinDate      *time.Time `json:"join_date,omitempty" db:"join_date"`
	Notes         string     `json:"notes" db:"notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Clone returns a deep copy so callers can mutate the result without touching the source
func (c Customer) Clone() Customer {
	out := c
	out.AssignedAt = cloneTime(c.AssignedAt)
	out.LastContactAt = cloneTime(c.LastContactAt)
	out.JoinDate = cloneTime(c.JoinDate)
	if c.Price != nil {
		p := *c.Price
		out.Price = &p
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// CustomerIDs returns the identifiers of the given customers in order
func CustomerIDs(customers []Customer) []int64 {
	ids := make([]int64, 0, len(customers))
	for _, c := range customers {
		ids = append(ids, c.ID)
	}
	return ids
}

// CreateCustomerRequest is the body of POST /customers
type CreateCustomerRequest struct {
	Name          string     `json:"name" validate:"required,max=200"`
	Phone         string     `json:"phone" validate:"max=50"`
	AssignedAt    *time.Time `json:"assigned_at"`
	LastContactAt *time.Time `json:"last_contact_at"`
	Gender        string     `json:"gender" validate:"max=20"`
	Address       string     `json:"address" validate:"max=500"`
	JobTitle      string     `json:"job_title" validate:"max=200"`
	MaritalStatus string     `json:"marital_status" validate:"max=20"`
	ProofNumber   string     `json:"proof_number" validate:"max=100"`
	Headquarters  string     `json:"headquarters" validate:"max=200"`
	InsuranceName string     `json:"insurance_name" validate:"max=200"`
	Price         *float64   `json:"price" validate:"omitempty,gte=0"`
	JoinDate      *time.Time `json:"join_date"`
	Notes         string     `json:"notes"`
}

// Customer builds a new, unarchived customer from the request
func (r CreateCustomerRequest) Customer() *Customer {
	return &Customer{
		Name:          r.Name,
		Phone:         r.Phone,
		AssignedAt:    cloneTime(r.AssignedAt),
		LastContactAt: cloneTime(r.LastContactAt),
		Gender:        r.Gender,
		Address:       r.Address,
		JobTitle:      r.JobTitle,
		MaritalStatus: r.MaritalStatus,
		ProofNumber:   r.ProofNumber,
		Headquarters:  r.Headquarters,
		InsuranceName: r.InsuranceName,
		Price:         r.Price,
		JoinDate:      cloneTime(r.JoinDate),
		Notes:         r.Notes,
	}
}
