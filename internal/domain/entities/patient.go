package entities

import "time"

// Patient holds demographics shared across all of a patient's visits.
type Patient struct {
	ID        string    `json:"id" db:"id"`
	Age       int       `json:"age" db:"age"`
	Sex       string    `json:"sex" db:"sex"`
	IsDeleted bool      `json:"is_deleted" db:"is_deleted"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Valid sex values.
const (
	SexMale   = "M"
	SexFemale = "F"
	SexOther  = "O"
)
