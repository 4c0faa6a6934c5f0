package models

import "time"

// UnitCategory classifies a unit within a major's curriculum.
type UnitCategory string

const (
	UnitCategorySpeciality UnitCategory = "SPECIALITY"
	UnitCategoryPrimary    UnitCategory = "PRIMARY"
	UnitCategoryOptional   UnitCategory = "OPTIONAL"
	UnitCategoryGeneral    UnitCategory = "GENERAL"
)

// Major represents a field of study. Codename is the short code used as
// the prefix of generated student numbers.
type Major struct {
	ID        string    `db:"id" json:"id"`
	Codename  string    `db:"codename" json:"codename"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Unit is an abstract course subject. Size is the credit weight used for
// GPA calculation.
type Unit struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Size        int       `db:"unit_size" json:"unit_size"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// MajorUnit links a unit into a major's curriculum with a category.
type MajorUnit struct {
	MajorID  string       `db:"major_id" json:"major_id"`
	UnitID   string       `db:"unit_id" json:"unit_id"`
	Category UnitCategory `db:"category" json:"category"`
}

// UnitFilter captures search parameters for listing units.
type UnitFilter struct {
	Search    string
	MajorID   string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
