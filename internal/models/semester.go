package models

import (
	"fmt"
	"time"
)

// Semester models an academic term identified by its numeric codename.
// At most one semester is active at any instant; activation is handled
// transactionally by the repository.
type Semester struct {
	Codename  int       `db:"codename" json:"codename"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// YearDigits returns the last two digits of the codename, used as the
// year fragment of generated student numbers.
func (s Semester) YearDigits() string {
	return fmt.Sprintf("%02d", s.Codename%100)
}

// SemesterFilter defines filters supported by list endpoints.
type SemesterFilter struct {
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
