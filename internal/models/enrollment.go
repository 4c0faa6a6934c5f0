package models

import "time"

// EnrollmentRecord binds exactly one student to exactly one course
// offering. Grade and Passed stay nil until a grade is recorded. Canceled
// is a flag, never a deletion; canceled records no longer count toward
// capacity, conflicts or pass history but remain for audit.
type EnrollmentRecord struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	OfferingID string    `db:"offering_id" json:"offering_id"`
	Grade      *float64  `db:"grade" json:"grade,omitempty"`
	Passed     *bool     `db:"passed" json:"passed,omitempty"`
	Paid       bool      `db:"paid" json:"paid"`
	Canceled   bool      `db:"canceled" json:"canceled"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches a record with unit and offering context.
type EnrollmentDetail struct {
	EnrollmentRecord
	UnitID           string `db:"unit_id" json:"unit_id"`
	UnitName         string `db:"unit_name" json:"unit_name"`
	UnitSize         int    `db:"unit_size" json:"unit_size"`
	SemesterCodename int    `db:"semester_codename" json:"semester_codename"`
	InstructorName   string `db:"instructor_name" json:"instructor_name"`
}

// EnrollmentFilter provides filters for listing enrollment records.
type EnrollmentFilter struct {
	StudentID        string
	OfferingID       string
	SemesterCodename int
	Canceled         *bool
	Passed           *bool
	Page             int
	PageSize         int
	SortBy           string
	SortOrder        string
}
