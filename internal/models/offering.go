package models

import "time"

// TimeSlot is an opaque schedule identifier. Two offerings conflict when
// their time slot sets intersect.
type TimeSlot struct {
	ID   int    `db:"id" json:"id"`
	Time string `db:"time" json:"time"`
}

// CourseOffering is one delivery of a unit in a specific semester, taught
// by one instructor, with a fixed slot capacity.
type CourseOffering struct {
	ID               string    `db:"id" json:"id"`
	UnitID           string    `db:"unit_id" json:"unit_id"`
	InstructorID     string    `db:"instructor_id" json:"instructor_id"`
	SemesterCodename int       `db:"semester_codename" json:"semester_codename"`
	Slots            int       `db:"slots" json:"slots"`
	Price            int64     `db:"price" json:"price"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// OfferingDetail enriches an offering with unit, instructor and capacity
// context for read models.
type OfferingDetail struct {
	CourseOffering
	UnitName       string     `db:"unit_name" json:"unit_name"`
	UnitSize       int        `db:"unit_size" json:"unit_size"`
	InstructorName string     `db:"instructor_name" json:"instructor_name"`
	SemesterActive bool       `db:"semester_active" json:"semester_active"`
	EnrolledCount  int        `db:"enrolled_count" json:"enrolled_count"`
	TimeSlots      []TimeSlot `json:"time_slots,omitempty"`
}

// OfferingFilter defines filters for offering list endpoints.
type OfferingFilter struct {
	SemesterCodename int
	UnitID           string
	InstructorID     string
	ActiveSemester   *bool
	Search           string
	Page             int
	PageSize         int
	SortBy           string
	SortOrder        string
}
