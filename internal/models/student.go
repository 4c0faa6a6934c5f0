package models

import "time"

// Student owns a major, a GPA and a generated student number. The number
// is assigned once, at first persistence.
type Student struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	StudentNo     string    `db:"student_no" json:"student_no"`
	MajorID       string    `db:"major_id" json:"major_id"`
	GPA           float64   `db:"gpa" json:"gpa"`
	Funded        bool      `db:"funded" json:"funded"`
	Verified      bool      `db:"verified" json:"verified"`
	FirstSemester int       `db:"first_semester" json:"first_semester"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// StudentDetail contains student information with identity and major context.
type StudentDetail struct {
	Student
	FullName      string `db:"full_name" json:"full_name"`
	Email         string `db:"email" json:"email"`
	MajorCodename string `db:"major_codename" json:"major_codename"`
	MajorName     string `db:"major_name" json:"major_name"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search        string
	MajorID       string
	FirstSemester int
	Funded        *bool
	Verified      *bool
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
