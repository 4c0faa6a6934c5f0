package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleInstructor UserRole = "INSTRUCTOR"
	RoleStudent    UserRole = "STUDENT"
)

// User is the base identity record shared by all roles. Role-specific data
// lives in the students and instructors extension tables; the role tag is
// set once by the registration factory for the variant and never mutated.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	PhoneNumber  string     `db:"phone_number" json:"phone_number"`
	NationalID   string     `db:"national_id" json:"national_id"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Instructor extends a User with teaching metadata.
type Instructor struct {
	UserID        string `db:"user_id" json:"user_id"`
	Specialty     string `db:"specialty" json:"specialty"`
	AcademicTitle int    `db:"academic_title" json:"academic_title"`
}

// Admin extends a User with an administrative title.
type Admin struct {
	UserID string `db:"user_id" json:"user_id"`
	Title  string `db:"title" json:"title"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
