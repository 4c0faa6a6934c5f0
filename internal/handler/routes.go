package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-registrar-api/internal/middleware"
	"github.com/noah-isme/uni-registrar-api/internal/models"
	"github.com/noah-isme/uni-registrar-api/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth       *AuthHandler
	Semester   *SemesterHandler
	Unit       *UnitHandler
	Offering   *OfferingHandler
	Student    *StudentHandler
	Enrollment *EnrollmentHandler
}

// RegisterRoutes mounts the API surface under the given prefix. Registry
// reads are open to any authenticated role; registry writes are
// admin-only, grading belongs to staff, and student-owned resources are
// scoped to their owner unless the caller is staff.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, auth *service.AuthService, students *service.StudentService) {
	api := r.Group(prefix)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
		authGroup.POST("/logout", middleware.Authenticate(auth), h.Auth.Logout)
	}

	// Student signup is open; staff accounts are created by admins.
	api.POST("/students", h.Student.RegisterStudent)

	authed := api.Group("")
	authed.Use(middleware.Authenticate(auth))

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor)
	selfOrStaff := middleware.RequireSelfOrRoles(students, "id", models.RoleAdmin, models.RoleInstructor)

	authed.POST("/instructors", adminOnly, h.Student.RegisterInstructor)
	authed.POST("/admins", adminOnly, h.Student.RegisterAdmin)

	semesters := authed.Group("/semesters")
	{
		semesters.GET("", h.Semester.List)
		semesters.GET("/active", h.Semester.GetActive)
		semesters.GET("/:codename", h.Semester.Get)
		semesters.POST("", adminOnly, h.Semester.Create)
		semesters.PUT("/:codename", adminOnly, h.Semester.Update)
		semesters.POST("/:codename/activate", adminOnly, h.Semester.Activate)
	}

	units := authed.Group("/units")
	{
		units.GET("", h.Unit.List)
		units.GET("/:id", h.Unit.Get)
		units.GET("/:id/prerequisites", h.Unit.Prerequisites)
	}

	offerings := authed.Group("/offerings")
	{
		offerings.GET("", h.Offering.List)
		offerings.GET("/:id", h.Offering.Get)
		offerings.POST("", adminOnly, h.Offering.Create)
	}

	studentRoutes := authed.Group("/students")
	{
		studentRoutes.GET("", staff, h.Student.List)
		studentRoutes.GET("/:id", selfOrStaff, h.Student.Get)
		studentRoutes.PUT("/:id/verify", adminOnly, h.Student.SetVerified)
		studentRoutes.GET("/:id/transcript", selfOrStaff, h.Student.Transcript)
		studentRoutes.GET("/:id/eligible-offerings", selfOrStaff, h.Offering.ListEligible)
	}

	enrollments := authed.Group("/enrollments")
	{
		enrollments.GET("", staff, h.Enrollment.List)
		enrollments.GET("/:id", h.Enrollment.Get)
		enrollments.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleStudent), h.Enrollment.Enroll)
		enrollments.PUT("/:id/grade", staff, h.Enrollment.RecordGrade)
		enrollments.POST("/:id/cancel", middleware.RequireRoles(models.RoleAdmin, models.RoleStudent), h.Enrollment.Cancel)
		enrollments.PUT("/:id/paid", adminOnly, h.Enrollment.SetPaid)
	}
}
