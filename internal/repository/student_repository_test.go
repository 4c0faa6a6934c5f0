package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-registrar-api/internal/models"
)

func newStudentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func expectRegisterTx(mock sqlmock.Sqlmock, prefix, existing string) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	rows := sqlmock.NewRows([]string{"student_no"})
	if existing != "" {
		rows.AddRow(existing)
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT student_no FROM students WHERE student_no LIKE $1 ORDER BY student_no DESC LIMIT 1")).
		WithArgs(prefix + "%").
		WillReturnRows(rows)
}

func TestStudentRepositoryRegisterFirstOfPrefix(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)

	expectRegisterTx(mock, "1204", "")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	user := &models.User{Email: "a@uni.edu", Role: models.RoleStudent, Active: true}
	student := &models.Student{MajorID: "major-1", FirstSemester: 404}
	require.NoError(t, repo.Register(context.Background(), user, student, "1204", 3))
	require.Equal(t, "12040001", student.StudentNo)
	require.Equal(t, user.ID, student.UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryRegisterIncrementsSuffix(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)

	expectRegisterTx(mock, "1204", "12040017")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	user := &models.User{Email: "b@uni.edu", Role: models.RoleStudent, Active: true}
	student := &models.Student{MajorID: "major-1", FirstSemester: 404}
	require.NoError(t, repo.Register(context.Background(), user, student, "1204", 3))
	require.Equal(t, "12040018", student.StudentNo)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryRegisterRetriesOnNumberCollision(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)

	// First attempt loses the race on the unique student_no index.
	expectRegisterTx(mock, "1204", "12040007")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WillReturnError(&pq.Error{Code: "23505", Message: `duplicate key value violates unique constraint "students_student_no_key"`})
	mock.ExpectRollback()

	// Second attempt re-reads the max and succeeds.
	expectRegisterTx(mock, "1204", "12040008")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	user := &models.User{Email: "c@uni.edu", Role: models.RoleStudent, Active: true}
	student := &models.Student{MajorID: "major-1", FirstSemester: 404}
	require.NoError(t, repo.Register(context.Background(), user, student, "1204", 3))
	require.Equal(t, "12040009", student.StudentNo)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpdateGPASkipsNoChange(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET gpa = $2, updated_at = $3 WHERE id = $1 AND gpa IS DISTINCT FROM $2")).
		WithArgs("stu-1", 13.2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	changed, err := repo.UpdateGPA(context.Background(), "stu-1", 13.2)
	require.NoError(t, err)
	require.True(t, changed)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET gpa = $2")).
		WithArgs("stu-1", 13.2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err = repo.UpdateGPA(context.Background(), "stu-1", 13.2)
	require.NoError(t, err)
	require.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryPassedGradeAggregate(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"weighted", "total_size"}).AddRow(66.0, 5)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(e.grade * u.unit_size), 0) AS weighted")).
		WithArgs("stu-1").
		WillReturnRows(rows)

	agg, err := repo.PassedGradeAggregate(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Equal(t, 66.0, agg.Weighted)
	require.Equal(t, 5, agg.TotalSize)
	require.NoError(t, mock.ExpectationsWereMet())
}
