package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/uni-registrar-api/pkg/errors"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryAdmit(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT slots FROM offerings WHERE id = $1 FOR UPDATE")).
		WithArgs("off-1").
		WillReturnRows(sqlmock.NewRows([]string{"slots"}).AddRow(30))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE offering_id = $1 AND canceled = FALSE")).
		WithArgs("off-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	record, err := repo.Admit(context.Background(), "stu-1", "off-1")
	require.NoError(t, err)
	require.NotEmpty(t, record.ID)
	require.Equal(t, "stu-1", record.StudentID)
	require.Equal(t, "off-1", record.OfferingID)
	require.Nil(t, record.Grade)
	require.Nil(t, record.Passed)
	require.False(t, record.Paid)
	require.False(t, record.Canceled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryAdmitCourseFull(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT slots FROM offerings WHERE id = $1 FOR UPDATE")).
		WithArgs("off-1").
		WillReturnRows(sqlmock.NewRows([]string{"slots"}).AddRow(30))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("off-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(30))
	mock.ExpectRollback()

	_, err := repo.Admit(context.Background(), "stu-1", "off-1")
	require.True(t, appErrors.Is(err, appErrors.ErrCourseFull))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryAdmitDuplicateRace(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT slots FROM offerings WHERE id = $1 FOR UPDATE")).
		WithArgs("off-1").
		WillReturnRows(sqlmock.NewRows([]string{"slots"}).AddRow(30))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("off-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnError(&pq.Error{Code: "23505", Message: `duplicate key value violates unique constraint "enrollments_student_offering_key"`})
	mock.ExpectRollback()

	_, err := repo.Admit(context.Background(), "stu-1", "off-1")
	require.True(t, appErrors.Is(err, appErrors.ErrAlreadyRegistered))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryAdmitUnknownOffering(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT slots FROM offerings WHERE id = $1 FOR UPDATE")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"slots"}))
	mock.ExpectRollback()

	_, err := repo.Admit(context.Background(), "stu-1", "ghost")
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryAdmitDeadlockWrapsTransient(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT slots FROM offerings WHERE id = $1 FOR UPDATE")).
		WithArgs("off-1").
		WillReturnError(&pq.Error{Code: "40P01", Message: "deadlock detected"})
	mock.ExpectRollback()

	_, err := repo.Admit(context.Background(), "stu-1", "off-1")
	require.True(t, appErrors.Is(err, appErrors.ErrTransient))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassifyAdmitError(t *testing.T) {
	expired, cancel := context.WithCancel(context.Background())
	cancel()

	// A definitive rejection stays definitive even when the deadline
	// expires after the decision was made.
	err := classifyAdmitError(expired, appErrors.ErrCourseFull)
	require.True(t, appErrors.Is(err, appErrors.ErrCourseFull))
	require.False(t, appErrors.Is(err, appErrors.ErrTransient))

	err = classifyAdmitError(expired, appErrors.ErrAlreadyRegistered)
	require.True(t, appErrors.Is(err, appErrors.ErrAlreadyRegistered))

	// Untyped failures under an expired context are retriable.
	err = classifyAdmitError(expired, errors.New("driver: bad connection"))
	require.True(t, appErrors.Is(err, appErrors.ErrTransient))

	// Serialization failures are retriable regardless of the context.
	err = classifyAdmitError(context.Background(), &pq.Error{Code: "40001"})
	require.True(t, appErrors.Is(err, appErrors.ErrTransient))

	// Everything else passes through untouched.
	plain := errors.New("insert enrollment: boom")
	require.Equal(t, plain, classifyAdmitError(context.Background(), plain))
}

func TestEnrollmentRepositoryExistsForPair(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND offering_id = $2 LIMIT 1")).
		WithArgs("stu-1", "off-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsForPair(context.Background(), "stu-1", "off-1")
	require.NoError(t, err)
	require.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND offering_id = $2 LIMIT 1")).
		WithArgs("stu-1", "off-2").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err = repo.ExistsForPair(context.Background(), "stu-1", "off-2")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryLiveActiveSlotIDs(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"time_slot_id"}).AddRow(3).AddRow(7)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT ots.time_slot_id FROM enrollments e")).
		WithArgs("stu-1").
		WillReturnRows(rows)

	ids, err := repo.LiveActiveSlotIDs(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Equal(t, []int{3, 7}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}
