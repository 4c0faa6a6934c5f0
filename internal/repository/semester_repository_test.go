package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-registrar-api/internal/models"
)

func newSemesterRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

func TestSemesterRepositoryCreateStartsInactive(t *testing.T) {
	db, mock, cleanup := newSemesterRepoMock(t)
	defer cleanup()

	repo := NewSemesterRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO semesters (codename, start_date, end_date, active, created_at, updated_at) VALUES ($1, $2, $3, FALSE")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	semester := &models.Semester{
		Codename:  404,
		StartDate: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC),
		// The insert hardcodes FALSE; a caller setting Active cannot
		// sneak a second active semester in through Create.
		Active: true,
	}
	require.NoError(t, repo.Create(context.Background(), semester))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSemesterRepositorySetActiveSwitchesInOneTx(t *testing.T) {
	db, mock, cleanup := newSemesterRepoMock(t)
	defer cleanup()

	repo := NewSemesterRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE semesters SET active = FALSE, updated_at = $1 WHERE active = TRUE AND codename <> $2")).
		WithArgs(sqlmock.AnyArg(), 404).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE semesters SET active = TRUE, updated_at = $2 WHERE codename = $1")).
		WithArgs(404, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SetActive(context.Background(), 404))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSemesterRepositorySetActiveUnknownCodename(t *testing.T) {
	db, mock, cleanup := newSemesterRepoMock(t)
	defer cleanup()

	repo := NewSemesterRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE semesters SET active = FALSE")).
		WithArgs(sqlmock.AnyArg(), 999).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE semesters SET active = TRUE")).
		WithArgs(999, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.SetActive(context.Background(), 999)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSemesterRepositoryFindActive(t *testing.T) {
	db, mock, cleanup := newSemesterRepoMock(t)
	defer cleanup()

	repo := NewSemesterRepository(db)

	rows := sqlmock.NewRows([]string{"codename", "start_date", "end_date", "active", "created_at", "updated_at"}).
		AddRow(404, time.Now(), time.Now(), true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT codename, start_date, end_date, active, created_at, updated_at FROM semesters WHERE active = TRUE LIMIT 1")).
		WillReturnRows(rows)

	semester, err := repo.FindActive(context.Background())
	require.NoError(t, err)
	require.Equal(t, 404, semester.Codename)
	require.True(t, semester.Active)
	require.Equal(t, "04", semester.YearDigits())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSemesterRepositoryUpdateMissing(t *testing.T) {
	db, mock, cleanup := newSemesterRepoMock(t)
	defer cleanup()

	repo := NewSemesterRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE semesters SET start_date = $1, end_date = $2, updated_at = $3 WHERE codename = $4")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Semester{Codename: 777})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
