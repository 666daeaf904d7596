package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"carwash/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return Wrap(sqlDB, DriverMySQL, nil), mock
}

func TestMySQLDuplicateKey(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'BK001' for key 'PRIMARY'"})

	err := db.CreateBooking(context.Background(), sampleBooking("BK001"))
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLConnectionLoss(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := context.Background()

	refused := errors.New("dial tcp 127.0.0.1:3306: connect: connection refused")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).WillReturnError(refused)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name")).WillReturnError(refused)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings")).WillReturnError(&mysql.MySQLError{Number: 2006, Message: "MySQL server has gone away"})

	assert.ErrorIs(t, db.CreateBooking(ctx, sampleBooking("BK001")), ErrUnavailable)

	_, err := db.ListBookings(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)

	assert.ErrorIs(t, db.UpdateBookingStatus(ctx, "BK001", models.StatusConfirmed), ErrUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLUpdateNoRows(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = ?")).
		WithArgs(models.StatusConfirmed, sqlmock.AnyArg(), "BK999").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := db.UpdateBookingStatus(context.Background(), "BK999", models.StatusConfirmed)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLSearchBuildsCombinedFilter(t *testing.T) {
	db, mock := newMockDB(t)

	rows := sqlmock.NewRows([]string{"id", "name", "email", "phone", "service", "date", "time", "status", "message", "created_at", "updated_at"})
	mock.ExpectQuery(`WHERE \(LOWER\(id\) LIKE \?.*\) AND status = \? AND date = \?`).
		WithArgs("%raj%", "%raj%", "%raj%", "%raj%", "%raj%", "pending", "2026-02-20").
		WillReturnRows(rows)

	got, err := db.SearchBookings(context.Background(), "Raj", "pending", "2026-02-20")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
