package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pickitchen/pickitchen-backend/internal/models"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

func balanceRows(id, userID, balance int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "balance", "updated_at"}).
		AddRow(id, userID, balance, time.Now().UTC())
}

func TestChangeBalanceDebit(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT (.+) FROM "user_points" WHERE user_id = (.+) FOR UPDATE`).
		WillReturnRows(balanceRows(1, 42, 500))
	mock.ExpectExec(`UPDATE "user_points" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "point_transactions"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	points, err := ChangeBalance(db, 42, -200, models.PointTransactionConsume, Correlation{TaskType: "emoji"})
	require.NoError(t, err)
	assert.Equal(t, int64(300), points.Balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeBalanceInsufficientWritesNothing(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT (.+) FROM "user_points" WHERE user_id = (.+) FOR UPDATE`).
		WillReturnRows(balanceRows(1, 42, 100))

	_, err := ChangeBalance(db, 42, -200, models.PointTransactionConsume, Correlation{TaskType: "emoji"})
	assert.ErrorIs(t, err, ErrInsufficientPoints)

	// No UPDATE and no INSERT may have been issued.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeBalanceCredit(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT (.+) FROM "user_points" WHERE user_id = (.+) FOR UPDATE`).
		WillReturnRows(balanceRows(1, 7, 0))
	mock.ExpectExec(`UPDATE "user_points" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "point_transactions"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	points, err := ChangeBalance(db, 7, 1000, models.PointTransactionPurchase, Correlation{OrderNo: "txn_abc"})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), points.Balance)
}

func TestChangeBalanceDuplicateReward(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT (.+) FROM "user_points" WHERE user_id = (.+) FOR UPDATE`).
		WillReturnRows(balanceRows(1, 7, 2000))
	mock.ExpectExec(`UPDATE "user_points" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "point_transactions"`).
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "idx_user_reward_week"`))

	_, err := ChangeBalance(db, 7, 2000, models.PointTransactionReward, Correlation{RewardWeek: "2026-W35"})
	assert.ErrorIs(t, err, ErrAlreadyRewarded)
}

func TestChangeBalanceCreatesMissingRow(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT (.+) FROM "user_points" WHERE user_id = (.+) FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "balance", "updated_at"}))
	mock.ExpectExec(`INSERT INTO "user_points"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "user_points" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "point_transactions"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	points, err := ChangeBalance(db, 9, 500, models.PointTransactionPurchase, Correlation{OrderNo: "txn_new"})
	require.NoError(t, err)
	assert.Equal(t, int64(500), points.Balance)
}

func TestGetOrCreateBalanceExisting(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT (.+) FROM "user_points" WHERE user_id =`).
		WillReturnRows(balanceRows(1, 42, 300))

	points, err := GetOrCreateBalance(db, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(300), points.Balance)
}

func TestGetOrCreateBalanceCreateRace(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT (.+) FROM "user_points" WHERE user_id =`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "balance", "updated_at"}))
	mock.ExpectExec(`INSERT INTO "user_points"`).
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "idx_user_points_user_id"`))
	mock.ExpectQuery(`SELECT (.+) FROM "user_points" WHERE user_id =`).
		WillReturnRows(balanceRows(2, 42, 0))

	points, err := GetOrCreateBalance(db, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(0), points.Balance)
}
