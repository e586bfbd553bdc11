package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocker struct {
	acquired bool
	denied   bool
	released int
	token    string
	key      string
}

func (l *fakeLocker) Acquire(_ context.Context, key, token string, _ time.Duration) (bool, error) {
	if l.denied {
		return false, nil
	}
	l.acquired = true
	l.key = key
	l.token = token
	return true, nil
}

func (l *fakeLocker) Release(_ context.Context, key, token string) (bool, error) {
	l.released++
	return key == l.key && token == l.token, nil
}

func TestRewardWeekKey(t *testing.T) {
	// 2024-01-01 is a Monday, ISO week 1.
	assert.Equal(t, "2024-W01", RewardWeek(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	// 2023-01-01 is a Sunday belonging to ISO 2022-W52.
	assert.Equal(t, "2022-W52", RewardWeek(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestRewardRunSkipsWhenLockHeld(t *testing.T) {
	db, mock := newMockDB(t)
	locker := &fakeLocker{denied: true}
	svc := NewRewardService(db, testCatalog(), locker)

	_, err := svc.Run(context.Background())
	assert.ErrorIs(t, err, ErrRewardRunning)

	// No queries were issued.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRewardRunGrantsOncePerUser(t *testing.T) {
	db, mock := newMockDB(t)
	locker := &fakeLocker{}
	svc := NewRewardService(db, testCatalog(), locker)
	svc.now = func() time.Time { return time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC) }

	future := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT (.+) FROM "subscriptions" WHERE status IN`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "product_id", "plan_type", "status", "current_period_end"}).
			AddRow(1, 7, "vip_weekly", "weekly", "active", future).
			AddRow(2, 8, "vip_lifetime", "lifetime", "active", nil))

	// User 7: grant succeeds.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "user_points" WHERE user_id = (.+) FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "balance", "updated_at"}).
			AddRow(10, 7, 100, time.Now()))
	mock.ExpectExec(`UPDATE "user_points" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "point_transactions"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// User 8: already rewarded this week; the unique index fires.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "user_points" WHERE user_id = (.+) FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "balance", "updated_at"}).
			AddRow(11, 8, 5000, time.Now()))
	mock.ExpectExec(`UPDATE "user_points" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "point_transactions"`).
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "idx_user_reward_week"`))
	mock.ExpectRollback()

	stats, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2026-W35", stats.Week)
	assert.Equal(t, 2, stats.Eligible)
	assert.Equal(t, 1, stats.Granted)
	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, 1, locker.released)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRewardRunSkipsLapsedPeriods(t *testing.T) {
	db, mock := newMockDB(t)
	locker := &fakeLocker{}
	svc := NewRewardService(db, testCatalog(), locker)
	svc.now = func() time.Time { return time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC) }

	past := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT (.+) FROM "subscriptions" WHERE status IN`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "product_id", "plan_type", "status", "current_period_end"}).
			AddRow(1, 7, "vip_weekly", "weekly", "cancelled", past))

	stats, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Eligible)
	assert.Zero(t, stats.Granted)
	assert.Equal(t, 1, locker.released)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRewardRunReleasesLockOnError(t *testing.T) {
	db, mock := newMockDB(t)
	locker := &fakeLocker{}
	svc := NewRewardService(db, testCatalog(), locker)

	mock.ExpectQuery(`SELECT (.+) FROM "subscriptions" WHERE status IN`).
		WillReturnError(errors.New("connection reset"))

	_, err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, locker.released)
}

var _ RewardLocker = (*fakeLocker)(nil)
