package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/tutorhive/tutorhive-api/internal/models"
)

func TestAvailabilityRepositoryFindPattern(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	rows := sqlmock.NewRows([]string{"id", "teacher_id", "weekday", "slots", "created_at", "updated_at"}).
		AddRow("pat-1", "t-1", 1, []byte(`["14:00-16:00","18:00-20:00"]`), time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, teacher_id, weekday, slots, created_at, updated_at FROM teacher_availability_patterns WHERE teacher_id = $1 AND weekday = $2")).
		WithArgs("t-1", 1).
		WillReturnRows(rows)

	pattern, err := repo.FindPattern(context.Background(), "t-1", 1)
	require.NoError(t, err)
	require.Equal(t, models.SlotList{"14:00-16:00", "18:00-20:00"}, pattern.Slots)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryFindOverrideMissingIsNil(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, teacher_id, date, slots, created_at, updated_at FROM daily_availability_overrides WHERE teacher_id = $1 AND date = $2")).
		WithArgs("t-1", "2024-06-03").
		WillReturnRows(sqlmock.NewRows([]string{"id", "teacher_id", "date", "slots", "created_at", "updated_at"}))

	override, err := repo.FindOverride(context.Background(), "t-1", time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Nil(t, override)
	require.NoError(t, mock.ExpectationsWereMet())
}
