package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/tutorhive/tutorhive-api/internal/models"
)

func TestQuotaRepositoryIncrementReturnsPostValue(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQuotaRepository(db)

	mock.ExpectQuery("INSERT INTO monthly_adjustment_counters .+ RETURNING used_count").
		WillReturnRows(sqlmock.NewRows([]string{"used_count"}).AddRow(3))

	used, err := repo.Increment(context.Background(), models.ActorStudent, "s-1", "enr-1", "2024-06")
	require.NoError(t, err)
	require.Equal(t, 3, used)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuotaRepositoryDecrementMissingRowIsZero(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQuotaRepository(db)

	mock.ExpectQuery("UPDATE monthly_adjustment_counters .+ RETURNING used_count").
		WillReturnRows(sqlmock.NewRows([]string{"used_count"}))

	used, err := repo.Decrement(context.Background(), models.ActorStudent, "s-1", "enr-1", "2024-06")
	require.NoError(t, err)
	require.Equal(t, 0, used)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuotaRepositoryUsedMissingRowIsZero(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQuotaRepository(db)

	mock.ExpectQuery("SELECT used_count FROM monthly_adjustment_counters").
		WithArgs(models.ActorTeacher, "t-1", "enr-1", "2024-06").
		WillReturnRows(sqlmock.NewRows([]string{"used_count"}))

	used, err := repo.Used(context.Background(), models.ActorTeacher, "t-1", "enr-1", "2024-06")
	require.NoError(t, err)
	require.Equal(t, 0, used)
	require.NoError(t, mock.ExpectationsWereMet())
}
