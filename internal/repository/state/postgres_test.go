package state

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medusa-storefront/internal/domain"
)

func setupPostgres(t *testing.T) (*postgresRepo, pgxmock.PgxPoolIface, time.Time) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := NewPostgres(mock, time.Hour).(*postgresRepo)
	repo.now = func() time.Time { return now }
	return repo, mock, now
}

func TestPostgresGet(t *testing.T) {
	repo, mock, now := setupPostgres(t)

	mock.ExpectQuery("SELECT value FROM storefront_state").
		WithArgs("s1", "cart_id", now).
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte("c1")))

	got, err := repo.Get(context.Background(), "s1", "cart_id")
	require.NoError(t, err)
	assert.Equal(t, "c1", string(got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetMissing(t *testing.T) {
	repo, mock, now := setupPostgres(t)

	mock.ExpectQuery("SELECT value FROM storefront_state").
		WithArgs("s1", "cart_id", now).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), "s1", "cart_id")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSet(t *testing.T) {
	repo, mock, now := setupPostgres(t)

	mock.ExpectExec("INSERT INTO storefront_state").
		WithArgs("s1", "order_o1", []byte(`{"id":"o1"}`), now.Add(time.Hour)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Set(context.Background(), "s1", "order_o1", []byte(`{"id":"o1"}`)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetIfAbsent(t *testing.T) {
	repo, mock, now := setupPostgres(t)

	mock.ExpectExec("INSERT INTO storefront_state").
		WithArgs("s1", "checkout_c1", []byte("in_flight"), now.Add(time.Hour), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO storefront_state").
		WithArgs("s1", "checkout_c1", []byte("in_flight"), now.Add(time.Hour), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	ok, err := repo.SetIfAbsent(context.Background(), "s1", "checkout_c1", []byte("in_flight"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetIfAbsent(context.Background(), "s1", "checkout_c1", []byte("in_flight"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDelete(t *testing.T) {
	repo, mock, _ := setupPostgres(t)

	mock.ExpectExec("DELETE FROM storefront_state").
		WithArgs("s1", "cart_id").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, repo.Delete(context.Background(), "s1", "cart_id"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
