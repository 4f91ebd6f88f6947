package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pgxMockAdapter struct {
	mock pgxmock.PgxPoolIface
}

func (a *pgxMockAdapter) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return a.mock.Exec(ctx, sql, args...)
}

func (a *pgxMockAdapter) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return a.mock.Query(ctx, sql, args...)
}

func (a *pgxMockAdapter) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return a.mock.QueryRow(ctx, sql, args...)
}

func (a *pgxMockAdapter) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	return a.mock.BeginTx(ctx, txOptions)
}

func (a *pgxMockAdapter) Close() { a.mock.Close() }

func (a *pgxMockAdapter) Ping(ctx context.Context) error { return a.mock.Ping(ctx) }

func setupMockDB(t *testing.T) (pgxmock.PgxPoolIface, *PostgresRunRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPostgresRunRepository(&pgxMockAdapter{mock: mock})
}

var runCols = []string{
	"id", "instance", "instance_hash", "left_nodes", "right_nodes", "nodes", "edges",
	"max_flow", "timings", "cached", "tags", "created_at",
}

func TestPostgresRunRepository_Create(t *testing.T) {
	mock, repo := setupMockDB(t)
	ctx := context.Background()

	run := &Run{
		Instance:     "hilo-20000-5-2",
		InstanceHash: "c0ffee",
		LeftNodes:    3333,
		RightNodes:   16667,
		Nodes:        20002,
		Edges:        26665,
		MaxFlow:      987654,
		Timings:      map[string]float64{"fifo": 12.5, "dinic": 30},
		Tags:         []string{"nightly"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO instances .* ON CONFLICT \(hash\) DO UPDATE`).
		WithArgs("c0ffee", "hilo-20000-5-2", 3333, 16667, 20002, 26665, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(
			pgxmock.AnyArg(), "hilo-20000-5-2", "c0ffee",
			3333, 16667, 20002, 26665,
			int64(987654), []byte(`{"dinic":30,"fifo":12.5}`), false,
			pq.Array([]string{"nightly"}), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(ctx, run))
	assert.NotEqual(t, uuid.Nil, run.ID)
	assert.False(t, run.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunRepository_Create_NilTagsBecomeEmpty(t *testing.T) {
	mock, repo := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO instances`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(
			pgxmock.AnyArg(), "x", "h", 0, 0, 0, 0, int64(0),
			[]byte(`{}`), true, pq.Array([]string{}), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), &Run{Instance: "x", InstanceHash: "h", Cached: true}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunRepository_Create_Error(t *testing.T) {
	mock, repo := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO instances`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO runs`).WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &Run{Instance: "x"})
	assert.ErrorContains(t, err, "insert run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunRepository_Create_InstanceUpsertFails(t *testing.T) {
	mock, repo := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO instances`).WillReturnError(errors.New("relation does not exist"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &Run{Instance: "x", InstanceHash: "h"})
	assert.ErrorContains(t, err, "upsert instance")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunRepository_Get(t *testing.T) {
	mock, repo := setupMockDB(t)
	id := uuid.New()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .* FROM runs WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(runCols).AddRow(
			id, "zipf-1", "abc", 5, 10, 17, 40,
			int64(77), []byte(`{"highest_label":4.5}`), false, []string{"a", "b"}, created,
		))

	run, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, run.ID)
	assert.Equal(t, "zipf-1", run.Instance)
	assert.Equal(t, int64(77), run.MaxFlow)
	assert.Equal(t, 4.5, run.Timings["highest_label"])
	assert.Equal(t, []string{"a", "b"}, run.Tags)
	assert.Equal(t, created, run.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunRepository_Get_NotFound(t *testing.T) {
	mock, repo := setupMockDB(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM runs WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRunRepository_List(t *testing.T) {
	mock, repo := setupMockDB(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM runs WHERE instance = \$1 AND tags @> \$2 ORDER BY created_at DESC LIMIT \$3`).
		WithArgs("rope-1", pq.Array([]string{"nightly"}), 5).
		WillReturnRows(pgxmock.NewRows(runCols).
			AddRow(uuid.New(), "rope-1", "h", 1, 2, 5, 4, int64(9), []byte(`{}`), false, []string{"nightly"}, now).
			AddRow(uuid.New(), "rope-1", "h", 1, 2, 5, 4, int64(9), []byte(`{}`), true, []string{"nightly"}, now.Add(-time.Hour)))

	runs, err := repo.List(context.Background(), ListParams{Limit: 5, Instance: "rope-1", Tags: []string{"nightly"}})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.False(t, runs[0].Cached)
	assert.True(t, runs[1].Cached)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunRepository_List_DefaultAndMaxLimit(t *testing.T) {
	mock, repo := setupMockDB(t)

	mock.ExpectQuery(`SELECT .* FROM runs ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(defaultListLimit).
		WillReturnRows(pgxmock.NewRows(runCols))
	mock.ExpectQuery(`FROM runs WHERE instance_hash = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs("h", maxListLimit).
		WillReturnRows(pgxmock.NewRows(runCols))

	runs, err := repo.List(context.Background(), ListParams{})
	require.NoError(t, err)
	assert.Empty(t, runs)

	_, err = repo.List(context.Background(), ListParams{Limit: 10000, InstanceHash: "h"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunRepository_Delete(t *testing.T) {
	mock, repo := setupMockDB(t)
	id := uuid.New()

	mock.ExpectExec(`DELETE FROM runs WHERE id = \$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM runs WHERE id = \$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.Delete(context.Background(), id))
	assert.ErrorIs(t, repo.Delete(context.Background(), id), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunRepository_Prune(t *testing.T) {
	mock, repo := setupMockDB(t)
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectExec(`DELETE FROM runs WHERE created_at < \$1`).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))
	mock.ExpectExec(`DELETE FROM instances WHERE NOT EXISTS`).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	n, err := repo.Prune(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunRepository_Prune_RollsBack(t *testing.T) {
	mock, repo := setupMockDB(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectExec(`DELETE FROM runs`).WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`DELETE FROM instances`).WillReturnError(errors.New("serialization failure"))
	mock.ExpectRollback()

	_, err := repo.Prune(context.Background(), time.Now())
	assert.ErrorContains(t, err, "prune instances")
	assert.NoError(t, mock.ExpectationsWereMet())
}
