// Package repository persists benchmark runs.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"bipflow/pkg/database"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// Run is one benchmarked instance.
type Run struct {
	ID           uuid.UUID
	Instance     string
	InstanceHash string
	LeftNodes    int
	RightNodes   int
	Nodes        int
	Edges        int
	MaxFlow      int64
	// Timings maps algorithm name to milliseconds.
	Timings   map[string]float64
	Cached    bool
	Tags      []string
	CreatedAt time.Time
}

// ListParams filters List. Tags must all be present on a run.
type ListParams struct {
	Limit        int
	Instance     string
	InstanceHash string
	Tags         []string
}

// RunRepository stores runs.
type RunRepository interface {
	Create(ctx context.Context, run *Run) error
	Get(ctx context.Context, id uuid.UUID) (*Run, error)
	List(ctx context.Context, params ListParams) ([]*Run, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// PostgresRunRepository is the PostgreSQL RunRepository.
type PostgresRunRepository struct {
	db database.DB
}

// NewPostgresRunRepository returns a repository on db.
func NewPostgresRunRepository(db database.DB) *PostgresRunRepository {
	return &PostgresRunRepository{db: db}
}

const runColumns = "id, instance, instance_hash, left_nodes, right_nodes, nodes, edges, " +
	"max_flow, timings, cached, tags, created_at"

const (
	upsertInstance = `INSERT INTO instances (hash, name, left_nodes, right_nodes, nodes, edges, first_seen, last_seen) ` +
		`VALUES ($1, $2, $3, $4, $5, $6, $7, $7) ` +
		`ON CONFLICT (hash) DO UPDATE SET name = EXCLUDED.name, last_seen = EXCLUDED.last_seen`

	insertRun = `INSERT INTO runs (` + runColumns + `) ` +
		`VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
)

// Create records run and its instance in one transaction, assigning ID and
// CreatedAt when unset., assigning ID and CreatedAt when unset.
func (r *PostgresRunRepository) Create(ctx context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.Tags == nil {
		run.Tags = []string{}
	}
	if run.Timings == nil {
		run.Timings = map[string]float64{}
	}

	timings, err := json.Marshal(run.Timings)
	if err != nil {
		return fmt.Errorf("encode timings: %w", err)
	}

	return database.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, upsertInstance,
			run.InstanceHash, run.Instance,
			run.LeftNodes, run.RightNodes, run.Nodes, run.Edges, run.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert instance: %w", err)
		}

		_, err = tx.Exec(ctx, insertRun,
			run.ID, run.Instance, run.InstanceHash,
			run.LeftNodes, run.RightNodes, run.Nodes, run.Edges,
			run.MaxFlow, timings, run.Cached, pq.Array(run.Tags), run.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		return nil
	})
}

// Get returns the run with the given id.
func (r *PostgresRunRepository) Get(ctx context.Context, id uuid.UUID) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`

	run, err := scanRun(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// List returns the newest runs matching params.
func (r *PostgresRunRepository) List(ctx context.Context, params ListParams) ([]*Run, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	conditions, args := listConditions(params)
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT %s FROM runs%s ORDER BY created_at DESC LIMIT $%d`,
		runColumns, where, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func listConditions(params ListParams) ([]string, []any) {
	var conditions []string
	var args []any

	if params.Instance != "" {
		args = append(args, params.Instance)
		conditions = append(conditions, fmt.Sprintf("instance = $%d", len(args)))
	}
	if params.InstanceHash != "" {
		args = append(args, params.InstanceHash)
		conditions = append(conditions, fmt.Sprintf("instance_hash = $%d", len(args)))
	}
	if len(params.Tags) > 0 {
		args = append(args, pq.Array(params.Tags))
		conditions = append(conditions, fmt.Sprintf("tags @> $%d", len(args)))
	}
	return conditions, args
}

// Delete removes a run.
func (r *PostgresRunRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Prune deletes runs created before the cutoff, then the instances no run
// refers to any more. It returns the number of runs deleted.
func (r *PostgresRunRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	return database.WithTransactionResult(ctx, r.db, func(tx pgx.Tx) (int64, error) {
		tag, err := tx.Exec(ctx, `DELETE FROM runs WHERE created_at < $1`, before)
		if err != nil {
			return 0, fmt.Errorf("prune runs: %w", err)
		}
		_, err = tx.Exec(ctx, `DELETE FROM instances WHERE NOT EXISTS (SELECT 1 FROM runs WHERE runs.instance_hash = instances.hash)`)
		if err != nil {
			return 0, fmt.Errorf("prune instances: %w", err)
		}
		return tag.RowsAffected(), nil
	}, database.Serializable())
}

func scanRun(row pgx.Row) (*Run, error) {
	var (
		run     Run
		timings []byte
	)
	err := row.Scan(
		&run.ID, &run.Instance, &run.InstanceHash,
		&run.LeftNodes, &run.RightNodes, &run.Nodes, &run.Edges,
		&run.MaxFlow, &timings, &run.Cached, &run.Tags, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(timings) > 0 {
		if err := json.Unmarshal(timings, &run.Timings); err != nil {
			return nil, fmt.Errorf("decode timings: %w", err)
		}
	}
	return &run, nil
}
