package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"ZipPicks/internal/domain"
	"ZipPicks/internal/ports"
)

// PostgresStore persists tasks in a generation_tasks table for teams
// running the pipeline from more than one machine. The composite key
// (city, vibe, task_date, prompt_version) carries a unique constraint
// so Save is an upsert.
type PostgresStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.TaskStore = (*PostgresStore)(nil)

// NewPostgresStore opens a connection pool for the given DSN and
// verifies it with a ping.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) Get(ctx context.Context, key domain.TaskKey) (*domain.GenerationTask, error) {
	query, args, err := s.selectTasks().
		Where(sq.Eq{
			"city":           key.City,
			"vibe":           key.Vibe,
			"task_date":      key.Date,
			"prompt_version": key.PromptVersion,
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	row := s.db.QueryRowContext(ctx, query, args...)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return &task, nil
}

func (s *PostgresStore) Save(ctx context.Context, task domain.GenerationTask) error {
	query, args, err := s.builder.
		Insert("generation_tasks").
		Columns("city", "vibe", "task_date", "prompt_version",
			"state", "retries", "last_error", "post_id", "created_at", "updated_at").
		Values(task.Key.City, task.Key.Vibe, task.Key.Date, task.Key.PromptVersion,
			string(task.State), task.Retries, task.LastError, task.PostID,
			task.CreatedAt, task.UpdatedAt).
		Suffix(`ON CONFLICT (city, vibe, task_date, prompt_version) DO UPDATE
			SET state = EXCLUDED.state,
			    retries = EXCLUDED.retries,
			    last_error = EXCLUDED.last_error,
			    post_id = EXCLUDED.post_id,
			    updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert task: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]domain.GenerationTask, error) {
	query, args, err := s.selectTasks().
		OrderBy("city", "vibe", "task_date", "prompt_version").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}

	var tasks []domain.GenerationTask
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan task: %w", scanErr)
		}
		tasks = append(tasks, task)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return tasks, nil
}

func (s *PostgresStore) selectTasks() sq.SelectBuilder {
	return s.builder.
		Select("city", "vibe", "task_date", "prompt_version",
			"state", "retries", "last_error", "post_id", "created_at", "updated_at").
		From("generation_tasks")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (domain.GenerationTask, error) {
	var task domain.GenerationTask
	var state string
	err := row.Scan(&task.Key.City, &task.Key.Vibe, &task.Key.Date, &task.Key.PromptVersion,
		&state, &task.Retries, &task.LastError, &task.PostID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return domain.GenerationTask{}, err
	}
	task.State = domain.TaskState(state)
	return task, nil
}
