// Package history archives finished tasks to sqlite. The in-memory store is
// the source of truth and gets pruned; the archive keeps the audit trail.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/gamepilot/gamepilot/internals/schemas"
)

//go:embed migrations/*.sql
var migrations embed.FS

var ErrNotFound = errors.New("task not found in history")

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, err
	}
	goose.SetLogger(goose.NopLogger())
	if err := goose.Up(db, "migrations"); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Record inserts a finished task. Re-recording the same id is a no-op so a
// crash between archive and prune cannot duplicate rows.
func (s *Store) Record(ctx context.Context, task schemas.Task) error {
	_, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO task_history (id, type, status, priority, params_json, result_json, error, created_at, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		task.ID,
		string(task.Type),
		string(task.Status),
		task.Priority,
		nullIfEmpty(string(task.Params)),
		nullIfEmpty(string(task.Result)),
		nullIfEmpty(task.Error),
		task.CreatedAt.UTC().Format(time.RFC3339Nano),
		formatTime(task.StartedAt),
		formatTime(task.FinishedAt),
	)
	return err
}

func (s *Store) Get(ctx context.Context, id int64) (*schemas.Task, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, type, status, priority, params_json, result_json, error, created_at, started_at, finished_at
FROM task_history
WHERE id = ?
`, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return task, nil
}

func (s *Store) List(ctx context.Context, limit int) ([]schemas.Task, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, type, status, priority, params_json, result_json, error, created_at, started_at, finished_at
FROM task_history
ORDER BY id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []schemas.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*schemas.Task, error) {
	var task schemas.Task
	var taskType, status, createdAt string
	var params, result, errMsg, startedAt, finishedAt sql.NullString
	if err := row.Scan(&task.ID, &taskType, &status, &task.Priority, &params, &result, &errMsg, &createdAt, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	task.Type = schemas.TaskType(taskType)
	task.Status = schemas.TaskStatus(status)
	if params.Valid {
		task.Params = []byte(params.String)
	}
	if result.Valid {
		task.Result = []byte(result.String)
	}
	task.Error = errMsg.String
	if at, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		task.CreatedAt = at
	}
	task.StartedAt = parseTime(startedAt)
	task.FinishedAt = parseTime(finishedAt)
	return &task, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(at *time.Time) any {
	if at == nil {
		return nil
	}
	return at.UTC().Format(time.RFC3339Nano)
}

func parseTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	at, err := time.Parse(time.RFC3339Nano, value.String)
	if err != nil {
		return nil
	}
	return &at
}
