package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/sekyikins/AI-Scheduler-Project/domain"
	"github.com/sekyikins/AI-Scheduler-Project/store"
)

// SQLiteSchema creates the tasks table. It is idempotent.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id                 TEXT PRIMARY KEY,
	user_id            TEXT NOT NULL,
	title              TEXT NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	priority           TEXT NOT NULL DEFAULT 'medium',
	status             TEXT NOT NULL DEFAULT 'pending',
	due_date           TEXT,
	tags               TEXT NOT NULL DEFAULT '[]',
	estimated_duration INTEGER,
	actual_duration    INTEGER,
	ai_generated       INTEGER NOT NULL DEFAULT 0,
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks(priority);
`

// sqliteTime is fixed width so stored values sort lexically.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

const taskColumns = `id, user_id, title, description, priority, status, due_date, tags,
	estimated_duration, actual_duration, ai_generated, created_at, updated_at`

// SQLiteAccess persists tasks in a SQLite database.
type SQLiteAccess struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
// The caller is responsible for calling Close.
func OpenSQLite(path string) (*SQLiteAccess, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(SQLiteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteAccess{db: db}, nil
}

func (s *SQLiteAccess) Close() error { return s.db.Close() }

func (s *SQLiteAccess) ListTasks(ctx context.Context, f store.Filter) ([]domain.Task, error) {
	q := strings.Builder{}
	q.WriteString("SELECT " + taskColumns + " FROM tasks WHERE 1=1")
	args := []any{}
	if f.Status != nil {
		q.WriteString(" AND status=?")
		args = append(args, string(*f.Status))
	}
	if f.Priority != nil {
		q.WriteString(" AND priority=?")
		args = append(args, string(*f.Priority))
	}
	q.WriteString(" ORDER BY rowid ASC")

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *SQLiteAccess) CreateTask(ctx context.Context, userID string, draft domain.TaskCreate) (domain.Task, error) {
	t := draft.NewTask(uuid.NewString(), userID, domain.Now())
	tags, err := sonic.MarshalString(t.Tags)
	if err != nil {
		return domain.Task{}, fmt.Errorf("encode tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.UserID, t.Title, t.Description, string(t.Priority), string(t.Status),
		nullTime(t.DueDate), tags, nullInt(t.EstimatedDuration), nullInt(t.ActualDuration),
		t.AIGenerated, formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

func (s *SQLiteAccess) UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) (domain.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	t, err := updateInTx(ctx, tx, id, upd)
	if err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, fmt.Errorf("commit: %w", err)
	}
	return t, nil
}

func (s *SQLiteAccess) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id=?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &domain.NotFoundError{ID: id}
	}
	return nil
}

// BulkUpdateTasks applies all known ids in one transaction and skips the rest.
func (s *SQLiteAccess) BulkUpdateTasks(ctx context.Context, items []domain.BulkUpdateItem) ([]domain.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	out := []domain.Task{}
	for _, it := range items {
		t, err := updateInTx(ctx, tx, it.ID, it.Updates)
		if domain.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

func updateInTx(ctx context.Context, tx *sql.Tx, id string, upd domain.TaskUpdate) (domain.Task, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id=?", id)
	current, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, &domain.NotFoundError{ID: id}
	}
	if err != nil {
		return domain.Task{}, err
	}
	t := upd.Apply(current, domain.Now())
	tags, err := sonic.MarshalString(t.Tags)
	if err != nil {
		return domain.Task{}, fmt.Errorf("encode tags: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE tasks SET
			title=?, description=?, priority=?, status=?, due_date=?, tags=?,
			estimated_duration=?, actual_duration=?, updated_at=?
		WHERE id=?`,
		t.Title, t.Description, string(t.Priority), string(t.Status), nullTime(t.DueDate), tags,
		nullInt(t.EstimatedDuration), nullInt(t.ActualDuration), formatTime(t.UpdatedAt),
		t.ID,
	)
	if err != nil {
		return domain.Task{}, fmt.Errorf("update task: %w", err)
	}
	return t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (domain.Task, error) {
	var (
		t                    domain.Task
		priority, status     string
		dueDate              sql.NullString
		tags                 string
		estimated, actual    sql.NullInt64
		createdAt, updatedAt string
	)
	err := s.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &priority, &status,
		&dueDate, &tags, &estimated, &actual, &t.AIGenerated, &createdAt, &updatedAt)
	if err != nil {
		return domain.Task{}, err
	}
	t.Priority = domain.Priority(priority)
	t.Status = domain.Status(status)
	if err := sonic.UnmarshalString(tags, &t.Tags); err != nil {
		return domain.Task{}, fmt.Errorf("decode tags of %s: %w", t.ID, err)
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if dueDate.Valid {
		d, err := time.Parse(sqliteTime, dueDate.String)
		if err != nil {
			return domain.Task{}, fmt.Errorf("parse due date of %s: %w", t.ID, err)
		}
		t.DueDate = &d
	}
	if estimated.Valid {
		v := int(estimated.Int64)
		t.EstimatedDuration = &v
	}
	if actual.Valid {
		v := int(actual.Int64)
		t.ActualDuration = &v
	}
	if t.CreatedAt, err = time.Parse(sqliteTime, createdAt); err != nil {
		return domain.Task{}, fmt.Errorf("parse created_at of %s: %w", t.ID, err)
	}
	if t.UpdatedAt, err = time.Parse(sqliteTime, updatedAt); err != nil {
		return domain.Task{}, fmt.Errorf("parse updated_at of %s: %w", t.ID, err)
	}
	return t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}
