package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sakif/taskboard/internal/apperror"
	"github.com/sakif/taskboard/internal/model"
)

const taskColumns = `id, user_id, title, description, completed, priority, due_date, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads one task row selected with taskColumns.
//
// Nullable columns go through sql.Null* first, then become nil pointers on
// the model. Scan must see the columns in exactly the SELECT order.
func scanTask(row rowScanner) (*model.Task, error) {
	var (
		t           model.Task
		description sql.NullString
		priority    string
		dueDate     sql.NullTime
	)

	if err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&description,
		&t.Completed,
		&priority,
		&dueDate,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}

	t.Priority = model.Priority(priority)
	if description.Valid {
		t.Description = &description.String
	}
	if dueDate.Valid {
		due := dueDate.Time
		t.DueDate = &due
	}

	return &t, nil
}

// ListByOwner returns every task owned by ownerID, newest first.
// A disconnected DB returns an empty list.
func (db *DB) ListByOwner(ctx context.Context, ownerID int64) ([]model.Task, error) {
	if db.conn == nil {
		return []model.Task{}, nil
	}

	rows, err := db.conn.QueryContext(ctx, db.dialect.rebind(
		`SELECT `+taskColumns+`
		 FROM tasks
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`),
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing tasks for user %d: %w", ownerID, err)
	}
	// CRITICAL: rows holds a pooled connection until closed.
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scanning task row: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating tasks: %w", err)
	}

	return tasks, nil
}

// GetByIDAndOwner returns the task with the given id if, and only if, it is
// owned by ownerID. Both a missing row and a row owned by someone else come
// back as apperror.ErrNotFound. A disconnected DB behaves like an empty table.
func (db *DB) GetByIDAndOwner(ctx context.Context, id, ownerID int64) (*model.Task, error) {
	if db.conn == nil {
		return nil, apperror.NotFound("task", id)
	}

	t, err := scanTask(db.conn.QueryRowContext(ctx, db.dialect.rebind(
		`SELECT `+taskColumns+`
		 FROM tasks
		 WHERE id = ? AND user_id = ?
		 LIMIT 1`),
		id, ownerID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("task", id)
		}
		return nil, fmt.Errorf("sqlstore: getting task %d: %w", id, err)
	}

	return t, nil
}

// Create inserts a new task and fills in its ID and timestamps.
//
// RETURNING id works on both SQLite (3.35+) and Postgres, which lets us skip
// LastInsertId (the pgx driver does not implement it).
func (db *DB) Create(ctx context.Context, task *model.Task) (model.WriteResult, error) {
	if db.conn == nil {
		return model.WriteResult{}, apperror.Unavailable("database")
	}

	now := db.now()
	task.CreatedAt = now
	task.UpdatedAt = now

	err := db.conn.QueryRowContext(ctx, db.dialect.rebind(
		`INSERT INTO tasks (user_id, title, description, completed, priority, due_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`),
		task.UserID,
		task.Title,
		nullString(task.Description),
		task.Completed,
		string(task.Priority),
		nullTime(task.DueDate),
		task.CreatedAt,
		task.UpdatedAt,
	).Scan(&task.ID)
	if err != nil {
		return model.WriteResult{}, fmt.Errorf("sqlstore: creating task for user %d: %w", task.UserID, err)
	}

	return model.WriteResult{InsertID: task.ID, RowsAffected: 1}, nil
}

// Update applies patch to the task matching id AND ownerID.
//
// Only the fields set on the patch appear in the SET clause; updated_at is
// always refreshed, so an empty patch still counts as a change to a matched
// row; TaskService rejects empty patches before they get here. A row that
// does not match both predicates is left alone and the result reports zero
// rows affected. That is not an error.
func (db *DB) Update(ctx context.Context, id, ownerID int64, patch model.TaskPatch) (model.WriteResult, error) {
	if db.conn == nil {
		return model.WriteResult{}, apperror.Unavailable("database")
	}

	sets := make([]string, 0, 6)
	args := make([]any, 0, 8)

	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, *patch.Completed)
	}
	if patch.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, string(*patch.Priority))
	}
	if patch.DueDate != nil {
		sets = append(sets, "due_date = ?")
		args = append(args, *patch.DueDate)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, db.now())
	args = append(args, id, ownerID)

	result, err := db.conn.ExecContext(ctx, db.dialect.rebind(
		`UPDATE tasks SET `+strings.Join(sets, ", ")+`
		 WHERE id = ? AND user_id = ?`),
		args...,
	)
	if err != nil {
		return model.WriteResult{}, fmt.Errorf("sqlstore: updating task %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return model.WriteResult{}, fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}

	return model.WriteResult{RowsAffected: rowsAffected}, nil
}

// Delete removes the task matching id AND ownerID. Deleting an id that does
// not exist, or belongs to another user, affects zero rows and succeeds.
func (db *DB) Delete(ctx context.Context, id, ownerID int64) (model.WriteResult, error) {
	if db.conn == nil {
		return model.WriteResult{}, apperror.Unavailable("database")
	}

	result, err := db.conn.ExecContext(ctx, db.dialect.rebind(
		`DELETE FROM tasks WHERE id = ? AND user_id = ?`),
		id, ownerID,
	)
	if err != nil {
		return model.WriteResult{}, fmt.Errorf("sqlstore: deleting task %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return model.WriteResult{}, fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}

	return model.WriteResult{RowsAffected: rowsAffected}, nil
}
