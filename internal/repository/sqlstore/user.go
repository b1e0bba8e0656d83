package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/taskboard/internal/apperror"
	"github.com/sakif/taskboard/internal/model"
)

// Upsert inserts a user or, when the open_id already exists, overwrites the
// columns listed in upsert.Update.
//
// INSERT ... ON CONFLICT (open_id) DO UPDATE is understood by both SQLite
// (3.24+) and Postgres. It is a single statement, so two concurrent sign-ins
// for the same account cannot both insert. The id and open_id of an existing
// row never change; updated_at is always refreshed.
func (db *DB) Upsert(ctx context.Context, upsert model.UserUpsert) error {
	if db.conn == nil {
		return apperror.Unavailable("database")
	}
	if upsert.OpenID == "" {
		return fmt.Errorf("sqlstore: upserting user: open id is required")
	}

	now := db.now()

	insertCols := []string{"open_id"}
	insertArgs := []any{upsert.OpenID}
	for _, c := range userFieldColumns(upsert.Insert) {
		insertCols = append(insertCols, c.name)
		insertArgs = append(insertArgs, c.value)
	}
	insertCols = append(insertCols, "created_at", "updated_at")
	insertArgs = append(insertArgs, now, now)

	sets := make([]string, 0, 6)
	setArgs := make([]any, 0, 6)
	for _, c := range userFieldColumns(upsert.Update) {
		sets = append(sets, c.name+" = ?")
		setArgs = append(setArgs, c.value)
	}
	sets = append(sets, "updated_at = ?")
	setArgs = append(setArgs, now)

	query := `INSERT INTO users (` + strings.Join(insertCols, ", ") + `)
		 VALUES (` + placeholders(len(insertCols)) + `)
		 ON CONFLICT (open_id) DO UPDATE SET ` + strings.Join(sets, ", ")

	if _, err := db.conn.ExecContext(ctx, db.dialect.rebind(query), append(insertArgs, setArgs...)...); err != nil {
		return fmt.Errorf("sqlstore: upserting user (openID=%s): %w", upsert.OpenID, err)
	}

	return nil
}

// GetByOpenID returns the user with the given open id, or apperror.ErrNotFound.
// A disconnected DB finds nobody.
func (db *DB) GetByOpenID(ctx context.Context, openID string) (*model.User, error) {
	if db.conn == nil {
		return nil, notFoundUser(openID)
	}

	var (
		u                  model.User
		name, email, login sql.NullString
		role               string
	)

	err := db.conn.QueryRowContext(ctx, db.dialect.rebind(
		`SELECT id, open_id, name, email, login_method, role, created_at, updated_at, last_signed_in
		 FROM users
		 WHERE open_id = ?
		 LIMIT 1`),
		openID,
	).Scan(
		&u.ID,
		&u.OpenID,
		&name,
		&email,
		&login,
		&role,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.LastSignedIn,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundUser(openID)
		}
		return nil, fmt.Errorf("sqlstore: getting user (openID=%s): %w", openID, err)
	}

	u.Role = model.Role(role)
	u.Name = stringPtr(name)
	u.Email = stringPtr(email)
	u.LoginMethod = stringPtr(login)

	return &u, nil
}

func notFoundUser(openID string) *apperror.AppError {
	return &apperror.AppError{
		Err:     apperror.ErrNotFound,
		Message: fmt.Sprintf("user not found with open id %s", openID),
	}
}

type column struct {
	name  string
	value any
}

// userFieldColumns lists the set fields of f in a fixed column order.
func userFieldColumns(f model.UserFields) []column {
	cols := make([]column, 0, 5)
	if f.Name != nil {
		cols = append(cols, column{"name", *f.Name})
	}
	if f.Email != nil {
		cols = append(cols, column{"email", *f.Email})
	}
	if f.LoginMethod != nil {
		cols = append(cols, column{"login_method", *f.LoginMethod})
	}
	if f.Role != nil {
		cols = append(cols, column{"role", string(*f.Role)})
	}
	if f.LastSignedIn != nil {
		cols = append(cols, column{"last_signed_in", *f.LastSignedIn})
	}
	return cols
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
