// Package db contains the typed queries over the account database.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrDuplicateUsername is returned by CreateUser when the username is taken.
var ErrDuplicateUsername = errors.New("username already exists")

// DBTX is the subset of *sql.DB and *sql.Tx used by Queries.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries runs the account statements against a database handle.
type Queries struct {
	db DBTX
}

// New wraps a database handle.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// User is one stored account.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Instrument   string
	IsAdmin      bool
	CreatedAt    time.Time
}

type CreateUserParams struct {
	ID           string
	Username     string
	PasswordHash string
	Instrument   string
	IsAdmin      bool
}

const createUser = `INSERT INTO users (id, username, password_hash, instrument, is_admin, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

// CreateUser inserts a new account and returns the stored row.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	_, err := q.db.ExecContext(ctx, createUser,
		arg.ID, arg.Username, arg.PasswordHash, arg.Instrument, arg.IsAdmin, time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicateUsername
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return q.GetUserByID(ctx, arg.ID)
}

const getUserByUsername = `SELECT id, username, password_hash, instrument, is_admin, created_at
FROM users WHERE username = ?`

// GetUserByUsername looks up an account by username, case-insensitively.
// It returns sql.ErrNoRows when there is no such user.
func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByUsername, username))
}

const getUserByID = `SELECT id, username, password_hash, instrument, is_admin, created_at
FROM users WHERE id = ?`

// GetUserByID looks up an account by id. It returns sql.ErrNoRows when absent.
func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByID, id))
}

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Instrument, &u.IsAdmin, &u.CreatedAt)
	return u, err
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
