package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/isdelr/ender-tasks-be/internal/models"
	"github.com/isdelr/ender-tasks-be/internal/storage"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Storage is the embedded SQLite credential store. Timestamps are kept as
// unix nanoseconds so ordering does not depend on driver time formatting.
type Storage struct {
	db *sql.DB
}

// New opens the database at path (":memory:" works) and applies the schema.
func New(path string) (*Storage, error) {
	const op = "storage.sqlite.New"

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// SQLite allows a single writer, and an in-memory database lives on one connection.
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: migrate: %w", op, err)
	}
	return &Storage{db: db}, nil
}

// migrate runs the SQL statements to set up the database schema.
func migrate(db *sql.DB) error {
	const sqlStmt = `
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS users (
		id TEXT NOT NULL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		refresh_token TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS todos (
		id TEXT NOT NULL PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_todos_user_created ON todos (user_id, created_at);
	`
	_, err := db.Exec(sqlStmt)
	return err
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// CreateUser inserts a new user. A taken email yields storage.ErrUserExists.
func (s *Storage) CreateUser(ctx context.Context, user models.User) error {
	const op = "storage.sqlite.CreateUser"

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, full_name, password_hash, refresh_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.FullName, user.PasswordHash, nullString(user.RefreshToken),
		user.CreatedAt.UnixNano(), user.UpdatedAt.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UserByID retrieves a single user by their ID, including credentials.
func (s *Storage) UserByID(ctx context.Context, id string) (models.User, error) {
	const op = "storage.sqlite.UserByID"

	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, password_hash, refresh_token, created_at, updated_at
		FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// UserByEmail retrieves a single user by their email, including credentials.
func (s *Storage) UserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.sqlite.UserByEmail"

	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, password_hash, refresh_token, created_at, updated_at
		FROM users WHERE email = ?`, email)
	user, err := scanUser(row)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// UpdateProfile sets a user's name and email and returns the updated record.
func (s *Storage) UpdateProfile(ctx context.Context, id, fullName, email string) (models.User, error) {
	const op = "storage.sqlite.UpdateProfile"

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET full_name = ?, email = ?, updated_at = ? WHERE id = ?",
		fullName, email, time.Now().UnixNano(), id)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := expectOne(res, storage.ErrUserNotFound); err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return s.UserByID(ctx, id)
}

func (s *Storage) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	const op = "storage.sqlite.UpdatePasswordHash"

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?",
		hash, time.Now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := expectOne(res, storage.ErrUserNotFound); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetRefreshToken stores the user's current refresh token. An empty token clears it.
func (s *Storage) SetRefreshToken(ctx context.Context, id, token string) error {
	const op = "storage.sqlite.SetRefreshToken"

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET refresh_token = ?, updated_at = ? WHERE id = ?",
		nullString(token), time.Now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := expectOne(res, storage.ErrUserNotFound); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) CreateTodo(ctx context.Context, todo models.Todo) error {
	const op = "storage.sqlite.CreateTodo"

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO todos (id, user_id, title, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		todo.ID, todo.UserID, todo.Title, todo.Description, todo.Status,
		todo.CreatedAt.UnixNano(), todo.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// TodosByUser returns every todo owned by userID, oldest first.
func (s *Storage) TodosByUser(ctx context.Context, userID string) ([]models.Todo, error) {
	const op = "storage.sqlite.TodosByUser"

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, description, status, created_at, updated_at
		FROM todos WHERE user_id = ? ORDER BY created_at ASC, rowid ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var todos []models.Todo
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return todos, nil
}

// TodoByID returns the todo only when it belongs to userID.
func (s *Storage) TodoByID(ctx context.Context, userID, id string) (models.Todo, error) {
	const op = "storage.sqlite.TodoByID"

	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, description, status, created_at, updated_at
		FROM todos WHERE id = ? AND user_id = ?`, id, userID)
	todo, err := scanTodo(row)
	if err != nil {
		return models.Todo{}, fmt.Errorf("%s: %w", op, err)
	}
	return todo, nil
}

func (s *Storage) UpdateTodoStatus(ctx context.Context, userID, id, status string) (models.Todo, error) {
	const op = "storage.sqlite.UpdateTodoStatus"

	res, err := s.db.ExecContext(ctx,
		"UPDATE todos SET status = ?, updated_at = ? WHERE id = ? AND user_id = ?",
		status, time.Now().UnixNano(), id, userID)
	if err != nil {
		return models.Todo{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := expectOne(res, storage.ErrTodoNotFound); err != nil {
		return models.Todo{}, fmt.Errorf("%s: %w", op, err)
	}
	return s.TodoByID(ctx, userID, id)
}

func (s *Storage) DeleteTodo(ctx context.Context, userID, id string) error {
	const op = "storage.sqlite.DeleteTodo"

	res, err := s.db.ExecContext(ctx, "DELETE FROM todos WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := expectOne(res, storage.ErrTodoNotFound); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// scanUser is a helper function to scan a single row into a User struct.
func scanUser(scanner interface{ Scan(...interface{}) error }) (models.User, error) {
	var (
		user                 models.User
		refreshToken         sql.NullString
		createdAt, updatedAt int64
	)
	err := scanner.Scan(&user.ID, &user.Email, &user.FullName, &user.PasswordHash,
		&refreshToken, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}
		return models.User{}, err
	}
	user.RefreshToken = refreshToken.String
	user.CreatedAt = fromNanos(createdAt)
	user.UpdatedAt = fromNanos(updatedAt)
	return user, nil
}

// scanTodo is a helper function to scan a single row into a Todo struct.
func scanTodo(scanner interface{ Scan(...interface{}) error }) (models.Todo, error) {
	var (
		todo                 models.Todo
		createdAt, updatedAt int64
	)
	err := scanner.Scan(&todo.ID, &todo.UserID, &todo.Title, &todo.Description, &todo.Status,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Todo{}, storage.ErrTodoNotFound
		}
		return models.Todo{}, err
	}
	todo.CreatedAt = fromNanos(createdAt)
	todo.UpdatedAt = fromNanos(updatedAt)
	return todo, nil
}

func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), "UNIQUE"))
}
