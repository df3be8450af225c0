package waitlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrAlreadyJoined is returned when the email is already on the waitlist.
var ErrAlreadyJoined = errors.New("already on the waitlist")

// DefaultRole is assigned when a signup names no role.
const DefaultRole = "user"

// Entry is one waitlist signup.
type Entry struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists waitlist entries.
type Store interface {
	Add(ctx context.Context, e Entry) error
	List(ctx context.Context) ([]Entry, error)
}

// SQLiteStore keeps the waitlist in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite database at the given path and runs migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	dsn := "file:" + filepath.ToSlash(path) + "?cache=shared" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS waitlist (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		role TEXT NOT NULL,
		created_at TEXT NOT NULL
	);`)
	if err != nil {
		return fmt.Errorf("migrate waitlist: %w", err)
	}
	return nil
}

// Add stores e. Emails compare case-insensitively.
func (s *SQLiteStore) Add(ctx context.Context, e Entry) error {
	if e.Role == "" {
		e.Role = DefaultRole
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO waitlist(name, email, role, created_at) VALUES(?, ?, ?, ?);`,
		e.Name,
		e.Email,
		e.Role,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if isSQLiteConstraintError(err) {
		return ErrAlreadyJoined
	}
	if err != nil {
		return fmt.Errorf("insert waitlist entry: %w", err)
	}
	return nil
}

// List returns every entry in signup order.
func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, email, role, created_at FROM waitlist ORDER BY seq;`)
	if err != nil {
		return nil, fmt.Errorf("query waitlist: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e         Entry
			createdAt string
		)
		if err := rows.Scan(&e.Name, &e.Email, &e.Role, &createdAt); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func isSQLiteConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "constraint") || strings.Contains(msg, "unique")
}
