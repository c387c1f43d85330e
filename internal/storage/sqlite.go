package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"paidqa/internal/errorz"
	"paidqa/internal/money"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the SQLite-backed ledger, question and message store
type Store struct {
	db *sql.DB
}

// Tx exposes the store operations that must share one SQL transaction
type Tx struct {
	tx *sql.Tx
}

// Open initializes the SQLite database connection with WAL mode and runs migrations.
// Use ":memory:" for an ephemeral database.
func Open(dbPath string) (*Store, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		absPath, err := filepath.Abs(dbPath)
		if err != nil {
			return nil, err
		}
		// Ensure the directory exists
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = absPath + "?_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// A single connection serializes writers and keeps ":memory:" on one database.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx runs fn inside a transaction, committing only when fn returns nil.
// fn must not call Store methods: the store holds a single connection.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// runMigrations creates the necessary tables
func (s *Store) runMigrations() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			telegram_id INTEGER UNIQUE NOT NULL,
			username TEXT,
			first_name TEXT NOT NULL,
			balance INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			amount INTEGER NOT NULL,
			source_type TEXT NOT NULL,
			question_id INTEGER,
			description TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
		// Question timestamps are unix nanoseconds so they compare in SQL.
		`CREATE TABLE IF NOT EXISTS questions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			asker_id INTEGER NOT NULL,
			answerer_id INTEGER NOT NULL,
			content TEXT NOT NULL,
			price INTEGER NOT NULL CHECK (price > 0),
			status TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			answer_content TEXT,
			answered_at INTEGER,
			dispute_reason TEXT,
			disputed_at INTEGER,
			dispute_resolved_at INTEGER,
			dispute_resolved_by TEXT,
			dispute_resolution TEXT,
			created_at INTEGER NOT NULL,
			accepted_at INTEGER,
			rejected_at INTEGER,
			paid_at INTEGER,
			updated_at INTEGER NOT NULL,
			CHECK (asker_id <> answerer_id),
			FOREIGN KEY (asker_id) REFERENCES users(id),
			FOREIGN KEY (answerer_id) REFERENCES users(id)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			sender_id INTEGER NOT NULL,
			receiver_id INTEGER NOT NULL,
			content TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT 'text',
			question_id INTEGER,
			read INTEGER NOT NULL DEFAULT 0,
			read_at INTEGER,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_questions_asker ON questions(asker_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_questions_answerer ON questions(answerer_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_questions_conversation ON questions(conversation_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_questions_settlement ON questions(status, accepted_at)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

const userColumns = `id, telegram_id, COALESCE(username, ''), first_name, balance, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.TelegramID,
		&user.Username,
		&user.FirstName,
		&user.Balance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByTelegramID retrieves a user by their Telegram ID.
// A missing user is reported as (nil, nil).
func (s *Store) GetUserByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE telegram_id = ?
	`, telegramID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by telegram_id: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by their internal ID.
// A missing user is reported as (nil, nil).
func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return getUserByID(ctx, s.db, id)
}

// GetUserByID retrieves a user inside the transaction.
func (t *Tx) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return getUserByID(ctx, t.tx, id)
}

func getUserByID(ctx context.Context, q querier, id int64) (*User, error) {
	user, err := scanUser(q.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

// CreateUser creates a new user with the given Telegram info and welcome bonus
func (s *Store) CreateUser(ctx context.Context, telegramID int64, username, firstName string, welcomeBonus money.Amount) (*User, error) {
	err := s.WithTx(ctx, func(tx *Tx) error {
		result, err := tx.tx.ExecContext(ctx, `
			INSERT INTO users (telegram_id, username, first_name, balance)
			VALUES (?, ?, ?, 0)
		`, telegramID, username, firstName)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: telegram user %d is already registered", errorz.ErrConflict, telegramID)
		}
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}

		userID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}

		if welcomeBonus > 0 {
			_, err = tx.Credit(ctx, userID, welcomeBonus, Entry{
				Source:      SourceWelcomeBonus,
				Description: "Welcome bonus for joining!",
			})
			if err != nil {
				return fmt.Errorf("failed to credit welcome bonus: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Fetch and return the created user
	return s.GetUserByTelegramID(ctx, telegramID)
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

func nanos(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func fromNanos(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}
