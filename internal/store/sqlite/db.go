package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"clubhouse/internal/domain"
)

// Open opens a SQLite database with the given DSN.
// SQLite allows a single writer, so the pool is capped at one connection;
// every transaction is therefore serialized.
func Open(dsn string) (*sql.DB, error) {
	if !strings.Contains(dsn, "_time_format") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_time_format=sqlite"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

// Migrate runs the idempotent schema for the club database.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			username VARCHAR(150) UNIQUE NOT NULL,
			email VARCHAR(254) UNIQUE NOT NULL,
			hashed_password VARCHAR(255) NOT NULL,
			first_name VARCHAR(150) NOT NULL DEFAULT '',
			last_name VARCHAR(150) NOT NULL DEFAULT '',
			role VARCHAR(10) NOT NULL DEFAULT 'member' CHECK (role IN ('admin', 'member')),
			is_active BOOLEAN NOT NULL DEFAULT 1,
			is_online BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			last_seen DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS profiles (
			user_id INTEGER PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			age INTEGER NOT NULL,
			school VARCHAR(200) NOT NULL,
			programming_experience TEXT NOT NULL,
			bio VARCHAR(500) NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS applications (
			id INTEGER PRIMARY KEY,
			username VARCHAR(150) UNIQUE NOT NULL,
			email VARCHAR(254) UNIQUE NOT NULL,
			hashed_password VARCHAR(255) NOT NULL,
			first_name VARCHAR(150) NOT NULL,
			last_name VARCHAR(150) NOT NULL,
			age INTEGER NOT NULL,
			school VARCHAR(200) NOT NULL,
			programming_experience TEXT NOT NULL,
			why_join TEXT NOT NULL,
			status VARCHAR(10) NOT NULL DEFAULT 'pending',
			rejection_reason TEXT NOT NULL DEFAULT '',
			submitted_at DATETIME NOT NULL,
			reviewed_at DATETIME DEFAULT NULL,
			reviewed_by INTEGER DEFAULT NULL REFERENCES users(id) ON DELETE SET NULL
		);`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY,
			user_low INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			user_high INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE (user_low, user_high),
			CHECK (user_low < user_high)
		);`,
		// A message is either private (conversation + receiver) or a group
		// broadcast (scope), never both.
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER DEFAULT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			sender_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			receiver_id INTEGER DEFAULT NULL REFERENCES users(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			is_read BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			is_group BOOLEAN NOT NULL DEFAULT 0,
			group_scope VARCHAR(10) DEFAULT NULL,
			CHECK (
				(is_group = 0 AND conversation_id IS NOT NULL AND receiver_id IS NOT NULL AND group_scope IS NULL)
				OR
				(is_group = 1 AND conversation_id IS NULL AND receiver_id IS NULL AND group_scope IN ('all', 'admin'))
			)
		);`,
		`CREATE TABLE IF NOT EXISTS first_contacts (
			sender_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			receiver_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			sent_count INTEGER NOT NULL DEFAULT 0,
			reply_received BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (sender_id, receiver_id)
		);`,
		`CREATE TABLE IF NOT EXISTS blocks (
			id INTEGER PRIMARY KEY,
			blocker_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			blocked_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL,
			UNIQUE (blocker_id, blocked_id)
		);`,
		`CREATE TABLE IF NOT EXISTS reports (
			id INTEGER PRIMARY KEY,
			reporter_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			reported_user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			reason VARCHAR(20) NOT NULL,
			description TEXT NOT NULL,
			reviewed BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS posts (
			id INTEGER PRIMARY KEY,
			title VARCHAR(200) NOT NULL,
			content TEXT NOT NULL,
			author_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS comments (
			id INTEGER PRIMARY KEY,
			post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			author_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS competitions (
			id INTEGER PRIMARY KEY,
			title VARCHAR(200) NOT NULL,
			description TEXT NOT NULL,
			start_date DATETIME NOT NULL,
			end_date DATETIME NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'upcoming',
			max_score INTEGER NOT NULL DEFAULT 100,
			created_by INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS problems (
			id INTEGER PRIMARY KEY,
			competition_id INTEGER NOT NULL REFERENCES competitions(id) ON DELETE CASCADE,
			title VARCHAR(200) NOT NULL,
			description TEXT NOT NULL,
			points INTEGER NOT NULL DEFAULT 10,
			position INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS submissions (
			id INTEGER PRIMARY KEY,
			competition_id INTEGER NOT NULL REFERENCES competitions(id) ON DELETE CASCADE,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			solution TEXT NOT NULL,
			score INTEGER NOT NULL DEFAULT 0,
			rank INTEGER DEFAULT NULL,
			submitted_at DATETIME NOT NULL,
			scored_by INTEGER DEFAULT NULL REFERENCES users(id) ON DELETE SET NULL,
			scored_at DATETIME DEFAULT NULL,
			feedback TEXT NOT NULL DEFAULT '',
			UNIQUE (competition_id, user_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);`,
		`CREATE INDEX IF NOT EXISTS idx_applications_status ON applications(status);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_high ON conversations(user_high);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_receiver_unread ON messages(receiver_id, is_read);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_group ON messages(group_scope, id);`,
		`CREATE INDEX IF NOT EXISTS idx_reports_reviewed ON reports(reviewed, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id);`,
		`CREATE INDEX IF NOT EXISTS idx_problems_competition ON problems(competition_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements domain.Store on SQLite.
type Store struct {
	db    *sql.DB
	repos *domain.Repositories
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, repos: newRepositories(db)}
}

var _ domain.Store = (*Store)(nil)

func (s *Store) Repos() *domain.Repositories {
	return s.repos
}

func (s *Store) WithinTx(ctx context.Context, fn func(*domain.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(newRepositories(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func newRepositories(q dbtx) *domain.Repositories {
	return &domain.Repositories{
		Users:         NewUserRepo(q),
		Profiles:      NewProfileRepo(q),
		Applications:  NewApplicationRepo(q),
		Conversations: NewConversationRepo(q),
		Messages:      NewMessageRepo(q),
		FirstContacts: NewFirstContactRepo(q),
		Blocks:        NewBlockRepo(q),
		Reports:       NewReportRepo(q),
		Posts:         NewPostRepo(q),
		Competitions:  NewCompetitionRepo(q),
	}
}

func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// requireAffected turns a zero-row write into domain.ErrNotFound.
func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
