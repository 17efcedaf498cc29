package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"clubhouse/internal/domain"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL migrations for the club schema on PostgreSQL.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id               BIGSERIAL    PRIMARY KEY,
			username         VARCHAR(150) UNIQUE NOT NULL,
			email            VARCHAR(254) UNIQUE NOT NULL,
			hashed_password  VARCHAR(255) NOT NULL,
			first_name       VARCHAR(150) NOT NULL DEFAULT '',
			last_name        VARCHAR(150) NOT NULL DEFAULT '',
			role             VARCHAR(10)  NOT NULL DEFAULT 'member' CHECK (role IN ('admin', 'member')),
			is_active        BOOLEAN      NOT NULL DEFAULT TRUE,
			is_online        BOOLEAN      NOT NULL DEFAULT FALSE,
			created_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			last_seen        TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS profiles (
			user_id                BIGINT       PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			age                    INTEGER      NOT NULL,
			school                 VARCHAR(200) NOT NULL,
			programming_experience TEXT         NOT NULL,
			bio                    VARCHAR(500) NOT NULL,
			created_at             TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at             TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS applications (
			id                     BIGSERIAL    PRIMARY KEY,
			username               VARCHAR(150) UNIQUE NOT NULL,
			email                  VARCHAR(254) UNIQUE NOT NULL,
			hashed_password        VARCHAR(255) NOT NULL,
			first_name             VARCHAR(150) NOT NULL,
			last_name              VARCHAR(150) NOT NULL,
			age                    INTEGER      NOT NULL,
			school                 VARCHAR(200) NOT NULL,
			programming_experience TEXT         NOT NULL,
			why_join               TEXT         NOT NULL,
			status                 VARCHAR(10)  NOT NULL DEFAULT 'pending',
			rejection_reason       TEXT         NOT NULL DEFAULT '',
			submitted_at           TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			reviewed_at            TIMESTAMPTZ,
			reviewed_by            BIGINT       REFERENCES users(id) ON DELETE SET NULL
		)`,

		`CREATE TABLE IF NOT EXISTS conversations (
			id         BIGSERIAL   PRIMARY KEY,
			user_low   BIGINT      NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			user_high  BIGINT      NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_low, user_high),
			CHECK (user_low < user_high)
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id              BIGSERIAL   PRIMARY KEY,
			conversation_id BIGINT      REFERENCES conversations(id) ON DELETE CASCADE,
			sender_id       BIGINT      NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			receiver_id     BIGINT      REFERENCES users(id) ON DELETE CASCADE,
			content         TEXT        NOT NULL,
			is_read         BOOLEAN     NOT NULL DEFAULT FALSE,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			is_group        BOOLEAN     NOT NULL DEFAULT FALSE,
			group_scope     VARCHAR(10),
			CHECK (
				(NOT is_group AND conversation_id IS NOT NULL AND receiver_id IS NOT NULL AND group_scope IS NULL)
				OR
				(is_group AND conversation_id IS NULL AND receiver_id IS NULL AND group_scope IN ('all', 'admin'))
			)
		)`,

		`CREATE TABLE IF NOT EXISTS first_contacts (
			sender_id      BIGINT      NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			receiver_id    BIGINT      NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			sent_count     INTEGER     NOT NULL DEFAULT 0,
			reply_received BOOLEAN     NOT NULL DEFAULT FALSE,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (sender_id, receiver_id)
		)`,

		`CREATE TABLE IF NOT EXISTS blocks (
			id         BIGSERIAL   PRIMARY KEY,
			blocker_id BIGINT      NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			blocked_id BIGINT      NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (blocker_id, blocked_id)
		)`,

		`CREATE TABLE IF NOT EXISTS reports (
			id               BIGSERIAL   PRIMARY KEY,
			reporter_id      BIGINT      NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			reported_user_id BIGINT      NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			reason           VARCHAR(20) NOT NULL,
			description      TEXT        NOT NULL,
			reviewed         BOOLEAN     NOT NULL DEFAULT FALSE,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS posts (
			id         BIGSERIAL    PRIMARY KEY,
			title      VARCHAR(200) NOT NULL,
			content    TEXT         NOT NULL,
			author_id  BIGINT       NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS comments (
			id         BIGSERIAL   PRIMARY KEY,
			post_id    BIGINT      NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			author_id  BIGINT      NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			content    TEXT        NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS competitions (
			id          BIGSERIAL    PRIMARY KEY,
			title       VARCHAR(200) NOT NULL,
			description TEXT         NOT NULL,
			start_date  TIMESTAMPTZ  NOT NULL,
			end_date    TIMESTAMPTZ  NOT NULL,
			status      VARCHAR(20)  NOT NULL DEFAULT 'upcoming',
			max_score   INTEGER      NOT NULL DEFAULT 100,
			created_by  BIGINT       NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS problems (
			id             BIGSERIAL    PRIMARY KEY,
			competition_id BIGINT       NOT NULL REFERENCES competitions(id) ON DELETE CASCADE,
			title          VARCHAR(200) NOT NULL,
			description    TEXT         NOT NULL,
			points         INTEGER      NOT NULL DEFAULT 10,
			position       INTEGER      NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS submissions (
			id             BIGSERIAL   PRIMARY KEY,
			competition_id BIGINT      NOT NULL REFERENCES competitions(id) ON DELETE CASCADE,
			user_id        BIGINT      NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			solution       TEXT        NOT NULL,
			score          INTEGER     NOT NULL DEFAULT 0,
			rank           INTEGER,
			submitted_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			scored_by      BIGINT      REFERENCES users(id) ON DELETE SET NULL,
			scored_at      TIMESTAMPTZ,
			feedback       TEXT        NOT NULL DEFAULT '',
			UNIQUE (competition_id, user_id)
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_users_role ON users(role)`,
		`CREATE INDEX IF NOT EXISTS idx_applications_status ON applications(status)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_high ON conversations(user_high)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_receiver_unread ON messages(receiver_id) WHERE NOT is_read`,
		`CREATE INDEX IF NOT EXISTS idx_messages_group ON messages(group_scope, id) WHERE is_group`,
		`CREATE INDEX IF NOT EXISTS idx_reports_reviewed ON reports(reviewed, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id)`,
		`CREATE INDEX IF NOT EXISTS idx_problems_competition ON problems(competition_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w\nSQL: %s", err, stmt)
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

// Store implements domain.Store on PostgreSQL.
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

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

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

type rowScanner interface {
	Scan(dest ...any) error
}
