// Package postgres implements the repository contracts on PostgreSQL via pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "users table",
		sql: `
			CREATE TABLE IF NOT EXISTS users (
				telegram_id BIGINT PRIMARY KEY,
				username VARCHAR(255) NOT NULL DEFAULT '',
				first_name VARCHAR(255) NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_users_username ON users(LOWER(username));
		`,
	},
	{
		name: "sessions table",
		sql: `
			CREATE TABLE IF NOT EXISTS sessions (
				id BIGSERIAL PRIMARY KEY,
				chat_id BIGINT NOT NULL,
				status VARCHAR(16) NOT NULL
					CHECK (status IN ('pending', 'processing', 'completed', 'cancelled')),
				current_round_id BIGINT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE UNIQUE INDEX IF NOT EXISTS uq_sessions_live_chat
				ON sessions(chat_id) WHERE status IN ('pending', 'processing');
			CREATE INDEX IF NOT EXISTS idx_sessions_chat_status ON sessions(chat_id, status);
		`,
	},
	{
		name: "quiz content tables",
		sql: `
			CREATE TABLE IF NOT EXISTS themes (
				id BIGSERIAL PRIMARY KEY,
				title VARCHAR(255) NOT NULL UNIQUE
			);
			CREATE TABLE IF NOT EXISTS questions (
				id BIGSERIAL PRIMARY KEY,
				theme_id BIGINT NOT NULL REFERENCES themes(id) ON DELETE CASCADE,
				title TEXT NOT NULL
			);
			CREATE TABLE IF NOT EXISTS answers (
				id BIGSERIAL PRIMARY KEY,
				question_id BIGINT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
				title TEXT NOT NULL,
				is_correct BOOLEAN NOT NULL DEFAULT FALSE,
				description TEXT NOT NULL DEFAULT ''
			);
			CREATE INDEX IF NOT EXISTS idx_answers_question ON answers(question_id);
		`,
	},
	{
		name: "players table",
		sql: `
			CREATE TABLE IF NOT EXISTS players (
				id BIGSERIAL PRIMARY KEY,
				session_id BIGINT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				user_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				is_ready BOOLEAN NOT NULL DEFAULT FALSE,
				is_captain BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (session_id, user_id)
			);
			CREATE UNIQUE INDEX IF NOT EXISTS uq_players_captain
				ON players(session_id) WHERE is_captain;
		`,
	},
	{
		name: "rounds table",
		sql: `
			CREATE TABLE IF NOT EXISTS rounds (
				id BIGSERIAL PRIMARY KEY,
				session_id BIGINT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				question_id BIGINT NOT NULL REFERENCES questions(id),
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				answer_player_id BIGINT REFERENCES players(id) ON DELETE SET NULL,
				is_correct_answer BOOLEAN,
				given_answer TEXT,
				disputed BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE UNIQUE INDEX IF NOT EXISTS uq_rounds_active
				ON rounds(session_id) WHERE is_active;
			CREATE INDEX IF NOT EXISTS idx_rounds_session ON rounds(session_id, id DESC);
		`,
	},
	{
		name: "chat state tables",
		sql: `
			CREATE TABLE IF NOT EXISTS chat_states (
				chat_id BIGINT PRIMARY KEY,
				session_id BIGINT REFERENCES sessions(id) ON DELETE SET NULL,
				phase VARCHAR(64) NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_chat_states_phase ON chat_states(phase);
			CREATE TABLE IF NOT EXISTS chat_messages (
				chat_id BIGINT NOT NULL,
				message_id BIGINT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (chat_id, message_id)
			);
		`,
	},
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db Execer) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := db.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", i+1, m.name, err)
		}
		log.Info().Int("step", i+1).Str("name", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
