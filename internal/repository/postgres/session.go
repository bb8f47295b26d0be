package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quiz-game-bot/internal/model"
	"quiz-game-bot/internal/repository"
)

const sessionColumns = `id, chat_id, status, current_round_id, created_at, updated_at`

// SessionRepository handles game session persistence.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository instance.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) queryOne(ctx context.Context, query string, args ...any) (*model.Session, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.Session])
}

// CreateSession creates a pending session for the chat.
// Returns repository.ErrConflict when a live session already exists.
func (r *SessionRepository) CreateSession(ctx context.Context, chatID int64) (*model.Session, error) {
	const query = `
		INSERT INTO sessions (chat_id, status, created_at, updated_at)
		VALUES ($1, 'pending', NOW(), NOW())
		RETURNING ` + sessionColumns

	s, err := r.queryOne(ctx, query, chatID)
	if err != nil {
		if err = mapError(err); isSentinel(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

// GetActiveSession returns the chat's pending or processing session.
func (r *SessionRepository) GetActiveSession(ctx context.Context, chatID int64) (*model.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE chat_id = $1 AND status IN ('pending', 'processing')
	`

	s, err := r.queryOne(ctx, query, chatID)
	if err != nil {
		if err = mapError(err); isSentinel(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	return s, nil
}

// GetSession returns a session by id.
func (r *SessionRepository) GetSession(ctx context.Context, sessionID int64) (*model.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	s, err := r.queryOne(ctx, query, sessionID)
	if err != nil {
		if err = mapError(err); isSentinel(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// SetStatus changes the status only when the current one is in from.
func (r *SessionRepository) SetStatus(ctx context.Context, sessionID int64, from []model.SessionStatus, to model.SessionStatus) (*model.Session, error) {
	const query = `
		UPDATE sessions
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = ANY($2::text[])
		RETURNING ` + sessionColumns

	s, err := r.queryOne(ctx, query, sessionID, statusStrings(from), string(to))
	if err != nil {
		if err = mapError(err); isSentinel(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to set session status: %w", err)
	}
	return s, nil
}

// SetCurrentRound stores the back-reference to the round being played.
func (r *SessionRepository) SetCurrentRound(ctx context.Context, sessionID, roundID int64) error {
	const query = `
		UPDATE sessions
		SET current_round_id = $2, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, sessionID, roundID)
	if err != nil {
		return fmt.Errorf("failed to set current round: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Score counts closed rounds by verdict.
func (r *SessionRepository) Score(ctx context.Context, sessionID int64) (model.Score, error) {
	const query = `
		SELECT
			COUNT(*) FILTER (WHERE is_correct_answer),
			COUNT(*) FILTER (WHERE NOT is_correct_answer),
			COUNT(is_correct_answer)
		FROM rounds
		WHERE session_id = $1
	`

	var sc model.Score
	if err := r.pool.QueryRow(ctx, query, sessionID).Scan(&sc.Experts, &sc.Bot, &sc.TotalRounds); err != nil {
		return model.Score{}, fmt.Errorf("failed to compute score: %w", err)
	}
	return sc, nil
}

// CountCompleted returns the number of completed sessions of the chat.
func (r *SessionRepository) CountCompleted(ctx context.Context, chatID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM sessions WHERE chat_id = $1 AND status = 'completed'`

	var n int
	if err := r.pool.QueryRow(ctx, query, chatID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count completed sessions: %w", err)
	}
	return n, nil
}

// LastCompleted returns the latest completed session of the chat.
func (r *SessionRepository) LastCompleted(ctx context.Context, chatID int64) (*model.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE chat_id = $1 AND status = 'completed'
		ORDER BY id DESC
		LIMIT 1
	`

	s, err := r.queryOne(ctx, query, chatID)
	if err != nil {
		if err = mapError(err); isSentinel(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get last completed session: %w", err)
	}
	return s, nil
}
