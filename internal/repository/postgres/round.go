package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quiz-game-bot/internal/model"
)

const roundColumns = `id, session_id, question_id, is_active, answer_player_id,
	is_correct_answer, given_answer, disputed, created_at`

// RoundRepository handles round persistence. Every mutation targets rows by
// their current state rather than by a previously read snapshot.
type RoundRepository struct {
	pool *pgxpool.Pool
}

// NewRoundRepository creates a new RoundRepository instance.
func NewRoundRepository(pool *pgxpool.Pool) *RoundRepository {
	return &RoundRepository{pool: pool}
}

func (r *RoundRepository) queryOne(ctx context.Context, action, query string, args ...any) (*model.Round, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err == nil {
		var round *model.Round
		round, err = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.Round])
		if err == nil {
			return round, nil
		}
	}
	if err = mapError(err); isSentinel(err) {
		return nil, err
	}
	return nil, fmt.Errorf("failed to %s: %w", action, err)
}

// CreateRound opens a new active round.
func (r *RoundRepository) CreateRound(ctx context.Context, sessionID, questionID int64) (*model.Round, error) {
	const query = `
		INSERT INTO rounds (session_id, question_id, is_active)
		VALUES ($1, $2, TRUE)
		RETURNING ` + roundColumns

	return r.queryOne(ctx, "create round", query, sessionID, questionID)
}

// GetActiveRound returns the round awaiting a verdict.
func (r *RoundRepository) GetActiveRound(ctx context.Context, sessionID int64) (*model.Round, error) {
	const query = `SELECT ` + roundColumns + ` FROM rounds WHERE session_id = $1 AND is_active`

	return r.queryOne(ctx, "get active round", query, sessionID)
}

// GetLastRound returns the newest round of the session.
func (r *RoundRepository) GetLastRound(ctx context.Context, sessionID int64) (*model.Round, error) {
	const query = `
		SELECT ` + roundColumns + `
		FROM rounds
		WHERE session_id = $1
		ORDER BY id DESC
		LIMIT 1
	`

	return r.queryOne(ctx, "get last round", query, sessionID)
}

// SetAnswerPlayer records who answers the active round.
func (r *RoundRepository) SetAnswerPlayer(ctx context.Context, sessionID, playerID int64) (*model.Round, error) {
	const query = `
		UPDATE rounds
		SET answer_player_id = $2
		WHERE session_id = $1 AND is_active
		RETURNING ` + roundColumns

	return r.queryOne(ctx, "set answer player", query, sessionID, playerID)
}

// CloseActiveRound stores the verdict and closes the round.
func (r *RoundRepository) CloseActiveRound(ctx context.Context, sessionID int64, correct bool, givenAnswer *string) (*model.Round, error) {
	const query = `
		UPDATE rounds
		SET is_active = FALSE,
			is_correct_answer = $2,
			given_answer = COALESCE($3::text, given_answer)
		WHERE session_id = $1 AND is_active
		RETURNING ` + roundColumns

	return r.queryOne(ctx, "close round", query, sessionID, correct, givenAnswer)
}

// OverrideVerdict applies a dispute to a closed incorrect round, once.
func (r *RoundRepository) OverrideVerdict(ctx context.Context, roundID int64) (*model.Round, error) {
	const query = `
		UPDATE rounds
		SET is_correct_answer = TRUE, disputed = TRUE
		WHERE id = $1 AND NOT is_active AND NOT disputed AND is_correct_answer = FALSE
		RETURNING ` + roundColumns

	return r.queryOne(ctx, "override verdict", query, roundID)
}
