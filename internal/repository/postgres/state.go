package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quiz-game-bot/internal/model"
	"quiz-game-bot/internal/repository"
)

// StateRepository stores per-chat phases and clutter message ids.
type StateRepository struct {
	pool *pgxpool.Pool
}

// NewStateRepository creates a new StateRepository instance.
func NewStateRepository(pool *pgxpool.Pool) *StateRepository {
	return &StateRepository{pool: pool}
}

// GetState returns the stored phase, Inactive when the chat has none.
func (r *StateRepository) GetState(ctx context.Context, chatID int64) (*model.ChatState, error) {
	const query = `SELECT chat_id, session_id, phase FROM chat_states WHERE chat_id = $1`

	st := model.ChatState{ChatID: chatID}
	err := r.pool.QueryRow(ctx, query, chatID).Scan(&st.ChatID, &st.SessionID, &st.Phase)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.ChatState{ChatID: chatID, Phase: model.PhaseInactive}, nil
		}
		return nil, fmt.Errorf("failed to get chat state: %w", err)
	}
	return &st, nil
}

// SetState writes the chat's phase.
func (r *StateRepository) SetState(ctx context.Context, chatID int64, sessionID *int64, phase model.Phase) error {
	const query = `
		INSERT INTO chat_states (chat_id, session_id, phase, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (chat_id)
		DO UPDATE SET session_id = EXCLUDED.session_id, phase = EXCLUDED.phase, updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, chatID, sessionID, string(phase)); err != nil {
		if err = mapError(err); isSentinel(err) {
			return err
		}
		return fmt.Errorf("failed to set chat state: %w", err)
	}
	return nil
}

// ListStates returns chats currently in one of the phases.
func (r *StateRepository) ListStates(ctx context.Context, phases ...model.Phase) ([]model.ChatState, error) {
	const query = `
		SELECT chat_id, session_id, phase
		FROM chat_states
		WHERE phase = ANY($1::text[])
		ORDER BY chat_id
	`

	rows, err := r.pool.Query(ctx, query, phaseStrings(phases))
	if err != nil {
		return nil, fmt.Errorf("failed to list chat states: %w", err)
	}
	defer rows.Close()

	var out []model.ChatState
	for rows.Next() {
		var st model.ChatState
		if err := rows.Scan(&st.ChatID, &st.SessionID, &st.Phase); err != nil {
			return nil, fmt.Errorf("failed to scan chat state: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat states: %w", err)
	}
	return out, nil
}

// TrackMessage remembers a bot message for later cleanup.
func (r *StateRepository) TrackMessage(ctx context.Context, chatID int64, messageID int) error {
	const query = `
		INSERT INTO chat_messages (chat_id, message_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`

	if _, err := r.pool.Exec(ctx, query, chatID, messageID); err != nil {
		return fmt.Errorf("failed to track message: %w", err)
	}
	return nil
}

// PopMessages deletes and returns the chat's tracked messages.
func (r *StateRepository) PopMessages(ctx context.Context, chatID int64) ([]int, error) {
	rows, err := r.pool.Query(ctx, `DELETE FROM chat_messages WHERE chat_id = $1 RETURNING message_id`, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to pop messages: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, fmt.Errorf("failed to scan messages: %w", err)
	}
	return ids, nil
}

// NewStore wires every PostgreSQL repository into a bundle.
func NewStore(pool *pgxpool.Pool) repository.Store {
	return repository.Store{
		Sessions:  NewSessionRepository(pool),
		Players:   NewPlayerRepository(pool),
		Rounds:    NewRoundRepository(pool),
		Users:     NewUserRepository(pool),
		Questions: NewQuestionRepository(pool),
		States:    NewStateRepository(pool),
	}
}
