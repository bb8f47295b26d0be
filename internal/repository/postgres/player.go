package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quiz-game-bot/internal/model"
	"quiz-game-bot/internal/repository"
)

const playerSelect = `
	SELECT p.id, p.session_id, p.user_id, p.is_active, p.is_ready, p.is_captain,
		COALESCE(u.username, ''), COALESCE(u.first_name, '')
	FROM players p
	LEFT JOIN users u ON u.telegram_id = p.user_id
`

// PlayerRepository handles roster persistence.
type PlayerRepository struct {
	pool *pgxpool.Pool
}

// NewPlayerRepository creates a new PlayerRepository instance.
func NewPlayerRepository(pool *pgxpool.Pool) *PlayerRepository {
	return &PlayerRepository{pool: pool}
}

func scanPlayer(row pgx.Row) (*model.Player, error) {
	var (
		p         model.Player
		username  string
		firstName string
	)
	if err := row.Scan(&p.ID, &p.SessionID, &p.UserID, &p.IsActive, &p.IsReady, &p.IsCaptain, &username, &firstName); err != nil {
		return nil, err
	}
	p.User = &model.User{TelegramID: p.UserID, Username: username, FirstName: firstName}
	return &p, nil
}

func collectPlayers(rows pgx.Rows) ([]model.Player, error) {
	defer rows.Close()

	var out []model.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PlayerRepository) getOne(ctx context.Context, what, where string, args ...any) (*model.Player, error) {
	p, err := scanPlayer(r.pool.QueryRow(ctx, playerSelect+where, args...))
	if err != nil {
		if err = mapError(err); isSentinel(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get player by %s: %w", what, err)
	}
	return p, nil
}

// CreateCaptain makes the user the session's captain.
func (r *PlayerRepository) CreateCaptain(ctx context.Context, sessionID, userID int64) (*model.Player, error) {
	const query = `
		INSERT INTO players (session_id, user_id, is_active, is_ready, is_captain)
		VALUES ($1, $2, TRUE, FALSE, TRUE)
		ON CONFLICT (session_id, user_id)
		DO UPDATE SET is_active = TRUE, is_captain = TRUE
	`

	if _, err := r.pool.Exec(ctx, query, sessionID, userID); err != nil {
		if err = mapError(err); isSentinel(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create captain: %w", err)
	}
	return r.GetPlayer(ctx, sessionID, userID)
}

// JoinPlayer adds or reactivates a player. The session row is locked for the
// duration of the check so concurrent joins cannot exceed maxActive.
func (r *PlayerRepository) JoinPlayer(ctx context.Context, sessionID, userID int64, maxActive int) (*model.Player, error) {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var locked int64
		if err := tx.QueryRow(ctx, `SELECT id FROM sessions WHERE id = $1 FOR UPDATE`, sessionID).Scan(&locked); err != nil {
			return mapError(err)
		}

		var active bool
		err := tx.QueryRow(ctx,
			`SELECT is_active FROM players WHERE session_id = $1 AND user_id = $2`,
			sessionID, userID,
		).Scan(&active)
		exists := err == nil
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		if exists && active {
			return repository.ErrConflict
		}

		var count int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM players WHERE session_id = $1 AND is_active`,
			sessionID,
		).Scan(&count); err != nil {
			return err
		}
		if count >= maxActive {
			return repository.ErrRosterFull
		}

		if exists {
			_, err = tx.Exec(ctx,
				`UPDATE players SET is_active = TRUE, is_ready = FALSE WHERE session_id = $1 AND user_id = $2`,
				sessionID, userID,
			)
		} else {
			_, err = tx.Exec(ctx,
				`INSERT INTO players (session_id, user_id, is_active, is_ready, is_captain) VALUES ($1, $2, TRUE, FALSE, FALSE)`,
				sessionID, userID,
			)
		}
		return mapError(err)
	})
	if err != nil {
		if isSentinel(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to join player: %w", err)
	}
	return r.GetPlayer(ctx, sessionID, userID)
}

// GetPlayer returns the user's player row in the session.
func (r *PlayerRepository) GetPlayer(ctx context.Context, sessionID, userID int64) (*model.Player, error) {
	return r.getOne(ctx, "user", `WHERE p.session_id = $1 AND p.user_id = $2`, sessionID, userID)
}

// GetPlayerByID returns a player by id.
func (r *PlayerRepository) GetPlayerByID(ctx context.Context, playerID int64) (*model.Player, error) {
	return r.getOne(ctx, "id", `WHERE p.id = $1`, playerID)
}

// GetPlayerByUsername resolves an @mention to a player of the session.
func (r *PlayerRepository) GetPlayerByUsername(ctx context.Context, sessionID int64, username string) (*model.Player, error) {
	username = strings.TrimPrefix(username, "@")
	if username == "" {
		return nil, repository.ErrNotFound
	}
	return r.getOne(ctx, "username",
		`WHERE p.session_id = $1 AND LOWER(u.username) = LOWER($2) ORDER BY p.id LIMIT 1`,
		sessionID, username,
	)
}

// ListPlayers returns every player of the session.
func (r *PlayerRepository) ListPlayers(ctx context.Context, sessionID int64) ([]model.Player, error) {
	rows, err := r.pool.Query(ctx, playerSelect+`WHERE p.session_id = $1 ORDER BY p.id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	players, err := collectPlayers(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan players: %w", err)
	}
	return players, nil
}

// SetActive toggles the soft-leave flag. Leaving also clears readiness.
func (r *PlayerRepository) SetActive(ctx context.Context, sessionID, userID int64, active bool) error {
	const query = `
		UPDATE players
		SET is_active = $3, is_ready = CASE WHEN $3 THEN is_ready ELSE FALSE END
		WHERE session_id = $1 AND user_id = $2
	`

	tag, err := r.pool.Exec(ctx, query, sessionID, userID, active)
	if err != nil {
		return fmt.Errorf("failed to set player active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// MarkReady flips is_ready for an active player that was not ready yet.
func (r *PlayerRepository) MarkReady(ctx context.Context, sessionID, userID int64) (bool, error) {
	const query = `
		UPDATE players
		SET is_ready = TRUE
		WHERE session_id = $1 AND user_id = $2 AND is_active AND NOT is_ready
	`

	tag, err := r.pool.Exec(ctx, query, sessionID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark player ready: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ResetReady clears readiness of the whole roster.
func (r *PlayerRepository) ResetReady(ctx context.Context, sessionID int64) error {
	if _, err := r.pool.Exec(ctx, `UPDATE players SET is_ready = FALSE WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to reset readiness: %w", err)
	}
	return nil
}

// DeactivateUnready excludes active players that did not confirm readiness.
func (r *PlayerRepository) DeactivateUnready(ctx context.Context, sessionID int64) ([]model.Player, error) {
	const query = `
		WITH excluded AS (
			UPDATE players
			SET is_active = FALSE
			WHERE session_id = $1 AND is_active AND NOT is_ready
			RETURNING id, session_id, user_id, is_active, is_ready, is_captain
		)
		SELECT e.id, e.session_id, e.user_id, e.is_active, e.is_ready, e.is_captain,
			COALESCE(u.username, ''), COALESCE(u.first_name, '')
		FROM excluded e
		LEFT JOIN users u ON u.telegram_id = e.user_id
		ORDER BY e.id
	`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate unready players: %w", err)
	}
	players, err := collectPlayers(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan excluded players: %w", err)
	}
	return players, nil
}
