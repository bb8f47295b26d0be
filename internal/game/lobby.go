package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"quiz-game-bot/internal/model"
	"quiz-game-bot/internal/repository"
	"quiz-game-bot/internal/update"
)

// handleStart opens a pending session for the chat, or tells that one is
// already running.
func (e *Engine) handleStart(ctx context.Context, u update.Update, _ model.Phase) error {
	sess, err := e.store.Sessions.GetActiveSession(ctx, u.ChatID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		sess, err = e.store.Sessions.CreateSession(ctx, u.ChatID)
		if errors.Is(err, repository.ErrConflict) {
			sess, err = e.store.Sessions.GetActiveSession(ctx, u.ChatID)
		}
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		log.Info().Int64("chat_id", u.ChatID).Int64("session_id", sess.ID).Msg("Session created")
	case err != nil:
		return fmt.Errorf("failed to get active session: %w", err)
	}

	if sess.Status == model.StatusProcessing {
		e.sendTracked(ctx, u.ChatID, textGameRunning, nil)
		return nil
	}

	if err := e.setPhase(ctx, u.ChatID, &sess.ID, model.PhaseInactive); err != nil {
		return err
	}
	e.clearClutter(ctx, u.ChatID)
	e.sendTracked(ctx, u.ChatID, textWelcome, mainKeyboard())
	return nil
}

// handleBack stops the game. Before the captain is chosen anyone may stop
// it, afterwards only the captain.
func (e *Engine) handleBack(ctx context.Context, u update.Update, phase model.Phase) error {
	sess, err := e.activeSession(ctx, u)
	if err != nil || sess == nil {
		return err
	}

	if phase != model.PhaseInactive && sess.Status != model.StatusPending {
		p, err := e.store.Players.GetPlayer(ctx, sess.ID, u.Sender.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to get player: %w", err)
		}
		if p == nil || !p.IsActive || !p.IsCaptain {
			e.sendTracked(ctx, u.ChatID, textOnlyCapCancel, nil)
			return nil
		}
	}

	return e.cancelGame(ctx, u.ChatID, sess.ID, model.StatusCancelled, textGameClosed)
}

// handleStartGame makes the sender captain of the pending session.
func (e *Engine) handleStartGame(ctx context.Context, u update.Update, _ model.Phase) error {
	sess, err := e.activeSession(ctx, u)
	if err != nil || sess == nil {
		return err
	}
	if sess.Status != model.StatusPending {
		e.answer(ctx, u, textGameExists)
		return nil
	}

	// Winning the status change is what makes the sender captain.
	if _, err := e.store.Sessions.SetStatus(ctx, sess.ID,
		[]model.SessionStatus{model.StatusPending}, model.StatusProcessing); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			e.answer(ctx, u, textGameExists)
			return nil
		}
		return fmt.Errorf("failed to start session: %w", err)
	}
	if _, err := e.store.Players.CreateCaptain(ctx, sess.ID, u.Sender.ID); err != nil {
		e.reopenSession(ctx, u.ChatID, sess.ID)
		if errors.Is(err, repository.ErrConflict) {
			e.answer(ctx, u, textGameExists)
			return nil
		}
		return fmt.Errorf("failed to create captain: %w", err)
	}
	if err := e.setPhase(ctx, u.ChatID, &sess.ID, model.PhaseWaitingForPlayers); err != nil {
		return err
	}

	e.clearClutter(ctx, u.ChatID)
	e.answer(ctx, u, textAlertCaptain)
	e.sendTracked(ctx, u.ChatID, textCaptainInfo(senderName(u.Sender)), lobbyKeyboard())

	log.Info().
		Int64("chat_id", u.ChatID).
		Int64("session_id", sess.ID).
		Int64("user_id", u.Sender.ID).
		Msg("Captain chosen")
	return nil
}

// reopenSession moves a session that lost its captain back to PENDING so
// start_game can be retried.
func (e *Engine) reopenSession(ctx context.Context, chatID, sessionID int64) {
	_, err := e.store.Sessions.SetStatus(ctx, sessionID,
		[]model.SessionStatus{model.StatusProcessing}, model.StatusPending)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Int64("session_id", sessionID).Msg("Failed to reopen session")
	}
}

func (e *Engine) handleShowRules(ctx context.Context, u update.Update, _ model.Phase) error {
	e.answer(ctx, u, "")
	e.sendTracked(ctx, u.ChatID, fmt.Sprintf(textRules, e.cfg.MaxPlayers, e.cfg.MinPlayers, e.cfg.MaxScore), nil)
	return nil
}

// handleShowRating shows how many games the chat completed and the score of
// the last one.
func (e *Engine) handleShowRating(ctx context.Context, u update.Update, _ model.Phase) error {
	count, err := e.store.Sessions.CountCompleted(ctx, u.ChatID)
	if err != nil {
		return fmt.Errorf("failed to count completed sessions: %w", err)
	}

	var score model.Score
	last, err := e.store.Sessions.LastCompleted(ctx, u.ChatID)
	switch {
	case err == nil:
		if score, err = e.store.Sessions.Score(ctx, last.ID); err != nil {
			return fmt.Errorf("failed to get score: %w", err)
		}
	case !errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("failed to get last completed session: %w", err)
	}

	e.answer(ctx, u, "")
	e.sendTracked(ctx, u.ChatID, textRating(count, score), nil)
	return nil
}

func (e *Engine) handleStaleCallback(ctx context.Context, u update.Update, _ model.Phase) error {
	e.answer(ctx, u, textActionUnavailable)
	return nil
}
