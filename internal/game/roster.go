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

// handleJoinGame adds the sender to the roster or brings them back.
func (e *Engine) handleJoinGame(ctx context.Context, u update.Update, _ model.Phase) error {
	sess, err := e.activeSession(ctx, u)
	if err != nil || sess == nil {
		return err
	}

	_, err = e.store.Players.JoinPlayer(ctx, sess.ID, u.Sender.ID, e.cfg.MaxPlayers)
	switch {
	case errors.Is(err, repository.ErrConflict):
		e.answer(ctx, u, textAlreadyJoined)
		return nil
	case errors.Is(err, repository.ErrRosterFull):
		e.answer(ctx, u, textRosterFull)
		return nil
	case err != nil:
		return fmt.Errorf("failed to join player: %w", err)
	}

	e.sendTracked(ctx, u.ChatID, textPlayerJoined(senderName(u.Sender)), nil)
	e.answer(ctx, u, textYouJoined)

	log.Info().
		Int64("chat_id", u.ChatID).
		Int64("session_id", sess.ID).
		Int64("user_id", u.Sender.ID).
		Msg("Player joined")
	return nil
}

// handleStartGameFromCaptain closes the lobby and asks for readiness.
func (e *Engine) handleStartGameFromCaptain(ctx context.Context, u update.Update, _ model.Phase) error {
	sess, err := e.activeSession(ctx, u)
	if err != nil || sess == nil {
		return err
	}
	p, err := e.captain(ctx, u, sess.ID, textOnlyCapStart)
	if err != nil || p == nil {
		return err
	}

	players, err := e.store.Players.ListPlayers(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to list players: %w", err)
	}
	if countActive(players) < e.cfg.MinPlayers {
		e.answer(ctx, u, textNotEnoughPlayers(e.cfg.MinPlayers))
		return nil
	}

	e.clearClutter(ctx, u.ChatID)
	if err := e.nextQuest(ctx, u.ChatID, sess.ID, model.PhaseAreReadyFirstRoundPlayers, textReadyFirst, readyKeyboard()); err != nil {
		return err
	}
	e.answer(ctx, u, textGameStarted)
	return nil
}

// handleFinishGame ends the game for the captain, or lets a player leave.
func (e *Engine) handleFinishGame(ctx context.Context, u update.Update, _ model.Phase) error {
	sess, err := e.activeSession(ctx, u)
	if err != nil || sess == nil {
		return err
	}
	p, err := e.activePlayer(ctx, u, sess.ID)
	if err != nil || p == nil {
		return err
	}

	if p.IsCaptain {
		if err := e.cancelGame(ctx, u.ChatID, sess.ID, model.StatusCancelled, textGameClosed); err != nil {
			return err
		}
		e.answer(ctx, u, textCaptainFinished)
		return nil
	}

	if err := e.store.Players.SetActive(ctx, sess.ID, u.Sender.ID, false); err != nil {
		return fmt.Errorf("failed to deactivate player: %w", err)
	}
	e.sendTracked(ctx, u.ChatID, textPlayerLeft(senderName(u.Sender)), nil)
	e.answer(ctx, u, textYouLeft)
	return nil
}

func countActive(players []model.Player) int {
	n := 0
	for _, p := range players {
		if p.IsActive {
			n++
		}
	}
	return n
}

func activeReady(players []model.Player) []model.Player {
	var out []model.Player
	for _, p := range players {
		if p.IsActive && p.IsReady {
			out = append(out, p)
		}
	}
	return out
}

// unready returns the active players that are not ready, the ones
// DeactivateUnready drops.
func unready(players []model.Player) []model.Player {
	var out []model.Player
	for _, p := range players {
		if p.IsActive && !p.IsReady {
			out = append(out, p)
		}
	}
	return out
}
