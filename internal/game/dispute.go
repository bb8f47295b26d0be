package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"quiz-game-bot/internal/model"
	"quiz-game-bot/internal/repository"
	"quiz-game-bot/internal/timer"
	"quiz-game-bot/internal/update"
)

// disputable reports whether the round can still be turned into a win.
func disputable(r *model.Round) bool {
	return !r.IsActive && !r.Disputed && r.IsCorrectAnswer != nil && !*r.IsCorrectAnswer
}

// lastDisputableRound returns the session's last round when the captain may
// still dispute it, nil otherwise.
func (e *Engine) lastDisputableRound(ctx context.Context, sessionID int64) (*model.Round, error) {
	r, err := e.store.Rounds.GetLastRound(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last round: %w", err)
	}
	if !disputable(r) {
		return nil, nil
	}
	return r, nil
}

// handleDisputeAnswer pauses the game and asks the captain to confirm that
// the last answer should count as correct.
func (e *Engine) handleDisputeAnswer(ctx context.Context, u update.Update, _ model.Phase) error {
	sess, err := e.activeSession(ctx, u)
	if err != nil || sess == nil {
		return err
	}
	if p, err := e.captain(ctx, u, sess.ID, textOnlyCapDispute); err != nil || p == nil {
		return err
	}

	round, err := e.lastDisputableRound(ctx, sess.ID)
	if err != nil {
		return err
	}
	if round == nil {
		e.answer(ctx, u, textNothingToDispute)
		return nil
	}

	q, err := e.store.Questions.GetQuestion(ctx, round.QuestionID)
	if err != nil {
		return fmt.Errorf("failed to get question: %w", err)
	}
	var answerer string
	if round.AnswerPlayerID != nil {
		p, err := e.store.Players.GetPlayerByID(ctx, *round.AnswerPlayerID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to get answer player: %w", err)
		}
		answerer = playerName(p)
	}
	var given string
	if round.GivenAnswer != nil {
		given = *round.GivenAnswer
	}
	expected, _ := q.CorrectAnswer()

	if err := e.setPhase(ctx, u.ChatID, &sess.ID, model.PhaseDisputeAnswer); err != nil {
		return err
	}
	e.timers.Cancel(u.ChatID, timer.KindAreReady)

	e.answer(ctx, u, "")
	e.clearClutter(ctx, u.ChatID)
	e.sendTracked(ctx, u.ChatID, textDisputeConfirm(q.Title, answerer, given, expected.Title), disputeKeyboard())
	return nil
}

// handleYesDispute counts the last round for the experts.
func (e *Engine) handleYesDispute(ctx context.Context, u update.Update, _ model.Phase) error {
	sess, err := e.activeSession(ctx, u)
	if err != nil || sess == nil {
		return err
	}
	if p, err := e.captain(ctx, u, sess.ID, textOnlyCapDispute); err != nil || p == nil {
		return err
	}

	round, err := e.lastDisputableRound(ctx, sess.ID)
	if err != nil {
		return err
	}
	if round == nil {
		e.answer(ctx, u, textNothingToDispute)
		e.clearClutter(ctx, u.ChatID)
		return e.nextQuest(ctx, u.ChatID, sess.ID, model.PhaseAreReadyNextRoundPlayers, textDisputeDeclined, readyKeyboard())
	}

	if _, err := e.store.Rounds.OverrideVerdict(ctx, round.ID); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to override verdict: %w", err)
		}
		log.Debug().Int64("round_id", round.ID).Msg("Verdict already overridden")
	} else {
		log.Info().
			Int64("chat_id", u.ChatID).
			Int64("session_id", sess.ID).
			Int64("round_id", round.ID).
			Msg("Verdict overridden by captain")
	}

	e.answer(ctx, u, "")
	e.clearClutter(ctx, u.ChatID)
	cont, err := e.checkAndNotifyScore(ctx, u.ChatID, sess.ID)
	if err != nil || !cont {
		return err
	}
	return e.nextQuest(ctx, u.ChatID, sess.ID, model.PhaseAreReadyNextRoundPlayers, textDisputeAccepted, readyKeyboard())
}

// handleNoDispute keeps the verdict and moves on.
func (e *Engine) handleNoDispute(ctx context.Context, u update.Update, _ model.Phase) error {
	sess, err := e.activeSession(ctx, u)
	if err != nil || sess == nil {
		return err
	}
	if p, err := e.captain(ctx, u, sess.ID, textOnlyCapDispute); err != nil || p == nil {
		return err
	}

	e.answer(ctx, u, "")
	e.clearClutter(ctx, u.ChatID)
	return e.nextQuest(ctx, u.ChatID, sess.ID, model.PhaseAreReadyNextRoundPlayers, textDisputeDeclined, readyKeyboard())
}
