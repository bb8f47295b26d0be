package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"quiz-game-bot/internal/model"
	"quiz-game-bot/internal/quiz"
	"quiz-game-bot/internal/repository"
	"quiz-game-bot/internal/timer"
	"quiz-game-bot/internal/transport"
	"quiz-game-bot/internal/update"
)

// handleReady marks the sender ready. The question is asked as soon as every
// active player is ready, without waiting for the timer.
func (e *Engine) handleReady(ctx context.Context, u update.Update, _ model.Phase) error {
	sess, err := e.activeSession(ctx, u)
	if err != nil || sess == nil {
		return err
	}

	changed, err := e.store.Players.MarkReady(ctx, sess.ID, u.Sender.ID)
	if err != nil {
		return fmt.Errorf("failed to mark player ready: %w", err)
	}
	if !changed {
		p, err := e.activePlayer(ctx, u, sess.ID)
		if err != nil || p == nil {
			return err
		}
		e.answer(ctx, u, textAlreadyReady)
		return nil
	}
	e.answer(ctx, u, textReadyConfirmed)

	players, err := e.store.Players.ListPlayers(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to list players: %w", err)
	}
	if len(activeReady(players)) < countActive(players) {
		return nil
	}

	e.timers.Cancel(u.ChatID, timer.KindAreReady)
	if err := e.askQuestion(ctx, u.ChatID, sess.ID); err != nil {
		e.arm(u.ChatID, sess.ID, timer.KindAreReady)
		return err
	}
	return nil
}

// askQuestion drops players that are not ready and starts a round. It does
// nothing once the chat left the readiness phase, so the ready path and the
// timer path cannot both start a round. A round left open by an earlier
// failed attempt is resumed instead of replaced.
func (e *Engine) askQuestion(ctx context.Context, chatID, sessionID int64) error {
	st, err := e.store.States.GetState(ctx, chatID)
	if err != nil {
		return fmt.Errorf("failed to get chat state: %w", err)
	}
	if !st.Phase.IsAreReady() || st.SessionID == nil || *st.SessionID != sessionID {
		log.Debug().Int64("chat_id", chatID).Str("phase", string(st.Phase)).Msg("Question already asked")
		return nil
	}

	players, err := e.store.Players.ListPlayers(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to list players: %w", err)
	}
	for _, p := range unready(players) {
		if p.IsCaptain {
			return e.cancelGame(ctx, chatID, sessionID, model.StatusCancelled, textCaptainNotReady)
		}
	}
	if len(activeReady(players)) < e.cfg.MinPlayers {
		return e.cancelGame(ctx, chatID, sessionID, model.StatusCancelled, textNotEnoughReady(e.cfg.MinPlayers))
	}

	round, q, err := e.openRound(ctx, chatID, sessionID)
	if err != nil || round == nil {
		return err
	}

	// Nothing is committed before this point except the round itself,
	// which a retry picks up again.
	dropped, err := e.store.Players.DeactivateUnready(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to drop unready players: %w", err)
	}
	if err := e.store.Sessions.SetCurrentRound(ctx, sessionID, round.ID); err != nil {
		return fmt.Errorf("failed to set current round: %w", err)
	}
	if err := e.setPhase(ctx, chatID, &sessionID, model.PhaseQuestionDiscussion); err != nil {
		return err
	}

	e.clearClutter(ctx, chatID)
	if len(dropped) > 0 {
		e.sendTracked(ctx, chatID, textDropped(dropped), nil)
	}
	e.send(ctx, chatID, textQuestion(q), nil)
	e.arm(chatID, sessionID, timer.KindQuestionDiscussion)

	log.Info().
		Int64("chat_id", chatID).
		Int64("session_id", sessionID).
		Int64("round_id", round.ID).
		Int64("question_id", q.ID).
		Msg("Question asked")
	return nil
}

// openRound returns the session's active round with its question, creating
// one with a random question when none is open. A nil round means the game
// was finished for lack of questions.
func (e *Engine) openRound(ctx context.Context, chatID, sessionID int64) (*model.Round, *model.Question, error) {
	round, err := e.store.Rounds.GetActiveRound(ctx, sessionID)
	if err == nil {
		q, err := e.store.Questions.GetQuestion(ctx, round.QuestionID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get question: %w", err)
		}
		log.Debug().Int64("chat_id", chatID).Int64("round_id", round.ID).Msg("Resuming open round")
		return round, q, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, fmt.Errorf("failed to get active round: %w", err)
	}

	q, err := e.store.Questions.RandomQuestion(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, e.cancelGame(ctx, chatID, sessionID, model.StatusCancelled, textNoQuestions)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to pick question: %w", err)
	}
	round, err = e.store.Rounds.CreateRound(ctx, sessionID, q.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create round: %w", err)
	}
	return round, q, nil
}

// handleDiscussion swallows chat messages while players think.
func (e *Engine) handleDiscussion(context.Context, update.Update, model.Phase) error {
	return nil
}

// verdictCaptain ends the discussion and asks the captain to pick who answers.
func (e *Engine) verdictCaptain(ctx context.Context, chatID, sessionID int64) error {
	players, err := e.store.Players.ListPlayers(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to list players: %w", err)
	}
	var captain *model.Player
	for i := range players {
		if players[i].IsCaptain {
			captain = &players[i]
		}
	}

	if err := e.setPhase(ctx, chatID, &sessionID, model.PhaseVerdictCaptain); err != nil {
		return err
	}
	e.sendTracked(ctx, chatID, textChooseAnswerer(playerName(captain), activeReady(players)), nil)
	e.arm(chatID, sessionID, timer.KindVerdictCaptain)
	return nil
}

// handleVerdictCaptain takes the captain's @mention as the answerer of the round.
func (e *Engine) handleVerdictCaptain(ctx context.Context, u update.Update, _ model.Phase) error {
	sess, err := e.activeSession(ctx, u)
	if err != nil || sess == nil {
		return err
	}

	sender, err := e.store.Players.GetPlayer(ctx, sess.ID, u.Sender.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to get player: %w", err)
	}
	if sender == nil || !sender.IsActive || !sender.IsCaptain {
		e.sendTracked(ctx, u.ChatID, textOnlyCapChooses, nil)
		return nil
	}

	chosen, err := e.mentionedPlayer(ctx, sess.ID, u.Mentions)
	if err != nil {
		return err
	}
	if chosen == nil {
		e.sendTracked(ctx, u.ChatID, textPlayerNotFound, nil)
		return nil
	}

	if _, err := e.store.Rounds.SetAnswerPlayer(ctx, sess.ID, chosen.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn().Int64("chat_id", u.ChatID).Msg("No active round to nominate an answerer for")
			return nil
		}
		return fmt.Errorf("failed to set answer player: %w", err)
	}
	if err := e.setPhase(ctx, u.ChatID, &sess.ID, model.PhaseWaitAnswer); err != nil {
		return err
	}

	e.timers.Cancel(u.ChatID, timer.KindVerdictCaptain)
	e.sendTracked(ctx, u.ChatID, textAnswerInstruction(playerName(chosen)), nil)
	e.arm(u.ChatID, sess.ID, timer.KindWaitAnswer)
	return nil
}

// mentionedPlayer returns the first mentioned player that is active and
// ready, or nil.
func (e *Engine) mentionedPlayer(ctx context.Context, sessionID int64, mentions []update.Mention) (*model.Player, error) {
	for _, m := range mentions {
		var (
			p   *model.Player
			err error
		)
		if m.UserID != 0 {
			p, err = e.store.Players.GetPlayer(ctx, sessionID, m.UserID)
		} else {
			p, err = e.store.Players.GetPlayerByUsername(ctx, sessionID, m.Username)
		}
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to find mentioned player: %w", err)
		}
		if p.IsActive && p.IsReady {
			return p, nil
		}
	}
	return nil, nil
}

func (e *Engine) handleVerdictReminder(ctx context.Context, u update.Update, _ model.Phase) error {
	e.sendTracked(ctx, u.ChatID, textCaptainInstruct, nil)
	return nil
}

// handleWaitAnswer adjudicates the first message after the nomination.
// A message from anyone but the nominated player loses the round.
func (e *Engine) handleWaitAnswer(ctx context.Context, u update.Update, _ model.Phase) error {
	sess, err := e.activeSession(ctx, u)
	if err != nil || sess == nil {
		return err
	}
	round, err := e.store.Rounds.GetActiveRound(ctx, sess.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get active round: %w", err)
	}

	e.timers.Cancel(u.ChatID, timer.KindWaitAnswer)
	if err := e.judgeAnswer(ctx, u, sess.ID, round); err != nil {
		e.arm(u.ChatID, sess.ID, timer.KindWaitAnswer)
		return err
	}
	return nil
}

func (e *Engine) judgeAnswer(ctx context.Context, u update.Update, sessionID int64, round *model.Round) error {
	var answerer *model.Player
	if round.AnswerPlayerID != nil {
		p, err := e.store.Players.GetPlayerByID(ctx, *round.AnswerPlayerID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to get answer player: %w", err)
		}
		answerer = p
	}
	if answerer == nil || answerer.UserID != u.Sender.ID {
		return e.isAnswerFalse(ctx, u.ChatID, sessionID, textWrongPlayer(playerName(answerer), senderName(u.Sender)))
	}

	q, err := e.store.Questions.GetQuestion(ctx, round.QuestionID)
	if err != nil {
		return fmt.Errorf("failed to get question: %w", err)
	}
	correct := quiz.IsCorrect(q, u.Text)
	given := u.Text

	if _, err := e.store.Rounds.CloseActiveRound(ctx, sessionID, correct, &given); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to close round: %w", err)
	}

	expected, _ := q.CorrectAnswer()
	if correct {
		e.send(ctx, u.ChatID, textAnswerCorrect(expected.Title), nil)
	} else {
		e.send(ctx, u.ChatID, textAnswerWrong(expected.Title), nil)
	}
	if expected.Description != "" {
		e.send(ctx, u.ChatID, textDescription(expected.Description), nil)
	}

	log.Info().
		Int64("chat_id", u.ChatID).
		Int64("session_id", sessionID).
		Int64("round_id", round.ID).
		Bool("correct", correct).
		Msg("Answer judged")

	cont, err := e.checkAndNotifyScore(ctx, u.ChatID, sessionID)
	if err != nil || !cont {
		return err
	}
	kb := readyKeyboard()
	if !correct {
		kb = readyOrDisputeKeyboard()
	}
	return e.nextQuest(ctx, u.ChatID, sessionID, model.PhaseAreReadyNextRoundPlayers, textReadyNext, kb)
}

// isAnswerFalse closes the active round as lost and moves on to the next one.
func (e *Engine) isAnswerFalse(ctx context.Context, chatID, sessionID int64, text string) error {
	_, err := e.store.Rounds.CloseActiveRound(ctx, sessionID, false, nil)
	if errors.Is(err, repository.ErrNotFound) {
		// The round was closed by a transition that failed before the phase write.
		return e.nextQuest(ctx, chatID, sessionID, model.PhaseAreReadyNextRoundPlayers, textReadyNext, readyKeyboard())
	}
	if err != nil {
		return fmt.Errorf("failed to close round: %w", err)
	}
	e.send(ctx, chatID, text, nil)

	cont, err := e.checkAndNotifyScore(ctx, chatID, sessionID)
	if err != nil || !cont {
		return err
	}
	return e.nextQuest(ctx, chatID, sessionID, model.PhaseAreReadyNextRoundPlayers, textReadyNext, readyOrDisputeKeyboard())
}

// nextQuest clears readiness, prompts for it and starts the readiness timer.
func (e *Engine) nextQuest(ctx context.Context, chatID, sessionID int64, phase model.Phase, text string, kb *transport.Keyboard) error {
	if err := e.store.Players.ResetReady(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to reset readiness: %w", err)
	}
	if err := e.setPhase(ctx, chatID, &sessionID, phase); err != nil {
		return err
	}
	e.sendTracked(ctx, chatID, text, kb)
	e.arm(chatID, sessionID, timer.KindAreReady)
	return nil
}

// checkAndNotifyScore announces the score and finishes the game once a side
// reaches the maximum. It reports whether the game goes on.
func (e *Engine) checkAndNotifyScore(ctx context.Context, chatID, sessionID int64) (bool, error) {
	score, err := e.store.Sessions.Score(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to get score: %w", err)
	}
	e.send(ctx, chatID, textScore(score), nil)

	switch {
	case score.Experts >= e.cfg.MaxScore:
		return false, e.cancelGame(ctx, chatID, sessionID, model.StatusCompleted, textExpertsWin)
	case score.Bot >= e.cfg.MaxScore:
		return false, e.cancelGame(ctx, chatID, sessionID, model.StatusCompleted, textBotWins)
	}
	return true, nil
}
