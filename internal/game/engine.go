// Package game implements the quiz state machine: roster changes, round
// lifecycle, timer-driven transitions, scoring and answer adjudication.
//
// Route handlers expect to run under the chat's lock. Timer callbacks take
// the same lock themselves.
package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"quiz-game-bot/internal/model"
	"quiz-game-bot/internal/pkg/lock"
	"quiz-game-bot/internal/repository"
	"quiz-game-bot/internal/router"
	"quiz-game-bot/internal/timer"
	"quiz-game-bot/internal/transport"
	"quiz-game-bot/internal/update"
)

// Engine drives games in all chats.
type Engine struct {
	cfg       Config
	store     repository.Store
	transport transport.Transport
	timers    *timer.Service
	locks     *lock.ChatLock
}

// New creates an engine. The lock must be the same one the caller uses
// around update dispatch.
func New(cfg Config, store repository.Store, tr transport.Transport, timers *timer.Service, locks *lock.ChatLock) *Engine {
	return &Engine{
		cfg:       cfg,
		store:     store,
		transport: tr,
		timers:    timers,
		locks:     locks,
	}
}

// Config returns the engine's rules.
func (e *Engine) Config() Config {
	return e.cfg
}

// Routes returns the ordered handler table of the game.
func (e *Engine) Routes() []router.Route {
	callback := router.IsKind(update.KindCallback)
	message := router.IsKind(update.KindMessage)
	areReady := router.InPhase(model.PhaseAreReadyFirstRoundPlayers, model.PhaseAreReadyNextRoundPlayers)

	return []router.Route{
		{Name: "start", Predicates: []router.Predicate{router.Command(CommandStart)}, Handler: e.handleStart},
		{Name: "back", Predicates: []router.Predicate{router.Command(CommandBack)}, Handler: e.handleBack},
		{Name: "show_rules", Predicates: []router.Predicate{router.CallbackData(DataShowRules)}, Handler: e.handleShowRules},
		{Name: "show_rating", Predicates: []router.Predicate{router.CallbackData(DataShowRating)}, Handler: e.handleShowRating},
		{
			Name:       "start_game",
			Predicates: []router.Predicate{router.CallbackData(DataStartGame), router.InPhase(model.PhaseInactive)},
			Handler:    e.handleStartGame,
		},
		{
			Name:       "join_game",
			Predicates: []router.Predicate{router.CallbackData(DataJoinGame), router.InPhase(model.PhaseWaitingForPlayers)},
			Handler:    e.handleJoinGame,
		},
		{
			Name:       "start_game_from_captain",
			Predicates: []router.Predicate{router.CallbackData(DataStartGameFromCaptain), router.InPhase(model.PhaseWaitingForPlayers)},
			Handler:    e.handleStartGameFromCaptain,
		},
		{
			Name:       "finish_game",
			Predicates: []router.Predicate{router.CallbackData(DataFinishGame), router.InPhase(model.PhaseWaitingForPlayers)},
			Handler:    e.handleFinishGame,
		},
		{Name: "ready", Predicates: []router.Predicate{router.CallbackData(DataReady), areReady}, Handler: e.handleReady},
		{
			Name:       "dispute_answer",
			Predicates: []router.Predicate{router.CallbackData(DataDisputeAnswer), router.InPhase(model.PhaseAreReadyNextRoundPlayers)},
			Handler:    e.handleDisputeAnswer,
		},
		{
			Name:       "yes_dispute",
			Predicates: []router.Predicate{router.CallbackData(DataYesDispute), router.InPhase(model.PhaseDisputeAnswer)},
			Handler:    e.handleYesDispute,
		},
		{
			Name:       "no_dispute",
			Predicates: []router.Predicate{router.CallbackData(DataNoDispute), router.InPhase(model.PhaseDisputeAnswer)},
			Handler:    e.handleNoDispute,
		},
		{
			Name:       "question_discussion",
			Predicates: []router.Predicate{message, router.InPhase(model.PhaseQuestionDiscussion)},
			Handler:    e.handleDiscussion,
		},
		{
			Name:       "verdict_captain",
			Predicates: []router.Predicate{message, router.InPhase(model.PhaseVerdictCaptain), router.HasMention()},
			Handler:    e.handleVerdictCaptain,
		},
		{
			Name:       "verdict_reminder",
			Predicates: []router.Predicate{message, router.InPhase(model.PhaseVerdictCaptain)},
			Handler:    e.handleVerdictReminder,
		},
		{
			Name:       "wait_answer",
			Predicates: []router.Predicate{message, router.InPhase(model.PhaseWaitAnswer)},
			Handler:    e.handleWaitAnswer,
		},
		// Buttons left over from earlier phases.
		{Name: "stale_callback", Predicates: []router.Predicate{callback}, Handler: e.handleStaleCallback},
	}
}

// Router builds a router over Routes.
func (e *Engine) Router() *router.Router {
	return router.New(e.Routes()...)
}

// ---- outbound helpers ----

// send delivers a message. Transport failures are logged only.
func (e *Engine) send(ctx context.Context, chatID int64, text string, kb *transport.Keyboard) int {
	id, err := e.transport.SendMessage(ctx, chatID, text, kb)
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
		return 0
	}
	return id
}

// sendTracked sends a message that is deleted on the next cleanup.
func (e *Engine) sendTracked(ctx context.Context, chatID int64, text string, kb *transport.Keyboard) {
	id := e.send(ctx, chatID, text, kb)
	if id == 0 {
		return
	}
	if err := e.store.States.TrackMessage(ctx, chatID, id); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Int("msg_id", id).Msg("Failed to track message")
	}
}

// answer acknowledges the callback of u, if any.
func (e *Engine) answer(ctx context.Context, u update.Update, text string) {
	if u.Kind != update.KindCallback || u.CallbackID == "" {
		return
	}
	if err := e.transport.AnswerCallback(ctx, u.CallbackID, text); err != nil {
		log.Debug().Err(err).Int64("chat_id", u.ChatID).Msg("Failed to answer callback")
	}
}

// reply answers a callback with a notice, or sends the notice to the chat
// for other updates.
func (e *Engine) reply(ctx context.Context, u update.Update, text string) {
	if u.Kind == update.KindCallback {
		e.answer(ctx, u, text)
		return
	}
	e.sendTracked(ctx, u.ChatID, text, nil)
}

// clearClutter deletes the tracked messages of the chat.
func (e *Engine) clearClutter(ctx context.Context, chatID int64) {
	ids, err := e.store.States.PopMessages(ctx, chatID)
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to load tracked messages")
		return
	}
	if len(ids) == 0 {
		return
	}
	if err := e.transport.DeleteMessages(ctx, chatID, ids); err != nil {
		log.Debug().Err(err).Int64("chat_id", chatID).Int("count", len(ids)).Msg("Failed to delete messages")
	}
}

// ---- state helpers ----

func (e *Engine) setPhase(ctx context.Context, chatID int64, sessionID *int64, phase model.Phase) error {
	if err := e.store.States.SetState(ctx, chatID, sessionID, phase); err != nil {
		return fmt.Errorf("failed to set phase %s: %w", phase, err)
	}
	log.Debug().Int64("chat_id", chatID).Str("phase", string(phase)).Msg("Phase changed")
	return nil
}

// activeSession returns the chat's live session. A missing session is
// reported to the user and yields (nil, nil).
func (e *Engine) activeSession(ctx context.Context, u update.Update) (*model.Session, error) {
	sess, err := e.store.Sessions.GetActiveSession(ctx, u.ChatID)
	if errors.Is(err, repository.ErrNotFound) {
		e.reply(ctx, u, textNoGame)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	return sess, nil
}

// activePlayer returns the sender's active player. Non-players are told so
// and yield (nil, nil).
func (e *Engine) activePlayer(ctx context.Context, u update.Update, sessionID int64) (*model.Player, error) {
	p, err := e.store.Players.GetPlayer(ctx, sessionID, u.Sender.ID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !p.IsActive) {
		e.reply(ctx, u, textNotPlayer)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return p, nil
}

// captain is activePlayer that additionally requires the captain flag.
func (e *Engine) captain(ctx context.Context, u update.Update, sessionID int64, notCaptain string) (*model.Player, error) {
	p, err := e.activePlayer(ctx, u, sessionID)
	if err != nil || p == nil {
		return nil, err
	}
	if !p.IsCaptain {
		e.reply(ctx, u, notCaptain)
		return nil, nil
	}
	return p, nil
}

// ---- timers ----

var phaseTimers = map[model.Phase]timer.Kind{
	model.PhaseAreReadyFirstRoundPlayers: timer.KindAreReady,
	model.PhaseAreReadyNextRoundPlayers:  timer.KindAreReady,
	model.PhaseQuestionDiscussion:        timer.KindQuestionDiscussion,
	model.PhaseVerdictCaptain:            timer.KindVerdictCaptain,
	model.PhaseWaitAnswer:                timer.KindWaitAnswer,
}

// TimedPhases returns the phases that run a timer.
func TimedPhases() []model.Phase {
	return []model.Phase{
		model.PhaseAreReadyFirstRoundPlayers,
		model.PhaseAreReadyNextRoundPlayers,
		model.PhaseQuestionDiscussion,
		model.PhaseVerdictCaptain,
		model.PhaseWaitAnswer,
	}
}

func (e *Engine) arm(chatID, sessionID int64, kind timer.Kind) {
	e.timers.Start(timer.Descriptor{ChatID: chatID, Kind: kind, SessionID: sessionID}, e.cfg.timeout(kind), e.onTimer)
}

// onTimer re-enters the state machine when a timer fires. The chat's phase
// and session are looked up again; a fire that no longer matches, or that a
// newer timer of the same kind superseded, is dropped. A failed transition
// leaves the phase as it was, so the timer is armed again to retry it.
func (e *Engine) onTimer(ctx context.Context, d timer.Descriptor) error {
	err := e.locks.WithLockContext(ctx, d.ChatID, e.cfg.LockTimeout, func() error {
		if err := e.timerTransition(ctx, d); err != nil {
			e.rearm(ctx, d)
			return err
		}
		return nil
	})
	if errors.Is(err, lock.ErrLockTimeout) {
		e.rearm(ctx, d)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		e.send(ctx, d.ChatID, TextInternalError, nil)
	}
	return err
}

func (e *Engine) rearm(ctx context.Context, d timer.Descriptor) {
	if ctx.Err() != nil {
		return
	}
	log.Warn().
		Int64("chat_id", d.ChatID).
		Str("kind", string(d.Kind)).
		Msg("Timer transition failed, retrying later")
	e.arm(d.ChatID, d.SessionID, d.Kind)
}

func (e *Engine) timerTransition(ctx context.Context, d timer.Descriptor) error {
	if !e.timers.Current(d) {
		log.Debug().Int64("chat_id", d.ChatID).Str("kind", string(d.Kind)).Msg("Superseded timer ignored")
		return nil
	}
	st, err := e.store.States.GetState(ctx, d.ChatID)
	if err != nil {
		return fmt.Errorf("failed to get chat state: %w", err)
	}
	if st.SessionID == nil || *st.SessionID != d.SessionID || phaseTimers[st.Phase] != d.Kind {
		log.Debug().
			Int64("chat_id", d.ChatID).
			Str("kind", string(d.Kind)).
			Str("phase", string(st.Phase)).
			Msg("Stale timer ignored")
		return nil
	}
	sess, err := e.store.Sessions.GetSession(ctx, d.SessionID)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if sess.Status.IsTerminal() {
		return nil
	}

	log.Info().
		Int64("chat_id", d.ChatID).
		Int64("session_id", d.SessionID).
		Str("kind", string(d.Kind)).
		Msg("Timer fired")

	switch d.Kind {
	case timer.KindAreReady:
		return e.askQuestion(ctx, d.ChatID, d.SessionID)
	case timer.KindQuestionDiscussion:
		return e.verdictCaptain(ctx, d.ChatID, d.SessionID)
	case timer.KindVerdictCaptain:
		return e.cancelGame(ctx, d.ChatID, d.SessionID, model.StatusCancelled, textCaptainTooSlow)
	case timer.KindWaitAnswer:
		return e.isAnswerFalse(ctx, d.ChatID, d.SessionID, textAnswerTimeout)
	}
	return nil
}

// ---- terminal transition ----

// cancelGame ends the session with the given terminal status. Only the call
// that actually moves the session out of a live status has any effect.
func (e *Engine) cancelGame(ctx context.Context, chatID, sessionID int64, status model.SessionStatus, text string) error {
	_, err := e.store.Sessions.SetStatus(ctx, sessionID, model.NonTerminalStatuses(), status)
	if errors.Is(err, repository.ErrNotFound) {
		e.timers.Clean(chatID)
		log.Debug().Int64("chat_id", chatID).Int64("session_id", sessionID).Msg("Session already finished")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}

	e.timers.Clean(chatID)
	if err := e.setPhase(ctx, chatID, nil, model.PhaseInactive); err != nil {
		return err
	}

	e.clearClutter(ctx, chatID)
	e.send(ctx, chatID, text, nil)

	log.Info().
		Int64("chat_id", chatID).
		Int64("session_id", sessionID).
		Str("status", string(status)).
		Msg("Game finished")
	return nil
}

// Recover re-arms the timers of chats persisted in a timed phase and resets
// chats whose session is gone. It returns the number of timers armed.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	states, err := e.store.States.ListStates(ctx, TimedPhases()...)
	if err != nil {
		return 0, fmt.Errorf("failed to list chat states: %w", err)
	}

	armed := 0
	for _, st := range states {
		err := e.locks.WithLock(st.ChatID, func() error {
			if st.SessionID != nil {
				sess, err := e.store.Sessions.GetSession(ctx, *st.SessionID)
				if err != nil && !errors.Is(err, repository.ErrNotFound) {
					return err
				}
				if err == nil && !sess.Status.IsTerminal() {
					e.arm(st.ChatID, sess.ID, phaseTimers[st.Phase])
					armed++
					return nil
				}
			}
			return e.setPhase(ctx, st.ChatID, nil, model.PhaseInactive)
		})
		if err != nil {
			return armed, fmt.Errorf("failed to recover chat %d: %w", st.ChatID, err)
		}
	}

	log.Info().Int("timers", armed).Int("chats", len(states)).Msg("Game state recovered")
	return armed, nil
}
