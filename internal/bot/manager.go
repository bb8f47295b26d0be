package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"quiz-game-bot/internal/game"
	"quiz-game-bot/internal/model"
	"quiz-game-bot/internal/pkg/lock"
	"quiz-game-bot/internal/repository"
	"quiz-game-bot/internal/transport"
	"quiz-game-bot/internal/update"
)

// Dispatcher routes an update in the chat's current phase.
type Dispatcher interface {
	Route(ctx context.Context, u update.Update, phase model.Phase) (bool, error)
}

// Manager is the single entry point for inbound updates, whatever their source.
type Manager struct {
	users       repository.UserRepository
	states      repository.StateRepository
	dispatcher  Dispatcher
	transport   transport.Transport
	locks       *lock.ChatLock
	allow       func(chatID int64) bool
	lockTimeout time.Duration
}

// ManagerDeps holds everything a Manager needs.
type ManagerDeps struct {
	Store      repository.Store
	Dispatcher Dispatcher
	Transport  transport.Transport
	// Locks must be shared with the game engine.
	Locks *lock.ChatLock
	// Allow filters chats; nil allows every chat.
	Allow       func(chatID int64) bool
	LockTimeout time.Duration
}

// NewManager creates a manager.
func NewManager(deps ManagerDeps) *Manager {
	allow := deps.Allow
	if allow == nil {
		allow = func(int64) bool { return true }
	}
	timeout := deps.LockTimeout
	if timeout <= 0 {
		timeout = game.DefaultConfig().LockTimeout
	}
	return &Manager{
		users:       deps.Store.Users,
		states:      deps.Store.States,
		dispatcher:  deps.Dispatcher,
		transport:   deps.Transport,
		locks:       deps.Locks,
		allow:       allow,
		lockTimeout: timeout,
	}
}

// HandleUpdate records the sender, then routes the update under the chat's
// lock. A failed transition is reported to the chat and returned.
func (m *Manager) HandleUpdate(ctx context.Context, u update.Update) error {
	if !m.allow(u.ChatID) {
		log.Debug().Int64("chat_id", u.ChatID).Msg("Ignoring update from non-whitelisted chat")
		return nil
	}

	if u.Sender.ID != 0 {
		_, err := m.users.Upsert(ctx, model.User{
			TelegramID: u.Sender.ID,
			Username:   u.Sender.Username,
			FirstName:  u.Sender.FirstName,
		})
		if err != nil {
			return m.fail(ctx, u, fmt.Errorf("failed to upsert user: %w", err))
		}
	}

	err := m.locks.WithLockContext(ctx, u.ChatID, m.lockTimeout, func() error {
		st, err := m.states.GetState(ctx, u.ChatID)
		if err != nil {
			return fmt.Errorf("failed to get chat state: %w", err)
		}
		_, err = m.dispatcher.Route(ctx, u, st.Phase)
		return err
	})
	if err != nil {
		return m.fail(ctx, u, err)
	}
	return nil
}

func (m *Manager) fail(ctx context.Context, u update.Update, err error) error {
	log.Error().
		Err(err).
		Int64("chat_id", u.ChatID).
		Int64("user_id", u.Sender.ID).
		Str("kind", u.Kind.String()).
		Int("update_id", u.ID).
		Msg("Failed to handle update")

	if u.Kind == update.KindCallback {
		if aerr := m.transport.AnswerCallback(ctx, u.CallbackID, ""); aerr != nil {
			log.Debug().Err(aerr).Msg("Failed to answer callback")
		}
	}
	if _, serr := m.transport.SendMessage(ctx, u.ChatID, game.TextInternalError, nil); serr != nil {
		log.Warn().Err(serr).Int64("chat_id", u.ChatID).Msg("Failed to report error to chat")
	}
	return err
}
