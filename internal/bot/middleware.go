package bot

import (
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"quiz-game-bot/internal/game"
)

// ChatOf returns the chat an update belongs to, or 0.
func ChatOf(u *tele.Update) int64 {
	switch {
	case u.Message != nil && u.Message.Chat != nil:
		return u.Message.Chat.ID
	case u.Callback != nil && u.Callback.Message != nil && u.Callback.Message.Chat != nil:
		return u.Callback.Message.Chat.ID
	}
	return 0
}

// WhitelistFilter returns a poller filter that lets through updates from
// allowed chats only.
func WhitelistFilter(allow func(chatID int64) bool) func(*tele.Update) bool {
	return func(u *tele.Update) bool {
		chatID := ChatOf(u)
		if chatID == 0 {
			return false
		}
		if !allow(chatID) {
			log.Debug().Int64("chat_id", chatID).Msg("Ignoring update from non-whitelisted chat")
			return false
		}
		return true
	}
}

// LoggingMiddleware creates a middleware that logs all incoming updates.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			chat := c.Chat()

			logEvent := log.Debug()
			if sender != nil {
				logEvent = logEvent.
					Int64("user_id", sender.ID).
					Str("username", sender.Username)
			}
			if chat != nil {
				logEvent = logEvent.
					Int64("chat_id", chat.ID).
					Str("chat_type", string(chat.Type))
			}
			if cb := c.Callback(); cb != nil {
				logEvent = logEvent.Str("data", cb.Data)
			}
			logEvent.
				Str("text", c.Text()).
				Msg("Received update")

			return next(c)
		}
	}
}

// RecoveryMiddleware creates a middleware that recovers from panics.
func RecoveryMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Msg("Recovered from panic in handler")
					if c.Chat() != nil {
						_ = c.Send(game.TextInternalError, tele.ModeMarkdown)
					}
					err = nil
				}
			}()
			return next(c)
		}
	}
}
