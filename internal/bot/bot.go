// Package bot connects Telegram to the game: the Manager takes inbound
// updates from any source, and Bot feeds it from a telebot long poller.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"quiz-game-bot/internal/config"
	"quiz-game-bot/internal/update"
)

// NewTeleBot creates the telebot instance. A nil poller means a default long
// poller; offline bots never call getMe, which tests rely on.
func NewTeleBot(cfg config.BotConfig, poller tele.Poller, offline bool) (*tele.Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("bot token is required")
	}
	if poller == nil {
		timeout := cfg.PollTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		poller = &tele.LongPoller{Timeout: timeout}
	}

	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Poller:  poller,
		Offline: offline,
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Telegram handler error")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return b, nil
}

// Bot feeds telebot updates to the manager.
type Bot struct {
	bot     *tele.Bot
	manager *Manager
	ctx     context.Context
}

// New registers middleware and handlers on b. Updates are handled with ctx.
func New(ctx context.Context, b *tele.Bot, manager *Manager) *Bot {
	bt := &Bot{bot: b, manager: manager, ctx: ctx}
	bt.registerMiddleware()
	bt.registerHandlers()
	return bt
}

func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers hands every text message and callback to the manager.
// Commands reach OnText too, since no command endpoint is registered.
func (b *Bot) registerHandlers() {
	b.bot.Handle(tele.OnText, b.handle)
	b.bot.Handle(tele.OnCallback, b.handle)
}

func (b *Bot) handle(c tele.Context) error {
	u, ok := update.FromTelegram(c.Update())
	if !ok {
		return nil
	}
	// The manager already logged and reported the failure.
	_ = b.manager.HandleUpdate(b.ctx, u)
	return nil
}

// Start polls Telegram until Stop is called.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops polling.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
