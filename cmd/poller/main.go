// Package main is the entry point of the poller process. It long-polls
// Telegram and forwards every update from an allowed chat to RabbitMQ.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	tele "gopkg.in/telebot.v3"

	"quiz-game-bot/internal/bot"
	"quiz-game-bot/internal/config"
	"quiz-game-bot/internal/queue"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.Bot.Token == "" {
		log.Fatal().Msg("Bot token is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Poller failed")
	}
	log.Info().Msg("Poller stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	conn, ch, err := queue.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := queue.Declare(ch, cfg.RabbitMQ.Queue); err != nil {
		return err
	}
	publisher := queue.NewPublisher(ch, cfg.RabbitMQ.Queue)

	allowed := bot.WhitelistFilter(cfg.IsChatAllowed)
	poller := tele.NewMiddlewarePoller(&tele.LongPoller{Timeout: cfg.Bot.PollTimeout}, func(u *tele.Update) bool {
		if !allowed(u) {
			return false
		}
		if err := publisher.Publish(ctx, *u); err != nil {
			log.Error().Err(err).Int("update_id", u.ID).Msg("Failed to publish update")
		}
		// The game process handles the update; the poller never does.
		return false
	})

	b, err := bot.NewTeleBot(cfg.Bot, poller, false)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.Go(func() error {
		log.Info().Str("queue", cfg.RabbitMQ.Queue).Msg("Polling updates")
		b.Start()
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		b.Stop()
		return nil
	})
	return g.Wait()
}
