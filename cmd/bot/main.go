// Package main is the entry point of the quiz game process.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"quiz-game-bot/internal/bot"
	"quiz-game-bot/internal/config"
	"quiz-game-bot/internal/game"
	"quiz-game-bot/internal/httpapi"
	"quiz-game-bot/internal/pkg/db"
	"quiz-game-bot/internal/pkg/lock"
	"quiz-game-bot/internal/queue"
	"quiz-game-bot/internal/quiz"
	"quiz-game-bot/internal/repository/postgres"
	"quiz-game-bot/internal/timer"
	"quiz-game-bot/internal/transport"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	log.Info().Str("mode", cfg.Transport.Mode).Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Game process failed")
	}
	log.Info().Msg("Game process stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	if err := postgres.Migrate(ctx, dbPool.Pool); err != nil {
		return err
	}
	store := postgres.NewStore(dbPool.Pool)

	content, err := quiz.Load(cfg.Content.SeedFile)
	if err != nil {
		return err
	}
	if _, err := quiz.Seed(ctx, store.Questions, content); err != nil {
		return err
	}

	// In queue mode the poller owns getUpdates; this process only sends.
	teleBot, err := bot.NewTeleBot(cfg.Bot, nil, false)
	if err != nil {
		return err
	}
	tr := transport.NewTelegram(teleBot)

	timers := timer.NewService(ctx)
	defer timers.Stop()
	locks := lock.NewChatLock()

	engine := game.New(cfg.Game.Rules(), store, tr, timers, locks)
	if _, err := engine.Recover(ctx); err != nil {
		return err
	}

	manager := bot.NewManager(bot.ManagerDeps{
		Store:       store,
		Dispatcher:  engine.Router(),
		Transport:   tr,
		Locks:       locks,
		Allow:       cfg.IsChatAllowed,
		LockTimeout: cfg.Game.LockTimeout,
	})

	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.SetupRoutes(dbPool, timers),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Health server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	switch cfg.Transport.Mode {
	case config.ModeQueue:
		conn, ch, err := queue.Dial(cfg.RabbitMQ.URL)
		if err != nil {
			return err
		}
		defer conn.Close()
		if err := queue.Declare(ch, cfg.RabbitMQ.Queue); err != nil {
			return err
		}
		consumer := queue.NewConsumer(ch, cfg.RabbitMQ.Queue, manager, cfg.RabbitMQ.Prefetch)
		g.Go(func() error {
			return consumer.Run(ctx)
		})
	default:
		b := bot.New(ctx, teleBot, manager)
		g.Go(func() error {
			b.Start()
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			b.Stop()
			return nil
		})
	}

	return g.Wait()
}
