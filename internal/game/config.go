package game

import (
	"errors"
	"fmt"
	"time"

	"quiz-game-bot/internal/timer"
)

// Config holds the rules and timeouts of a game.
type Config struct {
	MinPlayers int
	MaxPlayers int
	MaxScore   int

	AreReadyTimeout   time.Duration
	DiscussionTimeout time.Duration
	VerdictTimeout    time.Duration
	AnswerTimeout     time.Duration

	// LockTimeout bounds how long a timer callback waits for the chat lock.
	LockTimeout time.Duration
}

// DefaultConfig returns the standard rules: 2 to 6 players, first to 6 points.
func DefaultConfig() Config {
	return Config{
		MinPlayers:        2,
		MaxPlayers:        6,
		MaxScore:          6,
		AreReadyTimeout:   30 * time.Second,
		DiscussionTimeout: 60 * time.Second,
		VerdictTimeout:    120 * time.Second,
		AnswerTimeout:     30 * time.Second,
		LockTimeout:       10 * time.Second,
	}
}

// Validate checks that the rules are playable.
func (c Config) Validate() error {
	if c.MinPlayers < 1 {
		return errors.New("min players must be at least 1")
	}
	if c.MaxPlayers < c.MinPlayers {
		return fmt.Errorf("max players (%d) must not be less than min players (%d)", c.MaxPlayers, c.MinPlayers)
	}
	if c.MaxScore < 1 {
		return errors.New("max score must be at least 1")
	}
	for name, d := range map[string]time.Duration{
		"are ready":  c.AreReadyTimeout,
		"discussion": c.DiscussionTimeout,
		"verdict":    c.VerdictTimeout,
		"answer":     c.AnswerTimeout,
		"lock":       c.LockTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s timeout must be positive", name)
		}
	}
	return nil
}

func (c Config) timeout(kind timer.Kind) time.Duration {
	switch kind {
	case timer.KindAreReady:
		return c.AreReadyTimeout
	case timer.KindQuestionDiscussion:
		return c.DiscussionTimeout
	case timer.KindVerdictCaptain:
		return c.VerdictTimeout
	case timer.KindWaitAnswer:
		return c.AnswerTimeout
	}
	return 0
}
