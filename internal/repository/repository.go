// Package repository defines the persistence contracts of the game.
// Implementations live in the postgres and memory subpackages.
package repository

import (
	"context"
	"errors"

	"quiz-game-bot/internal/model"
)

// Common errors for repository operations.
var (
	// ErrNotFound means the row an operation assumed to exist is absent or no
	// longer matches the operation's condition.
	ErrNotFound = errors.New("not found")
	// ErrConflict means the operation would break a uniqueness invariant.
	ErrConflict = errors.New("conflict")
	// ErrRosterFull means the session already has the maximum number of active players.
	ErrRosterFull = errors.New("roster is full")
)

// SessionRepository persists game sessions.
type SessionRepository interface {
	// CreateSession creates a pending session. Returns ErrConflict when the
	// chat already has a non-terminal session.
	CreateSession(ctx context.Context, chatID int64) (*model.Session, error)
	// GetActiveSession returns the chat's non-terminal session or ErrNotFound.
	GetActiveSession(ctx context.Context, chatID int64) (*model.Session, error)
	GetSession(ctx context.Context, sessionID int64) (*model.Session, error)
	// SetStatus moves the session to status `to` only if its current status
	// is one of `from`. Returns ErrNotFound otherwise.
	SetStatus(ctx context.Context, sessionID int64, from []model.SessionStatus, to model.SessionStatus) (*model.Session, error)
	SetCurrentRound(ctx context.Context, sessionID, roundID int64) error
	// Score aggregates the closed rounds of the session.
	Score(ctx context.Context, sessionID int64) (model.Score, error)
	// CountCompleted returns how many sessions of the chat reached COMPLETED.
	CountCompleted(ctx context.Context, chatID int64) (int, error)
	// LastCompleted returns the most recent completed session or ErrNotFound.
	LastCompleted(ctx context.Context, chatID int64) (*model.Session, error)
}

// PlayerRepository persists session rosters. Player rows are never deleted
// while their session exists.
type PlayerRepository interface {
	// CreateCaptain adds the user as the active captain. Returns ErrConflict
	// if another user is already captain; repeating it for the captain
	// succeeds.
	CreateCaptain(ctx context.Context, sessionID, userID int64) (*model.Player, error)
	// JoinPlayer creates or reactivates a player while the session has fewer
	// than maxActive active players. Returns ErrConflict when the user is
	// already active and ErrRosterFull when the roster is full.
	JoinPlayer(ctx context.Context, sessionID, userID int64, maxActive int) (*model.Player, error)
	GetPlayer(ctx context.Context, sessionID, userID int64) (*model.Player, error)
	GetPlayerByID(ctx context.Context, playerID int64) (*model.Player, error)
	// GetPlayerByUsername matches case-insensitively, without the leading @.
	GetPlayerByUsername(ctx context.Context, sessionID int64, username string) (*model.Player, error)
	// ListPlayers returns all players of the session with their users, ordered by id.
	ListPlayers(ctx context.Context, sessionID int64) ([]model.Player, error)
	SetActive(ctx context.Context, sessionID, userID int64, active bool) error
	// MarkReady sets is_ready for an active, not yet ready player. It reports
	// false when nothing changed.
	MarkReady(ctx context.Context, sessionID, userID int64) (bool, error)
	// ResetReady clears readiness of every player in the session.
	ResetReady(ctx context.Context, sessionID int64) error
	// DeactivateUnready sets is_active=false for active players that are not
	// ready and returns them.
	DeactivateUnready(ctx context.Context, sessionID int64) ([]model.Player, error)
}

// RoundRepository persists rounds.
type RoundRepository interface {
	// CreateRound starts an active round. Returns ErrConflict when the session
	// already has one.
	CreateRound(ctx context.Context, sessionID, questionID int64) (*model.Round, error)
	// GetActiveRound returns the session's active round or ErrNotFound.
	GetActiveRound(ctx context.Context, sessionID int64) (*model.Round, error)
	// GetLastRound returns the most recently created round or ErrNotFound.
	GetLastRound(ctx context.Context, sessionID int64) (*model.Round, error)
	// SetAnswerPlayer nominates the answerer of the active round.
	SetAnswerPlayer(ctx context.Context, sessionID, playerID int64) (*model.Round, error)
	// CloseActiveRound records the verdict and closes the active round.
	// Returns ErrNotFound when no round is active.
	CloseActiveRound(ctx context.Context, sessionID int64, correct bool, givenAnswer *string) (*model.Round, error)
	// OverrideVerdict turns a closed incorrect round into a correct one.
	// It succeeds once per round; later calls return ErrNotFound.
	OverrideVerdict(ctx context.Context, roundID int64) (*model.Round, error)
}

// UserRepository persists chat users.
type UserRepository interface {
	// Upsert creates the user or refreshes its display name.
	Upsert(ctx context.Context, u model.User) (*model.User, error)
	GetByID(ctx context.Context, telegramID int64) (*model.User, error)
}

// QuestionRepository reads quiz content.
type QuestionRepository interface {
	// RandomQuestion picks a question uniformly at random or returns ErrNotFound.
	RandomQuestion(ctx context.Context) (*model.Question, error)
	GetQuestion(ctx context.Context, questionID int64) (*model.Question, error)
	CountQuestions(ctx context.Context) (int, error)
	// CreateQuestion stores a question with its answers under the theme,
	// creating the theme when needed.
	CreateQuestion(ctx context.Context, theme string, q model.Question) (*model.Question, error)
}

// StateRepository persists the per-chat phase and the chat's clutter messages.
type StateRepository interface {
	// GetState returns the chat's state. A chat without a stored state is Inactive.
	GetState(ctx context.Context, chatID int64) (*model.ChatState, error)
	SetState(ctx context.Context, chatID int64, sessionID *int64, phase model.Phase) error
	// ListStates returns states of all chats currently in one of the phases.
	ListStates(ctx context.Context, phases ...model.Phase) ([]model.ChatState, error)
	// TrackMessage remembers a bot message to delete later.
	TrackMessage(ctx context.Context, chatID int64, messageID int) error
	// PopMessages returns and forgets the tracked messages of the chat.
	PopMessages(ctx context.Context, chatID int64) ([]int, error)
}

// Store bundles every repository the game needs.
type Store struct {
	Sessions  SessionRepository
	Players   PlayerRepository
	Rounds    RoundRepository
	Users     UserRepository
	Questions QuestionRepository
	States    StateRepository
}
