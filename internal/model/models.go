// Package model defines the data models for the quiz game bot.
package model

import "time"

// SessionStatus is the lifecycle status of a game session.
type SessionStatus string

// Session statuses.
const (
	StatusPending    SessionStatus = "pending"
	StatusProcessing SessionStatus = "processing"
	StatusCompleted  SessionStatus = "completed"
	StatusCancelled  SessionStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// NonTerminalStatuses returns the statuses an active session can have.
func NonTerminalStatuses() []SessionStatus {
	return []SessionStatus{StatusPending, StatusProcessing}
}

// Session is one game in one chat.
// At most one non-terminal session exists per chat.
type Session struct {
	ID             int64         `db:"id"`
	ChatID         int64         `db:"chat_id"`
	Status         SessionStatus `db:"status"`
	CurrentRoundID *int64        `db:"current_round_id"`
	CreatedAt      time.Time     `db:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at"`
}

// User is a stable chat-transport identity.
type User struct {
	TelegramID int64     `db:"telegram_id"`
	Username   string    `db:"username"`
	FirstName  string    `db:"first_name"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// DisplayName returns the @username when known, the first name otherwise.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.FirstName
}

// Player is a user taking part in a session.
type Player struct {
	ID        int64 `db:"id"`
	SessionID int64 `db:"session_id"`
	UserID    int64 `db:"user_id"`
	IsActive  bool  `db:"is_active"`
	IsReady   bool  `db:"is_ready"`
	IsCaptain bool  `db:"is_captain"`

	User *User `db:"-"`
}

// Round is one question-answer cycle within a session.
type Round struct {
	ID              int64     `db:"id"`
	SessionID       int64     `db:"session_id"`
	QuestionID      int64     `db:"question_id"`
	IsActive        bool      `db:"is_active"`
	AnswerPlayerID  *int64    `db:"answer_player_id"`
	IsCorrectAnswer *bool     `db:"is_correct_answer"`
	GivenAnswer     *string   `db:"given_answer"`
	Disputed        bool      `db:"disputed"`
	CreatedAt       time.Time `db:"created_at"`
}

// Theme groups questions.
type Theme struct {
	ID    int64  `db:"id"`
	Title string `db:"title"`
}

// Answer is one expected answer to a question.
type Answer struct {
	ID          int64  `db:"id"`
	QuestionID  int64  `db:"question_id"`
	Title       string `db:"title"`
	IsCorrect   bool   `db:"is_correct"`
	Description string `db:"description"`
}

// Question is read-only quiz content.
type Question struct {
	ID      int64    `db:"id"`
	ThemeID int64    `db:"theme_id"`
	Title   string   `db:"title"`
	Theme   Theme    `db:"-"`
	Answers []Answer `db:"-"`
}

// CorrectAnswer returns the first answer marked correct.
func (q *Question) CorrectAnswer() (Answer, bool) {
	for _, a := range q.Answers {
		if a.IsCorrect {
			return a, true
		}
	}
	return Answer{}, false
}

// Score is derived from closed rounds of a session.
type Score struct {
	Experts     int
	Bot         int
	TotalRounds int
}
