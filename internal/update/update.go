// Package update defines the transport-neutral inbound event the game reacts to.
package update

import (
	"strings"
)

// Kind is the type of an inbound update.
type Kind int

// Update kinds.
const (
	KindUnknown Kind = iota
	KindCommand
	KindMessage
	KindCallback
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindMessage:
		return "message"
	case KindCallback:
		return "callback"
	default:
		return "unknown"
	}
}

// Sender identifies the user an update came from.
type Sender struct {
	ID        int64
	Username  string
	FirstName string
}

// Mention is a reference to a user inside message text. Username is set for
// plain @mentions, UserID for mentions of users without a username.
type Mention struct {
	Username string
	UserID   int64
}

// Update is one inbound event: a command, a plain text message or a
// callback query, always bound to a chat.
type Update struct {
	ID        int
	Kind      Kind
	ChatID    int64
	MessageID int
	Sender    Sender

	// Text is the full message text for commands and messages.
	Text string
	// Command is the normalized command ("/start") without bot suffix or arguments.
	Command string

	CallbackID string
	Data       string

	Mentions []Mention
}

// HasMention reports whether the message mentions at least one user.
func (u Update) HasMention() bool {
	return len(u.Mentions) > 0
}

// ParseCommand extracts "/cmd" from text like "/cmd@SomeBot arg".
// It returns "" when text is not a command.
func ParseCommand(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	if i := strings.IndexAny(text, " \n\t"); i >= 0 {
		text = text[:i]
	}
	if i := strings.Index(text, "@"); i >= 0 {
		text = text[:i]
	}
	if len(text) < 2 {
		return ""
	}
	return strings.ToLower(text)
}

// NormalizeCallbackData strips the "\f" prefix telebot adds to unique buttons.
func NormalizeCallbackData(data string) string {
	data = strings.TrimPrefix(data, "\f")
	if i := strings.Index(data, "|"); i >= 0 {
		data = data[:i]
	}
	return data
}
