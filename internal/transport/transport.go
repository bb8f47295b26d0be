// Package transport is the outbound side of the chat: sending, deleting and
// acknowledging. The game treats every call as best-effort.
package transport

import (
	"context"
	"strings"
)

// Transport is the chat API the game talks to.
type Transport interface {
	// SendMessage sends Markdown text with an optional inline keyboard and
	// returns the id of the sent message.
	SendMessage(ctx context.Context, chatID int64, text string, kb *Keyboard) (int, error)
	// DeleteMessages removes messages; ids that no longer exist are skipped.
	DeleteMessages(ctx context.Context, chatID int64, ids []int) error
	// AnswerCallback acknowledges a callback query with a short notice.
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Button is one inline button.
type Button struct {
	Text string
	Data string
}

// Keyboard is an inline keyboard, row by row.
type Keyboard struct {
	Rows [][]Button
}

// NewKeyboard builds a keyboard from rows.
func NewKeyboard(rows ...[]Button) *Keyboard {
	return &Keyboard{Rows: rows}
}

// Row groups buttons into one keyboard row.
func Row(buttons ...Button) []Button {
	return buttons
}

// Data returns the callback payloads of all buttons, in order.
func (k *Keyboard) Data() []string {
	if k == nil {
		return nil
	}
	var out []string
	for _, row := range k.Rows {
		for _, b := range row {
			out = append(out, b.Data)
		}
	}
	return out
}

// Has reports whether a button with the payload exists.
func (k *Keyboard) Has(data string) bool {
	for _, d := range k.Data() {
		if d == data {
			return true
		}
	}
	return false
}

var markdownEscaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"`", "\\`",
	"[", "\\[",
)

// EscapeMarkdown escapes user-provided text for legacy Markdown parse mode.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
