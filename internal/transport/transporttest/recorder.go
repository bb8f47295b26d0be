// Package transporttest provides an in-memory Transport that records calls.
package transporttest

import (
	"context"
	"strings"
	"sync"

	"quiz-game-bot/internal/transport"
)

// Message is a recorded outbound message.
type Message struct {
	ID       int
	ChatID   int64
	Text     string
	Keyboard *transport.Keyboard
}

// Answer is a recorded callback acknowledgement.
type Answer struct {
	CallbackID string
	Text       string
}

// Recorder implements transport.Transport and keeps every call.
type Recorder struct {
	mu      sync.Mutex
	nextID  int
	sent    []Message
	deleted map[int64][]int
	answers []Answer

	// SendErr, when set, is returned by SendMessage after recording nothing.
	SendErr error
}

// New creates an empty recorder.
func New() *Recorder {
	return &Recorder{nextID: 1000, deleted: make(map[int64][]int)}
}

// SendMessage implements transport.Transport.
func (r *Recorder) SendMessage(_ context.Context, chatID int64, text string, kb *transport.Keyboard) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.SendErr != nil {
		return 0, r.SendErr
	}
	r.nextID++
	r.sent = append(r.sent, Message{ID: r.nextID, ChatID: chatID, Text: text, Keyboard: kb})
	return r.nextID, nil
}

// DeleteMessages implements transport.Transport.
func (r *Recorder) DeleteMessages(_ context.Context, chatID int64, ids []int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted[chatID] = append(r.deleted[chatID], ids...)
	return nil
}

// AnswerCallback implements transport.Transport.
func (r *Recorder) AnswerCallback(_ context.Context, callbackID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers = append(r.answers, Answer{CallbackID: callbackID, Text: text})
	return nil
}

// Sent returns a copy of the sent messages.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}

// Answers returns a copy of the callback answers.
func (r *Recorder) Answers() []Answer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Answer(nil), r.answers...)
}

// Deleted returns the ids deleted in the chat.
func (r *Recorder) Deleted(chatID int64) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.deleted[chatID]...)
}

// Last returns the most recent message, or a zero Message.
func (r *Recorder) Last() Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Message{}
	}
	return r.sent[len(r.sent)-1]
}

// LastAnswer returns the most recent callback answer text.
func (r *Recorder) LastAnswer() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.answers) == 0 {
		return ""
	}
	return r.answers[len(r.answers)-1].Text
}

// CountContaining returns how many sent messages contain substr.
func (r *Recorder) CountContaining(substr string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.sent {
		if strings.Contains(m.Text, substr) {
			n++
		}
	}
	return n
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
	r.answers = nil
	r.deleted = make(map[int64][]int)
}
