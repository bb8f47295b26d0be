// Package timer provides per-(chat, kind) cancelable delayed callbacks that
// drive automatic phase transitions of a game.
package timer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Kind identifies which phase a timer belongs to.
type Kind string

// Timer kinds used by the game engine.
const (
	KindAreReady           Kind = "are_ready"
	KindQuestionDiscussion Kind = "question_discussion"
	KindVerdictCaptain     Kind = "verdict_captain"
	KindWaitAnswer         Kind = "wait_answer"
)

// Descriptor describes a timer well enough for its callback to look up
// current state instead of relying on captured values.
//
// Seq is assigned by Start. It tells a fire apart from a later timer of the
// same chat and kind.
type Descriptor struct {
	ChatID    int64
	Kind      Kind
	SessionID int64
	Seq       uint64
}

// Key returns the timer table key for the descriptor.
func (d Descriptor) Key() string {
	return key(d.ChatID, d.Kind)
}

// Callback is invoked once when a timer fires.
type Callback func(ctx context.Context, d Descriptor) error

type entry struct {
	desc     Descriptor
	timer    *time.Timer
	seq      uint64
	firesAt  time.Time
	canceled bool
}

// Service keeps the table of running timers.
// It is safe for concurrent use.
type Service struct {
	mu      sync.Mutex
	timers  map[string]*entry
	latest  map[string]uint64
	seq     uint64
	ctx     context.Context
	stopped bool
}

// NewService creates a timer service. Callbacks receive a context derived
// from ctx.
func NewService(ctx context.Context) *Service {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Service{
		timers: make(map[string]*entry),
		latest: make(map[string]uint64),
		ctx:    ctx,
	}
}

func key(chatID int64, kind Kind) string {
	return fmt.Sprintf("%d_%s", chatID, kind)
}

// Start arms a timer for d. A running timer of the same chat and kind is
// canceled first. The callback receives d with Seq set.
func (s *Service) Start(d Descriptor, timeout time.Duration, cb Callback) string {
	k := d.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return k
	}

	if prev, ok := s.timers[k]; ok {
		s.cancelLocked(k, prev)
	}

	s.seq++
	d.Seq = s.seq
	s.latest[k] = d.Seq
	e := &entry{
		desc:    d,
		seq:     s.seq,
		firesAt: time.Now().Add(timeout),
	}
	e.timer = time.AfterFunc(timeout, func() { s.fire(k, e, cb) })
	s.timers[k] = e

	log.Debug().
		Int64("chat_id", d.ChatID).
		Str("kind", string(d.Kind)).
		Dur("timeout", timeout).
		Msg("Timer started")

	return k
}

// fire runs the callback unless the entry was canceled or replaced meanwhile.
func (s *Service) fire(k string, e *entry, cb Callback) {
	s.mu.Lock()
	current, ok := s.timers[k]
	if !ok || current.seq != e.seq || e.canceled {
		s.mu.Unlock()
		return
	}
	delete(s.timers, k)
	ctx := s.ctx
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Int64("chat_id", e.desc.ChatID).
				Str("kind", string(e.desc.Kind)).
				Msg("Recovered from panic in timer callback")
		}
	}()

	if err := cb(ctx, e.desc); err != nil {
		log.Error().
			Err(err).
			Int64("chat_id", e.desc.ChatID).
			Str("kind", string(e.desc.Kind)).
			Msg("Timer callback failed")
	}
}

func (s *Service) cancelLocked(k string, e *entry) {
	e.canceled = true
	e.timer.Stop()
	delete(s.timers, k)
}

// Cancel stops the chat's timer of the given kind. It returns false when no
// such timer was pending. A callback that already started is not affected.
func (s *Service) Cancel(chatID int64, kind Kind) bool {
	k := key(chatID, kind)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.timers[k]
	if !ok {
		return false
	}
	s.cancelLocked(k, e)

	log.Debug().
		Int64("chat_id", chatID).
		Str("kind", string(kind)).
		Msg("Timer canceled")
	return true
}

// Clean cancels every pending timer of the chat and returns how many were canceled.
func (s *Service) Clean(chatID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, e := range s.timers {
		if e.desc.ChatID == chatID {
			s.cancelLocked(k, e)
			n++
		}
	}
	for _, kind := range []Kind{KindAreReady, KindQuestionDiscussion, KindVerdictCaptain, KindWaitAnswer} {
		delete(s.latest, key(chatID, kind))
	}
	return n
}

// Current reports whether d belongs to the timer most recently started for
// its chat and kind. A fire that waited while a newer timer was armed, or
// after Clean, is not current.
func (s *Service) Current(d Descriptor) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return d.Seq != 0 && s.latest[d.Key()] == d.Seq
}

// Pending returns the descriptor of the chat's pending timer of the given kind.
func (s *Service) Pending(chatID int64, kind Kind) (Descriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.timers[key(chatID, kind)]
	if !ok {
		return Descriptor{}, false
	}
	return e.desc, true
}

// IsActive reports whether the chat has a pending timer of the given kind.
func (s *Service) IsActive(chatID int64, kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key(chatID, kind)]
	return ok
}

// Remaining returns the time left until the chat's timer of the given kind
// fires, or zero if there is none.
func (s *Service) Remaining(chatID int64, kind Kind) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.timers[key(chatID, kind)]
	if !ok {
		return 0
	}
	if d := time.Until(e.firesAt); d > 0 {
		return d
	}
	return 0
}

// Count returns the number of pending timers.
func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels all pending timers and refuses new ones.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for k, e := range s.timers {
		s.cancelLocked(k, e)
	}
}
