// Package memory is an in-process implementation of the repository
// contracts. It enforces the same invariants as the PostgreSQL schema.
package memory

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"quiz-game-bot/internal/model"
	"quiz-game-bot/internal/repository"
)

// DB holds all game data in maps guarded by a single mutex.
type DB struct {
	mu sync.Mutex

	seq int64

	sessions  map[int64]*model.Session
	players   map[int64]*model.Player
	rounds    map[int64]*model.Round
	users     map[int64]*model.User
	themes    map[int64]*model.Theme
	questions map[int64]*model.Question
	states    map[int64]*model.ChatState
	clutter   map[int64][]int
}

// New creates an empty database.
func New() *DB {
	return &DB{
		sessions:  make(map[int64]*model.Session),
		players:   make(map[int64]*model.Player),
		rounds:    make(map[int64]*model.Round),
		users:     make(map[int64]*model.User),
		themes:    make(map[int64]*model.Theme),
		questions: make(map[int64]*model.Question),
		states:    make(map[int64]*model.ChatState),
		clutter:   make(map[int64][]int),
	}
}

// Store returns the repository bundle backed by db.
func (db *DB) Store() repository.Store {
	return repository.Store{
		Sessions:  db,
		Players:   db,
		Rounds:    db,
		Users:     db,
		Questions: db,
		States:    db,
	}
}

func (db *DB) nextID() int64 {
	db.seq++
	return db.seq
}

func ptr[T any](v T) *T { return &v }

func copySession(s *model.Session) *model.Session {
	c := *s
	if s.CurrentRoundID != nil {
		c.CurrentRoundID = ptr(*s.CurrentRoundID)
	}
	return &c
}

func copyRound(r *model.Round) *model.Round {
	c := *r
	if r.AnswerPlayerID != nil {
		c.AnswerPlayerID = ptr(*r.AnswerPlayerID)
	}
	if r.IsCorrectAnswer != nil {
		c.IsCorrectAnswer = ptr(*r.IsCorrectAnswer)
	}
	if r.GivenAnswer != nil {
		c.GivenAnswer = ptr(*r.GivenAnswer)
	}
	return &c
}

func (db *DB) copyPlayer(p *model.Player) *model.Player {
	c := *p
	if u, ok := db.users[p.UserID]; ok {
		uc := *u
		c.User = &uc
	} else {
		c.User = &model.User{TelegramID: p.UserID}
	}
	return &c
}

// ---- sessions ----

func (db *DB) activeSessionLocked(chatID int64) *model.Session {
	for _, s := range db.sessions {
		if s.ChatID == chatID && !s.Status.IsTerminal() {
			return s
		}
	}
	return nil
}

// CreateSession implements repository.SessionRepository.
func (db *DB) CreateSession(_ context.Context, chatID int64) (*model.Session, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.activeSessionLocked(chatID) != nil {
		return nil, repository.ErrConflict
	}
	now := time.Now()
	s := &model.Session{
		ID:        db.nextID(),
		ChatID:    chatID,
		Status:    model.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	db.sessions[s.ID] = s
	return copySession(s), nil
}

// GetActiveSession implements repository.SessionRepository.
func (db *DB) GetActiveSession(_ context.Context, chatID int64) (*model.Session, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s := db.activeSessionLocked(chatID)
	if s == nil {
		return nil, repository.ErrNotFound
	}
	return copySession(s), nil
}

// GetSession implements repository.SessionRepository.
func (db *DB) GetSession(_ context.Context, sessionID int64) (*model.Session, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copySession(s), nil
}

// SetStatus implements repository.SessionRepository.
func (db *DB) SetStatus(_ context.Context, sessionID int64, from []model.SessionStatus, to model.SessionStatus) (*model.Session, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	allowed := false
	for _, st := range from {
		if s.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, repository.ErrNotFound
	}
	if !to.IsTerminal() {
		if other := db.activeSessionLocked(s.ChatID); other != nil && other.ID != s.ID {
			return nil, repository.ErrConflict
		}
	}
	s.Status = to
	s.UpdatedAt = time.Now()
	return copySession(s), nil
}

// SetCurrentRound implements repository.SessionRepository.
func (db *DB) SetCurrentRound(_ context.Context, sessionID, roundID int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	s.CurrentRoundID = ptr(roundID)
	s.UpdatedAt = time.Now()
	return nil
}

// Score implements repository.SessionRepository.
func (db *DB) Score(_ context.Context, sessionID int64) (model.Score, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var sc model.Score
	for _, r := range db.rounds {
		if r.SessionID != sessionID || r.IsCorrectAnswer == nil {
			continue
		}
		sc.TotalRounds++
		if *r.IsCorrectAnswer {
			sc.Experts++
		} else {
			sc.Bot++
		}
	}
	return sc, nil
}

// CountCompleted implements repository.SessionRepository.
func (db *DB) CountCompleted(_ context.Context, chatID int64) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	n := 0
	for _, s := range db.sessions {
		if s.ChatID == chatID && s.Status == model.StatusCompleted {
			n++
		}
	}
	return n, nil
}

// LastCompleted implements repository.SessionRepository.
func (db *DB) LastCompleted(_ context.Context, chatID int64) (*model.Session, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var last *model.Session
	for _, s := range db.sessions {
		if s.ChatID == chatID && s.Status == model.StatusCompleted && (last == nil || s.ID > last.ID) {
			last = s
		}
	}
	if last == nil {
		return nil, repository.ErrNotFound
	}
	return copySession(last), nil
}

// ---- players ----

func (db *DB) playerLocked(sessionID, userID int64) *model.Player {
	for _, p := range db.players {
		if p.SessionID == sessionID && p.UserID == userID {
			return p
		}
	}
	return nil
}

func (db *DB) activeCountLocked(sessionID int64) int {
	n := 0
	for _, p := range db.players {
		if p.SessionID == sessionID && p.IsActive {
			n++
		}
	}
	return n
}

// CreateCaptain implements repository.PlayerRepository.
func (db *DB) CreateCaptain(_ context.Context, sessionID, userID int64) (*model.Player, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.sessions[sessionID]; !ok {
		return nil, repository.ErrNotFound
	}
	for _, p := range db.players {
		if p.SessionID == sessionID && p.IsCaptain && p.UserID != userID {
			return nil, repository.ErrConflict
		}
	}
	if p := db.playerLocked(sessionID, userID); p != nil {
		p.IsCaptain = true
		p.IsActive = true
		return db.copyPlayer(p), nil
	}
	p := &model.Player{
		ID:        db.nextID(),
		SessionID: sessionID,
		UserID:    userID,
		IsActive:  true,
		IsCaptain: true,
	}
	db.players[p.ID] = p
	return db.copyPlayer(p), nil
}

// JoinPlayer implements repository.PlayerRepository.
func (db *DB) JoinPlayer(_ context.Context, sessionID, userID int64, maxActive int) (*model.Player, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.sessions[sessionID]; !ok {
		return nil, repository.ErrNotFound
	}
	p := db.playerLocked(sessionID, userID)
	if p != nil && p.IsActive {
		return nil, repository.ErrConflict
	}
	if db.activeCountLocked(sessionID) >= maxActive {
		return nil, repository.ErrRosterFull
	}
	if p != nil {
		p.IsActive = true
		p.IsReady = false
		return db.copyPlayer(p), nil
	}
	p = &model.Player{
		ID:        db.nextID(),
		SessionID: sessionID,
		UserID:    userID,
		IsActive:  true,
	}
	db.players[p.ID] = p
	return db.copyPlayer(p), nil
}

// GetPlayer implements repository.PlayerRepository.
func (db *DB) GetPlayer(_ context.Context, sessionID, userID int64) (*model.Player, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	p := db.playerLocked(sessionID, userID)
	if p == nil {
		return nil, repository.ErrNotFound
	}
	return db.copyPlayer(p), nil
}

// GetPlayerByID implements repository.PlayerRepository.
func (db *DB) GetPlayerByID(_ context.Context, playerID int64) (*model.Player, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	p, ok := db.players[playerID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return db.copyPlayer(p), nil
}

// GetPlayerByUsername implements repository.PlayerRepository.
func (db *DB) GetPlayerByUsername(_ context.Context, sessionID int64, username string) (*model.Player, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	username = strings.TrimPrefix(username, "@")
	for _, p := range db.players {
		if p.SessionID != sessionID {
			continue
		}
		if u, ok := db.users[p.UserID]; ok && u.Username != "" && strings.EqualFold(u.Username, username) {
			return db.copyPlayer(p), nil
		}
	}
	return nil, repository.ErrNotFound
}

// ListPlayers implements repository.PlayerRepository.
func (db *DB) ListPlayers(_ context.Context, sessionID int64) ([]model.Player, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []model.Player
	for _, p := range db.players {
		if p.SessionID == sessionID {
			out = append(out, *db.copyPlayer(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetActive implements repository.PlayerRepository.
func (db *DB) SetActive(_ context.Context, sessionID, userID int64, active bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	p := db.playerLocked(sessionID, userID)
	if p == nil {
		return repository.ErrNotFound
	}
	p.IsActive = active
	if !active {
		p.IsReady = false
	}
	return nil
}

// MarkReady implements repository.PlayerRepository.
func (db *DB) MarkReady(_ context.Context, sessionID, userID int64) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	p := db.playerLocked(sessionID, userID)
	if p == nil || !p.IsActive || p.IsReady {
		return false, nil
	}
	p.IsReady = true
	return true, nil
}

// ResetReady implements repository.PlayerRepository.
func (db *DB) ResetReady(_ context.Context, sessionID int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, p := range db.players {
		if p.SessionID == sessionID {
			p.IsReady = false
		}
	}
	return nil
}

// DeactivateUnready implements repository.PlayerRepository.
func (db *DB) DeactivateUnready(_ context.Context, sessionID int64) ([]model.Player, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []model.Player
	for _, p := range db.players {
		if p.SessionID == sessionID && p.IsActive && !p.IsReady {
			p.IsActive = false
			out = append(out, *db.copyPlayer(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- rounds ----

func (db *DB) activeRoundLocked(sessionID int64) *model.Round {
	for _, r := range db.rounds {
		if r.SessionID == sessionID && r.IsActive {
			return r
		}
	}
	return nil
}

// CreateRound implements repository.RoundRepository.
func (db *DB) CreateRound(_ context.Context, sessionID, questionID int64) (*model.Round, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.sessions[sessionID]; !ok {
		return nil, repository.ErrNotFound
	}
	if db.activeRoundLocked(sessionID) != nil {
		return nil, repository.ErrConflict
	}
	r := &model.Round{
		ID:         db.nextID(),
		SessionID:  sessionID,
		QuestionID: questionID,
		IsActive:   true,
		CreatedAt:  time.Now(),
	}
	db.rounds[r.ID] = r
	return copyRound(r), nil
}

// GetActiveRound implements repository.RoundRepository.
func (db *DB) GetActiveRound(_ context.Context, sessionID int64) (*model.Round, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	r := db.activeRoundLocked(sessionID)
	if r == nil {
		return nil, repository.ErrNotFound
	}
	return copyRound(r), nil
}

// GetLastRound implements repository.RoundRepository.
func (db *DB) GetLastRound(_ context.Context, sessionID int64) (*model.Round, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var last *model.Round
	for _, r := range db.rounds {
		if r.SessionID == sessionID && (last == nil || r.ID > last.ID) {
			last = r
		}
	}
	if last == nil {
		return nil, repository.ErrNotFound
	}
	return copyRound(last), nil
}

// SetAnswerPlayer implements repository.RoundRepository.
func (db *DB) SetAnswerPlayer(_ context.Context, sessionID, playerID int64) (*model.Round, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	r := db.activeRoundLocked(sessionID)
	if r == nil {
		return nil, repository.ErrNotFound
	}
	r.AnswerPlayerID = ptr(playerID)
	return copyRound(r), nil
}

// CloseActiveRound implements repository.RoundRepository.
func (db *DB) CloseActiveRound(_ context.Context, sessionID int64, correct bool, givenAnswer *string) (*model.Round, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	r := db.activeRoundLocked(sessionID)
	if r == nil {
		return nil, repository.ErrNotFound
	}
	r.IsActive = false
	r.IsCorrectAnswer = ptr(correct)
	if givenAnswer != nil {
		r.GivenAnswer = ptr(*givenAnswer)
	}
	return copyRound(r), nil
}

// OverrideVerdict implements repository.RoundRepository.
func (db *DB) OverrideVerdict(_ context.Context, roundID int64) (*model.Round, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	r, ok := db.rounds[roundID]
	if !ok || r.IsActive || r.Disputed || r.IsCorrectAnswer == nil || *r.IsCorrectAnswer {
		return nil, repository.ErrNotFound
	}
	r.IsCorrectAnswer = ptr(true)
	r.Disputed = true
	return copyRound(r), nil
}

// ---- users ----

// Upsert implements repository.UserRepository.
func (db *DB) Upsert(_ context.Context, u model.User) (*model.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := time.Now()
	existing, ok := db.users[u.TelegramID]
	if !ok {
		u.CreatedAt = now
		u.UpdatedAt = now
		db.users[u.TelegramID] = &u
		c := u
		return &c, nil
	}
	existing.Username = u.Username
	existing.FirstName = u.FirstName
	existing.UpdatedAt = now
	c := *existing
	return &c, nil
}

// GetByID implements repository.UserRepository.
func (db *DB) GetByID(_ context.Context, telegramID int64) (*model.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	u, ok := db.users[telegramID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *u
	return &c, nil
}

// ---- questions ----

func (db *DB) copyQuestion(q *model.Question) *model.Question {
	c := *q
	c.Answers = append([]model.Answer(nil), q.Answers...)
	if th, ok := db.themes[q.ThemeID]; ok {
		c.Theme = *th
	}
	return &c
}

// RandomQuestion implements repository.QuestionRepository.
func (db *DB) RandomQuestion(_ context.Context) (*model.Question, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if len(db.questions) == 0 {
		return nil, repository.ErrNotFound
	}
	ids := make([]int64, 0, len(db.questions))
	for id := range db.questions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return db.copyQuestion(db.questions[ids[rand.Intn(len(ids))]]), nil
}

// GetQuestion implements repository.QuestionRepository.
func (db *DB) GetQuestion(_ context.Context, questionID int64) (*model.Question, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	q, ok := db.questions[questionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return db.copyQuestion(q), nil
}

// CountQuestions implements repository.QuestionRepository.
func (db *DB) CountQuestions(_ context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.questions), nil
}

// CreateQuestion implements repository.QuestionRepository.
func (db *DB) CreateQuestion(_ context.Context, theme string, q model.Question) (*model.Question, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var th *model.Theme
	for _, t := range db.themes {
		if t.Title == theme {
			th = t
			break
		}
	}
	if th == nil {
		th = &model.Theme{ID: db.nextID(), Title: theme}
		db.themes[th.ID] = th
	}

	stored := &model.Question{
		ID:      db.nextID(),
		ThemeID: th.ID,
		Title:   q.Title,
	}
	for _, a := range q.Answers {
		a.ID = db.nextID()
		a.QuestionID = stored.ID
		stored.Answers = append(stored.Answers, a)
	}
	db.questions[stored.ID] = stored
	return db.copyQuestion(stored), nil
}

// ---- chat states ----

// GetState implements repository.StateRepository.
func (db *DB) GetState(_ context.Context, chatID int64) (*model.ChatState, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	st, ok := db.states[chatID]
	if !ok {
		return &model.ChatState{ChatID: chatID, Phase: model.PhaseInactive}, nil
	}
	c := *st
	if st.SessionID != nil {
		c.SessionID = ptr(*st.SessionID)
	}
	return &c, nil
}

// SetState implements repository.StateRepository.
func (db *DB) SetState(_ context.Context, chatID int64, sessionID *int64, phase model.Phase) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	st := &model.ChatState{ChatID: chatID, Phase: phase}
	if sessionID != nil {
		st.SessionID = ptr(*sessionID)
	}
	db.states[chatID] = st
	return nil
}

// ListStates implements repository.StateRepository.
func (db *DB) ListStates(_ context.Context, phases ...model.Phase) ([]model.ChatState, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []model.ChatState
	for _, st := range db.states {
		for _, p := range phases {
			if st.Phase == p {
				c := *st
				if st.SessionID != nil {
					c.SessionID = ptr(*st.SessionID)
				}
				out = append(out, c)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out, nil
}

// TrackMessage implements repository.StateRepository.
func (db *DB) TrackMessage(_ context.Context, chatID int64, messageID int) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, id := range db.clutter[chatID] {
		if id == messageID {
			return nil
		}
	}
	db.clutter[chatID] = append(db.clutter[chatID], messageID)
	return nil
}

// PopMessages implements repository.StateRepository.
func (db *DB) PopMessages(_ context.Context, chatID int64) ([]int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	ids := db.clutter[chatID]
	delete(db.clutter, chatID)
	return ids, nil
}
