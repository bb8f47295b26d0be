package game

import (
	"context"
	"fmt"
	"time"

	"github.com/stretchr/testify/require"

	"quiz-game-bot/internal/model"
	"quiz-game-bot/internal/pkg/lock"
	"quiz-game-bot/internal/repository"
	"quiz-game-bot/internal/repository/memory"
	"quiz-game-bot/internal/router"
	"quiz-game-bot/internal/timer"
	"quiz-game-bot/internal/transport/transporttest"
	"quiz-game-bot/internal/update"
)

const chat int64 = -100500

// Users of the test chat. captain is user 1.
var (
	captainUser = update.Sender{ID: 1, Username: "cap", FirstName: "Капитан"}
	players     = []update.Sender{
		captainUser,
		{ID: 2, Username: "anna", FirstName: "Анна"},
		{ID: 3, Username: "boris", FirstName: "Борис"},
		{ID: 4, Username: "vera", FirstName: "Вера"},
		{ID: 5, Username: "gleb", FirstName: "Глеб"},
		{ID: 6, Username: "dina", FirstName: "Дина"},
		{ID: 7, Username: "egor", FirstName: "Егор"},
		{ID: 8, Username: "zoya", FirstName: "Зоя"},
	}
)

// testConfig never lets timers fire on their own.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AreReadyTimeout = time.Hour
	cfg.DiscussionTimeout = time.Hour
	cfg.VerdictTimeout = time.Hour
	cfg.AnswerTimeout = time.Hour
	cfg.LockTimeout = time.Second
	return cfg
}

type fixture struct {
	ctx    context.Context
	db     *memory.DB
	store  repository.Store
	tr     *transporttest.Recorder
	timers *timer.Service
	locks  *lock.ChatLock
	engine *Engine
	router *router.Router
	seq    int
}

type testingT interface {
	require.TestingT
	Helper()
}

func newFixture(t testingT, cfg Config) *fixture {
	t.Helper()
	ctx := context.Background()
	db := memory.New()
	f := &fixture{
		ctx:    ctx,
		db:     db,
		store:  db.Store(),
		tr:     transporttest.New(),
		timers: timer.NewService(ctx),
		locks:  lock.NewChatLock(),
	}
	f.build(cfg)

	for _, p := range players {
		_, err := f.store.Users.Upsert(ctx, model.User{TelegramID: p.ID, Username: p.Username, FirstName: p.FirstName})
		require.NoError(t, err)
	}
	_, err := f.store.Questions.CreateQuestion(ctx, "Огород", model.Question{
		Title: "Что растёт на грядке кочаном?",
		Answers: []model.Answer{
			{Title: "Капуста", IsCorrect: true, Description: "Кочан бывает только у капусты"},
		},
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) build(cfg Config) {
	f.engine = New(cfg, f.store, f.tr, f.timers, f.locks)
	f.router = f.engine.Router()
}

// deliver routes u the way the bot manager does.
func (f *fixture) deliver(t testingT, u update.Update) {
	t.Helper()
	require.NoError(t, f.tryDeliver(u))
}

func (f *fixture) tryDeliver(u update.Update) error {
	return f.locks.WithLock(u.ChatID, func() error {
		st, err := f.store.States.GetState(f.ctx, u.ChatID)
		if err != nil {
			return err
		}
		_, err = f.router.Route(f.ctx, u, st.Phase)
		return err
	})
}

func (f *fixture) command(from update.Sender, cmd string) update.Update {
	return update.Update{Kind: update.KindCommand, ChatID: chat, Sender: from, Text: cmd, Command: cmd}
}

func (f *fixture) callback(from update.Sender, data string) update.Update {
	f.seq++
	return update.Update{
		Kind:       update.KindCallback,
		ChatID:     chat,
		Sender:     from,
		CallbackID: fmt.Sprintf("cb-%d", f.seq),
		Data:       data,
	}
}

func (f *fixture) message(from update.Sender, text string, mentions ...string) update.Update {
	u := update.Update{Kind: update.KindMessage, ChatID: chat, Sender: from, Text: text}
	for _, m := range mentions {
		u.Mentions = append(u.Mentions, update.Mention{Username: m})
	}
	return u
}

// fire simulates the chat's timer of the given kind running out.
func (f *fixture) fire(t testingT, kind timer.Kind) {
	t.Helper()
	require.NoError(t, f.tryFire(t, kind))
}

// tryFire takes the pending timer out of the service, as a real fire does,
// and runs its callback.
func (f *fixture) tryFire(t testingT, kind timer.Kind) error {
	t.Helper()
	d, ok := f.timers.Pending(chat, kind)
	require.True(t, ok, "timer %s is not pending", kind)
	f.timers.Cancel(chat, kind)
	return f.engine.onTimer(f.ctx, d)
}

func (f *fixture) state(t testingT) *model.ChatState {
	t.Helper()
	st, err := f.store.States.GetState(f.ctx, chat)
	require.NoError(t, err)
	return st
}

func (f *fixture) phase(t testingT) model.Phase {
	t.Helper()
	return f.state(t).Phase
}

func (f *fixture) session(t testingT) *model.Session {
	t.Helper()
	sess, err := f.store.Sessions.GetActiveSession(f.ctx, chat)
	require.NoError(t, err)
	return sess
}

func (f *fixture) score(t testingT, sessionID int64) model.Score {
	t.Helper()
	sc, err := f.store.Sessions.Score(f.ctx, sessionID)
	require.NoError(t, err)
	return sc
}

// lobby opens a game with the captain and n-1 more players.
func (f *fixture) lobby(t testingT, n int) *model.Session {
	t.Helper()
	f.deliver(t, f.command(captainUser, CommandStart))
	f.deliver(t, f.callback(captainUser, DataStartGame))
	for _, p := range players[1:n] {
		f.deliver(t, f.callback(p, DataJoinGame))
	}
	return f.session(t)
}

// toDiscussion opens a game with n players and gets everyone ready.
func (f *fixture) toDiscussion(t testingT, n int) *model.Session {
	t.Helper()
	sess := f.lobby(t, n)
	f.deliver(t, f.callback(captainUser, DataStartGameFromCaptain))
	for _, p := range players[:n] {
		f.deliver(t, f.callback(p, DataReady))
	}
	require.Equal(t, model.PhaseQuestionDiscussion, f.phase(t))
	return sess
}

// toWaitAnswer continues to the point where players[answerer] must answer.
func (f *fixture) toWaitAnswer(t testingT, n, answerer int) *model.Session {
	t.Helper()
	sess := f.toDiscussion(t, n)
	f.fire(t, timer.KindQuestionDiscussion)
	f.deliver(t, f.message(captainUser, "отвечает @"+players[answerer].Username, players[answerer].Username))
	require.Equal(t, model.PhaseWaitAnswer, f.phase(t))
	return sess
}
