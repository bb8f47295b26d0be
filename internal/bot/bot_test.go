package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
	"pgregory.net/rapid"

	"quiz-game-bot/internal/config"
	"quiz-game-bot/internal/game"
	"quiz-game-bot/internal/model"
	"quiz-game-bot/internal/pkg/lock"
	"quiz-game-bot/internal/repository/memory"
	"quiz-game-bot/internal/timer"
	"quiz-game-bot/internal/transport/transporttest"
)

func offlineBot(t *testing.T) *tele.Bot {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Token: "test", Offline: true, Synchronous: true})
	require.NoError(t, err)
	return b
}

func TestNewTeleBot_RequiresToken(t *testing.T) {
	_, err := NewTeleBot(config.BotConfig{}, nil, true)
	assert.Error(t, err)

	b, err := NewTeleBot(config.BotConfig{Token: "test"}, nil, true)
	require.NoError(t, err)
	assert.NotNil(t, b)
}

func TestBot_ProcessUpdate(t *testing.T) {
	ctx := context.Background()
	store := memory.New().Store()
	tr := transporttest.New()
	locks := lock.NewChatLock()
	timers := timer.NewService(ctx)
	defer timers.Stop()

	engine := game.New(game.DefaultConfig(), store, tr, timers, locks)
	m := NewManager(ManagerDeps{Store: store, Dispatcher: engine.Router(), Transport: tr, Locks: locks})

	tb := offlineBot(t)
	New(ctx, tb, m)

	chat := &tele.Chat{ID: testChat, Type: tele.ChatGroup}
	captain := &tele.User{ID: 1, Username: "cap", FirstName: "Капитан"}

	tb.ProcessUpdate(tele.Update{ID: 1, Message: &tele.Message{ID: 10, Chat: chat, Sender: captain, Text: "/start"}})
	require.NotEmpty(t, tr.Sent())
	assert.True(t, tr.Last().Keyboard.Has(game.DataStartGame))

	tb.ProcessUpdate(tele.Update{ID: 2, Callback: &tele.Callback{
		ID:      "cb",
		Sender:  captain,
		Message: &tele.Message{ID: tr.Last().ID, Chat: chat},
		Data:    game.DataStartGame,
	}})

	st, err := store.States.GetState(ctx, testChat)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseWaitingForPlayers, st.Phase)
}

type fakeContext struct {
	tele.Context
	chat *tele.Chat
	sent []any
}

func (c *fakeContext) Chat() *tele.Chat         { return c.chat }
func (c *fakeContext) Sender() *tele.User       { return &tele.User{ID: 1} }
func (c *fakeContext) Callback() *tele.Callback { return nil }
func (c *fakeContext) Text() string             { return "" }

func (c *fakeContext) Send(what any, _ ...any) error {
	c.sent = append(c.sent, what)
	return nil
}

func TestRecoveryMiddleware(t *testing.T) {
	c := &fakeContext{chat: &tele.Chat{ID: testChat}}
	h := RecoveryMiddleware()(LoggingMiddleware()(func(tele.Context) error {
		panic("kaboom")
	}))

	assert.NoError(t, h(c))
	assert.Equal(t, []any{game.TextInternalError}, c.sent)
}

func TestChatOf(t *testing.T) {
	chat := &tele.Chat{ID: -5}
	assert.Equal(t, int64(-5), ChatOf(&tele.Update{Message: &tele.Message{Chat: chat}}))
	assert.Equal(t, int64(-5), ChatOf(&tele.Update{Callback: &tele.Callback{Message: &tele.Message{Chat: chat}}}))
	assert.Zero(t, ChatOf(&tele.Update{Callback: &tele.Callback{}}))
	assert.Zero(t, ChatOf(&tele.Update{}))
}

// TestWhitelistFilterProperty checks that an update passes the filter
// exactly when its chat is allowed.
func TestWhitelistFilterProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		allowed := rapid.SliceOfDistinct(rapid.Int64Range(-1000, -1), func(id int64) int64 { return id }).Draw(t, "allowed")
		set := make(map[int64]bool, len(allowed))
		for _, id := range allowed {
			set[id] = true
		}
		filter := WhitelistFilter(func(id int64) bool { return set[id] })

		chatID := rapid.Int64Range(-1000, -1).Draw(t, "chat")
		u := &tele.Update{Message: &tele.Message{Chat: &tele.Chat{ID: chatID}}}
		if rapid.Bool().Draw(t, "callback") {
			u = &tele.Update{Callback: &tele.Callback{Message: &tele.Message{Chat: &tele.Chat{ID: chatID}}}}
		}

		if got := filter(u); got != set[chatID] {
			t.Fatalf("filter(%d) = %v, allowed %v", chatID, got, allowed)
		}
	})
}
