package update

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
)

func TestParseCommand(t *testing.T) {
	assert.Equal(t, "/start", ParseCommand("/start"))
	assert.Equal(t, "/start", ParseCommand("/Start@QuizBot"))
	assert.Equal(t, "/back", ParseCommand(" /back now"))
	assert.Equal(t, "", ParseCommand("start"))
	assert.Equal(t, "", ParseCommand("/"))
}

func TestNormalizeCallbackData(t *testing.T) {
	assert.Equal(t, "ready", NormalizeCallbackData("\fready"))
	assert.Equal(t, "ready", NormalizeCallbackData("\fready|payload"))
	assert.Equal(t, "join_game", NormalizeCallbackData("join_game"))
}

func TestFromTelegram_Command(t *testing.T) {
	u, ok := FromTelegram(tele.Update{
		ID: 10,
		Message: &tele.Message{
			ID:     5,
			Text:   "/start@QuizBot",
			Chat:   &tele.Chat{ID: -100},
			Sender: &tele.User{ID: 42, Username: "alice", FirstName: "Alice"},
		},
	})
	require.True(t, ok)
	assert.Equal(t, KindCommand, u.Kind)
	assert.Equal(t, "/start", u.Command)
	assert.Equal(t, int64(-100), u.ChatID)
	assert.Equal(t, Sender{ID: 42, Username: "alice", FirstName: "Alice"}, u.Sender)
}

func TestFromTelegram_MentionsUseUTF16Offsets(t *testing.T) {
	// "Ответ: " is 7 UTF-16 units; the emoji takes two more.
	text := "Ответ: 🙂 @bob_77 и ещё"
	u, ok := FromTelegram(tele.Update{
		Message: &tele.Message{
			Text:   text,
			Chat:   &tele.Chat{ID: 1},
			Sender: &tele.User{ID: 2, Username: "cap"},
			Entities: tele.Entities{
				{Type: tele.EntityMention, Offset: 10, Length: 7},
				{Type: tele.EntityTMention, Offset: 18, Length: 1, User: &tele.User{ID: 99}},
			},
		},
	})
	require.True(t, ok)
	assert.Equal(t, KindMessage, u.Kind)
	require.Len(t, u.Mentions, 2)
	assert.Equal(t, "bob_77", u.Mentions[0].Username)
	assert.Equal(t, int64(99), u.Mentions[1].UserID)
	assert.True(t, u.HasMention())
}

func TestFromTelegram_Callback(t *testing.T) {
	u, ok := FromTelegram(tele.Update{
		Callback: &tele.Callback{
			ID:      "cb1",
			Data:    "\fjoin_game",
			Sender:  &tele.User{ID: 3, Username: "carol"},
			Message: &tele.Message{ID: 77, Chat: &tele.Chat{ID: -5}},
		},
	})
	require.True(t, ok)
	assert.Equal(t, KindCallback, u.Kind)
	assert.Equal(t, "join_game", u.Data)
	assert.Equal(t, "cb1", u.CallbackID)
	assert.Equal(t, int64(-5), u.ChatID)
	assert.Equal(t, 77, u.MessageID)
}

func TestFromTelegram_Unsupported(t *testing.T) {
	_, ok := FromTelegram(tele.Update{})
	assert.False(t, ok)

	_, ok = FromTelegram(tele.Update{Message: &tele.Message{Text: "hi", Chat: &tele.Chat{ID: 1}}})
	assert.False(t, ok)

	_, ok = FromTelegram(tele.Update{Callback: &tele.Callback{Sender: &tele.User{ID: 1}}})
	assert.False(t, ok)
}
