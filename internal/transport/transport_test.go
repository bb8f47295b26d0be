package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyboard_Data(t *testing.T) {
	kb := NewKeyboard(
		Row(Button{Text: "Готов", Data: "ready"}),
		Row(Button{Text: "Правила", Data: "show_rules"}, Button{Text: "Рейтинг", Data: "show_rating"}),
	)

	assert.Equal(t, []string{"ready", "show_rules", "show_rating"}, kb.Data())
	assert.True(t, kb.Has("show_rating"))
	assert.False(t, kb.Has("finish_game"))

	var empty *Keyboard
	assert.Nil(t, empty.Data())
	assert.False(t, empty.Has("ready"))
}

func TestMarkup(t *testing.T) {
	assert.Nil(t, Markup(nil))
	assert.Nil(t, Markup(NewKeyboard()))

	m := Markup(NewKeyboard(
		Row(Button{Text: "A", Data: "a"}, Button{Text: "B", Data: "b"}),
		Row(Button{Text: "C", Data: "c"}),
	))
	require.NotNil(t, m)
	require.Len(t, m.InlineKeyboard, 2)
	assert.Len(t, m.InlineKeyboard[0], 2)
	assert.Equal(t, "b", m.InlineKeyboard[0][1].Data)
	assert.Equal(t, "C", m.InlineKeyboard[1][0].Text)
}

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"alice", "alice"},
		{"bob_77", "bob\\_77"},
		{"*star*", "\\*star\\*"},
		{"[x](y)", "\\[x](y)"},
		{"a`b", "a\\`b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EscapeMarkdown(tt.in), tt.in)
	}
}
