package update

import (
	"strings"

	tele "gopkg.in/telebot.v3"
)

// FromTelegram converts a telebot update. The second result is false for
// updates the game does not handle (edited messages, channel posts, updates
// without a chat or sender).
func FromTelegram(tu tele.Update) (Update, bool) {
	switch {
	case tu.Callback != nil:
		return fromCallback(tu.ID, tu.Callback)
	case tu.Message != nil:
		return fromMessage(tu.ID, tu.Message)
	default:
		return Update{}, false
	}
}

func fromMessage(id int, m *tele.Message) (Update, bool) {
	if m.Chat == nil || m.Sender == nil || m.Text == "" {
		return Update{}, false
	}

	u := Update{
		ID:        id,
		Kind:      KindMessage,
		ChatID:    m.Chat.ID,
		MessageID: m.ID,
		Sender:    senderOf(m.Sender),
		Text:      m.Text,
	}

	if cmd := ParseCommand(m.Text); cmd != "" {
		u.Kind = KindCommand
		u.Command = cmd
	}

	for _, e := range m.Entities {
		switch e.Type {
		case tele.EntityMention:
			// EntityText resolves offsets counted in UTF-16 code units.
			name := strings.TrimPrefix(m.EntityText(e), "@")
			if name != "" {
				u.Mentions = append(u.Mentions, Mention{Username: name})
			}
		case tele.EntityTMention:
			if e.User != nil {
				u.Mentions = append(u.Mentions, Mention{UserID: e.User.ID, Username: e.User.Username})
			}
		}
	}

	return u, true
}

func fromCallback(id int, c *tele.Callback) (Update, bool) {
	if c.Sender == nil || c.Message == nil || c.Message.Chat == nil {
		return Update{}, false
	}
	return Update{
		ID:         id,
		Kind:       KindCallback,
		ChatID:     c.Message.Chat.ID,
		MessageID:  c.Message.ID,
		Sender:     senderOf(c.Sender),
		CallbackID: c.ID,
		Data:       NormalizeCallbackData(c.Data),
	}, true
}

func senderOf(u *tele.User) Sender {
	return Sender{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
	}
}
