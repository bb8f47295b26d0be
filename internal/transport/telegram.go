package transport

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"
)

// Telegram sends through a telebot instance.
type Telegram struct {
	bot *tele.Bot
}

// NewTelegram wraps a telebot instance.
func NewTelegram(bot *tele.Bot) *Telegram {
	return &Telegram{bot: bot}
}

// Markup converts a keyboard to telebot's inline markup.
func Markup(kb *Keyboard) *tele.ReplyMarkup {
	if kb == nil || len(kb.Rows) == 0 {
		return nil
	}
	rows := make([][]tele.InlineButton, 0, len(kb.Rows))
	for _, r := range kb.Rows {
		row := make([]tele.InlineButton, 0, len(r))
		for _, b := range r {
			row = append(row, tele.InlineButton{Text: b.Text, Data: b.Data})
		}
		rows = append(rows, row)
	}
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

// SendMessage implements Transport.
func (t *Telegram) SendMessage(_ context.Context, chatID int64, text string, kb *Keyboard) (int, error) {
	opts := &tele.SendOptions{
		ParseMode:   tele.ModeMarkdown,
		ReplyMarkup: Markup(kb),
	}
	msg, err := t.bot.Send(tele.ChatID(chatID), text, opts)
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return msg.ID, nil
}

// DeleteMessages implements Transport. It falls back to one-by-one deletion
// when the bulk call is rejected.
func (t *Telegram) DeleteMessages(_ context.Context, chatID int64, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	msgs := make([]tele.Editable, 0, len(ids))
	for _, id := range ids {
		msgs = append(msgs, tele.StoredMessage{MessageID: strconv.Itoa(id), ChatID: chatID})
	}
	if err := t.bot.DeleteMany(msgs); err == nil {
		return nil
	} else {
		log.Debug().Err(err).Int64("chat_id", chatID).Msg("Bulk delete failed, deleting one by one")
	}

	var firstErr error
	for _, m := range msgs {
		if err := t.bot.Delete(m); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to delete message: %w", err)
		}
	}
	return firstErr
}

// AnswerCallback implements Transport.
func (t *Telegram) AnswerCallback(_ context.Context, callbackID, text string) error {
	if callbackID == "" {
		return nil
	}
	err := t.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text})
	if err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}
