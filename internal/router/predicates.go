package router

import (
	"strings"

	"quiz-game-bot/internal/model"
	"quiz-game-bot/internal/update"
)

// IsKind accepts updates of the given kind.
func IsKind(k update.Kind) Predicate {
	return func(u update.Update, _ model.Phase) bool {
		return u.Kind == k
	}
}

// Command accepts the command, case-insensitively and ignoring a bot suffix.
func Command(cmd string) Predicate {
	cmd = strings.ToLower(cmd)
	return func(u update.Update, _ model.Phase) bool {
		return u.Kind == update.KindCommand && u.Command == cmd
	}
}

// Text accepts messages or commands whose trimmed text equals text.
func Text(text string) Predicate {
	return func(u update.Update, _ model.Phase) bool {
		return u.Kind != update.KindCallback && strings.TrimSpace(u.Text) == text
	}
}

// CallbackData accepts callbacks carrying exactly data.
func CallbackData(data string) Predicate {
	return func(u update.Update, _ model.Phase) bool {
		return u.Kind == update.KindCallback && u.Data == data
	}
}

// InPhase accepts updates arriving while the chat is in one of the phases.
func InPhase(phases ...model.Phase) Predicate {
	return func(_ update.Update, phase model.Phase) bool {
		for _, p := range phases {
			if p == phase {
				return true
			}
		}
		return false
	}
}

// HasMention accepts messages that mention a user.
func HasMention() Predicate {
	return func(u update.Update, _ model.Phase) bool {
		return u.HasMention()
	}
}

// Not negates a predicate.
func Not(p Predicate) Predicate {
	return func(u update.Update, phase model.Phase) bool {
		return !p(u, phase)
	}
}
