// Package quiz holds answer checking and loading of quiz content.
package quiz

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"quiz-game-bot/internal/model"
)

// Normalize prepares free-form answer text for comparison: NFC composition,
// Unicode case folding, whitespace runs collapsed to one space, trimmed.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// Matches reports whether given equals expected after normalization.
func Matches(given, expected string) bool {
	g := Normalize(given)
	return g != "" && g == Normalize(expected)
}

// IsCorrect reports whether given matches any correct answer of q.
func IsCorrect(q *model.Question, given string) bool {
	if q == nil {
		return false
	}
	for _, a := range q.Answers {
		if a.IsCorrect && Matches(given, a.Title) {
			return true
		}
	}
	return false
}
