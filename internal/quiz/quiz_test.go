package quiz

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"quiz-game-bot/internal/model"
)

func TestMatches(t *testing.T) {
	assert.True(t, Matches(" Капуста ", "Капуста"))
	assert.True(t, Matches("капуста", "Капуста"))
	assert.True(t, Matches("КАПУСТА", "капуста"))
	assert.True(t, Matches("Южная   Америка", "южная америка"))
	assert.True(t, Matches("Straße", "STRASSE"))
	assert.False(t, Matches("Морковь", "Капуста"))
	assert.False(t, Matches("   ", ""))
}

func TestNormalize_ComposesDecomposedForms(t *testing.T) {
	// "й" as и + combining breve
	decomposed := "Баи\u0306кал"
	assert.Equal(t, Normalize("Байкал"), Normalize(decomposed))
}

func TestIsCorrect(t *testing.T) {
	q := &model.Question{
		Title: "Картофель?",
		Answers: []model.Answer{
			{Title: "Картофель", IsCorrect: true},
			{Title: "Картошка", IsCorrect: true},
			{Title: "Батат"},
		},
	}
	assert.True(t, IsCorrect(q, "картошка"))
	assert.True(t, IsCorrect(q, "  КАРТОФЕЛЬ"))
	assert.False(t, IsCorrect(q, "батат"))
	assert.False(t, IsCorrect(nil, "картошка"))
}

// TestNormalizeIdempotentProperty checks Normalize(Normalize(s)) == Normalize(s)
// and that padding and case never change a match.
func TestNormalizeIdempotentProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.StringMatching(`[а-яА-ЯёЁa-zA-Z0-9 \t\n]{0,30}`).Draw(t, "s")
		n := Normalize(s)
		if Normalize(n) != n {
			t.Fatalf("not idempotent: %q -> %q -> %q", s, n, Normalize(n))
		}

		word := rapid.StringMatching(`[а-яА-Яa-zA-Z]{1,12}`).Draw(t, "word")
		padded := strings.Repeat(" ", rapid.IntRange(0, 3).Draw(t, "l")) +
			strings.ToUpper(word) +
			strings.Repeat("\t", rapid.IntRange(0, 3).Draw(t, "r"))
		if !Matches(padded, word) {
			t.Fatalf("%q should match %q", padded, word)
		}
	})
}

func TestParse(t *testing.T) {
	c, err := Parse(strings.NewReader(`
themes:
  - title: Овощи
    questions:
      - title: Главный овощ щей?
        answers:
          - title: Капуста
            correct: true
            description: Основа блюда.
          - title: Свёкла
`))
	require.NoError(t, err)
	qs := c.Questions()
	require.Len(t, qs, 1)
	assert.Equal(t, "Овощи", qs[0].Theme)
	ans, ok := qs[0].Question.CorrectAnswer()
	require.True(t, ok)
	assert.Equal(t, "Капуста", ans.Title)
	assert.Equal(t, "Основа блюда.", ans.Description)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse(strings.NewReader(`themes: []`))
	assert.ErrorIs(t, err, ErrInvalidContent)

	_, err = Parse(strings.NewReader(`
themes:
  - title: T
    questions:
      - title: Q
        answers:
          - title: A
`))
	assert.ErrorIs(t, err, ErrInvalidContent)

	_, err = Parse(strings.NewReader(`themes: [{title: T, unknown: 1}]`))
	assert.Error(t, err)
}

func TestLoad_Default(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(c.Questions()), 12)
}

type fakeStore struct {
	existing int
	created  []ThemedQuestion
	failAt   int
}

func (f *fakeStore) CountQuestions(context.Context) (int, error) { return f.existing, nil }

func (f *fakeStore) CreateQuestion(_ context.Context, theme string, q model.Question) (*model.Question, error) {
	if f.failAt > 0 && len(f.created)+1 == f.failAt {
		return nil, errors.New("insert failed")
	}
	f.created = append(f.created, ThemedQuestion{Theme: theme, Question: q})
	return &q, nil
}

func TestSeed(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	store := &fakeStore{}
	n, err := Seed(context.Background(), store, c)
	require.NoError(t, err)
	assert.Equal(t, len(c.Questions()), n)
	assert.Len(t, store.created, n)

	full := &fakeStore{existing: 3}
	n, err = Seed(context.Background(), full, c)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, full.created)

	broken := &fakeStore{failAt: 2}
	n, err = Seed(context.Background(), broken, c)
	assert.Error(t, err)
	assert.Equal(t, 1, n)
}
