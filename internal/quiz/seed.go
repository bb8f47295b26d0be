package quiz

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"quiz-game-bot/internal/model"
)

//go:embed content/default.yaml
var defaultContent []byte

// ErrInvalidContent is returned for seed files that break content rules.
var ErrInvalidContent = errors.New("invalid quiz content")

// Content is the YAML layout of a seed file.
type Content struct {
	Themes []ThemeContent `yaml:"themes"`
}

// ThemeContent is one theme with its questions.
type ThemeContent struct {
	Title     string            `yaml:"title"`
	Questions []QuestionContent `yaml:"questions"`
}

// QuestionContent is one question with its answers.
type QuestionContent struct {
	Title   string          `yaml:"title"`
	Answers []AnswerContent `yaml:"answers"`
}

// AnswerContent is one answer variant.
type AnswerContent struct {
	Title       string `yaml:"title"`
	Correct     bool   `yaml:"correct"`
	Description string `yaml:"description"`
}

// ContentStore is the write side of the question repository used for seeding.
type ContentStore interface {
	CountQuestions(ctx context.Context) (int, error)
	CreateQuestion(ctx context.Context, theme string, q model.Question) (*model.Question, error)
}

// Parse decodes and validates seed content.
func Parse(r io.Reader) (*Content, error) {
	var c Content
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to decode quiz content: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads seed content from path, or the built-in content when path is empty.
func Load(path string) (*Content, error) {
	if path == "" {
		return Parse(bytes.NewReader(defaultContent))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open quiz content: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Validate checks that every question has a title and at least one correct answer.
func (c *Content) Validate() error {
	if len(c.Themes) == 0 {
		return fmt.Errorf("%w: no themes", ErrInvalidContent)
	}
	for _, th := range c.Themes {
		if strings.TrimSpace(th.Title) == "" {
			return fmt.Errorf("%w: theme without title", ErrInvalidContent)
		}
		for _, q := range th.Questions {
			if strings.TrimSpace(q.Title) == "" {
				return fmt.Errorf("%w: question without title in theme %q", ErrInvalidContent, th.Title)
			}
			correct := 0
			for _, a := range q.Answers {
				if a.Correct && Normalize(a.Title) != "" {
					correct++
				}
			}
			if correct == 0 {
				return fmt.Errorf("%w: question %q has no correct answer", ErrInvalidContent, q.Title)
			}
		}
	}
	return nil
}

// Questions flattens the content into models keyed by theme title.
func (c *Content) Questions() []ThemedQuestion {
	var out []ThemedQuestion
	for _, th := range c.Themes {
		for _, qc := range th.Questions {
			q := model.Question{Title: strings.TrimSpace(qc.Title)}
			for _, ac := range qc.Answers {
				q.Answers = append(q.Answers, model.Answer{
					Title:       strings.TrimSpace(ac.Title),
					IsCorrect:   ac.Correct,
					Description: strings.TrimSpace(ac.Description),
				})
			}
			out = append(out, ThemedQuestion{Theme: strings.TrimSpace(th.Title), Question: q})
		}
	}
	return out
}

// ThemedQuestion pairs a question with its theme title.
type ThemedQuestion struct {
	Theme    string
	Question model.Question
}

// Seed writes the content into an empty store. A store that already holds
// questions is left as is. It returns the number of questions written.
func Seed(ctx context.Context, store ContentStore, c *Content) (int, error) {
	n, err := store.CountQuestions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	if n > 0 {
		log.Info().Int("questions", n).Msg("Quiz content already present, skipping seed")
		return 0, nil
	}

	written := 0
	for _, tq := range c.Questions() {
		if _, err := store.CreateQuestion(ctx, tq.Theme, tq.Question); err != nil {
			return written, fmt.Errorf("failed to seed question %q: %w", tq.Question.Title, err)
		}
		written++
	}

	log.Info().Int("questions", written).Msg("Quiz content seeded")
	return written, nil
}
