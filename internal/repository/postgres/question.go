package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quiz-game-bot/internal/model"
)

// QuestionRepository reads and seeds quiz content.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository instance.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// RandomQuestion picks a question uniformly at random.
func (r *QuestionRepository) RandomQuestion(ctx context.Context) (*model.Question, error) {
	var id int64
	if err := r.pool.QueryRow(ctx, `SELECT id FROM questions ORDER BY random() LIMIT 1`).Scan(&id); err != nil {
		if err = mapError(err); isSentinel(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to pick question: %w", err)
	}
	return r.GetQuestion(ctx, id)
}

// GetQuestion loads a question with its theme and answers.
func (r *QuestionRepository) GetQuestion(ctx context.Context, questionID int64) (*model.Question, error) {
	const query = `
		SELECT q.id, q.theme_id, q.title, t.id, t.title
		FROM questions q
		JOIN themes t ON t.id = q.theme_id
		WHERE q.id = $1
	`

	var q model.Question
	err := r.pool.QueryRow(ctx, query, questionID).Scan(&q.ID, &q.ThemeID, &q.Title, &q.Theme.ID, &q.Theme.Title)
	if err != nil {
		if err = mapError(err); isSentinel(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, question_id, title, is_correct, description FROM answers WHERE question_id = $1 ORDER BY id`,
		questionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get answers: %w", err)
	}
	q.Answers, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Answer])
	if err != nil {
		return nil, fmt.Errorf("failed to scan answers: %w", err)
	}

	return &q, nil
}

// CountQuestions returns the number of stored questions.
func (r *QuestionRepository) CountQuestions(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return n, nil
}

// CreateQuestion stores a question and its answers in one transaction.
func (r *QuestionRepository) CreateQuestion(ctx context.Context, theme string, q model.Question) (*model.Question, error) {
	var questionID int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var themeID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO themes (title) VALUES ($1)
			ON CONFLICT (title) DO UPDATE SET title = EXCLUDED.title
			RETURNING id
		`, theme).Scan(&themeID)
		if err != nil {
			return fmt.Errorf("theme: %w", err)
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO questions (theme_id, title) VALUES ($1, $2) RETURNING id`,
			themeID, q.Title,
		).Scan(&questionID)
		if err != nil {
			return fmt.Errorf("question: %w", err)
		}

		batch := &pgx.Batch{}
		for _, a := range q.Answers {
			batch.Queue(
				`INSERT INTO answers (question_id, title, is_correct, description) VALUES ($1, $2, $3, $4)`,
				questionID, a.Title, a.IsCorrect, a.Description,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("answers: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}
	return r.GetQuestion(ctx, questionID)
}
