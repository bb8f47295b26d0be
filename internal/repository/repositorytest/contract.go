// Package repositorytest holds a behavioural test suite shared by every
// repository implementation.
package repositorytest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-game-bot/internal/model"
	"quiz-game-bot/internal/repository"
)

// Factory returns a fresh, empty store for one test.
type Factory func(t *testing.T) repository.Store

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("SingleActiveSessionPerChat", func(t *testing.T) { testSingleActiveSession(t, newStore(t)) })
	t.Run("SetStatusIsConditional", func(t *testing.T) { testSetStatus(t, newStore(t)) })
	t.Run("RosterCap", func(t *testing.T) { testRosterCap(t, newStore(t)) })
	t.Run("ConcurrentJoinsRespectCap", func(t *testing.T) { testConcurrentJoins(t, newStore(t)) })
	t.Run("Readiness", func(t *testing.T) { testReadiness(t, newStore(t)) })
	t.Run("SingleActiveRound", func(t *testing.T) { testSingleActiveRound(t, newStore(t)) })
	t.Run("ScoreAndDispute", func(t *testing.T) { testScoreAndDispute(t, newStore(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Questions", func(t *testing.T) { testQuestions(t, newStore(t)) })
	t.Run("States", func(t *testing.T) { testStates(t, newStore(t)) })
	t.Run("Rating", func(t *testing.T) { testRating(t, newStore(t)) })
}

func mustUser(t *testing.T, s repository.Store, id int64, username string) {
	t.Helper()
	_, err := s.Users.Upsert(context.Background(), model.User{TelegramID: id, Username: username, FirstName: username})
	require.NoError(t, err)
}

func mustQuestion(t *testing.T, s repository.Store) *model.Question {
	t.Helper()
	q, err := s.Questions.CreateQuestion(context.Background(), "Огород", model.Question{
		Title:   "Главный овощ щей?",
		Answers: []model.Answer{{Title: "Капуста", IsCorrect: true, Description: "Основа"}, {Title: "Репа"}},
	})
	require.NoError(t, err)
	return q
}

func testSingleActiveSession(t *testing.T, s repository.Store) {
	ctx := context.Background()

	sess, err := s.Sessions.CreateSession(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, sess.Status)

	_, err = s.Sessions.CreateSession(ctx, -1)
	assert.ErrorIs(t, err, repository.ErrConflict)

	other, err := s.Sessions.CreateSession(ctx, -2)
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, other.ID)

	got, err := s.Sessions.GetActiveSession(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)

	_, err = s.Sessions.SetStatus(ctx, sess.ID, model.NonTerminalStatuses(), model.StatusCancelled)
	require.NoError(t, err)

	_, err = s.Sessions.GetActiveSession(ctx, -1)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	again, err := s.Sessions.CreateSession(ctx, -1)
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, again.ID)
}

func testSetStatus(t *testing.T, s repository.Store) {
	ctx := context.Background()

	sess, err := s.Sessions.CreateSession(ctx, 10)
	require.NoError(t, err)

	_, err = s.Sessions.SetStatus(ctx, sess.ID, []model.SessionStatus{model.StatusProcessing}, model.StatusCompleted)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	updated, err := s.Sessions.SetStatus(ctx, sess.ID, []model.SessionStatus{model.StatusPending}, model.StatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, updated.Status)

	_, err = s.Sessions.SetStatus(ctx, sess.ID, model.NonTerminalStatuses(), model.StatusCompleted)
	require.NoError(t, err)

	_, err = s.Sessions.SetStatus(ctx, sess.ID, model.NonTerminalStatuses(), model.StatusCancelled)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	final, err := s.Sessions.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, final.Status)

	_, err = s.Sessions.GetSession(ctx, 999999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testRosterCap(t *testing.T, s repository.Store) {
	ctx := context.Background()
	sess, err := s.Sessions.CreateSession(ctx, 20)
	require.NoError(t, err)

	for i := int64(1); i <= 7; i++ {
		mustUser(t, s, i, "player")
	}

	capt, err := s.Players.CreateCaptain(ctx, sess.ID, 1)
	require.NoError(t, err)
	assert.True(t, capt.IsCaptain)
	assert.True(t, capt.IsActive)

	_, err = s.Players.CreateCaptain(ctx, sess.ID, 2)
	assert.ErrorIs(t, err, repository.ErrConflict)

	again, err := s.Players.CreateCaptain(ctx, sess.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, capt.ID, again.ID)
	assert.True(t, again.IsCaptain)

	_, err = s.Players.JoinPlayer(ctx, sess.ID, 1, 6)
	assert.ErrorIs(t, err, repository.ErrConflict)

	for i := int64(2); i <= 6; i++ {
		p, err := s.Players.JoinPlayer(ctx, sess.ID, i, 6)
		require.NoError(t, err)
		assert.False(t, p.IsCaptain)
	}

	_, err = s.Players.JoinPlayer(ctx, sess.ID, 7, 6)
	assert.ErrorIs(t, err, repository.ErrRosterFull)

	players, err := s.Players.ListPlayers(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, players, 6)
	for i := 1; i < len(players); i++ {
		assert.Less(t, players[i-1].ID, players[i].ID)
	}

	// Leaving frees a slot; rejoining reuses the row.
	require.NoError(t, s.Players.SetActive(ctx, sess.ID, 3, false))
	p7, err := s.Players.JoinPlayer(ctx, sess.ID, 7, 6)
	require.NoError(t, err)
	assert.True(t, p7.IsActive)

	_, err = s.Players.JoinPlayer(ctx, sess.ID, 3, 6)
	assert.ErrorIs(t, err, repository.ErrRosterFull)

	require.NoError(t, s.Players.SetActive(ctx, sess.ID, 7, false))
	p3, err := s.Players.JoinPlayer(ctx, sess.ID, 3, 6)
	require.NoError(t, err)

	players, err = s.Players.ListPlayers(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, players, 7)
	for _, p := range players {
		if p.UserID == 3 {
			assert.Equal(t, p3.ID, p.ID)
		}
	}

	assert.ErrorIs(t, s.Players.SetActive(ctx, sess.ID, 424242, false), repository.ErrNotFound)
}

func testConcurrentJoins(t *testing.T, s repository.Store) {
	ctx := context.Background()
	sess, err := s.Sessions.CreateSession(ctx, 30)
	require.NoError(t, err)

	const users = 12
	for i := int64(1); i <= users; i++ {
		mustUser(t, s, i, "u")
	}

	var wg sync.WaitGroup
	wg.Add(users)
	for i := int64(1); i <= users; i++ {
		go func(id int64) {
			defer wg.Done()
			_, _ = s.Players.JoinPlayer(ctx, sess.ID, id, 6)
		}(i)
	}
	wg.Wait()

	players, err := s.Players.ListPlayers(ctx, sess.ID)
	require.NoError(t, err)
	active := 0
	for _, p := range players {
		if p.IsActive {
			active++
		}
	}
	assert.Equal(t, 6, active)
}

func testReadiness(t *testing.T, s repository.Store) {
	ctx := context.Background()
	sess, err := s.Sessions.CreateSession(ctx, 40)
	require.NoError(t, err)
	for i := int64(1); i <= 3; i++ {
		mustUser(t, s, i, "r")
	}
	_, err = s.Players.CreateCaptain(ctx, sess.ID, 1)
	require.NoError(t, err)
	_, err = s.Players.JoinPlayer(ctx, sess.ID, 2, 6)
	require.NoError(t, err)
	_, err = s.Players.JoinPlayer(ctx, sess.ID, 3, 6)
	require.NoError(t, err)

	changed, err := s.Players.MarkReady(ctx, sess.ID, 1)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.Players.MarkReady(ctx, sess.ID, 1)
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, s.Players.SetActive(ctx, sess.ID, 3, false))
	changed, err = s.Players.MarkReady(ctx, sess.ID, 3)
	require.NoError(t, err)
	assert.False(t, changed, "inactive players cannot become ready")
	require.NoError(t, s.Players.SetActive(ctx, sess.ID, 3, true))

	excluded, err := s.Players.DeactivateUnready(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, excluded, 2)
	assert.Equal(t, int64(2), excluded[0].UserID)
	assert.Equal(t, int64(3), excluded[1].UserID)

	require.NoError(t, s.Players.ResetReady(ctx, sess.ID))
	p, err := s.Players.GetPlayer(ctx, sess.ID, 1)
	require.NoError(t, err)
	assert.False(t, p.IsReady)
	assert.True(t, p.IsActive)

	byID, err := s.Players.GetPlayerByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.UserID, byID.UserID)
}

func testSingleActiveRound(t *testing.T, s repository.Store) {
	ctx := context.Background()
	q := mustQuestion(t, s)
	sess, err := s.Sessions.CreateSession(ctx, 50)
	require.NoError(t, err)

	_, err = s.Rounds.GetActiveRound(ctx, sess.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	r, err := s.Rounds.CreateRound(ctx, sess.ID, q.ID)
	require.NoError(t, err)
	assert.True(t, r.IsActive)
	assert.Nil(t, r.IsCorrectAnswer)

	_, err = s.Rounds.CreateRound(ctx, sess.ID, q.ID)
	assert.ErrorIs(t, err, repository.ErrConflict)

	require.NoError(t, s.Sessions.SetCurrentRound(ctx, sess.ID, r.ID))
	got, err := s.Sessions.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentRoundID)
	assert.Equal(t, r.ID, *got.CurrentRoundID)

	mustUser(t, s, 5, "answerer")
	pl, err := s.Players.CreateCaptain(ctx, sess.ID, 5)
	require.NoError(t, err)
	withAnswerer, err := s.Rounds.SetAnswerPlayer(ctx, sess.ID, pl.ID)
	require.NoError(t, err)
	require.NotNil(t, withAnswerer.AnswerPlayerID)
	assert.Equal(t, pl.ID, *withAnswerer.AnswerPlayerID)

	given := "капуста"
	closed, err := s.Rounds.CloseActiveRound(ctx, sess.ID, true, &given)
	require.NoError(t, err)
	assert.False(t, closed.IsActive)
	require.NotNil(t, closed.IsCorrectAnswer)
	assert.True(t, *closed.IsCorrectAnswer)
	require.NotNil(t, closed.GivenAnswer)
	assert.Equal(t, given, *closed.GivenAnswer)

	_, err = s.Rounds.CloseActiveRound(ctx, sess.ID, false, nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.Rounds.SetAnswerPlayer(ctx, sess.ID, pl.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	next, err := s.Rounds.CreateRound(ctx, sess.ID, q.ID)
	require.NoError(t, err)
	last, err := s.Rounds.GetLastRound(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, next.ID, last.ID)
}

func testScoreAndDispute(t *testing.T, s repository.Store) {
	ctx := context.Background()
	q := mustQuestion(t, s)
	sess, err := s.Sessions.CreateSession(ctx, 60)
	require.NoError(t, err)

	score, err := s.Sessions.Score(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Score{}, score)

	play := func(correct bool) *model.Round {
		_, err := s.Rounds.CreateRound(ctx, sess.ID, q.ID)
		require.NoError(t, err)
		r, err := s.Rounds.CloseActiveRound(ctx, sess.ID, correct, nil)
		require.NoError(t, err)
		return r
	}

	play(true)
	score, err = s.Sessions.Score(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Score{Experts: 1, Bot: 0, TotalRounds: 1}, score)

	wrong := play(false)
	score, err = s.Sessions.Score(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Score{Experts: 1, Bot: 1, TotalRounds: 2}, score)

	// The active round does not count.
	_, err = s.Rounds.CreateRound(ctx, sess.ID, q.ID)
	require.NoError(t, err)
	score, err = s.Sessions.Score(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, score.TotalRounds)

	overridden, err := s.Rounds.OverrideVerdict(ctx, wrong.ID)
	require.NoError(t, err)
	assert.True(t, overridden.Disputed)
	require.NotNil(t, overridden.IsCorrectAnswer)
	assert.True(t, *overridden.IsCorrectAnswer)

	_, err = s.Rounds.OverrideVerdict(ctx, wrong.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	score, err = s.Sessions.Score(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Score{Experts: 2, Bot: 0, TotalRounds: 2}, score)
}

func testUsers(t *testing.T, s repository.Store) {
	ctx := context.Background()

	u, err := s.Users.Upsert(ctx, model.User{TelegramID: 77, Username: "old", FirstName: "Old"})
	require.NoError(t, err)
	assert.Equal(t, "old", u.Username)

	u, err = s.Users.Upsert(ctx, model.User{TelegramID: 77, Username: "new", FirstName: "New"})
	require.NoError(t, err)
	assert.Equal(t, "new", u.Username)
	assert.Equal(t, "New", u.FirstName)

	got, err := s.Users.GetByID(ctx, 77)
	require.NoError(t, err)
	assert.Equal(t, "@new", got.DisplayName())

	_, err = s.Users.GetByID(ctx, 78)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	sess, err := s.Sessions.CreateSession(ctx, 70)
	require.NoError(t, err)
	_, err = s.Players.CreateCaptain(ctx, sess.ID, 77)
	require.NoError(t, err)

	p, err := s.Players.GetPlayerByUsername(ctx, sess.ID, "@NEW")
	require.NoError(t, err)
	assert.Equal(t, int64(77), p.UserID)
	require.NotNil(t, p.User)
	assert.Equal(t, "new", p.User.Username)

	_, err = s.Players.GetPlayerByUsername(ctx, sess.ID, "old")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testQuestions(t *testing.T, s repository.Store) {
	ctx := context.Background()

	_, err := s.Questions.RandomQuestion(ctx)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	q := mustQuestion(t, s)
	_, err = s.Questions.CreateQuestion(ctx, "Огород", model.Question{
		Title:   "Что тянули всей семьёй?",
		Answers: []model.Answer{{Title: "Репа", IsCorrect: true}},
	})
	require.NoError(t, err)

	n, err := s.Questions.CountQuestions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.Questions.GetQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "Огород", got.Theme.Title)
	require.Len(t, got.Answers, 2)
	correct, ok := got.CorrectAnswer()
	require.True(t, ok)
	assert.Equal(t, "Капуста", correct.Title)
	assert.Equal(t, "Основа", correct.Description)

	rnd, err := s.Questions.RandomQuestion(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, rnd.Answers)
	assert.Equal(t, got.ThemeID, rnd.ThemeID)
}

func testStates(t *testing.T, s repository.Store) {
	ctx := context.Background()

	st, err := s.States.GetState(ctx, 80)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseInactive, st.Phase)
	assert.Nil(t, st.SessionID)

	sess, err := s.Sessions.CreateSession(ctx, 80)
	require.NoError(t, err)
	require.NoError(t, s.States.SetState(ctx, 80, &sess.ID, model.PhaseWaitAnswer))
	require.NoError(t, s.States.SetState(ctx, 81, nil, model.PhaseWaitingForPlayers))

	st, err = s.States.GetState(ctx, 80)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseWaitAnswer, st.Phase)
	require.NotNil(t, st.SessionID)
	assert.Equal(t, sess.ID, *st.SessionID)

	timed, err := s.States.ListStates(ctx, model.PhaseWaitAnswer, model.PhaseAreReadyNextRoundPlayers)
	require.NoError(t, err)
	require.Len(t, timed, 1)
	assert.Equal(t, int64(80), timed[0].ChatID)

	require.NoError(t, s.States.TrackMessage(ctx, 80, 11))
	require.NoError(t, s.States.TrackMessage(ctx, 80, 12))
	require.NoError(t, s.States.TrackMessage(ctx, 80, 12))
	require.NoError(t, s.States.TrackMessage(ctx, 81, 99))

	ids, err := s.States.PopMessages(ctx, 80)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{11, 12}, ids)

	ids, err = s.States.PopMessages(ctx, 80)
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = s.States.PopMessages(ctx, 81)
	require.NoError(t, err)
	assert.Equal(t, []int{99}, ids)
}

func testRating(t *testing.T, s repository.Store) {
	ctx := context.Background()

	n, err := s.Sessions.CountCompleted(ctx, 90)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = s.Sessions.LastCompleted(ctx, 90)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	var lastID int64
	for i := 0; i < 2; i++ {
		sess, err := s.Sessions.CreateSession(ctx, 90)
		require.NoError(t, err)
		_, err = s.Sessions.SetStatus(ctx, sess.ID, model.NonTerminalStatuses(), model.StatusCompleted)
		require.NoError(t, err)
		lastID = sess.ID
	}
	cancelled, err := s.Sessions.CreateSession(ctx, 90)
	require.NoError(t, err)
	_, err = s.Sessions.SetStatus(ctx, cancelled.ID, model.NonTerminalStatuses(), model.StatusCancelled)
	require.NoError(t, err)

	n, err = s.Sessions.CountCompleted(ctx, 90)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	last, err := s.Sessions.LastCompleted(ctx, 90)
	require.NoError(t, err)
	assert.Equal(t, lastID, last.ID)
}
