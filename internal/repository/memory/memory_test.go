package memory

import (
	"context"
	"errors"
	"testing"

	"pgregory.net/rapid"

	"quiz-game-bot/internal/model"
	"quiz-game-bot/internal/repository"
	"quiz-game-bot/internal/repository/repositorytest"
)

func TestContract(t *testing.T) {
	repositorytest.Run(t, func(*testing.T) repository.Store {
		return New().Store()
	})
}

// TestInvariantsProperty drives random operation sequences and checks that
// no chat ever has two live sessions, no session two active rounds and no
// roster more than the cap.
func TestInvariantsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		db := New()
		maxActive := rapid.IntRange(1, 6).Draw(t, "maxActive")

		q, err := db.CreateQuestion(ctx, "T", model.Question{Title: "Q", Answers: []model.Answer{{Title: "A", IsCorrect: true}}})
		if err != nil {
			t.Fatal(err)
		}

		chats := []int64{-1, -2, -3}
		steps := rapid.IntRange(1, 80).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			chat := rapid.SampledFrom(chats).Draw(t, "chat")
			switch rapid.IntRange(0, 5).Draw(t, "op") {
			case 0:
				_, err := db.CreateSession(ctx, chat)
				if err != nil && !errors.Is(err, repository.ErrConflict) {
					t.Fatalf("create session: %v", err)
				}
			case 1:
				if s, err := db.GetActiveSession(ctx, chat); err == nil {
					to := rapid.SampledFrom([]model.SessionStatus{model.StatusProcessing, model.StatusCompleted, model.StatusCancelled}).Draw(t, "to")
					_, _ = db.SetStatus(ctx, s.ID, model.NonTerminalStatuses(), to)
				}
			case 2:
				if s, err := db.GetActiveSession(ctx, chat); err == nil {
					user := rapid.Int64Range(1, 10).Draw(t, "user")
					_, err := db.JoinPlayer(ctx, s.ID, user, maxActive)
					if err != nil && !errors.Is(err, repository.ErrConflict) && !errors.Is(err, repository.ErrRosterFull) {
						t.Fatalf("join: %v", err)
					}
				}
			case 3:
				if s, err := db.GetActiveSession(ctx, chat); err == nil {
					user := rapid.Int64Range(1, 10).Draw(t, "leaver")
					_ = db.SetActive(ctx, s.ID, user, false)
				}
			case 4:
				if s, err := db.GetActiveSession(ctx, chat); err == nil {
					_, err := db.CreateRound(ctx, s.ID, q.ID)
					if err != nil && !errors.Is(err, repository.ErrConflict) {
						t.Fatalf("create round: %v", err)
					}
				}
			case 5:
				if s, err := db.GetActiveSession(ctx, chat); err == nil {
					_, _ = db.CloseActiveRound(ctx, s.ID, rapid.Bool().Draw(t, "correct"), nil)
				}
			}
			checkInvariants(t, db, maxActive)
		}
	})
}

func checkInvariants(t *rapid.T, db *DB, maxActive int) {
	db.mu.Lock()
	defer db.mu.Unlock()

	live := map[int64]int{}
	for _, s := range db.sessions {
		if !s.Status.IsTerminal() {
			live[s.ChatID]++
		}
	}
	for chat, n := range live {
		if n > 1 {
			t.Fatalf("chat %d has %d live sessions", chat, n)
		}
	}

	activeRounds := map[int64]int{}
	for _, r := range db.rounds {
		if r.IsActive {
			activeRounds[r.SessionID]++
		}
	}
	for sess, n := range activeRounds {
		if n > 1 {
			t.Fatalf("session %d has %d active rounds", sess, n)
		}
	}

	activePlayers := map[int64]int{}
	for _, p := range db.players {
		if p.IsActive {
			activePlayers[p.SessionID]++
		}
	}
	for sess, n := range activePlayers {
		if n > maxActive {
			t.Fatalf("session %d has %d active players, cap %d", sess, n, maxActive)
		}
	}
}

// TestScoreRoundTripProperty checks that closing a round as correct adds
// exactly one expert point and leaves the bot's points unchanged.
func TestScoreRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		db := New()
		s, _ := db.CreateSession(ctx, 1)

		for _, correct := range rapid.SliceOfN(rapid.Bool(), 0, 20).Draw(t, "history") {
			_, _ = db.CreateRound(ctx, s.ID, 1)
			_, _ = db.CloseActiveRound(ctx, s.ID, correct, nil)
		}
		before, _ := db.Score(ctx, s.ID)

		_, _ = db.CreateRound(ctx, s.ID, 1)
		if _, err := db.CloseActiveRound(ctx, s.ID, true, nil); err != nil {
			t.Fatal(err)
		}
		after, _ := db.Score(ctx, s.ID)

		if after.Experts != before.Experts+1 || after.Bot != before.Bot || after.TotalRounds != before.TotalRounds+1 {
			t.Fatalf("score %+v -> %+v", before, after)
		}
	})
}
