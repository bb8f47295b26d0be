package game

import (
	"errors"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"quiz-game-bot/internal/model"
	"quiz-game-bot/internal/repository"
)

var allData = []string{
	DataStartGame, DataJoinGame, DataStartGameFromCaptain, DataFinishGame, DataReady,
	DataDisputeAnswer, DataYesDispute, DataNoDispute, DataShowRules, DataShowRating,
}

var chatter = []string{"капуста", "морковь", "@anna", "@boris", "@cap", "@vera", "@nobody", "не знаю"}

// TestEngine_Invariants drives the engine with random updates and timer
// fires and checks the state after every step.
func TestEngine_Invariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := testConfig()
		cfg.MaxPlayers = rapid.IntRange(2, 4).Draw(t, "max_players")
		cfg.MaxScore = rapid.IntRange(1, 3).Draw(t, "max_score")
		f := newFixture(t, cfg)
		defer f.timers.Stop()

		steps := rapid.IntRange(1, 80).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			who := players[rapid.IntRange(0, 6).Draw(t, "who")]

			switch rapid.IntRange(0, 3).Draw(t, "action") {
			case 0:
				cmd := rapid.SampledFrom([]string{CommandStart, CommandStart, CommandBack}).Draw(t, "command")
				f.deliver(t, f.command(who, cmd))
			case 1:
				f.deliver(t, f.callback(who, rapid.SampledFrom(allData).Draw(t, "data")))
			case 2:
				text := rapid.SampledFrom(chatter).Draw(t, "text")
				var mentions []string
				if strings.HasPrefix(text, "@") {
					mentions = append(mentions, strings.TrimPrefix(text, "@"))
				}
				f.deliver(t, f.message(who, text, mentions...))
			case 3:
				if kind, ok := phaseTimers[f.phase(t)]; ok && f.timers.IsActive(chat, kind) {
					f.fire(t, kind)
				}
			}

			checkInvariants(t, f, cfg)
		}
	})
}

var roundPhases = map[model.Phase]bool{
	model.PhaseQuestionDiscussion: true,
	model.PhaseVerdictCaptain:     true,
	model.PhaseWaitAnswer:         true,
}

func checkInvariants(t *rapid.T, f *fixture, cfg Config) {
	t.Helper()
	st := f.state(t)

	// Exactly the timer of the current phase is pending.
	if kind, ok := phaseTimers[st.Phase]; ok {
		if !f.timers.IsActive(chat, kind) || f.timers.Count() != 1 {
			t.Fatalf("phase %s: want only timer %s, have %d timers", st.Phase, kind, f.timers.Count())
		}
	} else if f.timers.Count() != 0 {
		t.Fatalf("phase %s: unexpected %d timers", st.Phase, f.timers.Count())
	}

	sess, err := f.store.Sessions.GetActiveSession(f.ctx, chat)
	if errors.Is(err, repository.ErrNotFound) {
		if st.Phase != model.PhaseInactive {
			t.Fatalf("phase %s without a live session", st.Phase)
		}
		return
	}
	if err != nil {
		t.Fatalf("get active session: %v", err)
	}

	switch sess.Status {
	case model.StatusPending:
		if st.Phase != model.PhaseInactive {
			t.Fatalf("pending session in phase %s", st.Phase)
		}
	case model.StatusProcessing:
		if st.Phase == model.PhaseInactive || st.SessionID == nil || *st.SessionID != sess.ID {
			t.Fatalf("processing session %d not reflected by chat state %+v", sess.ID, st)
		}
	}

	list, err := f.store.Players.ListPlayers(f.ctx, sess.ID)
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	if n := countActive(list); n > cfg.MaxPlayers {
		t.Fatalf("%d active players, max %d", n, cfg.MaxPlayers)
	}
	captains := 0
	for _, p := range list {
		if p.IsCaptain {
			captains++
		}
	}
	if captains > 1 {
		t.Fatalf("%d captains", captains)
	}

	_, err = f.store.Rounds.GetActiveRound(f.ctx, sess.ID)
	hasRound := err == nil
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("get active round: %v", err)
	}
	if hasRound != roundPhases[st.Phase] {
		t.Fatalf("phase %s with active round %v", st.Phase, hasRound)
	}

	score := f.score(t, sess.ID)
	if score.Experts >= cfg.MaxScore || score.Bot >= cfg.MaxScore {
		t.Fatalf("live session with final score %+v", score)
	}
}

func TestPhaseTimers_CoverTimedPhases(t *testing.T) {
	for _, p := range TimedPhases() {
		if _, ok := phaseTimers[p]; !ok {
			t.Errorf("phase %s has no timer kind", p)
		}
	}
	if len(phaseTimers) != len(TimedPhases()) {
		t.Errorf("phaseTimers has %d entries, TimedPhases %d", len(phaseTimers), len(TimedPhases()))
	}
}
