package model

// Phase is the per-chat state that gates which handlers may fire.
type Phase string

// Phases of a game. A chat without stored state is Inactive.
const (
	PhaseInactive                  Phase = "inactive"
	PhaseWaitingForPlayers         Phase = "waiting_players"
	PhaseAreReadyFirstRoundPlayers Phase = "are_ready_first_round_players"
	PhaseAreReadyNextRoundPlayers  Phase = "are_ready_next_round_players"
	PhaseQuestionDiscussion        Phase = "question_discussion"
	PhaseVerdictCaptain            Phase = "verdict_captain"
	PhaseWaitAnswer                Phase = "wait_answer"
	PhaseDisputeAnswer             Phase = "dispute_answer"
)

// IsAreReady reports whether the phase waits for players' readiness.
func (p Phase) IsAreReady() bool {
	return p == PhaseAreReadyFirstRoundPlayers || p == PhaseAreReadyNextRoundPlayers
}

// IsValid reports whether p is a known phase.
func (p Phase) IsValid() bool {
	switch p {
	case PhaseInactive, PhaseWaitingForPlayers, PhaseAreReadyFirstRoundPlayers,
		PhaseAreReadyNextRoundPlayers, PhaseQuestionDiscussion, PhaseVerdictCaptain,
		PhaseWaitAnswer, PhaseDisputeAnswer:
		return true
	}
	return false
}

// ChatState is the persisted phase of a chat together with the session it belongs to.
type ChatState struct {
	ChatID    int64
	SessionID *int64
	Phase     Phase
}
