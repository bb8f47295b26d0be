package game

import "quiz-game-bot/internal/transport"

// Callback payloads of the inline buttons.
const (
	DataStartGame            = "start_game"
	DataJoinGame             = "join_game"
	DataStartGameFromCaptain = "start_game_from_captain"
	DataFinishGame           = "finish_game"
	DataReady                = "ready"
	DataDisputeAnswer        = "dispute_answer"
	DataYesDispute           = "yes_dispute"
	DataNoDispute            = "no_dispute"
	DataShowRules            = "show_rules"
	DataShowRating           = "show_rating"
)

// Commands the game reacts to.
const (
	CommandStart = "/start"
	CommandBack  = "/back"
)

func mainKeyboard() *transport.Keyboard {
	return transport.NewKeyboard(
		transport.Row(transport.Button{Text: "🎮 Начать игру", Data: DataStartGame}),
		transport.Row(
			transport.Button{Text: "📋 Правила", Data: DataShowRules},
			transport.Button{Text: "⭐ Рейтинг", Data: DataShowRating},
		),
	)
}

func lobbyKeyboard() *transport.Keyboard {
	return transport.NewKeyboard(
		transport.Row(transport.Button{Text: "Присоединиться к игре", Data: DataJoinGame}),
		transport.Row(transport.Button{Text: "Начать игру", Data: DataStartGameFromCaptain}),
		transport.Row(transport.Button{Text: "Закончить игру", Data: DataFinishGame}),
	)
}

func readyKeyboard() *transport.Keyboard {
	return transport.NewKeyboard(
		transport.Row(transport.Button{Text: "Готов!", Data: DataReady}),
	)
}

func readyOrDisputeKeyboard() *transport.Keyboard {
	return transport.NewKeyboard(
		transport.Row(transport.Button{Text: "Готов!", Data: DataReady}),
		transport.Row(transport.Button{Text: "Оспорить ответ", Data: DataDisputeAnswer}),
	)
}

func disputeKeyboard() *transport.Keyboard {
	return transport.NewKeyboard(
		transport.Row(
			transport.Button{Text: "Да, засчитать", Data: DataYesDispute},
			transport.Button{Text: "Нет", Data: DataNoDispute},
		),
	)
}
