package game

import (
	"fmt"
	"strings"

	"quiz-game-bot/internal/model"
	"quiz-game-bot/internal/transport"
	"quiz-game-bot/internal/update"
)

const (
	textWelcome = "*Добро пожаловать в «Что? Где? Когда?»*\n" +
		"Знатоки против бота. Нажмите «Начать игру», чтобы стать капитаном."
	textGameRunning   = "В этом чате уже идёт игра. Капитан может остановить её командой /back"
	textNoGame        = "*У вас нет активной игровой сессии.*\nНачните её /start"
	textGameExists    = "Игра уже началась, капитан выбран"
	textGameClosed    = "*Игра окончена.*\nЧтобы сыграть снова, нажмите /start"
	textOnlyCapCancel = "Остановить игру может только капитан"
	textNotPlayer     = "Вы не участвуете в этой игре"
	textAlertCaptain  = "Вы капитан! Дождитесь игроков и начните игру"

	textAlreadyJoined   = "Вы уже в игре"
	textRosterFull      = "Набралось максимальное количество игроков"
	textYouJoined       = "Вы присоединились к игре"
	textOnlyCapStart    = "Начать игру может только капитан"
	textGameStarted     = "Игра началась!"
	textCaptainFinished = "Вы капитан и вы завершили игру"
	textYouLeft         = "Вы вышли из игры"

	textReadyFirst     = "*Готовы к первому вопросу?*\nНажмите «Готов!»"
	textReadyNext      = "*Готовы к следующему вопросу?*\nНажмите «Готов!»"
	textReadyConfirmed = "Вы подтвердили готовность"
	textAlreadyReady   = "Вы уже подтвердили готовность"

	textCaptainNotReady = "*Капитан не подтвердил готовность.*\nИгра отменена."
	textNoQuestions     = "*Вопросы закончились.*\nИгра отменена."

	textCaptainTooSlow  = "*Капитан долго не выбирал игрока.*\nИгра отменена."
	textCaptainInstruct = "Капитан, выберите отвечающего: упомяните его через @ в сообщении"
	textOnlyCapChooses  = "Выбирать отвечающего может только капитан"
	textPlayerNotFound  = "Такого игрока нет среди готовых участников. Выберите другого"

	textAnswerTimeout = "*Игрок долго не решался что ответить.*\nОтвет засчитан как неправильный."

	textExpertsWin = "*Победили знатоки!* 🎉\nСпасибо за игру."
	textBotWins    = "*Победил бот!* 🤖\nСпасибо за игру."

	textOnlyCapDispute    = "Оспорить ответ может только капитан"
	textNothingToDispute  = "Оспаривать нечего"
	textDisputeAccepted   = "*Ответ засчитан как верный.*\nГотовы к следующему вопросу?"
	textDisputeDeclined   = "*Решение осталось в силе.*\nГотовы к следующему вопросу?"
	textActionUnavailable = "Сейчас это действие недоступно"
)

// TextInternalError is sent to the chat when a transition fails.
const TextInternalError = "*Что-то пошло не так.* Попробуйте ещё раз."

const textRules = "*Правила игры*\n\n" +
	"1. Нажмите «Начать игру»: нажавший становится капитаном.\n" +
	"2. Остальные игроки присоединяются, всего не больше %d человек, не меньше %d.\n" +
	"3. Перед каждым вопросом игроки подтверждают готовность. Не успевшие выбывают.\n" +
	"4. Минута на обсуждение, затем капитан упоминает через @ того, кто ответит.\n" +
	"5. Отвечает только выбранный игрок. Ответ другого участника засчитывается боту.\n" +
	"6. Капитан может оспорить неверный ответ.\n" +
	"7. Игра идёт до %d очков. /back останавливает игру."

func senderName(s update.Sender) string {
	if s.Username != "" {
		return transport.EscapeMarkdown("@" + s.Username)
	}
	return transport.EscapeMarkdown(s.FirstName)
}

func playerName(p *model.Player) string {
	if p == nil {
		return ""
	}
	if p.User == nil || p.User.DisplayName() == "" {
		return fmt.Sprintf("игрок %d", p.UserID)
	}
	return transport.EscapeMarkdown(p.User.DisplayName())
}

func textCaptainInfo(captain string) string {
	return fmt.Sprintf("*Капитан игры: %s*\n"+
		"Присоединяйтесь к игре! Когда все соберутся, капитан начнёт игру.", captain)
}

func textPlayerJoined(player string) string {
	return fmt.Sprintf("%s присоединился к игре", player)
}

func textPlayerLeft(player string) string {
	return fmt.Sprintf("%s вышел из игры", player)
}

func textNotEnoughPlayers(n int) string {
	return fmt.Sprintf("Недостаточно игроков: нужно минимум %d", n)
}

func textNotEnoughReady(n int) string {
	return fmt.Sprintf("*Недостаточно готовых игроков* (нужно минимум %d).\nИгра отменена.", n)
}

func textDropped(players []model.Player) string {
	names := make([]string, 0, len(players))
	for i := range players {
		names = append(names, playerName(&players[i]))
	}
	return fmt.Sprintf("Не подтвердили готовность и выбывают: %s", strings.Join(names, ", "))
}

func textQuestion(q *model.Question) string {
	return fmt.Sprintf("*Тема: %s*\n\n%s\n\nНа обсуждение одна минута!",
		transport.EscapeMarkdown(q.Theme.Title), transport.EscapeMarkdown(q.Title))
}

func textChooseAnswerer(captain string, players []model.Player) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Время вышло!* %s, кто будет отвечать?\n", captain)
	for i := range players {
		fmt.Fprintf(&b, "· %s\n", playerName(&players[i]))
	}
	b.WriteString("Упомяните игрока через @ в сообщении.")
	return b.String()
}

func textAnswerInstruction(player string) string {
	return fmt.Sprintf("Отвечает %s. Жду ответ одним сообщением.", player)
}

func textWrongPlayer(expected, actual string) string {
	return fmt.Sprintf("Должен был ответить %s, а ответил %s.\n"+
		"*Ответ засчитан как неправильный! Будьте внимательны*", expected, actual)
}

func textAnswerCorrect(answer string) string {
	return fmt.Sprintf("*Верно!* Правильный ответ: %s", transport.EscapeMarkdown(answer))
}

func textAnswerWrong(answer string) string {
	return fmt.Sprintf("*Неверно.* Правильный ответ: %s", transport.EscapeMarkdown(answer))
}

func textDescription(desc string) string {
	return fmt.Sprintf("_%s_", transport.EscapeMarkdown(desc))
}

func textScore(s model.Score) string {
	return fmt.Sprintf("*Счёт* знатоки %d : %d бот", s.Experts, s.Bot)
}

func textRating(completed int, last model.Score) string {
	return fmt.Sprintf("*Рейтинг чата*\nСыграно игр: %d\nПоследняя игра: знатоки %d : %d бот",
		completed, last.Experts, last.Bot)
}

func textDisputeConfirm(question, answerer, given, correct string) string {
	if answerer == "" {
		answerer = "никто"
	}
	if given == "" {
		given = "нет ответа"
	}
	return fmt.Sprintf("*Оспорить ответ?*\n\nВопрос: %s\nОтвечал: %s\nОтвет: %s\nПравильный ответ: %s\n\n"+
		"Засчитать ответ как верный?",
		transport.EscapeMarkdown(question), answerer,
		transport.EscapeMarkdown(given), transport.EscapeMarkdown(correct))
}
