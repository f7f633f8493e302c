package ui

import (
	"fmt"
	"strings"

	"chat_warden/internal/domain/model"
)

func HelpMessage(isAdmin bool) string {
	lines := []string{
		"Команды:",
		"!rules — правила чата",
		"!me — ваши предупреждения",
		"!report — пожаловаться на сообщение (ответом)",
	}
	if isAdmin {
		lines = append(lines,
			"",
			"Для админов:",
			"!warn — выдать предупреждение",
			"!mute [минуты] — замутить",
			"!unmute — снять мут",
			"!kick — выгнать из чата",
			"!ban — забанить",
			"!unban — разбанить",
			"!logs [n] — последние действия",
			"!setwarns <n> — лимит предупреждений",
			"!setmutetime <мин> — длительность мута",
			"!setrules <текст> — задать правила",
			"!setslowmode <сек> — слоумод (0 = выкл)",
			"/settings — текущие настройки",
			"/setcaptcha @канал|off — проверка подписки",
		)
	}
	return strings.Join(lines, "\n")
}

func RulesMessage(cfg model.ChatConfig) string {
	if strings.TrimSpace(cfg.RulesText) != "" {
		return cfg.RulesText
	}
	return "Правила чата пока не заданы."
}

func MeMessage(state model.UserState, limit int) string {
	return fmt.Sprintf("Предупреждений: %d из %d", state.Warns, limit)
}

func JoinPromptMessage(channel string) string {
	return fmt.Sprintf("Чтобы писать в чат, подпишитесь на %s и нажмите кнопку ниже.", channel)
}

func SubscriptionConfirmedMessage() string {
	return "Подписка подтверждена, доступ открыт."
}

func SubscriptionMissingMessage(channel string) string {
	return fmt.Sprintf("Подписка на %s не найдена. Подпишитесь и попробуйте ещё раз.", channel)
}

func ViolationNotice(label, reason string) string {
	return fmt.Sprintf("%s, сообщение удалено: %s.", label, violationLabel(reason))
}

func violationLabel(reason string) string {
	switch reason {
	case "link":
		return "ссылки запрещены"
	case "mention":
		return "упоминания запрещены"
	case "media":
		return "этот тип медиа запрещён"
	default:
		return "нарушение правил"
	}
}

func WarnNotice(label string, warns, limit int) string {
	return fmt.Sprintf("%s, предупреждение %d/%d.", label, warns, limit)
}

func MuteNotice(label string, minutes int) string {
	return fmt.Sprintf("%s замучен на %d мин.", label, minutes)
}

func UnmuteNotice(label string) string {
	return fmt.Sprintf("%s размучен.", label)
}

func KickNotice(label string) string {
	return fmt.Sprintf("%s исключён из чата.", label)
}

func BanNotice(label string) string {
	return fmt.Sprintf("%s забанен.", label)
}

func UnbanNotice(label string) string {
	return fmt.Sprintf("%s разбанен.", label)
}

func ReportAcceptedMessage() string {
	return "Жалоба отправлена администраторам."
}

func ReportForAdmins(chatTitle, reporter, target, text string) string {
	lines := []string{
		fmt.Sprintf("Жалоба в чате «%s»", chatTitle),
		fmt.Sprintf("От: %s", reporter),
		fmt.Sprintf("На: %s", target),
	}
	if strings.TrimSpace(text) != "" {
		lines = append(lines, fmt.Sprintf("Текст: %s", text))
	}
	return strings.Join(lines, "\n")
}

func TargetNotFoundMessage() string {
	return "Не удалось определить пользователя. Ответьте на его сообщение или укажите @username."
}

func TargetIsBotMessage() string {
	return "Эта команда не применяется к ботам."
}

func AdminsOnlyMessage() string {
	return "Команда доступна только администраторам."
}

func ReplyRequiredMessage() string {
	return "Команда работает только ответом на сообщение."
}

func UsageMessage(usage string) string {
	return "Использование: " + usage
}

func SettingsSavedMessage() string {
	return "Настройки сохранены."
}

func CaptchaDisabledMessage() string {
	return "Проверка подписки отключена."
}

func CaptchaEnabledMessage(channel string) string {
	return fmt.Sprintf("Проверка подписки включена: %s", channel)
}

func InternalErrorMessage() string {
	return "Что-то пошло не так, попробуйте позже."
}
