package ui

import (
	"fmt"
	"strconv"
	"strings"

	"chat_warden/internal/domain/model"
)

func RenderSettings(cfg model.ChatConfig) string {
	channel := cfg.RequiredChannel
	if channel == "" {
		channel = "off"
	}
	slowmode := "off"
	if cfg.SlowmodeSeconds > 0 {
		slowmode = fmt.Sprintf("%d сек", cfg.SlowmodeSeconds)
	}
	lines := []string{
		"Настройки чата:",
		fmt.Sprintf("Проверка подписки: %s", channel),
		fmt.Sprintf("Лимит предупреждений: %d", cfg.WarnsLimit),
		fmt.Sprintf("Длительность мута: %d мин", cfg.MuteMinutes),
		fmt.Sprintf("Слоумод: %s", slowmode),
		fmt.Sprintf("Ссылки: %s", renderAllowed(cfg.AllowLinks)),
		fmt.Sprintf("Упоминания: %s", renderAllowed(cfg.AllowUsernames)),
		fmt.Sprintf("Медиа: %s", renderAllowed(cfg.AllowMedia)),
	}
	return strings.Join(lines, "\n")
}

func RenderLogs(entries []model.ModLog) string {
	if len(entries) == 0 {
		return "Журнал пуст."
	}
	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, "Последние действия:")
	for _, entry := range entries {
		lines = append(lines, renderLogEntry(entry))
	}
	return strings.Join(lines, "\n")
}

func renderLogEntry(entry model.ModLog) string {
	actor := "авто"
	if entry.ActorID != 0 {
		actor = strconv.FormatInt(entry.ActorID, 10)
	}
	target := "-"
	if entry.TargetID != 0 {
		target = strconv.FormatInt(entry.TargetID, 10)
	}
	line := fmt.Sprintf("%s | %s | %s -> %s",
		entry.CreatedAt.Format("02.01 15:04"),
		entry.Action,
		actor,
		target,
	)
	if entry.Reason != "" {
		line += " | " + entry.Reason
	}
	return line
}

func UserLabel(userID int64, username string) string {
	name := strings.TrimSpace(username)
	if name != "" {
		return "@" + name
	}
	return strconv.FormatInt(userID, 10)
}

func renderAllowed(allowed bool) string {
	if allowed {
		return "разрешены"
	}
	return "запрещены"
}
