package ui

import (
	"strings"
	"testing"
	"time"

	"chat_warden/internal/domain/enums"
	"chat_warden/internal/domain/model"
)

func TestRenderSettings(t *testing.T) {
	cfg := model.NewChatConfig(-100, "main")
	cfg.RequiredChannel = "@news"
	cfg.SlowmodeSeconds = 15

	out := RenderSettings(cfg)
	for _, want := range []string{"@news", "15 сек", "Лимит предупреждений: 3", "120 мин"} {
		if !strings.Contains(out, want) {
			t.Fatalf("settings output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderLogs(t *testing.T) {
	entries := []model.ModLog{
		{
			ChatID:    -100,
			ActorID:   0,
			TargetID:  7,
			Action:    enums.ActionAutoMute,
			Reason:    "warns_limit",
			CreatedAt: time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC),
		},
		{
			ChatID:    -100,
			ActorID:   42,
			TargetID:  7,
			Action:    enums.ActionBan,
			CreatedAt: time.Date(2024, 6, 1, 12, 31, 0, 0, time.UTC),
		},
	}

	out := RenderLogs(entries)
	if !strings.Contains(out, "авто") {
		t.Fatalf("automated actor not rendered:\n%s", out)
	}
	if !strings.Contains(out, "warns_limit") {
		t.Fatalf("reason not rendered:\n%s", out)
	}
	if !strings.Contains(out, "42") {
		t.Fatalf("manual actor not rendered:\n%s", out)
	}
}

func TestRenderLogsEmpty(t *testing.T) {
	if out := RenderLogs(nil); out != "Журнал пуст." {
		t.Fatalf("empty logs = %q", out)
	}
}

func TestUserLabel(t *testing.T) {
	if got := UserLabel(7, "alice"); got != "@alice" {
		t.Fatalf("label = %q, want @alice", got)
	}
	if got := UserLabel(7, " "); got != "7" {
		t.Fatalf("label = %q, want 7", got)
	}
}
