package rules

import (
	"testing"
	"time"

	"chat_warden/internal/domain/enums"
	"chat_warden/internal/domain/model"
)

func restrictiveChat() model.ChatConfig {
	cfg := model.NewChatConfig(-100, "test chat")
	cfg.AllowLinks = false
	cfg.AllowUsernames = false
	return cfg
}

func TestMuteShortCircuitsContentChecks(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(30 * time.Minute)
	state := model.UserState{ChatID: -100, UserID: 7, MutedUntil: &until}

	evaluator := NewEvaluator(nil)
	decision := evaluator.Evaluate(restrictiveChat(), state, SubscriptionNotRequired, Message{Text: "https://spam.example сука"}, now)
	if decision.Verdict != VerdictSuppress {
		t.Fatalf("expected suppress for muted user, got %q", decision.Verdict)
	}
	if decision.IncrementsWarning {
		t.Fatalf("suppress must not add a warning")
	}
}

func TestExpiredMuteDoesNotSuppress(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(-time.Minute)
	state := model.UserState{ChatID: -100, UserID: 7, MutedUntil: &until}

	evaluator := NewEvaluator(nil)
	decision := evaluator.Evaluate(restrictiveChat(), state, SubscriptionNotRequired, Message{Text: "hello"}, now)
	if decision.Verdict != VerdictAllow {
		t.Fatalf("expected allow after mute expiry, got %q", decision.Verdict)
	}
}

func TestSubscriptionGateBeatsContentRules(t *testing.T) {
	cfg := restrictiveChat()
	cfg.RequiredChannel = "@mychannel"

	evaluator := NewEvaluator(nil)
	decision := evaluator.Evaluate(cfg, model.UserState{}, SubscriptionMissing, Message{Text: "https://spam.example"}, time.Now().UTC())
	if decision.Verdict != VerdictSuppressAndGate {
		t.Fatalf("expected suppress_and_gate, got %q", decision.Verdict)
	}
}

func TestSubscribedUserFallsThroughToContentChecks(t *testing.T) {
	cfg := restrictiveChat()
	cfg.RequiredChannel = "@mychannel"

	evaluator := NewEvaluator(nil)
	decision := evaluator.Evaluate(cfg, model.UserState{}, SubscriptionConfirmed, Message{Text: "регистрация тут www.spam.example"}, time.Now().UTC())
	if decision.Verdict != VerdictViolation || decision.Reason != ReasonLink {
		t.Fatalf("expected link violation, got %+v", decision)
	}
}

func TestLinkAndMentionNeverIncrementWarnings(t *testing.T) {
	evaluator := NewEvaluator(nil)
	now := time.Now().UTC()

	cases := []struct {
		text   string
		reason string
	}{
		{"смотри https://example.com", ReasonLink},
		{"пишите в t.me/somechannel", ReasonLink},
		{"а вот www.site.ru", ReasonLink},
		{"спроси у @someuser1", ReasonMention},
	}
	for _, tc := range cases {
		decision := evaluator.Evaluate(restrictiveChat(), model.UserState{}, SubscriptionNotRequired, Message{Text: tc.text}, now)
		if decision.Verdict != VerdictViolation || decision.Reason != tc.reason {
			t.Fatalf("text %q: expected %s violation, got %+v", tc.text, tc.reason, decision)
		}
		if decision.IncrementsWarning {
			t.Fatalf("text %q: %s violation must not increment warnings", tc.text, tc.reason)
		}
	}
}

func TestShortMentionIsNotAViolation(t *testing.T) {
	evaluator := NewEvaluator(nil)
	decision := evaluator.Evaluate(restrictiveChat(), model.UserState{}, SubscriptionNotRequired, Message{Text: "ok @abc"}, time.Now().UTC())
	if decision.Verdict != VerdictAllow {
		t.Fatalf("four-character handle should pass, got %+v", decision)
	}
}

func TestProfanityIncrementsWarning(t *testing.T) {
	evaluator := NewEvaluator(nil)
	decision := evaluator.Evaluate(restrictiveChat(), model.UserState{}, SubscriptionNotRequired, Message{Text: "да НАХУЙ это все"}, time.Now().UTC())
	if decision.Verdict != VerdictViolation || decision.Reason != ReasonProfanity {
		t.Fatalf("expected profanity violation, got %+v", decision)
	}
	if !decision.IncrementsWarning {
		t.Fatalf("profanity must increment warnings")
	}
}

func TestLinkTakesPriorityOverProfanity(t *testing.T) {
	evaluator := NewEvaluator(nil)
	decision := evaluator.Evaluate(restrictiveChat(), model.UserState{}, SubscriptionNotRequired, Message{Text: "сука https://spam.example"}, time.Now().UTC())
	if decision.Reason != ReasonLink {
		t.Fatalf("link check runs before profanity, got %+v", decision)
	}
	if decision.IncrementsWarning {
		t.Fatalf("link violation must not increment warnings")
	}
}

func TestMediaGating(t *testing.T) {
	now := time.Now().UTC()
	evaluator := NewEvaluator(nil)

	cfg := model.NewChatConfig(-100, "")
	cfg.AllowGif = false
	cfg.AllowVoice = false

	decision := evaluator.Evaluate(cfg, model.UserState{}, SubscriptionNotRequired, Message{Media: enums.MediaKindGif}, now)
	if decision.Verdict != VerdictViolation || decision.Reason != ReasonMedia {
		t.Fatalf("expected media violation for gif, got %+v", decision)
	}
	if decision.IncrementsWarning {
		t.Fatalf("media violation must not increment warnings")
	}

	decision = evaluator.Evaluate(cfg, model.UserState{}, SubscriptionNotRequired, Message{Media: enums.MediaKindPhoto}, now)
	if decision.Verdict != VerdictAllow {
		t.Fatalf("photo stays allowed when only gif/voice are blocked, got %+v", decision)
	}
}

func TestAllowedMessage(t *testing.T) {
	evaluator := NewEvaluator(nil)
	decision := evaluator.Evaluate(model.NewChatConfig(-100, ""), model.UserState{}, SubscriptionNotRequired, Message{Text: "всем привет"}, time.Now().UTC())
	if decision.Verdict != VerdictAllow {
		t.Fatalf("expected allow, got %+v", decision)
	}
}
