package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"chat_warden/internal/domain/enums"
	"chat_warden/internal/domain/model"
	"chat_warden/internal/infra/telegram"
	"chat_warden/internal/services/audit"
)

type stubPlatform struct {
	deleted    []int
	restricted []int64
	restrictTo []*time.Time
	unrestrict []int64
	banned     []int64
	unbanned   []int64
	failWith   error
	calls      int
}

func (p *stubPlatform) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	p.calls++
	p.deleted = append(p.deleted, messageID)
	return p.failWith
}

func (p *stubPlatform) Restrict(_ context.Context, _ int64, userID int64, until *time.Time) error {
	p.calls++
	p.restricted = append(p.restricted, userID)
	p.restrictTo = append(p.restrictTo, until)
	return p.failWith
}

func (p *stubPlatform) Unrestrict(_ context.Context, _ int64, userID int64, _, _ bool) error {
	p.calls++
	p.unrestrict = append(p.unrestrict, userID)
	return p.failWith
}

func (p *stubPlatform) Ban(_ context.Context, _ int64, userID int64) error {
	p.calls++
	p.banned = append(p.banned, userID)
	return p.failWith
}

func (p *stubPlatform) Unban(_ context.Context, _ int64, userID int64) error {
	p.calls++
	p.unbanned = append(p.unbanned, userID)
	return p.failWith
}

type stubStates struct {
	warns      map[string]int
	mutedUntil map[string]*time.Time
	clearCalls int
}

func newStubStates() *stubStates {
	return &stubStates{warns: map[string]int{}, mutedUntil: map[string]*time.Time{}}
}

func stateKey(chatID, userID int64) string {
	return fmt.Sprintf("%d:%d", chatID, userID)
}

func (s *stubStates) IncrementWarns(_ context.Context, chatID, userID int64) (int, error) {
	key := stateKey(chatID, userID)
	s.warns[key]++
	return s.warns[key], nil
}

func (s *stubStates) SetMute(_ context.Context, chatID, userID int64, until time.Time) error {
	key := stateKey(chatID, userID)
	s.warns[key] = 0
	s.mutedUntil[key] = &until
	return nil
}

func (s *stubStates) ClearMute(_ context.Context, chatID, userID int64) error {
	s.clearCalls++
	s.mutedUntil[stateKey(chatID, userID)] = nil
	return nil
}

type stubAuditRepo struct {
	entries []model.ModLog
}

func (r *stubAuditRepo) Append(_ context.Context, entry model.ModLog) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *stubAuditRepo) ListRecent(_ context.Context, _ int64, _ int) ([]model.ModLog, error) {
	return r.entries, nil
}

func newTestService(platform *stubPlatform, states *stubStates, auditRepo *stubAuditRepo, now time.Time) *Service {
	return newService(platform, states, audit.NewService(auditRepo), nil, func() time.Time { return now })
}

func testChat() model.ChatConfig {
	cfg := model.NewChatConfig(-100, "test")
	cfg.WarnsLimit = 3
	cfg.MuteMinutes = 120
	return cfg
}

func TestProfanitySequenceEscalatesAtThreshold(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	platform := &stubPlatform{}
	states := newStubStates()
	auditRepo := &stubAuditRepo{}
	svc := newTestService(platform, states, auditRepo, now)

	cfg := testChat()
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		outcome, err := svc.RecordViolation(ctx, cfg, 7, 1000+i, "profanity", true, nil)
		if err != nil {
			t.Fatalf("violation %d: %v", i, err)
		}
		if outcome.Warns != i || outcome.AutoMuted {
			t.Fatalf("violation %d: unexpected outcome %+v", i, outcome)
		}
	}

	outcome, err := svc.RecordViolation(ctx, cfg, 7, 1003, "profanity", true, nil)
	if err != nil {
		t.Fatalf("third violation: %v", err)
	}
	if !outcome.AutoMuted {
		t.Fatalf("expected auto mute at threshold, got %+v", outcome)
	}
	wantUntil := now.Add(120 * time.Minute)
	if !outcome.MutedUntil.Equal(wantUntil) {
		t.Fatalf("expected mute until %v, got %v", wantUntil, outcome.MutedUntil)
	}

	if states.warns[stateKey(-100, 7)] != 0 {
		t.Fatalf("warns must reset to 0 on mute, got %d", states.warns[stateKey(-100, 7)])
	}

	var kinds []enums.ActionKind
	for _, entry := range auditRepo.entries {
		kinds = append(kinds, entry.Action)
	}
	want := []enums.ActionKind{
		enums.ActionDelete, enums.ActionDelete, enums.ActionDelete, enums.ActionAutoMute,
	}
	if len(kinds) != len(want) {
		t.Fatalf("expected %d log entries, got %d (%v)", len(want), len(kinds), kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("entry %d: expected %s, got %s", i, want[i], kinds[i])
		}
	}

	if auditRepo.entries[3].ActorID != 0 {
		t.Fatalf("auto mute must be a system entry, actor=%d", auditRepo.entries[3].ActorID)
	}
}

func TestLinkViolationNeverIncrementsWarns(t *testing.T) {
	platform := &stubPlatform{}
	states := newStubStates()
	auditRepo := &stubAuditRepo{}
	svc := newTestService(platform, states, auditRepo, time.Now().UTC())

	outcome, err := svc.RecordViolation(context.Background(), testChat(), 7, 1, "link", false, nil)
	if err != nil {
		t.Fatalf("record violation: %v", err)
	}
	if outcome.Warns != 0 || outcome.AutoMuted {
		t.Fatalf("link violation must not warn or mute, got %+v", outcome)
	}
	if states.warns[stateKey(-100, 7)] != 0 {
		t.Fatalf("warn counter touched for link violation")
	}
	if len(platform.deleted) != 1 {
		t.Fatalf("message must still be deleted")
	}
}

func TestManualWarnEscalatesExactlyAtLimit(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	platform := &stubPlatform{}
	states := newStubStates()
	auditRepo := &stubAuditRepo{}
	svc := newTestService(platform, states, auditRepo, now)

	cfg := testChat()
	cfg.WarnsLimit = 2
	ctx := context.Background()

	outcome, err := svc.ApplyWarn(ctx, cfg, 9, "spam", 555)
	if err != nil {
		t.Fatalf("first warn: %v", err)
	}
	if outcome.Warns != 1 || outcome.AutoMuted {
		t.Fatalf("unexpected first warn outcome %+v", outcome)
	}

	outcome, err = svc.ApplyWarn(ctx, cfg, 9, "spam again", 555)
	if err != nil {
		t.Fatalf("second warn: %v", err)
	}
	if !outcome.AutoMuted {
		t.Fatalf("expected escalation at limit 2, got %+v", outcome)
	}
	if len(platform.restricted) != 1 || platform.restricted[0] != 9 {
		t.Fatalf("expected one restriction of user 9, got %v", platform.restricted)
	}
}

func TestMuteLogsAppendEvenWhenPlatformFails(t *testing.T) {
	platform := &stubPlatform{failWith: &telegram.CallError{Err: errors.New("forbidden"), Transient: false}}
	states := newStubStates()
	auditRepo := &stubAuditRepo{}
	svc := newTestService(platform, states, auditRepo, time.Now().UTC())

	if _, err := svc.ApplyMute(context.Background(), testChat(), 7, 30, 555); err != nil {
		t.Fatalf("apply mute: %v", err)
	}

	if states.mutedUntil[stateKey(-100, 7)] == nil {
		t.Fatalf("store mutation must proceed despite platform failure")
	}
	if len(auditRepo.entries) != 1 || auditRepo.entries[0].Action != enums.ActionMute {
		t.Fatalf("audit must record attempted intent, got %v", auditRepo.entries)
	}
	if platform.calls != 1 {
		t.Fatalf("permanent failure must not be retried, calls=%d", platform.calls)
	}
}

func TestTransientPlatformFailureRetriedOnce(t *testing.T) {
	platform := &stubPlatform{failWith: &telegram.CallError{Err: errors.New("gateway timeout"), Transient: true}}
	states := newStubStates()
	auditRepo := &stubAuditRepo{}
	svc := newTestService(platform, states, auditRepo, time.Now().UTC())

	if err := svc.Ban(context.Background(), testChat(), 7, "spam", 555); err != nil {
		t.Fatalf("ban: %v", err)
	}
	if platform.calls != 2 {
		t.Fatalf("transient failure must be retried exactly once, calls=%d", platform.calls)
	}
	if len(auditRepo.entries) != 1 || auditRepo.entries[0].Action != enums.ActionBan {
		t.Fatalf("ban must still be logged, got %v", auditRepo.entries)
	}
}

func TestClearMuteIsIdempotent(t *testing.T) {
	platform := &stubPlatform{}
	states := newStubStates()
	auditRepo := &stubAuditRepo{}
	svc := newTestService(platform, states, auditRepo, time.Now().UTC())

	cfg := testChat()
	ctx := context.Background()

	if err := svc.ClearMute(ctx, cfg, 7, 0); err != nil {
		t.Fatalf("clear mute: %v", err)
	}
	if err := svc.ClearMute(ctx, cfg, 7, 0); err != nil {
		t.Fatalf("second clear mute: %v", err)
	}

	if states.warns[stateKey(-100, 7)] != 0 {
		t.Fatalf("clear mute must not touch warns")
	}
	for _, entry := range auditRepo.entries {
		if entry.Action != enums.ActionAutoUnmute {
			t.Fatalf("system clear must log auto_unmute, got %s", entry.Action)
		}
		if entry.ActorID != 0 {
			t.Fatalf("system clear must have no actor")
		}
	}
}

func TestManualUnmuteLogsUnmute(t *testing.T) {
	platform := &stubPlatform{}
	states := newStubStates()
	auditRepo := &stubAuditRepo{}
	svc := newTestService(platform, states, auditRepo, time.Now().UTC())

	if err := svc.ClearMute(context.Background(), testChat(), 7, 555); err != nil {
		t.Fatalf("clear mute: %v", err)
	}
	if len(auditRepo.entries) != 1 || auditRepo.entries[0].Action != enums.ActionUnmute {
		t.Fatalf("expected unmute entry, got %v", auditRepo.entries)
	}
	if auditRepo.entries[0].ActorID != 555 {
		t.Fatalf("expected actor 555, got %d", auditRepo.entries[0].ActorID)
	}
}

func TestKickBansThenUnbans(t *testing.T) {
	platform := &stubPlatform{}
	states := newStubStates()
	auditRepo := &stubAuditRepo{}
	svc := newTestService(platform, states, auditRepo, time.Now().UTC())

	if err := svc.Kick(context.Background(), testChat(), 7, 555); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if len(platform.banned) != 1 || len(platform.unbanned) != 1 {
		t.Fatalf("kick must ban then unban, got banned=%v unbanned=%v", platform.banned, platform.unbanned)
	}
	if len(auditRepo.entries) != 1 || auditRepo.entries[0].Action != enums.ActionKick {
		t.Fatalf("expected one kick entry, got %v", auditRepo.entries)
	}
}

func TestMuteWithZeroMinutesUsesChatDefault(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	platform := &stubPlatform{}
	states := newStubStates()
	auditRepo := &stubAuditRepo{}
	svc := newTestService(platform, states, auditRepo, now)

	cfg := testChat()
	cfg.MuteMinutes = 45

	until, err := svc.ApplyMute(context.Background(), cfg, 7, 0, 555)
	if err != nil {
		t.Fatalf("apply mute: %v", err)
	}
	if !until.Equal(now.Add(45 * time.Minute)) {
		t.Fatalf("expected chat default 45m, got %v", until.Sub(now))
	}
}
