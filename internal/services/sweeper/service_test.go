package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"chat_warden/internal/domain/model"
)

type stubMuteStore struct {
	states []model.UserState
	err    error
	gotNow time.Time
}

func (s *stubMuteStore) ListExpiredMutes(_ context.Context, now time.Time) ([]model.UserState, error) {
	s.gotNow = now
	return s.states, s.err
}

type stubSubStore struct {
	states    []model.SubscriptionState
	err       error
	gotCutoff time.Time
}

func (s *stubSubStore) ListDueForRecheck(_ context.Context, cutoff time.Time) ([]model.SubscriptionState, error) {
	s.gotCutoff = cutoff
	return s.states, s.err
}

type stubChatStore struct {
	configs map[int64]model.ChatConfig
	err     error
}

func (s *stubChatStore) Get(_ context.Context, chatID int64) (model.ChatConfig, error) {
	if s.err != nil {
		return model.ChatConfig{}, s.err
	}
	cfg, ok := s.configs[chatID]
	if !ok {
		return model.ChatConfig{}, errors.New("chat not found")
	}
	return cfg, nil
}

type stubUnmuter struct {
	cleared []string
	failFor map[string]error
}

func (s *stubUnmuter) ClearMute(_ context.Context, cfg model.ChatConfig, userID int64, actorID int64) error {
	key := fmt.Sprintf("%d:%d:%d", cfg.ChatID, userID, actorID)
	if err, ok := s.failFor[key]; ok {
		return err
	}
	s.cleared = append(s.cleared, key)
	return nil
}

type stubRechecker struct {
	subscribed map[int64]bool
	err        error
	checked    []int64
}

func (s *stubRechecker) Recheck(_ context.Context, cfg model.ChatConfig, userID int64) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.checked = append(s.checked, userID)
	return s.subscribed[userID], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, nil))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestSweepMutesOnceClearsExpiredOnly(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	mutes := &stubMuteStore{states: []model.UserState{{ChatID: -100, UserID: 7}}}
	chats := &stubChatStore{configs: map[int64]model.ChatConfig{-100: model.NewChatConfig(-100, "main")}}
	unmuter := &stubUnmuter{}

	svc := newService(mutes, &stubSubStore{}, chats, unmuter, &stubRechecker{}, testLogger(), func() time.Time { return now })

	cleared := svc.SweepMutesOnce(context.Background())
	if cleared != 1 {
		t.Fatalf("cleared = %d, want 1", cleared)
	}
	if len(unmuter.cleared) != 1 || unmuter.cleared[0] != "-100:7:0" {
		t.Fatalf("unexpected unmute calls: %v", unmuter.cleared)
	}
	if !mutes.gotNow.Equal(now) {
		t.Fatalf("list cutoff = %v, want %v", mutes.gotNow, now)
	}
}

func TestSweepMutesOnceContinuesPastRowFailure(t *testing.T) {
	mutes := &stubMuteStore{states: []model.UserState{
		{ChatID: -100, UserID: 1},
		{ChatID: -100, UserID: 2},
	}}
	chats := &stubChatStore{configs: map[int64]model.ChatConfig{-100: model.NewChatConfig(-100, "main")}}
	unmuter := &stubUnmuter{failFor: map[string]error{"-100:1:0": errors.New("store down")}}

	svc := newService(mutes, &stubSubStore{}, chats, unmuter, &stubRechecker{}, testLogger(), time.Now)

	cleared := svc.SweepMutesOnce(context.Background())
	if cleared != 1 {
		t.Fatalf("cleared = %d, want 1", cleared)
	}
	if len(unmuter.cleared) != 1 || unmuter.cleared[0] != "-100:2:0" {
		t.Fatalf("unexpected unmute calls: %v", unmuter.cleared)
	}
}

func TestSweepMutesOnceFallsBackToDefaultsWhenChatMissing(t *testing.T) {
	mutes := &stubMuteStore{states: []model.UserState{{ChatID: -200, UserID: 3}}}
	chats := &stubChatStore{err: errors.New("db down")}
	unmuter := &stubUnmuter{}

	svc := newService(mutes, &stubSubStore{}, chats, unmuter, &stubRechecker{}, testLogger(), time.Now)

	if cleared := svc.SweepMutesOnce(context.Background()); cleared != 1 {
		t.Fatalf("cleared = %d, want 1", cleared)
	}
	if len(unmuter.cleared) != 1 || unmuter.cleared[0] != "-200:3:0" {
		t.Fatalf("unexpected unmute calls: %v", unmuter.cleared)
	}
}

func TestSweepMutesOnceListFailure(t *testing.T) {
	mutes := &stubMuteStore{err: errors.New("db down")}
	svc := newService(mutes, &stubSubStore{}, &stubChatStore{}, &stubUnmuter{}, &stubRechecker{}, testLogger(), time.Now)

	if cleared := svc.SweepMutesOnce(context.Background()); cleared != 0 {
		t.Fatalf("cleared = %d, want 0", cleared)
	}
}

func TestSweepSubscriptionsOnceRechecksStaleRows(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	subs := &stubSubStore{states: []model.SubscriptionState{
		{ChatID: -100, UserID: 1},
		{ChatID: -100, UserID: 2},
	}}
	cfg := model.NewChatConfig(-100, "main")
	cfg.RequiredChannel = "@news"
	chats := &stubChatStore{configs: map[int64]model.ChatConfig{-100: cfg}}
	gate := &stubRechecker{subscribed: map[int64]bool{1: true, 2: false}}

	svc := newService(&stubMuteStore{}, subs, chats, &stubUnmuter{}, gate, testLogger(), func() time.Time { return now })

	unsubscribed := svc.SweepSubscriptionsOnce(context.Background())
	if unsubscribed != 1 {
		t.Fatalf("unsubscribed = %d, want 1", unsubscribed)
	}
	if len(gate.checked) != 2 {
		t.Fatalf("checked = %v, want both users", gate.checked)
	}
	wantCutoff := now.Add(-10 * time.Minute)
	if !subs.gotCutoff.Equal(wantCutoff) {
		t.Fatalf("cutoff = %v, want %v", subs.gotCutoff, wantCutoff)
	}
}

func TestSweepSubscriptionsOnceSkipsChatsWithoutGate(t *testing.T) {
	subs := &stubSubStore{states: []model.SubscriptionState{{ChatID: -100, UserID: 1}}}
	chats := &stubChatStore{configs: map[int64]model.ChatConfig{-100: model.NewChatConfig(-100, "main")}}
	gate := &stubRechecker{subscribed: map[int64]bool{1: false}}

	svc := newService(&stubMuteStore{}, subs, chats, &stubUnmuter{}, gate, testLogger(), time.Now)

	if unsubscribed := svc.SweepSubscriptionsOnce(context.Background()); unsubscribed != 0 {
		t.Fatalf("unsubscribed = %d, want 0", unsubscribed)
	}
	if len(gate.checked) != 0 {
		t.Fatalf("checked = %v, want none", gate.checked)
	}
}
