package sweeper

import (
	"context"
	"log/slog"
	"time"

	"chat_warden/internal/domain/model"
)

const (
	MuteSweepInterval         = time.Minute
	SubscriptionSweepInterval = 5 * time.Minute
	recheckAge                = 10 * time.Minute
)

type MuteStore interface {
	ListExpiredMutes(ctx context.Context, now time.Time) ([]model.UserState, error)
}

type SubscriptionStore interface {
	ListDueForRecheck(ctx context.Context, cutoff time.Time) ([]model.SubscriptionState, error)
}

type ChatStore interface {
	Get(ctx context.Context, chatID int64) (model.ChatConfig, error)
}

type Unmuter interface {
	ClearMute(ctx context.Context, cfg model.ChatConfig, userID int64, actorID int64) error
}

type Rechecker interface {
	Recheck(ctx context.Context, cfg model.ChatConfig, userID int64) (bool, error)
}

// Service runs the two reconciliation loops: the expired-mute sweep and the
// subscription re-verification sweep. The loops are independent of each
// other and of foreground processing.
type Service struct {
	mutes   MuteStore
	subs    SubscriptionStore
	chats   ChatStore
	unmuter Unmuter
	gate    Rechecker
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(mutes MuteStore, subs SubscriptionStore, chats ChatStore, unmuter Unmuter, gate Rechecker, logger *slog.Logger) *Service {
	return newService(mutes, subs, chats, unmuter, gate, logger, func() time.Time { return time.Now().UTC() })
}

func newService(mutes MuteStore, subs SubscriptionStore, chats ChatStore, unmuter Unmuter, gate Rechecker, logger *slog.Logger, now func() time.Time) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		mutes:   mutes,
		subs:    subs,
		chats:   chats,
		unmuter: unmuter,
		gate:    gate,
		logger:  logger,
		now:     now,
	}
}

// Run blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	go s.loop(ctx, MuteSweepInterval, s.SweepMutesOnce)
	go s.loop(ctx, SubscriptionSweepInterval, s.SweepSubscriptionsOnce)
	<-ctx.Done()
}

func (s *Service) loop(ctx context.Context, interval time.Duration, sweep func(context.Context) int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx)
		}
	}
}

// SweepMutesOnce clears every mute whose expiry has passed. Per-row failures
// are reported to the operator only and never stop the sweep.
func (s *Service) SweepMutesOnce(ctx context.Context) int {
	states, err := s.mutes.ListExpiredMutes(ctx, s.now())
	if err != nil {
		s.logger.Error("list expired mutes", "error", err)
		return 0
	}

	cleared := 0
	for _, state := range states {
		cfg, err := s.chats.Get(ctx, state.ChatID)
		if err != nil {
			s.logger.Warn("load chat for mute sweep", "chat_id", state.ChatID, "error", err)
			cfg = model.NewChatConfig(state.ChatID, "")
		}

		if err := s.unmuter.ClearMute(ctx, cfg, state.UserID, 0); err != nil {
			s.logger.Warn("auto unmute failed", "chat_id", state.ChatID, "user_id", state.UserID, "error", err)
			continue
		}
		cleared++
	}

	return cleared
}

// SweepSubscriptionsOnce re-verifies users whose last check is stale.
func (s *Service) SweepSubscriptionsOnce(ctx context.Context) int {
	states, err := s.subs.ListDueForRecheck(ctx, s.now().Add(-recheckAge))
	if err != nil {
		s.logger.Error("list subscriptions due for recheck", "error", err)
		return 0
	}

	unsubscribed := 0
	for _, state := range states {
		cfg, err := s.chats.Get(ctx, state.ChatID)
		if err != nil {
			s.logger.Warn("load chat for subscription sweep", "chat_id", state.ChatID, "error", err)
			continue
		}
		if !cfg.SubscriptionRequired() {
			continue
		}

		stillSubscribed, err := s.gate.Recheck(ctx, cfg, state.UserID)
		if err != nil {
			s.logger.Warn("subscription recheck failed", "chat_id", state.ChatID, "user_id", state.UserID, "error", err)
			continue
		}
		if !stillSubscribed {
			unsubscribed++
		}
	}

	return unsubscribed
}
