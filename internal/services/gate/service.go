package gate

import (
	"context"
	"log/slog"
	"time"

	"chat_warden/internal/domain/model"
)

type Repo interface {
	MarkVerified(ctx context.Context, chatID, userID int64, now time.Time) error
	MarkUnverified(ctx context.Context, chatID, userID int64, checkedAt *time.Time) error
	TouchChecked(ctx context.Context, chatID, userID int64, now time.Time) error
}

// Platform is the membership/restriction surface the gate needs. The join
// prompt itself is rendered by the caller via Prompter.
type Platform interface {
	IsChatMember(ctx context.Context, chatRef string, userID int64) (bool, error)
	Restrict(ctx context.Context, chatID, userID int64, until *time.Time) error
	Unrestrict(ctx context.Context, chatID, userID int64, allowMedia, allowLinks bool) error
}

type Prompter interface {
	SendJoinPrompt(chatID int64, channel string) error
}

// Service owns subscription-verification state: it is cleared on membership
// changes and failed checks, refreshed on confirmed ones.
type Service struct {
	repo     Repo
	platform Platform
	prompter Prompter
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repo, platform Platform, prompter Prompter, logger *slog.Logger) *Service {
	return newService(repo, platform, prompter, logger, func() time.Time { return time.Now().UTC() })
}

func newService(repo Repo, platform Platform, prompter Prompter, logger *slog.Logger, now func() time.Time) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, platform: platform, prompter: prompter, logger: logger, now: now}
}

// CheckOnMessage queries current membership and updates verification state.
// A failed platform query counts as not subscribed.
func (s *Service) CheckOnMessage(ctx context.Context, cfg model.ChatConfig, userID int64) (bool, error) {
	if !cfg.SubscriptionRequired() {
		return true, nil
	}

	subscribed, err := s.platform.IsChatMember(ctx, cfg.RequiredChannel, userID)
	if err != nil {
		s.logger.Warn("subscription check failed", "chat_id", cfg.ChatID, "user_id", userID, "error", err)
		subscribed = false
	}

	now := s.now()
	if subscribed {
		if err := s.repo.MarkVerified(ctx, cfg.ChatID, userID, now); err != nil {
			return true, err
		}
		return true, nil
	}

	if err := s.repo.MarkUnverified(ctx, cfg.ChatID, userID, &now); err != nil {
		return false, err
	}
	return false, nil
}

// Enforce re-restricts the user and re-sends the join prompt. Failures are
// operator-visible only; the gate state is already persisted by the caller.
func (s *Service) Enforce(ctx context.Context, cfg model.ChatConfig, userID int64) {
	if err := s.platform.Restrict(ctx, cfg.ChatID, userID, nil); err != nil {
		s.logger.Warn("gate restrict failed", "chat_id", cfg.ChatID, "user_id", userID, "error", err)
	}
	if s.prompter != nil {
		if err := s.prompter.SendJoinPrompt(cfg.ChatID, cfg.RequiredChannel); err != nil {
			s.logger.Warn("gate prompt failed", "chat_id", cfg.ChatID, "user_id", userID, "error", err)
		}
	}
}

// ConfirmCallback handles the "check subscription" button: on success the
// user is unrestricted per chat flags and marked verified.
func (s *Service) ConfirmCallback(ctx context.Context, cfg model.ChatConfig, userID int64) (bool, error) {
	if !cfg.SubscriptionRequired() {
		return true, nil
	}

	subscribed, err := s.platform.IsChatMember(ctx, cfg.RequiredChannel, userID)
	if err != nil || !subscribed {
		return false, nil
	}

	if err := s.platform.Unrestrict(ctx, cfg.ChatID, userID, cfg.AllowMedia, cfg.AllowLinks); err != nil {
		s.logger.Warn("gate unrestrict failed", "chat_id", cfg.ChatID, "user_id", userID, "error", err)
	}
	if err := s.repo.MarkVerified(ctx, cfg.ChatID, userID, s.now()); err != nil {
		return true, err
	}
	return true, nil
}

// ResetOnMembershipChange clears verification when the user joins or leaves
// the chat; the next interaction must re-verify.
func (s *Service) ResetOnMembershipChange(ctx context.Context, chatID, userID int64) error {
	return s.repo.MarkUnverified(ctx, chatID, userID, nil)
}

// Recheck re-queries membership for the periodic sweep. It touches
// last_checked and, when the user unsubscribed, clears verification and
// re-applies the gate.
func (s *Service) Recheck(ctx context.Context, cfg model.ChatConfig, userID int64) (bool, error) {
	now := s.now()

	subscribed, err := s.platform.IsChatMember(ctx, cfg.RequiredChannel, userID)
	if err != nil {
		s.logger.Warn("subscription recheck failed", "chat_id", cfg.ChatID, "user_id", userID, "error", err)
		if touchErr := s.repo.TouchChecked(ctx, cfg.ChatID, userID, now); touchErr != nil {
			return true, touchErr
		}
		return true, nil
	}

	if subscribed {
		if err := s.repo.TouchChecked(ctx, cfg.ChatID, userID, now); err != nil {
			return true, err
		}
		return true, nil
	}

	if err := s.repo.MarkUnverified(ctx, cfg.ChatID, userID, &now); err != nil {
		return false, err
	}
	s.Enforce(ctx, cfg, userID)
	return false, nil
}
