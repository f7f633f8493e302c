package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chat_warden/internal/domain/model"
)

var (
	ErrBadWarnsLimit  = errors.New("warns limit must be at least 1")
	ErrBadMuteMinutes = errors.New("mute duration must be at least 1 minute")
	ErrBadSlowmode    = errors.New("slowmode must be zero or more seconds")
)

type Repo interface {
	Ensure(ctx context.Context, chatID int64, title string) (model.ChatConfig, error)
	Get(ctx context.Context, chatID int64) (model.ChatConfig, error)
	SetRequiredChannel(ctx context.Context, chatID int64, channel string) error
	SetWarnsLimit(ctx context.Context, chatID int64, limit int) error
	SetRulesText(ctx context.Context, chatID int64, text string) error
	SetMuteMinutes(ctx context.Context, chatID int64, minutes int) error
	SetSlowmodeSeconds(ctx context.Context, chatID int64, seconds int) error
}

// Service owns per-chat configuration.
type Service struct {
	repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{repo: repo}
}

func (s *Service) Ensure(ctx context.Context, chatID int64, title string) (model.ChatConfig, error) {
	cfg, err := s.repo.Ensure(ctx, chatID, title)
	if err != nil {
		return model.ChatConfig{}, fmt.Errorf("ensure chat %d: %w", chatID, err)
	}
	return cfg, nil
}

func (s *Service) Get(ctx context.Context, chatID int64) (model.ChatConfig, error) {
	cfg, err := s.repo.Get(ctx, chatID)
	if err != nil {
		return model.ChatConfig{}, fmt.Errorf("get chat %d: %w", chatID, err)
	}
	return cfg, nil
}

// SetRequiredChannel accepts "@channel" to enable the subscription gate or
// "off" to disable it. A bare channel name gets the @ prefix added.
func (s *Service) SetRequiredChannel(ctx context.Context, chatID int64, value string) (string, error) {
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, "off") || value == "" {
		if err := s.repo.SetRequiredChannel(ctx, chatID, ""); err != nil {
			return "", fmt.Errorf("disable required channel: %w", err)
		}
		return "", nil
	}

	channel := value
	if !strings.HasPrefix(channel, "@") {
		channel = "@" + channel
	}
	if err := s.repo.SetRequiredChannel(ctx, chatID, channel); err != nil {
		return "", fmt.Errorf("set required channel: %w", err)
	}
	return channel, nil
}

func (s *Service) SetWarnsLimit(ctx context.Context, chatID int64, limit int) error {
	if limit < 1 {
		return ErrBadWarnsLimit
	}
	if err := s.repo.SetWarnsLimit(ctx, chatID, limit); err != nil {
		return fmt.Errorf("set warns limit: %w", err)
	}
	return nil
}

func (s *Service) SetMuteMinutes(ctx context.Context, chatID int64, minutes int) error {
	if minutes < 1 {
		return ErrBadMuteMinutes
	}
	if err := s.repo.SetMuteMinutes(ctx, chatID, minutes); err != nil {
		return fmt.Errorf("set mute minutes: %w", err)
	}
	return nil
}

func (s *Service) SetRulesText(ctx context.Context, chatID int64, text string) error {
	if err := s.repo.SetRulesText(ctx, chatID, strings.TrimSpace(text)); err != nil {
		return fmt.Errorf("set rules text: %w", err)
	}
	return nil
}

func (s *Service) SetSlowmodeSeconds(ctx context.Context, chatID int64, seconds int) error {
	if seconds < 0 {
		return ErrBadSlowmode
	}
	if err := s.repo.SetSlowmodeSeconds(ctx, chatID, seconds); err != nil {
		return fmt.Errorf("set slowmode: %w", err)
	}
	return nil
}
