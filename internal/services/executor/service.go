package executor

import (
	"context"
	"log/slog"
	"time"

	"chat_warden/internal/domain/enums"
	"chat_warden/internal/domain/model"
	"chat_warden/internal/infra/telegram"
	"chat_warden/internal/services/audit"
)

// Platform is the subset of messaging-platform calls moderation actions
// need. Every call is fallible; failures never block the matching store
// mutation or log append.
type Platform interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	Restrict(ctx context.Context, chatID, userID int64, until *time.Time) error
	Unrestrict(ctx context.Context, chatID, userID int64, allowMedia, allowLinks bool) error
	Ban(ctx context.Context, chatID, userID int64) error
	Unban(ctx context.Context, chatID, userID int64) error
}

type StateRepo interface {
	IncrementWarns(ctx context.Context, chatID, userID int64) (int, error)
	SetMute(ctx context.Context, chatID, userID int64, until time.Time) error
	ClearMute(ctx context.Context, chatID, userID int64) error
}

// Service is the sole writer of moderation state and the sole emitter of
// action-log entries. Each operation performs at most one platform call, at
// most one store mutation and exactly one log append, in that order.
type Service struct {
	platform Platform
	states   StateRepo
	audit    *audit.Service
	locks    *keyedMutex
	logger   *slog.Logger
	now      func() time.Time
}

// ViolationOutcome tells the caller what a violation resulted in, for the
// in-chat notice.
type ViolationOutcome struct {
	Warns      int
	AutoMuted  bool
	MutedUntil time.Time
}

func NewService(platform Platform, states StateRepo, auditService *audit.Service, logger *slog.Logger) *Service {
	return newService(platform, states, auditService, logger, func() time.Time { return time.Now().UTC() })
}

func newService(platform Platform, states StateRepo, auditService *audit.Service, logger *slog.Logger, now func() time.Time) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		platform: platform,
		states:   states,
		audit:    auditService,
		locks:    newKeyedMutex(),
		logger:   logger,
		now:      now,
	}
}

// RecordViolation deletes the offending message, appends a delete entry and,
// for warning-bearing violations, bumps the counter and escalates to an
// automatic mute at the chat's threshold.
func (s *Service) RecordViolation(ctx context.Context, cfg model.ChatConfig, userID int64, messageID int, reason string, incrementsWarning bool, meta map[string]interface{}) (ViolationOutcome, error) {
	unlock := s.locks.Lock(cfg.ChatID, userID)
	defer unlock()

	s.platformCall(ctx, "delete message", func(callCtx context.Context) error {
		return s.platform.DeleteMessage(callCtx, cfg.ChatID, messageID)
	})

	outcome := ViolationOutcome{}
	if meta == nil {
		meta = map[string]interface{}{}
	}

	if incrementsWarning {
		warns, err := s.states.IncrementWarns(ctx, cfg.ChatID, userID)
		if err != nil {
			return outcome, err
		}
		outcome.Warns = warns
		meta["warns"] = warns
	}

	if err := s.audit.Log(ctx, cfg.ChatID, enums.ActionDelete, reason, 0, userID, meta); err != nil {
		return outcome, err
	}

	if incrementsWarning && outcome.Warns >= cfg.WarnsLimit {
		until, err := s.applyMuteLocked(ctx, cfg, userID, cfg.MuteMinutes, 0, "warns_limit")
		if err != nil {
			return outcome, err
		}
		outcome.AutoMuted = true
		outcome.MutedUntil = until
	}

	return outcome, nil
}

// ApplyWarn increments the counter by exactly one, unconditionally of
// reason, and escalates at the threshold.
func (s *Service) ApplyWarn(ctx context.Context, cfg model.ChatConfig, userID int64, reason string, actorID int64) (ViolationOutcome, error) {
	unlock := s.locks.Lock(cfg.ChatID, userID)
	defer unlock()

	warns, err := s.states.IncrementWarns(ctx, cfg.ChatID, userID)
	if err != nil {
		return ViolationOutcome{}, err
	}

	outcome := ViolationOutcome{Warns: warns}
	if err := s.audit.Log(ctx, cfg.ChatID, enums.ActionWarn, reason, actorID, userID, map[string]interface{}{"warns": warns}); err != nil {
		return outcome, err
	}

	if warns >= cfg.WarnsLimit {
		until, err := s.applyMuteLocked(ctx, cfg, userID, cfg.MuteMinutes, actorID, "warns_limit")
		if err != nil {
			return outcome, err
		}
		outcome.AutoMuted = true
		outcome.MutedUntil = until
	}

	return outcome, nil
}

// ApplyMute restricts the user until now + duration and resets warnings.
// actorID 0 logs the action as automatic.
func (s *Service) ApplyMute(ctx context.Context, cfg model.ChatConfig, userID int64, minutes int, actorID int64) (time.Time, error) {
	unlock := s.locks.Lock(cfg.ChatID, userID)
	defer unlock()

	reason := "admin_mute"
	if actorID == 0 {
		reason = "auto_mute"
	}
	return s.applyMuteLocked(ctx, cfg, userID, minutes, actorID, reason)
}

func (s *Service) applyMuteLocked(ctx context.Context, cfg model.ChatConfig, userID int64, minutes int, actorID int64, reason string) (time.Time, error) {
	if minutes <= 0 {
		minutes = cfg.MuteMinutes
	}
	until := s.now().Add(time.Duration(minutes) * time.Minute)

	s.platformCall(ctx, "restrict member", func(callCtx context.Context) error {
		return s.platform.Restrict(callCtx, cfg.ChatID, userID, &until)
	})

	if err := s.states.SetMute(ctx, cfg.ChatID, userID, until); err != nil {
		return until, err
	}

	action := enums.ActionMute
	if reason == "warns_limit" || actorID == 0 {
		action = enums.ActionAutoMute
	}
	err := s.audit.Log(ctx, cfg.ChatID, action, reason, actorID, userID, map[string]interface{}{
		"until":   until.Format(time.RFC3339),
		"minutes": minutes,
	})
	return until, err
}

// ClearMute lifts a restriction. The stored expiry is cleared even when the
// platform rejects the call, so an unclearable row cannot wedge the sweep.
func (s *Service) ClearMute(ctx context.Context, cfg model.ChatConfig, userID int64, actorID int64) error {
	unlock := s.locks.Lock(cfg.ChatID, userID)
	defer unlock()

	s.platformCall(ctx, "unrestrict member", func(callCtx context.Context) error {
		return s.platform.Unrestrict(callCtx, cfg.ChatID, userID, cfg.AllowMedia, cfg.AllowLinks)
	})

	if err := s.states.ClearMute(ctx, cfg.ChatID, userID); err != nil {
		return err
	}

	action := enums.ActionUnmute
	reason := ""
	if actorID == 0 {
		action = enums.ActionAutoUnmute
		reason = "mute_expired"
	}
	return s.audit.Log(ctx, cfg.ChatID, action, reason, actorID, userID, nil)
}

func (s *Service) Ban(ctx context.Context, cfg model.ChatConfig, userID int64, reason string, actorID int64) error {
	s.platformCall(ctx, "ban member", func(callCtx context.Context) error {
		return s.platform.Ban(callCtx, cfg.ChatID, userID)
	})
	return s.audit.Log(ctx, cfg.ChatID, enums.ActionBan, reason, actorID, userID, nil)
}

func (s *Service) Unban(ctx context.Context, cfg model.ChatConfig, userID int64, actorID int64) error {
	s.platformCall(ctx, "unban member", func(callCtx context.Context) error {
		return s.platform.Unban(callCtx, cfg.ChatID, userID)
	})
	return s.audit.Log(ctx, cfg.ChatID, enums.ActionUnban, "", actorID, userID, nil)
}

// Kick is ban immediately followed by unban, per platform convention.
func (s *Service) Kick(ctx context.Context, cfg model.ChatConfig, userID int64, actorID int64) error {
	s.platformCall(ctx, "kick member", func(callCtx context.Context) error {
		if err := s.platform.Ban(callCtx, cfg.ChatID, userID); err != nil {
			return err
		}
		return s.platform.Unban(callCtx, cfg.ChatID, userID)
	})
	return s.audit.Log(ctx, cfg.ChatID, enums.ActionKick, "admin_kick", actorID, userID, nil)
}

func (s *Service) Report(ctx context.Context, cfg model.ChatConfig, actorID, targetID int64, meta map[string]interface{}) error {
	return s.audit.Log(ctx, cfg.ChatID, enums.ActionReport, "user_report", actorID, targetID, meta)
}

// platformCall runs one platform operation, retrying once on transient
// failure. Failures are reported to the operator log only; the caller's
// state mutation and audit append proceed regardless.
func (s *Service) platformCall(ctx context.Context, op string, fn func(context.Context) error) {
	if s.platform == nil {
		return
	}

	err := fn(ctx)
	if err != nil && telegram.IsTransient(err) {
		err = fn(ctx)
	}
	if err != nil {
		s.logger.Warn("platform call failed", "op", op, "error", err)
	}
}
