package app

import (
	"context"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"chat_warden/internal/domain/enums"
	"chat_warden/internal/domain/model"
	"chat_warden/internal/domain/rules"
	"chat_warden/internal/ui"
)

const callbackCheckSubscription = "check_sub"

func (a *App) routeUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		a.routeMessage(ctx, update.Message)
	case update.ChatMember != nil:
		a.handleMembershipChange(ctx, update.ChatMember)
	case update.CallbackQuery != nil:
		a.handleCallback(ctx, update.CallbackQuery)
	}
}

func (a *App) routeMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}

	if message.Chat.IsPrivate() {
		if isCommandText(message.Text) {
			if err := a.tg.SendText(message.Chat.ID, ui.HelpMessage(false)); err != nil {
				a.logger.Warn("send private help", "error", err)
			}
		}
		return
	}
	if !message.Chat.IsGroup() && !message.Chat.IsSuperGroup() {
		return
	}
	if message.From.IsBot {
		return
	}

	cfg, err := a.settingsService.Ensure(ctx, message.Chat.ID, message.Chat.Title)
	if err != nil {
		a.logger.Error("ensure chat config", "chat_id", message.Chat.ID, "error", err)
		cfg = model.NewChatConfig(message.Chat.ID, message.Chat.Title)
	}

	if err := a.usersRepo.Touch(ctx, cfg.ChatID, message.From.ID, message.From.UserName); err != nil {
		a.logger.Warn("touch user state", "chat_id", cfg.ChatID, "user_id", message.From.ID, "error", err)
	}

	isAdmin, err := a.tg.IsAdmin(ctx, cfg.ChatID, message.From.ID)
	if err != nil {
		a.logger.Warn("admin check failed", "chat_id", cfg.ChatID, "user_id", message.From.ID, "error", err)
		isAdmin = false
	}

	if isCommandText(messageText(message)) {
		a.handleCommand(ctx, cfg, message, isAdmin)
		return
	}
	if isAdmin {
		return
	}

	a.moderateMessage(ctx, cfg, message)
}

func (a *App) moderateMessage(ctx context.Context, cfg model.ChatConfig, message *tgbotapi.Message) {
	userID := message.From.ID
	now := time.Now().UTC()

	state, err := a.usersRepo.Get(ctx, cfg.ChatID, userID)
	if err != nil {
		a.logger.Warn("load user state", "chat_id", cfg.ChatID, "user_id", userID, "error", err)
	}

	// A live mute suppresses the message outright. No gate query runs and
	// no verification state is refreshed for a muted user.
	if state.MutedAt(now) {
		if err := a.tg.DeleteMessage(ctx, cfg.ChatID, message.MessageID); err != nil {
			a.logger.Warn("delete muted user message", "chat_id", cfg.ChatID, "error", err)
		}
		return
	}

	allowed, _, err := a.limiter.Allow(ctx, cfg.ChatID, userID, cfg.SlowmodeSeconds)
	if err != nil {
		a.logger.Warn("slowmode check failed", "chat_id", cfg.ChatID, "user_id", userID, "error", err)
	} else if !allowed {
		if _, err := a.execService.RecordViolation(ctx, cfg, userID, message.MessageID, "slowmode", false, nil); err != nil {
			a.logger.Warn("record slowmode deletion", "chat_id", cfg.ChatID, "user_id", userID, "error", err)
		}
		return
	}

	status := rules.SubscriptionNotRequired
	if cfg.SubscriptionRequired() {
		subscribed, err := a.gateService.CheckOnMessage(ctx, cfg, userID)
		if err != nil {
			a.logger.Warn("subscription check failed", "chat_id", cfg.ChatID, "user_id", userID, "error", err)
		}
		if subscribed {
			status = rules.SubscriptionConfirmed
		} else {
			status = rules.SubscriptionMissing
		}
	}

	decision := a.evaluator.Evaluate(cfg, state, status, rules.Message{
		Text:  messageText(message),
		Media: mediaKindOf(message),
	}, now)

	switch decision.Verdict {
	case rules.VerdictSuppress:
		if err := a.tg.DeleteMessage(ctx, cfg.ChatID, message.MessageID); err != nil {
			a.logger.Warn("delete muted user message", "chat_id", cfg.ChatID, "error", err)
		}
	case rules.VerdictSuppressAndGate:
		if err := a.tg.DeleteMessage(ctx, cfg.ChatID, message.MessageID); err != nil {
			a.logger.Warn("delete gated message", "chat_id", cfg.ChatID, "error", err)
		}
		a.gateService.Enforce(ctx, cfg, userID)
	case rules.VerdictViolation:
		a.handleViolation(ctx, cfg, message, decision)
	}
}

func (a *App) handleViolation(ctx context.Context, cfg model.ChatConfig, message *tgbotapi.Message, decision rules.Decision) {
	userID := message.From.ID

	outcome, err := a.execService.RecordViolation(ctx, cfg, userID, message.MessageID, decision.Reason, decision.IncrementsWarning, nil)
	if err != nil {
		a.logger.Error("record violation", "chat_id", cfg.ChatID, "user_id", userID, "reason", decision.Reason, "error", err)
		return
	}

	label := ui.UserLabel(userID, message.From.UserName)
	switch {
	case outcome.AutoMuted:
		if err := a.tg.SendText(cfg.ChatID, ui.MuteNotice(label, cfg.MuteMinutes)); err != nil {
			a.logger.Warn("send mute notice", "chat_id", cfg.ChatID, "error", err)
		}
	case decision.IncrementsWarning:
		if err := a.tg.SendText(cfg.ChatID, ui.WarnNotice(label, outcome.Warns, cfg.WarnsLimit)); err != nil {
			a.logger.Warn("send warn notice", "chat_id", cfg.ChatID, "error", err)
		}
	default:
		if err := a.tg.SendText(cfg.ChatID, ui.ViolationNotice(label, decision.Reason)); err != nil {
			a.logger.Warn("send violation notice", "chat_id", cfg.ChatID, "error", err)
		}
	}
}

func (a *App) handleMembershipChange(ctx context.Context, change *tgbotapi.ChatMemberUpdated) {
	user := change.NewChatMember.User
	if user == nil || user.IsBot {
		return
	}

	cfg, err := a.settingsService.Ensure(ctx, change.Chat.ID, change.Chat.Title)
	if err != nil {
		a.logger.Error("ensure chat config", "chat_id", change.Chat.ID, "error", err)
		return
	}

	if err := a.gateService.ResetOnMembershipChange(ctx, cfg.ChatID, user.ID); err != nil {
		a.logger.Warn("reset subscription state", "chat_id", cfg.ChatID, "user_id", user.ID, "error", err)
	}

	if memberJoined(change) && cfg.SubscriptionRequired() {
		a.gateService.Enforce(ctx, cfg, user.ID)
	}
}

func (a *App) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.Data != callbackCheckSubscription || query.Message == nil {
		return
	}

	cfg, err := a.settingsService.Get(ctx, query.Message.Chat.ID)
	if err != nil {
		a.logger.Error("load chat config", "chat_id", query.Message.Chat.ID, "error", err)
		if err := a.tg.AnswerCallback(query.ID, ui.InternalErrorMessage(), true); err != nil {
			a.logger.Warn("answer callback", "error", err)
		}
		return
	}

	confirmed, err := a.gateService.ConfirmCallback(ctx, cfg, query.From.ID)
	if err != nil {
		a.logger.Warn("confirm subscription", "chat_id", cfg.ChatID, "user_id", query.From.ID, "error", err)
	}

	if confirmed {
		if err := a.tg.AnswerCallback(query.ID, ui.SubscriptionConfirmedMessage(), false); err != nil {
			a.logger.Warn("answer callback", "error", err)
		}
		if err := a.tg.ClearInlineKeyboard(cfg.ChatID, query.Message.MessageID); err != nil {
			a.logger.Warn("clear prompt keyboard", "chat_id", cfg.ChatID, "error", err)
		}
		return
	}

	if err := a.tg.AnswerCallback(query.ID, ui.SubscriptionMissingMessage(cfg.RequiredChannel), true); err != nil {
		a.logger.Warn("answer callback", "error", err)
	}
}

func messageText(message *tgbotapi.Message) string {
	if message.Text != "" {
		return message.Text
	}
	return message.Caption
}

func isCommandText(text string) bool {
	return strings.HasPrefix(text, "!") || strings.HasPrefix(text, "/")
}

func mediaKindOf(message *tgbotapi.Message) enums.MediaKind {
	switch {
	case message.Animation != nil:
		return enums.MediaKindGif
	case len(message.Photo) > 0:
		return enums.MediaKindPhoto
	case message.Video != nil:
		return enums.MediaKindVideo
	case message.Sticker != nil:
		return enums.MediaKindSticker
	case message.Voice != nil:
		return enums.MediaKindVoice
	default:
		return enums.MediaKindNone
	}
}

func memberJoined(change *tgbotapi.ChatMemberUpdated) bool {
	wasIn := isParticipantStatus(change.OldChatMember.Status)
	nowIn := isParticipantStatus(change.NewChatMember.Status)
	return !wasIn && nowIn
}

func isParticipantStatus(status string) bool {
	switch status {
	case "member", "administrator", "creator", "restricted":
		return true
	default:
		return false
	}
}
