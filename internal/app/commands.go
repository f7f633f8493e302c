package app

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"chat_warden/internal/domain/model"
	"chat_warden/internal/services/settings"
	"chat_warden/internal/ui"
)

var errTargetNotFound = errors.New("target user not found")

func (a *App) handleCommand(ctx context.Context, cfg model.ChatConfig, message *tgbotapi.Message, isAdmin bool) {
	name, args := parseCommand(messageText(message), a.tg.Self().UserName)
	if name == "" {
		return
	}

	switch name {
	case "help", "start":
		a.reply(cfg.ChatID, message, ui.HelpMessage(isAdmin))
	case "rules":
		a.reply(cfg.ChatID, message, ui.RulesMessage(cfg))
	case "me":
		a.handleMe(ctx, cfg, message)
	case "report":
		a.handleReport(ctx, cfg, message)
	case "warn":
		a.handleTargetedCommand(ctx, cfg, message, args, isAdmin, a.applyWarn)
	case "mute":
		a.handleTargetedCommand(ctx, cfg, message, args, isAdmin, a.applyMute)
	case "unmute":
		a.handleTargetedCommand(ctx, cfg, message, args, isAdmin, a.applyUnmute)
	case "kick":
		a.handleTargetedCommand(ctx, cfg, message, args, isAdmin, a.applyKick)
	case "ban":
		a.handleTargetedCommand(ctx, cfg, message, args, isAdmin, a.applyBan)
	case "unban":
		a.handleTargetedCommand(ctx, cfg, message, args, isAdmin, a.applyUnban)
	case "logs":
		a.handleLogs(ctx, cfg, message, args, isAdmin)
	case "setwarns":
		a.handleSetWarns(ctx, cfg, message, args, isAdmin)
	case "setmutetime":
		a.handleSetMuteTime(ctx, cfg, message, args, isAdmin)
	case "setrules":
		a.handleSetRules(ctx, cfg, message, args, isAdmin)
	case "setslowmode":
		a.handleSetSlowmode(ctx, cfg, message, args, isAdmin)
	case "settings":
		a.handleSettings(cfg, message, isAdmin)
	case "setcaptcha":
		a.handleSetCaptcha(ctx, cfg, message, args, isAdmin)
	}
}

func (a *App) handleMe(ctx context.Context, cfg model.ChatConfig, message *tgbotapi.Message) {
	state, err := a.usersRepo.Get(ctx, cfg.ChatID, message.From.ID)
	if err != nil {
		a.logger.Warn("load user state", "chat_id", cfg.ChatID, "user_id", message.From.ID, "error", err)
		a.reply(cfg.ChatID, message, ui.InternalErrorMessage())
		return
	}
	a.reply(cfg.ChatID, message, ui.MeMessage(state, cfg.WarnsLimit))
}

// handleReport accepts a reply-only complaint: it is recorded in the action
// log and fanned out to the chat admins over DM.
func (a *App) handleReport(ctx context.Context, cfg model.ChatConfig, message *tgbotapi.Message) {
	reply := message.ReplyToMessage
	if reply == nil || reply.From == nil {
		a.reply(cfg.ChatID, message, ui.ReplyRequiredMessage())
		return
	}

	meta := map[string]interface{}{"message_id": reply.MessageID}
	if err := a.execService.Report(ctx, cfg, message.From.ID, reply.From.ID, meta); err != nil {
		a.logger.Error("record report", "chat_id", cfg.ChatID, "error", err)
		a.reply(cfg.ChatID, message, ui.InternalErrorMessage())
		return
	}

	text := ui.ReportForAdmins(
		cfg.Title,
		ui.UserLabel(message.From.ID, message.From.UserName),
		ui.UserLabel(reply.From.ID, reply.From.UserName),
		messageText(reply),
	)
	admins, err := a.tg.ChatAdministrators(ctx, cfg.ChatID)
	if err != nil {
		a.logger.Warn("list admins for report", "chat_id", cfg.ChatID, "error", err)
	}
	for _, admin := range admins {
		if admin.User == nil || admin.User.IsBot {
			continue
		}
		if err := a.tg.SendText(admin.User.ID, text); err != nil {
			a.logger.Warn("notify admin about report", "admin_id", admin.User.ID, "error", err)
		}
	}

	a.reply(cfg.ChatID, message, ui.ReportAcceptedMessage())
}

type targetedAction func(ctx context.Context, cfg model.ChatConfig, message *tgbotapi.Message, target model.TargetUser, args []string)

func (a *App) handleTargetedCommand(ctx context.Context, cfg model.ChatConfig, message *tgbotapi.Message, args []string, isAdmin bool, action targetedAction) {
	if !isAdmin {
		a.reply(cfg.ChatID, message, ui.AdminsOnlyMessage())
		return
	}

	target, err := a.resolveTarget(ctx, cfg.ChatID, message, args)
	if err != nil {
		a.reply(cfg.ChatID, message, ui.TargetNotFoundMessage())
		return
	}
	if target.IsBot {
		a.reply(cfg.ChatID, message, ui.TargetIsBotMessage())
		return
	}

	action(ctx, cfg, message, target, args)
}

func (a *App) applyWarn(ctx context.Context, cfg model.ChatConfig, message *tgbotapi.Message, target model.TargetUser, args []string) {
	outcome, err := a.execService.ApplyWarn(ctx, cfg, target.UserID, reasonFromArgs(args, "manual"), message.From.ID)
	if err != nil {
		a.logger.Error("apply warn", "chat_id", cfg.ChatID, "target_id", target.UserID, "error", err)
		a.reply(cfg.ChatID, message, ui.InternalErrorMessage())
		return
	}

	label := ui.UserLabel(target.UserID, target.Username)
	if outcome.AutoMuted {
		a.reply(cfg.ChatID, message, ui.MuteNotice(label, cfg.MuteMinutes))
		return
	}
	a.reply(cfg.ChatID, message, ui.WarnNotice(label, outcome.Warns, cfg.WarnsLimit))
}

func (a *App) applyMute(ctx context.Context, cfg model.ChatConfig, message *tgbotapi.Message, target model.TargetUser, args []string) {
	minutes := parseMinutesArg(args, cfg.MuteMinutes)
	if _, err := a.execService.ApplyMute(ctx, cfg, target.UserID, minutes, message.From.ID); err != nil {
		a.logger.Error("apply mute", "chat_id", cfg.ChatID, "target_id", target.UserID, "error", err)
		a.reply(cfg.ChatID, message, ui.InternalErrorMessage())
		return
	}
	a.reply(cfg.ChatID, message, ui.MuteNotice(ui.UserLabel(target.UserID, target.Username), minutes))
}

func (a *App) applyUnmute(ctx context.Context, cfg model.ChatConfig, message *tgbotapi.Message, target model.TargetUser, _ []string) {
	if err := a.execService.ClearMute(ctx, cfg, target.UserID, message.From.ID); err != nil {
		a.logger.Error("clear mute", "chat_id", cfg.ChatID, "target_id", target.UserID, "error", err)
		a.reply(cfg.ChatID, message, ui.InternalErrorMessage())
		return
	}
	a.reply(cfg.ChatID, message, ui.UnmuteNotice(ui.UserLabel(target.UserID, target.Username)))
}

func (a *App) applyKick(ctx context.Context, cfg model.ChatConfig, message *tgbotapi.Message, target model.TargetUser, _ []string) {
	if err := a.execService.Kick(ctx, cfg, target.UserID, message.From.ID); err != nil {
		a.logger.Error("kick", "chat_id", cfg.ChatID, "target_id", target.UserID, "error", err)
		a.reply(cfg.ChatID, message, ui.InternalErrorMessage())
		return
	}
	a.reply(cfg.ChatID, message, ui.KickNotice(ui.UserLabel(target.UserID, target.Username)))
}

func (a *App) applyBan(ctx context.Context, cfg model.ChatConfig, message *tgbotapi.Message, target model.TargetUser, args []string) {
	if err := a.execService.Ban(ctx, cfg, target.UserID, reasonFromArgs(args, "manual"), message.From.ID); err != nil {
		a.logger.Error("ban", "chat_id", cfg.ChatID, "target_id", target.UserID, "error", err)
		a.reply(cfg.ChatID, message, ui.InternalErrorMessage())
		return
	}
	a.reply(cfg.ChatID, message, ui.BanNotice(ui.UserLabel(target.UserID, target.Username)))
}

func (a *App) applyUnban(ctx context.Context, cfg model.ChatConfig, message *tgbotapi.Message, target model.TargetUser, _ []string) {
	if err := a.execService.Unban(ctx, cfg, target.UserID, message.From.ID); err != nil {
		a.logger.Error("unban", "chat_id", cfg.ChatID, "target_id", target.UserID, "error", err)
		a.reply(cfg.ChatID, message, ui.InternalErrorMessage())
		return
	}
	a.reply(cfg.ChatID, message, ui.UnbanNotice(ui.UserLabel(target.UserID, target.Username)))
}

// handleLogs sends the recent action log to the admin over DM and falls back
// to the group when the DM cannot be delivered.
func (a *App) handleLogs(ctx context.Context, cfg model.ChatConfig, message *tgbotapi.Message, args []string, isAdmin bool) {
	if !isAdmin {
		a.reply(cfg.ChatID, message, ui.AdminsOnlyMessage())
		return
	}

	limit := 0
	if len(args) > 0 {
		if parsed, err := strconv.Atoi(args[0]); err == nil {
			limit = parsed
		}
	}

	entries, err := a.auditService.ListRecent(ctx, cfg.ChatID, limit)
	if err != nil {
		a.logger.Error("list action log", "chat_id", cfg.ChatID, "error", err)
		a.reply(cfg.ChatID, message, ui.InternalErrorMessage())
		return
	}

	text := ui.RenderLogs(entries)
	if err := a.tg.SendText(message.From.ID, text); err != nil {
		a.logger.Warn("dm action log, falling back to group", "admin_id", message.From.ID, "error", err)
		a.reply(cfg.ChatID, message, text)
	}
}

func (a *App) handleSetWarns(ctx context.Context, cfg model.ChatConfig, message *tgbotapi.Message, args []string, isAdmin bool) {
	if !isAdmin {
		a.reply(cfg.ChatID, message, ui.AdminsOnlyMessage())
		return
	}
	if len(args) == 0 {
		a.reply(cfg.ChatID, message, ui.UsageMessage("!setwarns <число>"))
		return
	}
	limit, err := strconv.Atoi(args[0])
	if err != nil {
		a.reply(cfg.ChatID, message, ui.UsageMessage("!setwarns <число>"))
		return
	}
	if err := a.settingsService.SetWarnsLimit(ctx, cfg.ChatID, limit); err != nil {
		if errors.Is(err, settings.ErrBadWarnsLimit) {
			a.reply(cfg.ChatID, message, ui.UsageMessage("!setwarns <число от 1>"))
			return
		}
		a.logger.Error("set warns limit", "chat_id", cfg.ChatID, "error", err)
		a.reply(cfg.ChatID, message, ui.InternalErrorMessage())
		return
	}
	a.reply(cfg.ChatID, message, ui.SettingsSavedMessage())
}

func (a *App) handleSetMuteTime(ctx context.Context, cfg model.ChatConfig, message *tgbotapi.Message, args []string, isAdmin bool) {
	if !isAdmin {
		a.reply(cfg.ChatID, message, ui.AdminsOnlyMessage())
		return
	}
	if len(args) == 0 {
		a.reply(cfg.ChatID, message, ui.UsageMessage("!setmutetime <минуты>"))
		return
	}
	minutes, err := strconv.Atoi(args[0])
	if err != nil {
		a.reply(cfg.ChatID, message, ui.UsageMessage("!setmutetime <минуты>"))
		return
	}
	if err := a.settingsService.SetMuteMinutes(ctx, cfg.ChatID, minutes); err != nil {
		if errors.Is(err, settings.ErrBadMuteMinutes) {
			a.reply(cfg.ChatID, message, ui.UsageMessage("!setmutetime <минуты от 1>"))
			return
		}
		a.logger.Error("set mute minutes", "chat_id", cfg.ChatID, "error", err)
		a.reply(cfg.ChatID, message, ui.InternalErrorMessage())
		return
	}
	a.reply(cfg.ChatID, message, ui.SettingsSavedMessage())
}

func (a *App) handleSetRules(ctx context.Context, cfg model.ChatConfig, message *tgbotapi.Message, args []string, isAdmin bool) {
	if !isAdmin {
		a.reply(cfg.ChatID, message, ui.AdminsOnlyMessage())
		return
	}
	if len(args) == 0 {
		a.reply(cfg.ChatID, message, ui.UsageMessage("!setrules <текст правил>"))
		return
	}
	if err := a.settingsService.SetRulesText(ctx, cfg.ChatID, strings.Join(args, " ")); err != nil {
		a.logger.Error("set rules text", "chat_id", cfg.ChatID, "error", err)
		a.reply(cfg.ChatID, message, ui.InternalErrorMessage())
		return
	}
	a.reply(cfg.ChatID, message, ui.SettingsSavedMessage())
}

func (a *App) handleSetSlowmode(ctx context.Context, cfg model.ChatConfig, message *tgbotapi.Message, args []string, isAdmin bool) {
	if !isAdmin {
		a.reply(cfg.ChatID, message, ui.AdminsOnlyMessage())
		return
	}
	if len(args) == 0 {
		a.reply(cfg.ChatID, message, ui.UsageMessage("!setslowmode <секунды, 0 = выкл>"))
		return
	}
	seconds, err := strconv.Atoi(args[0])
	if err != nil {
		a.reply(cfg.ChatID, message, ui.UsageMessage("!setslowmode <секунды, 0 = выкл>"))
		return
	}
	if err := a.settingsService.SetSlowmodeSeconds(ctx, cfg.ChatID, seconds); err != nil {
		if errors.Is(err, settings.ErrBadSlowmode) {
			a.reply(cfg.ChatID, message, ui.UsageMessage("!setslowmode <секунды, 0 = выкл>"))
			return
		}
		a.logger.Error("set slowmode", "chat_id", cfg.ChatID, "error", err)
		a.reply(cfg.ChatID, message, ui.InternalErrorMessage())
		return
	}
	a.reply(cfg.ChatID, message, ui.SettingsSavedMessage())
}

func (a *App) handleSettings(cfg model.ChatConfig, message *tgbotapi.Message, isAdmin bool) {
	if !isAdmin {
		a.reply(cfg.ChatID, message, ui.AdminsOnlyMessage())
		return
	}
	a.reply(cfg.ChatID, message, ui.RenderSettings(cfg))
}

func (a *App) handleSetCaptcha(ctx context.Context, cfg model.ChatConfig, message *tgbotapi.Message, args []string, isAdmin bool) {
	if !isAdmin {
		a.reply(cfg.ChatID, message, ui.AdminsOnlyMessage())
		return
	}
	if len(args) == 0 {
		a.reply(cfg.ChatID, message, ui.UsageMessage("/setcaptcha @канал или /setcaptcha off"))
		return
	}

	channel, err := a.settingsService.SetRequiredChannel(ctx, cfg.ChatID, args[0])
	if err != nil {
		a.logger.Error("set required channel", "chat_id", cfg.ChatID, "error", err)
		a.reply(cfg.ChatID, message, ui.InternalErrorMessage())
		return
	}
	if channel == "" {
		a.reply(cfg.ChatID, message, ui.CaptchaDisabledMessage())
		return
	}
	a.reply(cfg.ChatID, message, ui.CaptchaEnabledMessage(channel))
}

// resolveTarget finds the user an admin command is aimed at: the replied-to
// author first, then an explicit mention, then an @handle looked up in the
// local state, the platform and finally the admin list. The issuer is never
// used as a fallback.
func (a *App) resolveTarget(ctx context.Context, chatID int64, message *tgbotapi.Message, args []string) (model.TargetUser, error) {
	if target, ok := targetFromMessage(message); ok {
		return target, nil
	}

	handle := extractHandle(args)
	if handle == "" {
		return model.TargetUser{}, errTargetNotFound
	}

	if userID, err := a.usersRepo.FindByUsername(ctx, chatID, handle); err == nil {
		return a.targetWithBotFlag(ctx, chatID, model.TargetUser{UserID: userID, Username: handle}), nil
	}

	if userID, err := a.tg.ResolveUserByHandle(ctx, handle); err == nil {
		return a.targetWithBotFlag(ctx, chatID, model.TargetUser{UserID: userID, Username: handle}), nil
	}

	admins, err := a.tg.ChatAdministrators(ctx, chatID)
	if err == nil {
		for _, admin := range admins {
			if admin.User != nil && strings.EqualFold(admin.User.UserName, handle) {
				return model.TargetUser{UserID: admin.User.ID, Username: admin.User.UserName, IsBot: admin.User.IsBot}, nil
			}
		}
	}

	return model.TargetUser{}, errTargetNotFound
}

func (a *App) targetWithBotFlag(ctx context.Context, chatID int64, target model.TargetUser) model.TargetUser {
	member, err := a.tg.ChatMember(ctx, chatID, target.UserID)
	if err == nil && member.User != nil {
		target.Username = member.User.UserName
		target.IsBot = member.User.IsBot
	}
	return target
}

func (a *App) reply(chatID int64, message *tgbotapi.Message, text string) {
	if err := a.tg.ReplyText(chatID, message.MessageID, text); err != nil {
		a.logger.Warn("send reply", "chat_id", chatID, "error", err)
	}
}

// targetFromMessage picks the target from a reply or a mention entity in the
// command text.
func targetFromMessage(message *tgbotapi.Message) (model.TargetUser, bool) {
	if reply := message.ReplyToMessage; reply != nil && reply.From != nil {
		return model.TargetUser{
			UserID:   reply.From.ID,
			Username: reply.From.UserName,
			IsBot:    reply.From.IsBot,
		}, true
	}

	if message.Entities != nil {
		for _, entity := range message.Entities {
			if entity.Type == "text_mention" && entity.User != nil {
				return model.TargetUser{
					UserID:   entity.User.ID,
					Username: entity.User.UserName,
					IsBot:    entity.User.IsBot,
				}, true
			}
		}
	}

	return model.TargetUser{}, false
}

// parseCommand splits "!mute @user 30" into a lowercase name and its args.
// Slash commands may carry the bot handle suffix: "/settings@warden_bot".
func parseCommand(text, botUsername string) (string, []string) {
	text = strings.TrimSpace(text)
	if len(text) < 2 || (text[0] != '!' && text[0] != '/') {
		return "", nil
	}

	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return "", nil
	}

	name := strings.ToLower(fields[0])
	if at := strings.IndexByte(name, '@'); at >= 0 {
		suffix := name[at+1:]
		if botUsername != "" && !strings.EqualFold(suffix, botUsername) {
			return "", nil
		}
		name = name[:at]
	}

	return name, fields[1:]
}

// extractHandle returns the first @handle among the args, without the @.
func extractHandle(args []string) string {
	for _, arg := range args {
		if strings.HasPrefix(arg, "@") && len(arg) > 1 {
			return strings.TrimPrefix(arg, "@")
		}
	}
	return ""
}

// reasonFromArgs joins the free-text tail of the args, skipping the target
// handle and numeric tokens.
func reasonFromArgs(args []string, fallback string) string {
	var words []string
	for _, arg := range args {
		if strings.HasPrefix(arg, "@") {
			continue
		}
		if _, err := strconv.Atoi(arg); err == nil {
			continue
		}
		words = append(words, arg)
	}
	if len(words) == 0 {
		return fallback
	}
	return strings.Join(words, " ")
}

// parseMinutesArg returns the first numeric arg, or the chat default.
func parseMinutesArg(args []string, fallback int) int {
	for _, arg := range args {
		if minutes, err := strconv.Atoi(arg); err == nil && minutes > 0 {
			return minutes
		}
	}
	return fallback
}
