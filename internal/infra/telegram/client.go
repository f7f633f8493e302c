package telegram

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type UpdateHandler func(context.Context, tgbotapi.Update)

const defaultCallTimeout = 8 * time.Second

type Client struct {
	api         *tgbotapi.BotAPI
	logger      *slog.Logger
	handler     UpdateHandler
	pollTimeout int
	dryRun      bool
}

func NewClient(token string, pollTimeout int, logger *slog.Logger, handler UpdateHandler) (*Client, error) {
	if handler == nil {
		return nil, errors.New("telegram update handler is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if strings.TrimSpace(token) == "" {
		return &Client{
			logger:      logger,
			handler:     handler,
			pollTimeout: pollTimeout,
			dryRun:      true,
		}, nil
	}

	// The bot API client is synchronous; a client-level timeout bounds every
	// call so a stuck request cannot hold a handler goroutine forever.
	httpClient := &http.Client{Timeout: defaultCallTimeout}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, err
	}

	return &Client{
		api:         api,
		logger:      logger,
		handler:     handler,
		pollTimeout: pollTimeout,
	}, nil
}

func (c *Client) Start(ctx context.Context) error {
	if c.dryRun {
		c.logger.Warn("BOT_TOKEN is empty, running in dry mode")
		<-ctx.Done()
		return nil
	}

	timeout := c.pollTimeout
	if timeout <= 0 {
		timeout = 30
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = timeout
	updateConfig.AllowedUpdates = []string{"message", "chat_member", "callback_query"}
	updates := c.api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			c.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go c.handler(ctx, update)
		}
	}
}

func (c *Client) Self() tgbotapi.User {
	if c.dryRun {
		return tgbotapi.User{}
	}
	return c.api.Self
}

func (c *Client) Send(msg tgbotapi.Chattable) error {
	if c.dryRun {
		return nil
	}
	_, err := c.api.Send(msg)
	return classify(err)
}

// IsChatMember reports whether the user belongs to the chat addressed by a
// numeric id (as string) or a public @username.
func (c *Client) IsChatMember(ctx context.Context, chatRef string, userID int64) (bool, error) {
	if c.dryRun {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, classify(err)
	}

	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: normalizeChannel(chatRef),
			UserID:             userID,
		},
	})
	if err != nil {
		return false, classify(err)
	}

	switch member.Status {
	case "creator", "administrator", "member":
		return true, nil
	default:
		return false, nil
	}
}

func (c *Client) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	if c.dryRun {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, classify(err)
	}

	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		return false, classify(err)
	}
	return member.Status == "creator" || member.Status == "administrator", nil
}

func (c *Client) ChatMember(ctx context.Context, chatID, userID int64) (tgbotapi.ChatMember, error) {
	if c.dryRun {
		return tgbotapi.ChatMember{}, nil
	}
	if err := ctx.Err(); err != nil {
		return tgbotapi.ChatMember{}, classify(err)
	}

	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	return member, classify(err)
}

func (c *Client) ChatAdministrators(ctx context.Context, chatID int64) ([]tgbotapi.ChatMember, error) {
	if c.dryRun {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, classify(err)
	}

	admins, err := c.api.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	return admins, classify(err)
}

// ResolveUserByHandle asks the platform for @handle. The bot API only
// resolves handles it can see as chats, so this often fails for plain group
// members and the caller falls back to the admin-list scan.
func (c *Client) ResolveUserByHandle(ctx context.Context, handle string) (int64, error) {
	if c.dryRun {
		return 0, errPermanent
	}
	if err := ctx.Err(); err != nil {
		return 0, classify(err)
	}

	chat, err := c.api.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{SuperGroupUsername: normalizeChannel(handle)},
	})
	if err != nil {
		return 0, classify(err)
	}
	if chat.Type != "private" {
		return 0, errPermanent
	}
	return chat.ID, nil
}

// Restrict removes posting ability; a nil until means an open-ended
// restriction (used by the subscription gate).
func (c *Client) Restrict(ctx context.Context, chatID, userID int64, until *time.Time) error {
	if c.dryRun {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return classify(err)
	}

	cfg := tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		Permissions:      &tgbotapi.ChatPermissions{CanSendMessages: false},
	}
	if until != nil {
		cfg.UntilDate = until.Unix()
	}
	_, err := c.api.Request(cfg)
	return classify(err)
}

// Unrestrict restores posting, honoring the chat's media and link flags.
func (c *Client) Unrestrict(ctx context.Context, chatID, userID int64, allowMedia, allowLinks bool) error {
	if c.dryRun {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return classify(err)
	}

	_, err := c.api.Request(tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		Permissions: &tgbotapi.ChatPermissions{
			CanSendMessages:       true,
			CanSendMediaMessages:  allowMedia,
			CanSendPolls:          true,
			CanSendOtherMessages:  true,
			CanAddWebPagePreviews: allowLinks,
		},
	})
	return classify(err)
}

func (c *Client) Ban(ctx context.Context, chatID, userID int64) error {
	if c.dryRun {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return classify(err)
	}

	_, err := c.api.Request(tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
	})
	return classify(err)
}

func (c *Client) Unban(ctx context.Context, chatID, userID int64) error {
	if c.dryRun {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return classify(err)
	}

	_, err := c.api.Request(tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		OnlyIfBanned:     true,
	})
	return classify(err)
}

func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if c.dryRun {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return classify(err)
	}

	_, err := c.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return classify(err)
}

func (c *Client) SendText(chatID int64, text string) error {
	return c.Send(tgbotapi.NewMessage(chatID, text))
}

func (c *Client) SendHTML(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	return c.Send(msg)
}

func (c *Client) ReplyText(chatID int64, replyTo int, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	return c.Send(msg)
}

func (c *Client) AnswerCallback(callbackID, text string, alert bool) error {
	if c.dryRun {
		return nil
	}
	callback := tgbotapi.NewCallback(callbackID, text)
	callback.ShowAlert = alert
	_, err := c.api.Request(callback)
	return classify(err)
}

func (c *Client) ClearInlineKeyboard(chatID int64, messageID int) error {
	if c.dryRun {
		return nil
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	_, err := c.api.Request(edit)
	return classify(err)
}

func normalizeChannel(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "@") {
		return ref
	}
	return "@" + ref
}
