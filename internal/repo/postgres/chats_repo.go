package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"chat_warden/internal/domain/model"
)

type ChatsRepo struct {
	db *sql.DB
}

func NewChatsRepo(db *sql.DB) *ChatsRepo {
	return &ChatsRepo{db: db}
}

// Ensure returns the chat's configuration, creating the row with defaults on
// first reference.
func (r *ChatsRepo) Ensure(ctx context.Context, chatID int64, title string) (model.ChatConfig, error) {
	if r.db == nil {
		return model.NewChatConfig(chatID, title), nil
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chats (chat_id, title)
		VALUES ($1, $2)
		ON CONFLICT (chat_id) DO NOTHING
	`, chatID, strings.TrimSpace(title))
	if err != nil {
		return model.ChatConfig{}, fmt.Errorf("ensure chat row: %w", err)
	}

	return r.Get(ctx, chatID)
}

func (r *ChatsRepo) Get(ctx context.Context, chatID int64) (model.ChatConfig, error) {
	if r.db == nil {
		return model.NewChatConfig(chatID, ""), nil
	}

	var cfg model.ChatConfig
	var requiredChannel sql.NullString
	var logChannelID sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT chat_id, title, required_channel, log_channel_id,
		       warns_limit, mute_minutes, slowmode_seconds,
		       allow_links, allow_usernames, allow_media, allow_gif,
		       allow_stickers, allow_voice, rules_text, created_at
		FROM chats
		WHERE chat_id = $1
	`, chatID).Scan(
		&cfg.ChatID,
		&cfg.Title,
		&requiredChannel,
		&logChannelID,
		&cfg.WarnsLimit,
		&cfg.MuteMinutes,
		&cfg.SlowmodeSeconds,
		&cfg.AllowLinks,
		&cfg.AllowUsernames,
		&cfg.AllowMedia,
		&cfg.AllowGif,
		&cfg.AllowStickers,
		&cfg.AllowVoice,
		&cfg.RulesText,
		&cfg.CreatedAt,
	)
	if err != nil {
		return model.ChatConfig{}, fmt.Errorf("get chat config: %w", err)
	}

	cfg.RequiredChannel = strings.TrimSpace(requiredChannel.String)
	cfg.LogChannelID = logChannelID.Int64
	return cfg, nil
}

// SetRequiredChannel stores the subscription-gate channel; an empty value
// turns the gate off.
func (r *ChatsRepo) SetRequiredChannel(ctx context.Context, chatID int64, channel string) error {
	if r.db == nil {
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE chats SET required_channel = NULLIF($2, '')
		WHERE chat_id = $1
	`, chatID, strings.TrimSpace(channel))
	if err != nil {
		return fmt.Errorf("set required channel: %w", err)
	}
	return nil
}

func (r *ChatsRepo) SetWarnsLimit(ctx context.Context, chatID int64, limit int) error {
	if r.db == nil {
		return nil
	}
	if limit < 1 {
		return fmt.Errorf("warns limit must be positive")
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE chats SET warns_limit = $2 WHERE chat_id = $1
	`, chatID, limit)
	if err != nil {
		return fmt.Errorf("set warns limit: %w", err)
	}
	return nil
}

func (r *ChatsRepo) SetMuteMinutes(ctx context.Context, chatID int64, minutes int) error {
	if r.db == nil {
		return nil
	}
	if minutes < 1 {
		return fmt.Errorf("mute minutes must be positive")
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE chats SET mute_minutes = $2 WHERE chat_id = $1
	`, chatID, minutes)
	if err != nil {
		return fmt.Errorf("set mute minutes: %w", err)
	}
	return nil
}

func (r *ChatsRepo) SetRulesText(ctx context.Context, chatID int64, text string) error {
	if r.db == nil {
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE chats SET rules_text = $2 WHERE chat_id = $1
	`, chatID, text)
	if err != nil {
		return fmt.Errorf("set rules text: %w", err)
	}
	return nil
}

func (r *ChatsRepo) SetSlowmodeSeconds(ctx context.Context, chatID int64, seconds int) error {
	if r.db == nil {
		return nil
	}
	if seconds < 0 {
		return fmt.Errorf("slowmode seconds must not be negative")
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE chats SET slowmode_seconds = $2 WHERE chat_id = $1
	`, chatID, seconds)
	if err != nil {
		return fmt.Errorf("set slowmode seconds: %w", err)
	}
	return nil
}
