package model

import (
	"time"
)

const (
	DefaultWarnsLimit  = 3
	DefaultMuteMinutes = 120
)

type ChatConfig struct {
	ChatID          int64
	Title           string
	RequiredChannel string
	LogChannelID    int64
	WarnsLimit      int
	MuteMinutes     int
	SlowmodeSeconds int
	AllowLinks      bool
	AllowUsernames  bool
	AllowMedia      bool
	AllowGif        bool
	AllowStickers   bool
	AllowVoice      bool
	RulesText       string
	CreatedAt       time.Time
}

// NewChatConfig returns the defaults applied to a chat on first reference.
func NewChatConfig(chatID int64, title string) ChatConfig {
	return ChatConfig{
		ChatID:         chatID,
		Title:          title,
		WarnsLimit:     DefaultWarnsLimit,
		MuteMinutes:    DefaultMuteMinutes,
		AllowLinks:     false,
		AllowUsernames: true,
		AllowMedia:     true,
		AllowGif:       true,
		AllowStickers:  true,
		AllowVoice:     true,
		CreatedAt:      time.Now().UTC(),
	}
}

func (c ChatConfig) SubscriptionRequired() bool {
	return c.RequiredChannel != ""
}
