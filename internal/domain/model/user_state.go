package model

import (
	"time"
)

type UserState struct {
	ChatID     int64
	UserID     int64
	Username   string
	Warns      int
	MutedUntil *time.Time
}

func (s UserState) MutedAt(now time.Time) bool {
	return s.MutedUntil != nil && s.MutedUntil.After(now)
}
