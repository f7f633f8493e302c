package model

import (
	"encoding/json"
	"time"

	"chat_warden/internal/domain/enums"
)

// ModLog is one append-only moderation event. ActorID 0 denotes an
// automated action.
type ModLog struct {
	ID        int64
	ChatID    int64
	ActorID   int64
	TargetID  int64
	Action    enums.ActionKind
	Reason    string
	Meta      json.RawMessage
	CreatedAt time.Time
}
