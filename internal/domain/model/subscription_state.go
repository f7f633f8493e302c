package model

import (
	"time"
)

// SubscriptionState caches whether a user was last known to satisfy the
// required-channel gate. A nil VerifiedAt means "not currently known to be
// subscribed".
type SubscriptionState struct {
	ChatID      int64
	UserID      int64
	VerifiedAt  *time.Time
	LastChecked *time.Time
}
