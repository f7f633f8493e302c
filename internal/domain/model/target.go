package model

// TargetUser is a user resolved from a reply, a mention entity or a raw
// @handle during admin command dispatch.
type TargetUser struct {
	UserID   int64
	Username string
	IsBot    bool
}
