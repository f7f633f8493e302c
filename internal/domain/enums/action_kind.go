package enums

type ActionKind string

const (
	ActionDelete     ActionKind = "delete"
	ActionWarn       ActionKind = "warn"
	ActionMute       ActionKind = "mute"
	ActionAutoMute   ActionKind = "auto_mute"
	ActionAutoUnmute ActionKind = "auto_unmute"
	ActionUnmute     ActionKind = "unmute"
	ActionBan        ActionKind = "ban"
	ActionUnban      ActionKind = "unban"
	ActionKick       ActionKind = "kick"
	ActionReport     ActionKind = "report"
)
