package enums

type MediaKind string

const (
	MediaKindNone    MediaKind = "none"
	MediaKindPhoto   MediaKind = "photo"
	MediaKindVideo   MediaKind = "video"
	MediaKindGif     MediaKind = "gif"
	MediaKindSticker MediaKind = "sticker"
	MediaKindVoice   MediaKind = "voice"
)
