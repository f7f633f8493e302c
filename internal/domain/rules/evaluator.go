package rules

import (
	"regexp"
	"strings"
	"time"

	"chat_warden/internal/domain/enums"
	"chat_warden/internal/domain/model"
)

type Verdict string

const (
	VerdictAllow           Verdict = "allow"
	VerdictSuppress        Verdict = "suppress"
	VerdictSuppressAndGate Verdict = "suppress_and_gate"
	VerdictViolation       Verdict = "violation"
)

const (
	ReasonLink      = "link"
	ReasonMention   = "mention"
	ReasonProfanity = "profanity"
	ReasonMedia     = "media"
)

// SubscriptionStatus is the outcome of the delegated membership query. The
// evaluator never talks to the platform itself.
type SubscriptionStatus int

const (
	SubscriptionNotRequired SubscriptionStatus = iota
	SubscriptionConfirmed
	SubscriptionMissing
)

type Message struct {
	Text  string
	Media enums.MediaKind
}

type Decision struct {
	Verdict           Verdict
	Reason            string
	IncrementsWarning bool
}

var (
	linkRe    = regexp.MustCompile(`(?i)https?://|t\.me/|\bwww\.`)
	mentionRe = regexp.MustCompile(`@[A-Za-z0-9_]{5,}\b`)
)

// DefaultProfanity is the starter denylist; chats extend it via config.
var DefaultProfanity = []string{"сука", "блять", "нахуй", "хуй", "пизда", "ебать"}

type Evaluator struct {
	profanity []string
}

func NewEvaluator(profanity []string) *Evaluator {
	if len(profanity) == 0 {
		profanity = DefaultProfanity
	}
	words := make([]string, 0, len(profanity))
	for _, word := range profanity {
		word = strings.ToLower(strings.TrimSpace(word))
		if word != "" {
			words = append(words, word)
		}
	}
	return &Evaluator{profanity: words}
}

// Evaluate applies checks in fixed priority order and stops at the first
// match. Only profanity counts toward the warn threshold: escalation is
// reserved for abusive language, not link sharing or media types.
func (e *Evaluator) Evaluate(cfg model.ChatConfig, state model.UserState, subscription SubscriptionStatus, msg Message, now time.Time) Decision {
	if state.MutedAt(now) {
		return Decision{Verdict: VerdictSuppress}
	}

	if cfg.SubscriptionRequired() && subscription == SubscriptionMissing {
		return Decision{Verdict: VerdictSuppressAndGate}
	}

	if msg.Text != "" {
		if !cfg.AllowLinks && linkRe.MatchString(msg.Text) {
			return Decision{Verdict: VerdictViolation, Reason: ReasonLink}
		}
		if !cfg.AllowUsernames && mentionRe.MatchString(msg.Text) {
			return Decision{Verdict: VerdictViolation, Reason: ReasonMention}
		}
		if e.containsProfanity(msg.Text) {
			return Decision{Verdict: VerdictViolation, Reason: ReasonProfanity, IncrementsWarning: true}
		}
	}

	if msg.Media != enums.MediaKindNone && !mediaAllowed(cfg, msg.Media) {
		return Decision{Verdict: VerdictViolation, Reason: ReasonMedia}
	}

	return Decision{Verdict: VerdictAllow}
}

func (e *Evaluator) containsProfanity(text string) bool {
	low := strings.ToLower(text)
	for _, word := range e.profanity {
		if strings.Contains(low, word) {
			return true
		}
	}
	return false
}

func mediaAllowed(cfg model.ChatConfig, kind enums.MediaKind) bool {
	switch kind {
	case enums.MediaKindPhoto, enums.MediaKindVideo:
		return cfg.AllowMedia
	case enums.MediaKindGif:
		return cfg.AllowGif
	case enums.MediaKindSticker:
		return cfg.AllowStickers
	case enums.MediaKindVoice:
		return cfg.AllowVoice
	default:
		return true
	}
}
