package models

import (
	"time"
	"unicode/utf8"
)

// KindTag names a message kind on the wire and in storage.
type KindTag string

const (
	KindText  KindTag = "text"
	KindImage KindTag = "image"
	KindAudio KindTag = "audio"
	KindGift  KindTag = "gift"
)

// Fixed previews for non-text kinds; the raw payload never reaches chat listings.
const (
	PreviewImage = "[Image]"
	PreviewAudio = "[Voice message]"
	PreviewGift  = "[Gift]"

	maxPreviewRunes = 100
)

// MessageKind is the tagged variant for message kinds. Tier is only
// meaningful for KindGift.
type MessageKind struct {
	Tag  KindTag `json:"kind"`
	Tier int     `json:"tier,omitempty"`
}

func TextKind() MessageKind  { return MessageKind{Tag: KindText} }
func ImageKind() MessageKind { return MessageKind{Tag: KindImage} }
func AudioKind() MessageKind { return MessageKind{Tag: KindAudio} }

func GiftKind(tier int) MessageKind { return MessageKind{Tag: KindGift, Tier: tier} }

// IsMedia reports whether the content of this kind is a media URL.
func (k MessageKind) IsMedia() bool {
	return k.Tag == KindImage || k.Tag == KindAudio
}

// Preview returns the conversation listing text for a message of this kind.
func (k MessageKind) Preview(content string) string {
	switch k.Tag {
	case KindImage:
		return PreviewImage
	case KindAudio:
		return PreviewAudio
	case KindGift:
		return PreviewGift
	default:
		return truncateRunes(content, maxPreviewRunes)
	}
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "…"
}

// Message represents a chat message.
type Message struct {
	ID        int64     `db:"id" json:"id"`
	ChatID    int       `db:"chat_id" json:"chat_id"`
	SenderID  int       `db:"sender_id" json:"sender_id"`
	Kind      KindTag   `db:"kind" json:"kind"`
	GiftTier  *int      `db:"gift_tier" json:"gift_tier,omitempty"`
	Content   string    `db:"content" json:"content"`
	Cost      int64     `db:"cost" json:"cost"`
	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// MessageKind rebuilds the variant from the stored columns.
func (m Message) MessageKind() MessageKind {
	k := MessageKind{Tag: m.Kind}
	if m.GiftTier != nil {
		k.Tier = *m.GiftTier
	}
	return k
}
