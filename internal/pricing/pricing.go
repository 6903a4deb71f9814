// Package pricing maps message kinds to coin costs.
package pricing

import (
	"fmt"

	"messaging-service/internal/apperr"
	"messaging-service/internal/config"
	"messaging-service/internal/models"
)

// Table is an immutable, versioned price list.
type Table struct {
	version string
	text    int64
	image   int64
	audio   int64
	gifts   map[int]int64
}

// NewTable validates prices and copies the gift map.
func NewTable(version string, text, image, audio int64, gifts map[int]int64) (*Table, error) {
	if text < 0 || image < 0 || audio < 0 {
		return nil, fmt.Errorf("pricing %s: negative base price", version)
	}
	copied := make(map[int]int64, len(gifts))
	for tier, price := range gifts {
		if tier <= 0 || price <= 0 {
			return nil, fmt.Errorf("pricing %s: invalid gift tier %d price %d", version, tier, price)
		}
		copied[tier] = price
	}
	return &Table{version: version, text: text, image: image, audio: audio, gifts: copied}, nil
}

// FromConfig builds the table from the pricing section.
func FromConfig(cfg config.PricingConfig) (*Table, error) {
	gifts, err := cfg.GiftPrices()
	if err != nil {
		return nil, err
	}
	return NewTable(cfg.Version, cfg.Text, cfg.Image, cfg.Audio, gifts)
}

// Cost returns the price of kind. Unknown kinds cost the same as text so a gap
// in the table never drops a message. An unknown gift tier is a caller error.
func (t *Table) Cost(kind models.MessageKind) (int64, error) {
	switch kind.Tag {
	case models.KindText:
		return t.text, nil
	case models.KindImage:
		return t.image, nil
	case models.KindAudio:
		return t.audio, nil
	case models.KindGift:
		price, ok := t.gifts[kind.Tier]
		if !ok {
			return 0, apperr.InvalidArg(fmt.Sprintf("unknown gift tier %d", kind.Tier))
		}
		return price, nil
	default:
		return t.text, nil
	}
}

// Snapshot is the public view of the table.
type Snapshot struct {
	Version string        `json:"version"`
	Text    int64         `json:"text"`
	Image   int64         `json:"image"`
	Audio   int64         `json:"audio"`
	Gifts   map[int]int64 `json:"gifts"`
}

func (t *Table) Snapshot() Snapshot {
	gifts := make(map[int]int64, len(t.gifts))
	for k, v := range t.gifts {
		gifts[k] = v
	}
	return Snapshot{Version: t.version, Text: t.text, Image: t.image, Audio: t.audio, Gifts: gifts}
}
