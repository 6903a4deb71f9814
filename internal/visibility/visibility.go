// Package visibility decides how much of a viewer list a subject may see.
package visibility

import (
	"time"

	"messaging-service/internal/models"
)

// HiddenName replaces the display name of a redacted entry.
const HiddenName = "Hidden User"

// IsVIP reports whether acc holds VIP privilege at now. A nil expiry is lifetime VIP.
func IsVIP(acc models.Account, now time.Time) bool {
	if !acc.IsVIP {
		return false
	}
	return acc.VipExpireDate == nil || acc.VipExpireDate.After(now)
}

// FilterViewerList returns entries unchanged for a VIP subject and redacted
// copies otherwise. Redaction keeps the avatar and timestamp, hides identity
// and online status, and is idempotent.
func FilterViewerList(subject models.Account, entries []models.ViewerEntry, now time.Time) []models.ViewerEntry {
	if IsVIP(subject, now) {
		return entries
	}
	out := make([]models.ViewerEntry, len(entries))
	for i, e := range entries {
		out[i] = Redact(e)
	}
	return out
}

func Redact(e models.ViewerEntry) models.ViewerEntry {
	return models.ViewerEntry{
		UserID:      0,
		DisplayName: HiddenName,
		AvatarURL:   e.AvatarURL,
		IsOnline:    false,
		At:          e.At,
		IsBlurred:   true,
	}
}
