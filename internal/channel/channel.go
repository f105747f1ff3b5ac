package channel

import "strings"

// Canonical channel names. Marketplace feeds spell these a dozen ways;
// Normalize folds the known aliases onto these constants.
const (
	Shopee = "Shopee"
	TikTok = "TikTok"
	Lazada = "Lazada"
	Other  = "Other"
)

// DefaultPriorityTier is the rank assigned to any channel without an
// explicit priority entry. Lower rank allocates first.
const DefaultPriorityTier = 4

// DefaultCutoffHour applies to every channel without its own cutoff.
const DefaultCutoffHour = 12

var priorities = map[string]int{
	Shopee: 1,
	TikTok: 2,
	Lazada: 3,
}

var cutoffHours = map[string]int{
	Lazada: 11,
}

var aliases = map[string]string{
	"shopee":     Shopee,
	"shoppee":    Shopee,
	"spx":        Shopee,
	"tiktok":     TikTok,
	"tiktokshop": TikTok,
	"lazada":     Lazada,
	"lz":         Lazada,
	"other":      Other,
	"others":     Other,
}

// Normalize maps a raw channel label from an import feed onto its
// canonical name. Unknown labels are returned trimmed but otherwise
// unchanged, so they still group consistently.
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	if canonical, ok := aliases[b.String()]; ok {
		return canonical
	}
	return name
}

// Priority returns the allocation rank for a channel. Channels missing
// from the table fall to DefaultPriorityTier rather than failing.
func Priority(name string) int {
	if p, ok := priorities[Normalize(name)]; ok {
		return p
	}
	return DefaultPriorityTier
}

// CutoffHour returns the hour of day after which an order rolls to the
// next business day's shipping deadline.
func CutoffHour(name string) int {
	if h, ok := cutoffHours[Normalize(name)]; ok {
		return h
	}
	return DefaultCutoffHour
}
