package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Job-title keywords, already folded. Titles are matched by substring after
// lower-casing and accent removal, so "Assistante", "Achats" and "Services
// Généraux" all hit. "office-manager" is matched literally: a plain "Office
// Manager" title scores the default.
var (
	topKeywords = []string{
		"assistant", "office-manager", "procurement", "achat", "acheteur",
		"facility", "facilities", "services generaux",
	}
	highKeywords = []string{"admin", "operations"}
)

const (
	scoreTop     = 5
	scoreHigh    = 4
	scoreDefault = 3

	// priorityThreshold is the minimum score for a priority target.
	priorityThreshold = 4
)

// PriorityScore scores a job title for outreach priority.
func PriorityScore(jobTitle string) int {
	title := Fold(jobTitle)
	if title == "" {
		return scoreDefault
	}
	for _, kw := range topKeywords {
		if strings.Contains(title, kw) {
			return scoreTop
		}
	}
	for _, kw := range highKeywords {
		if strings.Contains(title, kw) {
			return scoreHigh
		}
	}
	return scoreDefault
}

// IsPriority reports whether a score makes the contact a priority target.
func IsPriority(score int) bool {
	return score >= priorityThreshold
}

// Fold lower-cases s and strips diacritics.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}
