package utils

import (
	"strings"

	"github.com/mozillazg/go-unidecode"
)

// Slugify folds a free-form label into a stable ascii slug usable as a
// leaderboard or stat key: transliterated, lowercased, runs of non
// alphanumerics collapsed into single dashes.
func Slugify(label string) string {
	ascii := strings.ToLower(unidecode.Unidecode(label))

	var b strings.Builder
	b.Grow(len(ascii))
	lastDash := true // suppress a leading dash
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
