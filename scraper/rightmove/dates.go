package rightmove

import (
	"regexp"
	"strings"
	"time"

	"rightmove-scraper/models"
)

// datePrefixes are removed in order before the date is inspected.
var datePrefixes = []string{"Added on ", "Reduced on ", "Added "}

// immediateTokens mean "available now". Matching is case-sensitive.
var immediateTokens = map[string]struct{}{
	"Now":   {},
	"today": {},
}

var slashDateRegexp = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)

// NormalizeDate turns a free-text date fragment into DD/MM/YYYY text or the
// NaN sentinel. today is used for the immediate-availability tokens.
func NormalizeDate(raw string, today time.Time) string {
	s := Scrub(raw)
	for _, p := range datePrefixes {
		s = strings.ReplaceAll(s, p, "")
	}
	s = strings.TrimSpace(s)

	if _, ok := immediateTokens[s]; ok {
		return today.Format(models.DateLayout)
	}
	if slashDateRegexp.MatchString(s) {
		return s
	}
	return models.DateSentinel
}
