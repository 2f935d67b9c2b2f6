package rightmove

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"rightmove-scraper/models"
)

var (
	// tagRegexp matches anything between angle brackets, across newlines.
	tagRegexp = regexp.MustCompile(`<[^>]*>`)
	// priceNoise is removed from the per-month price text.
	priceNoise = strings.NewReplacer("£", "", ",", "", " ", "", PerMonthMarker, "")
)

// PerMonthMarker identifies the monthly rent figure.
const PerMonthMarker = "pcm"

// Scrub strips residual markup from s and collapses whitespace.
func Scrub(s string) string {
	s = tagRegexp.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// scrubSelection renders the first node of sel and scrubs it. An empty
// selection scrubs to "".
func scrubSelection(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	raw, err := goquery.OuterHtml(sel.First())
	if err != nil {
		return Scrub(sel.First().Text())
	}
	return Scrub(raw)
}

// CleanPrice strips the currency symbol, thousands separators, spaces and
// the per-month marker: "£1,200 pcm" → "1200".
func CleanPrice(text string) string {
	return priceNoise.Replace(text)
}

// PickLocation selects the short location from a comma-separated address.
// Four segments take the second, three take the first; anything else is N/A.
func PickLocation(text string) string {
	parts := strings.Split(text, ",")
	var pick string
	switch len(parts) {
	case 4:
		pick = parts[1]
	case 3:
		pick = parts[0]
	default:
		return models.NotAvailable
	}
	pick = strings.TrimSpace(pick)
	if pick == "" {
		return models.NotAvailable
	}
	return pick
}
