package rightmove

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"rightmove-scraper/scraper"
	"rightmove-scraper/utils"
)

func quietLogger() *utils.Logger { return utils.NewLoggerTo(&bytes.Buffer{}, slog.LevelError) }

// fakeFetcher serves canned HTML by URL and records every request.
type fakeFetcher struct {
	pages     map[string]string
	requested []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*goquery.Document, error) {
	f.requested = append(f.requested, url)
	body, ok := f.pages[url]
	if !ok {
		return nil, &scraper.FetchError{URL: url, StatusCode: 404}
	}
	return goquery.NewDocumentFromReader(strings.NewReader(body))
}

// listingPage renders a results page linking to the given property ids.
// Each property is linked twice, as real result cards do.
func listingPage(ids ...int) string {
	var b strings.Builder
	b.WriteString(`<html><body><a href="/property-to-rent.html">Home</a>`)
	for _, id := range ids {
		fmt.Fprintf(&b, `<div class="card"><a href="/properties/%d#/?channel=RES_LET"><img></a>`, id)
		fmt.Fprintf(&b, `<a href="/properties/%d">Flat %d</a></div>`, id, id)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func idRange(from, to int) []int {
	var ids []int
	for i := from; i < to; i++ {
		ids = append(ids, i)
	}
	return ids
}

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}
