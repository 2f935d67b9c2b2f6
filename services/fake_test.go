package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"rightmove-scraper/models"
	"rightmove-scraper/scraper"
	"rightmove-scraper/storage"
	"rightmove-scraper/utils"
)

const host = "https://www.rightmove.co.uk"

var runDay = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

func quietLogger() *utils.Logger { return utils.NewLoggerTo(io.Discard, slog.LevelError) }

func link(id int) models.DetailLink {
	return models.DetailLink(fmt.Sprintf("%s/properties/%d", host, id))
}

// fakeSite serves listing and detail pages from memory.
type fakeSite struct {
	mu        sync.Mutex
	pages     map[string]string
	requested []string
}

func newFakeSite() *fakeSite { return &fakeSite{pages: map[string]string{}} }

func (f *fakeSite) Fetch(_ context.Context, url string) (*goquery.Document, error) {
	f.mu.Lock()
	f.requested = append(f.requested, url)
	body, ok := f.pages[url]
	f.mu.Unlock()
	if !ok {
		return nil, &scraper.FetchError{URL: url, StatusCode: 404}
	}
	return goquery.NewDocumentFromReader(strings.NewReader(body))
}

func (f *fakeSite) detailRequests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, u := range f.requested {
		if strings.Contains(u, "/properties/") {
			out = append(out, u)
		}
	}
	return out
}

// addListing publishes a single results page linking to ids.
func (f *fakeSite) addListing(url string, ids ...int) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, id := range ids {
		fmt.Fprintf(&b, `<a href="/properties/%d">Flat %d</a>`, id, id)
	}
	b.WriteString("</body></html>")
	f.pages[url] = b.String()
}

// addDetail publishes a detail page with the given price and availability.
func (f *fakeSite) addDetail(id, price int, available string) {
	f.pages[string(link(id))] = fmt.Sprintf(`<html><body>
<span>£%d pcm</span>
<h2 itemprop="streetAddress">%d Main St, Sometown, Someshire, UK</h2>
<dl><dt>Let available date:</dt><dd>%s</dd></dl>
</body></html>`, price, id, available)
}

// staticDiscoverer returns a fixed link set.
type staticDiscoverer []models.DetailLink

func (s staticDiscoverer) DiscoverAll(context.Context, []string) ([]models.DetailLink, error) {
	return s, nil
}

// memoryStore is an in-memory SnapshotStore.
type memoryStore struct {
	table *models.Table
	saves int
}

func (m *memoryStore) Load(context.Context) (*models.Table, error) { return m.table, nil }

func (m *memoryStore) Save(_ context.Context, t *models.Table, overwrite bool) error {
	if !overwrite && m.table != nil {
		return &storage.OutputConflictError{Target: "memory"}
	}
	m.table = t
	m.saves++
	return nil
}

func (m *memoryStore) Close() error { return nil }
