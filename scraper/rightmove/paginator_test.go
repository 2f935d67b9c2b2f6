package rightmove

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"rightmove-scraper/models"
	"rightmove-scraper/scraper"
)

const searchURL = "https://www.rightmove.co.uk/property-to-rent/find.html?locationIdentifier=REGION%5E93598"

func pageAt(t *testing.T, listing string, offset int) string {
	t.Helper()
	u, err := withOffset(listing, offset)
	require.NoError(t, err)
	return u
}

func newTestPaginator(t *testing.T, f *fakeFetcher, maxPages int) *Paginator {
	t.Helper()
	p, err := NewPaginator(f, PaginatorOptions{MaxPages: maxPages}, quietLogger())
	require.NoError(t, err)
	return p
}

func TestDiscoverSinglePartialPage(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{searchURL: listingPage(idRange(1, 6)...)}}
	p := newTestPaginator(t, f, 0)

	links, err := p.Discover(context.Background(), searchURL)
	require.NoError(t, err)

	if p.Fetches() != 1 {
		t.Errorf("fetches: got %d, want 1", p.Fetches())
	}
	if len(links) != 5 {
		t.Errorf("links: got %d, want 5", len(links))
	}
	if links[0] != "https://www.rightmove.co.uk/properties/1" {
		t.Errorf("links[0]: got %q", links[0])
	}
}

func TestDiscoverFullThenPartialPage(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		searchURL: listingPage(idRange(100, 124)...),
		// overlaps the first page by two links
		pageAt(t, searchURL, 24): listingPage(idRange(122, 132)...),
	}}
	p := newTestPaginator(t, f, 0)

	links, err := p.Discover(context.Background(), searchURL)
	require.NoError(t, err)

	if p.Fetches() != 2 {
		t.Errorf("fetches: got %d, want 2", p.Fetches())
	}
	if len(links) != 32 {
		t.Errorf("links: got %d, want 32 unique", len(links))
	}
	if f.requested[1] != pageAt(t, searchURL, 24) {
		t.Errorf("second request: got %q", f.requested[1])
	}
}

func TestDiscoverFollowsPerPageCount(t *testing.T) {
	// a full page after a short interior page is never reached: the short
	// page ends discovery
	f := &fakeFetcher{pages: map[string]string{
		searchURL:                listingPage(idRange(0, 24)...),
		pageAt(t, searchURL, 24): listingPage(idRange(24, 48)...),
		pageAt(t, searchURL, 48): listingPage(idRange(48, 50)...),
		pageAt(t, searchURL, 72): listingPage(idRange(50, 74)...),
	}}
	p := newTestPaginator(t, f, 0)

	links, err := p.Discover(context.Background(), searchURL)
	require.NoError(t, err)
	if p.Fetches() != 3 {
		t.Errorf("fetches: got %d, want 3", p.Fetches())
	}
	if len(links) != 50 {
		t.Errorf("links: got %d, want 50", len(links))
	}
}

func TestDiscoverRespectsMaxPages(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		searchURL:                listingPage(idRange(0, 24)...),
		pageAt(t, searchURL, 24): listingPage(idRange(24, 48)...),
		pageAt(t, searchURL, 48): listingPage(idRange(48, 72)...),
	}}
	p := newTestPaginator(t, f, 2)

	links, err := p.Discover(context.Background(), searchURL)
	require.NoError(t, err)
	if p.Fetches() != 2 {
		t.Errorf("fetches: got %d, want 2", p.Fetches())
	}
	if len(links) != 48 {
		t.Errorf("links: got %d, want 48", len(links))
	}
}

func TestDiscoverAllUnionsListings(t *testing.T) {
	other := "https://www.rightmove.co.uk/property-to-rent/find.html?locationIdentifier=REGION%5E66970"
	f := &fakeFetcher{pages: map[string]string{
		searchURL: listingPage(1, 2, 3),
		other:     listingPage(3, 4),
	}}
	p := newTestPaginator(t, f, 0)

	links, err := p.DiscoverAll(context.Background(), []string{searchURL, other})
	require.NoError(t, err)

	want := []models.DetailLink{
		"https://www.rightmove.co.uk/properties/1",
		"https://www.rightmove.co.uk/properties/2",
		"https://www.rightmove.co.uk/properties/3",
		"https://www.rightmove.co.uk/properties/4",
	}
	require.Equal(t, want, links)
}

func TestDiscoverPropagatesFetchError(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{}}
	p := newTestPaginator(t, f, 0)

	_, err := p.Discover(context.Background(), searchURL)
	var fe *scraper.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

func TestWithOffset(t *testing.T) {
	got, err := withOffset(searchURL, 48)
	require.NoError(t, err)
	want := "https://www.rightmove.co.uk/property-to-rent/find.html?index=48&locationIdentifier=REGION%5E93598"
	if got != want {
		t.Errorf("withOffset = %q; want %q", got, want)
	}
}

func TestFetchesCountsOnlyTheLastCall(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{searchURL: listingPage(idRange(1, 4)...)}}
	p := newTestPaginator(t, f, 0)

	for i := 0; i < 3; i++ {
		_, err := p.Discover(context.Background(), searchURL)
		require.NoError(t, err)
		if p.Fetches() != 1 {
			t.Errorf("call %d: fetches = %d; want 1", i+1, p.Fetches())
		}
	}

	_, err := p.DiscoverAll(context.Background(), []string{searchURL, searchURL})
	require.NoError(t, err)
	if p.Fetches() != 2 {
		t.Errorf("DiscoverAll fetches = %d; want 2", p.Fetches())
	}
}

func TestDiscoverIgnoresPastedOffset(t *testing.T) {
	pasted := pageAt(t, searchURL, 48)
	firstPage, err := withoutOffset(pasted)
	require.NoError(t, err)

	f := &fakeFetcher{pages: map[string]string{
		firstPage:                listingPage(idRange(1, 25)...),
		pageAt(t, searchURL, 24): listingPage(idRange(25, 30)...),
	}}
	p := newTestPaginator(t, f, 0)

	links, err := p.Discover(context.Background(), pasted)
	require.NoError(t, err)

	require.Equal(t, []string{firstPage, pageAt(t, searchURL, 24)}, f.requested)
	if len(links) != 29 {
		t.Errorf("links: got %d, want 29", len(links))
	}
}

func TestWithoutOffset(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{searchURL, searchURL},
		{searchURL + "&index=72", "https://www.rightmove.co.uk/property-to-rent/find.html?locationIdentifier=REGION%5E93598"},
	}
	for _, tt := range tests {
		got, err := withoutOffset(tt.in)
		require.NoError(t, err)
		if got != tt.want {
			t.Errorf("withoutOffset(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}
