package rightmove

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"rightmove-scraper/models"
	"rightmove-scraper/scraper"
	"rightmove-scraper/utils"
)

// Pagination defaults for rightmove search results.
const (
	DefaultPageSize   = 24
	DefaultDetailPath = "/properties/"
	DefaultBaseURL    = "https://www.rightmove.co.uk"
	OffsetParam       = "index"
)

// PaginatorOptions configures discovery.
type PaginatorOptions struct {
	PageSize int
	// MaxPages bounds the number of result pages per listing; 0 is unbounded.
	MaxPages   int
	DetailPath string
	BaseURL    string
}

// Paginator walks a search listing page by page and collects detail links.
type Paginator struct {
	fetcher scraper.Fetcher
	logger  *utils.Logger
	opts    PaginatorOptions
	base    *url.URL
	fetches int
}

func NewPaginator(fetcher scraper.Fetcher, opts PaginatorOptions, logger *utils.Logger) (*Paginator, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.DetailPath == "" {
		opts.DetailPath = DefaultDetailPath
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("paginator: invalid base url: %w", err)
	}
	return &Paginator{fetcher: fetcher, logger: logger, opts: opts, base: base}, nil
}

// Fetches returns the number of result pages fetched by the last Discover or
// DiscoverAll call.
func (p *Paginator) Fetches() int { return p.fetches }

// Discover returns the sorted, de-duplicated detail links of one listing.
func (p *Paginator) Discover(ctx context.Context, listingURL string) ([]models.DetailLink, error) {
	p.fetches = 0
	set := utils.NewURLSet()
	if err := p.discoverInto(ctx, listingURL, set); err != nil {
		return nil, err
	}
	return toLinks(set.Sorted()), nil
}

// DiscoverAll discovers each listing independently and returns the union.
func (p *Paginator) DiscoverAll(ctx context.Context, listingURLs []string) ([]models.DetailLink, error) {
	p.fetches = 0
	set := utils.NewURLSet()
	for _, u := range listingURLs {
		if err := p.discoverInto(ctx, u, set); err != nil {
			return nil, err
		}
	}
	return toLinks(set.Sorted()), nil
}

func (p *Paginator) discoverInto(ctx context.Context, listingURL string, set *utils.URLSet) error {
	listingURL, err := withoutOffset(listingURL)
	if err != nil {
		return fmt.Errorf("paginator: %w", err)
	}

	for page := 0; ; page++ {
		target := listingURL
		if page > 0 {
			var err error
			target, err = withOffset(listingURL, page*p.opts.PageSize)
			if err != nil {
				return fmt.Errorf("paginator: %w", err)
			}
		}

		doc, err := p.fetcher.Fetch(ctx, target)
		p.fetches++
		if err != nil {
			return err
		}

		links := p.pageLinks(doc)
		added := 0
		for _, l := range links {
			if set.Add(l) {
				added++
			}
		}
		p.logger.Debug("[paginator] Page %d: %d links (%d new) from %s", page+1, len(links), added, target)

		if len(links) < p.opts.PageSize {
			p.logger.Info("[paginator] Listing exhausted after %d page(s), %d links in total", page+1, set.Size())
			return nil
		}
		if p.opts.MaxPages > 0 && page+1 >= p.opts.MaxPages {
			p.logger.Warn("[paginator] Stopping at page limit %d for %s", p.opts.MaxPages, listingURL)
			return nil
		}
	}
}

// pageLinks returns the unique detail links on one result page, in page order.
func (p *Paginator) pageLinks(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var links []string

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.Contains(href, p.opts.DetailPath) {
			return
		}
		abs, ok := p.absolute(href)
		if !ok {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links
}

// absolute resolves href against the base URL and drops any fragment.
func (p *Paginator) absolute(href string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	u := p.base.ResolveReference(ref)
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), true
}

// withOffset sets the result offset query parameter on a listing URL.
func withOffset(listingURL string, offset int) (string, error) {
	u, err := url.Parse(listingURL)
	if err != nil {
		return "", fmt.Errorf("invalid listing url %q: %w", listingURL, err)
	}
	q := u.Query()
	q.Set(OffsetParam, strconv.Itoa(offset))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// withoutOffset drops an offset a pasted search URL may already carry, so
// discovery always starts at the first page. URLs without one are returned
// unchanged.
func withoutOffset(listingURL string) (string, error) {
	u, err := url.Parse(listingURL)
	if err != nil {
		return "", fmt.Errorf("invalid listing url %q: %w", listingURL, err)
	}
	q := u.Query()
	if !q.Has(OffsetParam) {
		return listingURL, nil
	}
	q.Del(OffsetParam)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func toLinks(urls []string) []models.DetailLink {
	out := make([]models.DetailLink, len(urls))
	for i, u := range urls {
		out[i] = models.DetailLink(u)
	}
	return out
}
