package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"rightmove-scraper/models"
	"rightmove-scraper/scraper"
	"rightmove-scraper/scraper/rightmove"
	"rightmove-scraper/storage"
	"rightmove-scraper/utils"
)

// Status is the outcome of a run that did not fail.
type Status int

const (
	StatusWritten Status = iota
	StatusNoNewOffers
)

func (s Status) String() string {
	if s == StatusNoNewOffers {
		return "no new offers"
	}
	return "written"
}

// Failure is a detail page that could not be scraped.
type Failure struct {
	URL models.DetailLink
	Err error
}

// Result summarises one run.
type Result struct {
	Status     Status
	Table      *models.Table
	Discovered int
	Added      int
	Retained   int
	Dropped    int
	Failed     []Failure
}

// LinkDiscoverer finds the detail links of one or more search listings.
type LinkDiscoverer interface {
	DiscoverAll(ctx context.Context, listingURLs []string) ([]models.DetailLink, error)
}

type PipelineOptions struct {
	Mode models.Mode
	// Concurrency is the number of detail pages fetched at once; 1 or less is
	// sequential.
	Concurrency int
	// SkipFailed records per-page fetch and extraction failures instead of
	// aborting the run.
	SkipFailed bool
	Overwrite  bool
	// Now supplies the run date; nil means time.Now.
	Now func() time.Time
}

// Pipeline runs discover, plan, extract, assemble and save.
type Pipeline struct {
	discoverer LinkDiscoverer
	fetcher    scraper.Fetcher
	extractor  *rightmove.Extractor
	merge      *MergeEngine
	cleaner    *Cleaner
	store      storage.SnapshotStore
	opts       PipelineOptions
	logger     *utils.Logger
}

func NewPipeline(
	discoverer LinkDiscoverer,
	fetcher scraper.Fetcher,
	store storage.SnapshotStore,
	opts PipelineOptions,
	logger *utils.Logger,
) *Pipeline {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{
		discoverer: discoverer,
		fetcher:    fetcher,
		extractor:  rightmove.NewExtractor(opts.Mode, opts.Now),
		merge:      NewMergeEngine(logger),
		cleaner:    NewCleaner(logger),
		store:      store,
		opts:       opts,
		logger:     logger,
	}
}

// Run performs one incremental update of the snapshot. When no new links
// were discovered it returns StatusNoNewOffers and leaves the store alone.
func (p *Pipeline) Run(ctx context.Context, listingURLs []string) (*Result, error) {
	runDate := models.NewDate(p.opts.Now())

	links, err := p.discoverer.DiscoverAll(ctx, listingURLs)
	if err != nil {
		return nil, fmt.Errorf("pipeline: discover: %w", err)
	}
	p.logger.Info("[pipeline] Discovered %d offers across %d listing(s)", len(links), len(listingURLs))

	previous, err := p.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load snapshot: %w", err)
	}
	previous = p.cleaner.Clean(previous)

	plan := p.merge.Plan(links, previous)
	result := &Result{
		Discovered: len(links),
		Retained:   len(plan.Retained),
		Dropped:    len(plan.Dropped),
	}
	if plan.NoNewOffers() {
		p.logger.Info("[pipeline] No new offers, snapshot left unchanged")
		result.Status = StatusNoNewOffers
		result.Table = previous
		return result, nil
	}

	fresh, failed, err := p.extractAll(ctx, plan.ToScrape)
	if err != nil {
		return nil, err
	}
	for i := range fresh {
		fresh[i].DateAddedToSnapshot = runDate
	}
	result.Added = len(fresh)
	result.Failed = failed

	table := p.merge.Assemble(p.opts.Mode, plan.Retained, fresh)
	if err := p.store.Save(ctx, table, p.opts.Overwrite); err != nil {
		return nil, fmt.Errorf("pipeline: save snapshot: %w", err)
	}

	result.Status = StatusWritten
	result.Table = table
	p.logger.Info("[pipeline] Snapshot written: %d rows (%d new, %d retained, %d failed)",
		table.Len(), result.Added, result.Retained, len(failed))
	return result, nil
}

type outcome struct {
	rec models.Record
	err error
}

// extractAll scrapes links and returns the records in link order.
func (p *Pipeline) extractAll(ctx context.Context, links []models.DetailLink) ([]models.Record, []Failure, error) {
	outcomes := make([]outcome, len(links))

	workers := p.opts.Concurrency
	if workers <= 1 {
		for i, l := range links {
			rec, err := p.extractOne(ctx, i, len(links), l)
			outcomes[i] = outcome{rec: rec, err: err}
			if err != nil && !p.skippable(err) {
				return nil, nil, err
			}
		}
	} else {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var (
			mu       sync.Mutex
			firstErr error
		)
		pool := utils.NewWorkerPool(workers, nil)
		for i, l := range links {
			pool.Submit(ctx, func() {
				if ctx.Err() != nil {
					outcomes[i] = outcome{err: ctx.Err()}
					return
				}
				rec, err := p.extractOne(ctx, i, len(links), l)
				outcomes[i] = outcome{rec: rec, err: err}
				if err != nil && !p.skippable(err) {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
						cancel()
					}
					mu.Unlock()
				}
			})
		}
		pool.Wait()
		if firstErr != nil {
			return nil, nil, firstErr
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("pipeline: extraction interrupted: %w", err)
	}

	var (
		recs   []models.Record
		failed []Failure
	)
	for i, o := range outcomes {
		if o.err != nil {
			p.logger.Warn("[pipeline] Skipping %s: %v", links[i], o.err)
			failed = append(failed, Failure{URL: links[i], Err: o.err})
			continue
		}
		recs = append(recs, o.rec)
	}
	return recs, failed, nil
}

func (p *Pipeline) extractOne(ctx context.Context, i, total int, link models.DetailLink) (models.Record, error) {
	doc, err := p.fetcher.Fetch(ctx, string(link))
	if err != nil {
		return models.Record{}, fmt.Errorf("pipeline: fetch %s: %w", link, err)
	}
	rec, err := p.extractor.Extract(doc)
	if err != nil {
		return models.Record{}, fmt.Errorf("pipeline: extract %s: %w", link, err)
	}
	rec.URL = link
	p.logger.Debug("[pipeline] %d/%d scraped %s", i+1, total, link)
	return rec, nil
}

// skippable reports whether err only affects a single record and SkipFailed
// allows the run to continue without it.
func (p *Pipeline) skippable(err error) bool {
	if !p.opts.SkipFailed {
		return false
	}
	var fe *scraper.FetchError
	var ee *rightmove.ExtractionError
	return errors.As(err, &fe) || errors.As(err, &ee)
}
