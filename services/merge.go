package services

import (
	"sort"

	"rightmove-scraper/models"
	"rightmove-scraper/utils"
)

// Plan is the reconciliation of one discovery run against the previous
// snapshot.
type Plan struct {
	// Fresh is set when there was no previous snapshot to merge into.
	Fresh bool
	// Retained holds previous rows still listed, in their previous order.
	Retained []models.Record
	// ToScrape holds discovered links absent from the previous snapshot.
	ToScrape []models.DetailLink
	// Dropped holds previous links that are no longer listed.
	Dropped []models.DetailLink
}

// NoNewOffers reports that an existing snapshot already covers every
// discovered link, so nothing is scraped and nothing is written.
func (p Plan) NoNewOffers() bool {
	return !p.Fresh && len(p.ToScrape) == 0
}

// MergeEngine computes merge plans and assembles the merged table.
type MergeEngine struct {
	logger *utils.Logger
}

func NewMergeEngine(logger *utils.Logger) *MergeEngine {
	return &MergeEngine{logger: logger}
}

// Plan partitions the previous snapshot against the discovered links.
// previous may be nil. ToScrape is in sorted URL order.
func (m *MergeEngine) Plan(discovered []models.DetailLink, previous *models.Table) Plan {
	want := make(map[models.DetailLink]struct{}, len(discovered))
	for _, l := range discovered {
		want[l] = struct{}{}
	}

	if previous == nil {
		plan := Plan{Fresh: true, ToScrape: sortedLinks(want)}
		m.logger.Info("[merge] No previous snapshot, scraping all %d links", len(plan.ToScrape))
		return plan
	}

	var plan Plan
	for _, r := range previous.Rows {
		if _, ok := want[r.URL]; ok {
			plan.Retained = append(plan.Retained, r)
		} else {
			plan.Dropped = append(plan.Dropped, r.URL)
		}
	}

	have := previous.URLSet()
	todo := make(map[models.DetailLink]struct{})
	for l := range want {
		if _, ok := have[l]; !ok {
			todo[l] = struct{}{}
		}
	}
	plan.ToScrape = sortedLinks(todo)

	m.logger.Info("[merge] %d retained | %d new | %d dropped",
		len(plan.Retained), len(plan.ToScrape), len(plan.Dropped))
	return plan
}

// Assemble concatenates retained and freshly scraped rows and sorts the
// result by availability date, newest first, sentinel last. Ties keep the
// concatenation order.
func (m *MergeEngine) Assemble(mode models.Mode, retained, fresh []models.Record) *models.Table {
	rows := make([]models.Record, 0, len(retained)+len(fresh))
	rows = append(rows, retained...)
	rows = append(rows, fresh...)

	table := models.NewTable(mode, rows)
	table.SortByAvailability()
	return table
}

func sortedLinks(set map[models.DetailLink]struct{}) []models.DetailLink {
	out := make([]models.DetailLink, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
