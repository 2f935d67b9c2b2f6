package services

import (
	"strings"

	"rightmove-scraper/models"
	"rightmove-scraper/utils"
)

// Cleaner tidies the structure of a snapshot read back from storage.
// Snapshots are often opened in a spreadsheet between runs, so URLs may pick
// up stray whitespace and rows may be blanked or duplicated. Cell values are
// never rewritten: a retained row keeps exactly what it was saved with.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean returns a copy of t with URLs trimmed, rows without a URL removed
// and duplicate URLs collapsed to their first occurrence. Row order is kept.
func (c *Cleaner) Clean(t *models.Table) *models.Table {
	if t == nil {
		return nil
	}

	seen := make(map[models.DetailLink]struct{}, t.Len())
	rows := make([]models.Record, 0, t.Len())

	for _, r := range t.Rows {
		url := models.DetailLink(strings.TrimSpace(string(r.URL)))
		if url == "" {
			c.logger.Warn("[cleaner] Dropping snapshot row with empty URL (price %q)", r.Price)
			continue
		}
		if _, dup := seen[url]; dup {
			c.logger.Debug("[cleaner] Duplicate URL skipped: %s", url)
			continue
		}
		seen[url] = struct{}{}

		r.URL = url
		rows = append(rows, r)
	}

	if dropped := t.Len() - len(rows); dropped > 0 {
		c.logger.Info("[cleaner] Cleaned %d → %d snapshot rows (dropped %d)", t.Len(), len(rows), dropped)
	}
	return &models.Table{Mode: t.Mode, Rows: rows}
}
