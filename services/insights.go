package services

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"rightmove-scraper/models"
	"rightmove-scraper/utils"
)

// InsightReport summarises a snapshot and the run that produced it.
type InsightReport struct {
	Status    Status
	TotalRows int
	Added     int
	Retained  int
	Dropped   int
	Failed    int

	PricedRows    int
	AveragePrice  float64
	MinPrice      float64
	MaxPrice      float64
	MostExpensive *models.Record

	AvailableNow     int
	UnknownAvailable int
	RowsByLocation   map[string]int
}

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate builds a report for t. res may be nil when only the snapshot is
// of interest. asOf decides which offers count as available now.
func (s *InsightService) Generate(t *models.Table, res *Result, asOf models.Date) *InsightReport {
	report := &InsightReport{RowsByLocation: make(map[string]int)}
	if res != nil {
		report.Status = res.Status
		report.Added = res.Added
		report.Retained = res.Retained
		report.Dropped = res.Dropped
		report.Failed = len(res.Failed)
	}
	if t.Len() == 0 {
		return report
	}
	report.TotalRows = t.Len()

	var total float64
	for i := range t.Rows {
		r := &t.Rows[i]

		if price, ok := monthlyPrice(r.Price); ok {
			if report.PricedRows == 0 || price < report.MinPrice {
				report.MinPrice = price
			}
			if report.PricedRows == 0 || price > report.MaxPrice {
				report.MaxPrice = price
				report.MostExpensive = r
			}
			total += price
			report.PricedRows++
		}

		switch {
		case !r.AvailableFrom.Valid():
			report.UnknownAvailable++
		case !r.AvailableFrom.After(asOf):
			report.AvailableNow++
		}

		if r.Location != "" && r.Location != models.NotAvailable {
			report.RowsByLocation[r.Location]++
		}
	}

	if report.PricedRows > 0 {
		report.AveragePrice = round2(total / float64(report.PricedRows))
	}
	s.logger.Debug("[insights] %d rows, %d priced, %d locations",
		report.TotalRows, report.PricedRows, len(report.RowsByLocation))
	return report
}

// Print renders the report as console tables.
func (s *InsightService) Print(w io.Writer, r *InsightReport) {
	run := table.NewWriter()
	run.SetOutputMirror(w)
	run.SetTitle("Snapshot")
	run.AppendRows([]table.Row{
		{"Status", r.Status.String()},
		{"Rows", r.TotalRows},
		{"New offers", r.Added},
		{"Retained", r.Retained},
		{"Dropped", r.Dropped},
		{"Failed", r.Failed},
		{"Available now", r.AvailableNow},
		{"Availability unknown", r.UnknownAvailable},
	})
	run.SetStyle(table.StyleRounded)
	run.Render()

	prices := table.NewWriter()
	prices.SetOutputMirror(w)
	prices.SetTitle("Monthly rent")
	if r.PricedRows == 0 {
		prices.AppendRow(table.Row{"No price data available"})
	} else {
		prices.AppendRows([]table.Row{
			{"Priced offers", r.PricedRows},
			{"Average", fmt.Sprintf("£%.2f", r.AveragePrice)},
			{"Minimum", fmt.Sprintf("£%.2f", r.MinPrice)},
			{"Maximum", fmt.Sprintf("£%.2f", r.MaxPrice)},
		})
		if r.MostExpensive != nil {
			prices.AppendRow(table.Row{"Most expensive", truncate(string(r.MostExpensive.URL), 60)})
		}
	}
	prices.SetStyle(table.StyleRounded)
	prices.Render()

	if len(r.RowsByLocation) == 0 {
		return
	}
	type locCount struct {
		loc   string
		count int
	}
	var locs []locCount
	for loc, cnt := range r.RowsByLocation {
		locs = append(locs, locCount{loc, cnt})
	}
	sort.Slice(locs, func(i, j int) bool {
		if locs[i].count != locs[j].count {
			return locs[i].count > locs[j].count
		}
		return locs[i].loc < locs[j].loc
	})

	byLoc := table.NewWriter()
	byLoc.SetOutputMirror(w)
	byLoc.SetTitle("Offers by location")
	byLoc.AppendHeader(table.Row{"Location", "Offers"})
	for _, lc := range locs {
		byLoc.AppendRow(table.Row{truncate(lc.loc, 40), lc.count})
	}
	byLoc.SetStyle(table.StyleRounded)
	byLoc.Render()
}

// monthlyPrice reads a cleaned price cell; sentinels and text are skipped.
func monthlyPrice(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

// truncate shortens s to max runes, marking the cut with "...".
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
