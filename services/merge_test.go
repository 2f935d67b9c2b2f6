package services

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"rightmove-scraper/models"
)

func rec(id int, available, added string) models.Record {
	return models.Record{
		URL:                 link(id),
		Price:               "1000",
		AvailableFrom:       models.ParseDate(available),
		Location:            "Sometown",
		DateAddedToSnapshot: models.ParseDate(added),
	}
}

func urls(t *models.Table) []models.DetailLink {
	var out []models.DetailLink
	for _, r := range t.Rows {
		out = append(out, r.URL)
	}
	return out
}

func TestPlanWithoutPreviousScrapesEverything(t *testing.T) {
	m := NewMergeEngine(quietLogger())
	plan := m.Plan([]models.DetailLink{link(2), link(1)}, nil)

	if !plan.Fresh || plan.NoNewOffers() {
		t.Fatalf("expected a fresh plan, got %+v", plan)
	}
	if diff := cmp.Diff([]models.DetailLink{link(1), link(2)}, plan.ToScrape); diff != "" {
		t.Errorf("ToScrape (-want +got):\n%s", diff)
	}
}

func TestPlanDropAndAdd(t *testing.T) {
	m := NewMergeEngine(quietLogger())
	previous := models.NewTable(models.ModeMinimal, []models.Record{
		rec(1, "01/01/2025", "01/12/2024"),
		rec(2, "01/02/2025", "01/12/2024"),
	})

	plan := m.Plan([]models.DetailLink{link(1), link(3)}, previous)

	if plan.Fresh || plan.NoNewOffers() {
		t.Fatalf("unexpected plan flags: %+v", plan)
	}
	if len(plan.Retained) != 1 || plan.Retained[0].URL != link(1) {
		t.Errorf("Retained: got %v, want [%s]", plan.Retained, link(1))
	}
	if diff := cmp.Diff([]models.DetailLink{link(3)}, plan.ToScrape); diff != "" {
		t.Errorf("ToScrape (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]models.DetailLink{link(2)}, plan.Dropped); diff != "" {
		t.Errorf("Dropped (-want +got):\n%s", diff)
	}
	if plan.Retained[0].DateAddedToSnapshot.String() != "01/12/2024" {
		t.Errorf("retained row lost its added date: %s", plan.Retained[0].DateAddedToSnapshot)
	}
}

func TestPlanNoNewOffers(t *testing.T) {
	m := NewMergeEngine(quietLogger())
	previous := models.NewTable(models.ModeMinimal, []models.Record{
		rec(1, "01/01/2025", "01/12/2024"),
		rec(2, "01/02/2025", "01/12/2024"),
	})

	plan := m.Plan([]models.DetailLink{link(1)}, previous)
	if !plan.NoNewOffers() {
		t.Errorf("expected no new offers, got %+v", plan)
	}
}

func TestPlanEmptyPreviousTableIsNotFresh(t *testing.T) {
	m := NewMergeEngine(quietLogger())
	plan := m.Plan(nil, models.NewTable(models.ModeMinimal, nil))
	if !plan.NoNewOffers() {
		t.Errorf("empty discovery against an existing table should be a no-op: %+v", plan)
	}
}

func TestAssembleSortsByAvailability(t *testing.T) {
	m := NewMergeEngine(quietLogger())
	retained := []models.Record{rec(1, "NaN", "01/12/2024"), rec(2, "01/01/2025", "01/12/2024")}
	fresh := []models.Record{rec(3, "15/03/2025", "19/10/2026")}

	table := m.Assemble(models.ModeMinimal, retained, fresh)

	var got []string
	for _, r := range table.Rows {
		got = append(got, r.AvailableFrom.String())
	}
	want := []string{"15/03/2025", "01/01/2025", "NaN"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}

func TestAssembleTiesKeepRetainedFirst(t *testing.T) {
	m := NewMergeEngine(quietLogger())
	retained := []models.Record{rec(9, "01/01/2025", "01/12/2024"), rec(5, "01/01/2025", "01/12/2024")}
	fresh := []models.Record{rec(1, "01/01/2025", "19/10/2026"), rec(7, "NaN", "19/10/2026"), rec(2, "NaN", "19/10/2026")}

	table := m.Assemble(models.ModeMinimal, retained, fresh)

	want := []models.DetailLink{link(9), link(5), link(1), link(7), link(2)}
	if diff := cmp.Diff(want, urls(table)); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}
