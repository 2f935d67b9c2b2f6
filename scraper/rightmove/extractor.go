package rightmove

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"rightmove-scraper/models"
)

// ExtractionError means a detail page lacks a required structural anchor.
type ExtractionError struct {
	Field  string
	Anchor string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: page has no <%s> element", e.Field, e.Anchor)
}

// Extractor turns a detail page into a Record using a rule table.
type Extractor struct {
	mode  models.Mode
	rules []Rule
	now   func() time.Time
}

// NewExtractor uses DefaultRules. now supplies the run date and may be nil.
func NewExtractor(mode models.Mode, now func() time.Time) *Extractor {
	return NewExtractorWithRules(mode, DefaultRules(), now)
}

func NewExtractorWithRules(mode models.Mode, rules []Rule, now func() time.Time) *Extractor {
	if now == nil {
		now = time.Now
	}
	return &Extractor{mode: mode, rules: rules, now: now}
}

// Extract applies every rule for the extractor's mode. The URL and the
// snapshot date are left for the caller to fill in.
func (e *Extractor) Extract(doc *goquery.Document) (models.Record, error) {
	today := e.now()
	fields := make(map[string]string, len(e.rules))

	for _, rule := range e.rules {
		if rule.Extended && e.mode != models.ModeExtended {
			continue
		}
		val, err := ApplyRule(doc.Selection, rule, today)
		if err != nil {
			return models.Record{}, err
		}
		fields[rule.Field] = val
	}

	return models.Record{
		Price:           fields[FieldPrice],
		AvailableFrom:   models.ParseDate(fields[FieldAvailableFrom]),
		PropertyType:    fields[FieldPropertyType],
		Bedrooms:        fields[FieldBedrooms],
		Location:        fields[FieldLocation],
		Furnished:       fields[FieldFurnished],
		LetTerm:         fields[FieldLetTerm],
		DateAddedOnline: models.ParseDate(fields[FieldDateAddedOnline]),
		Agency:          fields[FieldAgency],
	}, nil
}

// ApplyRule evaluates a single rule against root.
func ApplyRule(root *goquery.Selection, rule Rule, today time.Time) (string, error) {
	scope := root
	if rule.Anchor != "" {
		scope = root.Find(rule.Anchor).First()
		if scope.Length() == 0 {
			if rule.Required {
				return "", &ExtractionError{Field: rule.Field, Anchor: rule.Anchor}
			}
			return rule.Fallback, nil
		}
	}

	matches := scope.Find(rule.Selector)
	if rule.Contains != "" {
		matches = matches.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.Contains(scrubSelection(s), rule.Contains)
		})
	}
	if rule.Ordinal >= matches.Length() {
		return rule.Fallback, nil
	}

	text := scrubSelection(matches.Eq(rule.Ordinal))
	if rule.Transform != nil {
		text = rule.Transform(text, today)
	}
	return text, nil
}
