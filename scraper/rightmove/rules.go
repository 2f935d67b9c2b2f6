package rightmove

import (
	"time"

	"rightmove-scraper/models"
)

// Field names used by the rule table.
const (
	FieldPrice           = "price"
	FieldAvailableFrom   = "available_from"
	FieldLocation        = "location"
	FieldDateAddedOnline = "date_added_online"
	FieldAgency          = "agency"
	FieldPropertyType    = "property_type"
	FieldBedrooms        = "bedrooms"
	FieldLetTerm         = "let_term"
	FieldFurnished       = "furnished"
)

// Markers on the detail page. Bedrooms share the property-type marker and
// furnished shares the let-term marker; the ordinal tells them apart.
const (
	LocationSelector     = `h2[itemprop="streetAddress"]`
	DateAddedSelector    = `div._2nk2x6QhNB1UrxdI5KpvaF`
	AgencySelector       = `h3._3PpywCmRYxC0B-ShNWxstv`
	PropertyInfoSelector = `div._1fcftXUEbWfJOJzIUeIHKt`
	LettingInfoSelector  = `div._2RnXSVJcWbWv4IpBC1Sng6`
)

// Rule selects one field from a detail page.
type Rule struct {
	Field string

	// Anchor scopes the search to the first element it matches. A Required
	// rule fails extraction when the anchor is missing.
	Anchor   string
	Required bool

	Selector string
	// Contains keeps only elements whose scrubbed text contains it.
	Contains string
	// Ordinal picks among the remaining matches, zero-based.
	Ordinal int

	// Transform post-processes the scrubbed text. Nil keeps it as is.
	Transform func(text string, today time.Time) string
	// Fallback is used when no element matches.
	Fallback string

	Extended bool
}

func normalizeDateRule(text string, today time.Time) string { return NormalizeDate(text, today) }

func cleanPriceRule(text string, _ time.Time) string {
	if p := CleanPrice(text); p != "" {
		return p
	}
	return models.NotAvailable
}

func pickLocationRule(text string, _ time.Time) string { return PickLocation(text) }

// DefaultRules is the rule table for rightmove rental detail pages.
func DefaultRules() []Rule {
	return []Rule{
		{
			Field:     FieldPrice,
			Selector:  "span",
			Contains:  PerMonthMarker,
			Transform: cleanPriceRule,
			Fallback:  models.NotAvailable,
		},
		{
			Field:     FieldAvailableFrom,
			Anchor:    "dl",
			Required:  true,
			Selector:  "dd",
			Transform: normalizeDateRule,
			Fallback:  models.DateSentinel,
		},
		{
			Field:     FieldLocation,
			Selector:  LocationSelector,
			Transform: pickLocationRule,
			Fallback:  models.NotAvailable,
		},
		{
			Field:     FieldDateAddedOnline,
			Selector:  DateAddedSelector,
			Transform: normalizeDateRule,
			Fallback:  models.DateSentinel,
			Extended:  true,
		},
		{Field: FieldAgency, Selector: AgencySelector, Extended: true},
		{Field: FieldPropertyType, Selector: PropertyInfoSelector, Ordinal: 0, Extended: true},
		{Field: FieldBedrooms, Selector: PropertyInfoSelector, Ordinal: 1, Extended: true},
		{Field: FieldLetTerm, Selector: LettingInfoSelector, Ordinal: 0, Extended: true},
		{Field: FieldFurnished, Selector: LettingInfoSelector, Ordinal: 1, Extended: true},
	}
}
