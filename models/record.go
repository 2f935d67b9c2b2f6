package models

import (
	"strings"
	"time"
)

// Fallback values written in place of missing or unparseable data.
const (
	NotAvailable = "N/A"
	DateSentinel = "NaN"
)

// DateLayout is the canonical DD/MM/YYYY rendering used for storage and display.
const DateLayout = "02/01/2006"

// dateParseLayout also accepts single-digit days and months.
const dateParseLayout = "2/1/2006"

// DetailLink is the absolute URL of one offer's detail page. It is the join
// key between discovery runs and the persisted snapshot.
type DetailLink string

// Date is a calendar date or the NaN sentinel.
type Date struct {
	t     time.Time
	valid bool
}

// NewDate truncates t to its calendar date.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), valid: true}
}

// ParseDate reads DD/MM/YYYY text. Anything else yields the sentinel.
func ParseDate(s string) Date {
	s = strings.TrimSpace(s)
	if s == "" || s == DateSentinel {
		return Date{}
	}
	t, err := time.Parse(dateParseLayout, s)
	if err != nil {
		return Date{}
	}
	return Date{t: t, valid: true}
}

func (d Date) Valid() bool { return d.valid }

// Equal reports whether both dates are the same day or both the sentinel.
func (d Date) Equal(o Date) bool {
	return d.valid == o.valid && d.t.Equal(o.t)
}

func (d Date) String() string {
	if !d.valid {
		return DateSentinel
	}
	return d.t.Format(DateLayout)
}

// After orders dates newest first with the sentinel behind every real date.
func (d Date) After(o Date) bool {
	switch {
	case d.valid && !o.valid:
		return true
	case !d.valid:
		return false
	default:
		return d.t.After(o.t)
	}
}

// Record is one row of the snapshot table.
type Record struct {
	URL             DetailLink
	Price           string
	AvailableFrom   Date
	PropertyType    string
	Bedrooms        string
	Location        string
	Furnished       string
	LetTerm         string
	DateAddedOnline Date
	Agency          string

	// DateAddedToSnapshot is assigned once, on first observation.
	DateAddedToSnapshot Date
}

// Mode selects which columns a snapshot carries.
type Mode int

const (
	ModeMinimal Mode = iota
	ModeExtended
)

func (m Mode) String() string {
	if m == ModeExtended {
		return "extended"
	}
	return "minimal"
}

// Column names as they appear in the snapshot header.
const (
	ColURL             = "URL"
	ColPrice           = "Price"
	ColAvailableFrom   = "Available from"
	ColPropertyType    = "Property type"
	ColBedrooms        = "Bedrooms"
	ColLocation        = "Location"
	ColFurnished       = "Furnished"
	ColLetTerm         = "Let term"
	ColDateAddedOnline = "Date added online"
	ColAgency          = "Agency"
	ColAddedDatabase   = "Date added to database"
	ColAddedSheet      = "Date added to spreadsheet"
)

// Columns returns the header for the given mode.
func Columns(m Mode) []string {
	if m == ModeExtended {
		return []string{
			ColURL, ColPrice, ColAvailableFrom, ColPropertyType, ColBedrooms,
			ColLocation, ColFurnished, ColLetTerm, ColDateAddedOnline, ColAgency,
			ColAddedSheet,
		}
	}
	return []string{ColURL, ColPrice, ColAvailableFrom, ColLocation, ColAddedDatabase}
}

// Values renders the record in Columns(m) order.
func (r Record) Values(m Mode) []string {
	if m == ModeExtended {
		return []string{
			string(r.URL), r.Price, r.AvailableFrom.String(), r.PropertyType,
			r.Bedrooms, r.Location, r.Furnished, r.LetTerm,
			r.DateAddedOnline.String(), r.Agency, r.DateAddedToSnapshot.String(),
		}
	}
	return []string{
		string(r.URL), r.Price, r.AvailableFrom.String(), r.Location,
		r.DateAddedToSnapshot.String(),
	}
}

// RecordFromValues is the inverse of Values. byName maps column name to cell.
func RecordFromValues(byName map[string]string) Record {
	added := byName[ColAddedSheet]
	if v, ok := byName[ColAddedDatabase]; ok {
		added = v
	}
	return Record{
		URL:                 DetailLink(byName[ColURL]),
		Price:               byName[ColPrice],
		AvailableFrom:       ParseDate(byName[ColAvailableFrom]),
		PropertyType:        byName[ColPropertyType],
		Bedrooms:            byName[ColBedrooms],
		Location:            byName[ColLocation],
		Furnished:           byName[ColFurnished],
		LetTerm:             byName[ColLetTerm],
		DateAddedOnline:     ParseDate(byName[ColDateAddedOnline]),
		Agency:              byName[ColAgency],
		DateAddedToSnapshot: ParseDate(added),
	}
}
