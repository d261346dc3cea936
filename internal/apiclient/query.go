package apiclient

import (
	"net/url"
	"strconv"
	"strings"
)

// PropertyFilters narrows a property listing. A nil field is not sent at all.
// MinRent and MaxRent are inclusive bounds in yen.
type PropertyFilters struct {
	Station   *string
	MinRent   *int
	MaxRent   *int
	FloorPlan *string
	Skip      *int
	Limit     *int
}

// Encode renders the present filters as a query string in a fixed key order
// (station, min_rent, max_rent, floor_plan, skip, limit). It returns "" when no filter is set.
func (f PropertyFilters) Encode() string {
	var b strings.Builder
	add := func(key, value string) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(value))
	}

	if f.Station != nil {
		add("station", *f.Station)
	}
	if f.MinRent != nil {
		add("min_rent", strconv.Itoa(*f.MinRent))
	}
	if f.MaxRent != nil {
		add("max_rent", strconv.Itoa(*f.MaxRent))
	}
	if f.FloorPlan != nil {
		add("floor_plan", *f.FloorPlan)
	}
	if f.Skip != nil {
		add("skip", strconv.Itoa(*f.Skip))
	}
	if f.Limit != nil {
		add("limit", strconv.Itoa(*f.Limit))
	}
	return b.String()
}

// String and Int return pointers for building filters inline.
func String(s string) *string { return &s }
func Int(n int) *int          { return &n }
