package search

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"property-search/internal/apiclient"
)

// FloorPlans are the selectable layouts, in display order.
var FloorPlans = []string{"1K", "1DK", "1LDK", "2K", "2DK", "2LDK", "3K", "3DK", "3LDK"}

// Form is the search form as typed by the user. Values stay strings so a page
// can be re-rendered with exactly what was entered.
type Form struct {
	Station   string `form:"station" json:"station" validate:"max=100"`
	MinRent   string `form:"min_rent" json:"min_rent" validate:"omitempty,number,max=9"`
	MaxRent   string `form:"max_rent" json:"max_rent" validate:"omitempty,number,max=9"`
	FloorPlan string `form:"floor_plan" json:"floor_plan" validate:"omitempty,oneof=1K 1DK 1LDK 2K 2DK 2LDK 3K 3DK 3LDK"`
}

// FormFromQuery reads the navigable URL parameters. Surrounding whitespace is dropped.
func FormFromQuery(q url.Values) Form {
	return Form{
		Station:   strings.TrimSpace(q.Get("station")),
		MinRent:   strings.TrimSpace(q.Get("min_rent")),
		MaxRent:   strings.TrimSpace(q.Get("max_rent")),
		FloorPlan: strings.TrimSpace(q.Get("floor_plan")),
	}
}

// Normalize trims every field.
func (f Form) Normalize() Form {
	return Form{
		Station:   strings.TrimSpace(f.Station),
		MinRent:   strings.TrimSpace(f.MinRent),
		MaxRent:   strings.TrimSpace(f.MaxRent),
		FloorPlan: strings.TrimSpace(f.FloorPlan),
	}
}

// IsEmpty reports whether no filter is set.
func (f Form) IsEmpty() bool {
	return f.Station == "" && f.MinRent == "" && f.MaxRent == "" && f.FloorPlan == ""
}

// NavigableURL returns the address of the search page for f. Parameters appear in the order
// station, min_rent, max_rent, floor_plan and empty ones are left out. Non-ASCII text stays
// readable (新宿 is not percent-encoded); ASCII delimiters are escaped.
func (f Form) NavigableURL() string {
	var b strings.Builder
	b.WriteString("/properties")

	sep := byte('?')
	add := func(key, value string) {
		if value == "" {
			return
		}
		b.WriteByte(sep)
		sep = '&'
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(escapeIRI(value))
	}
	add("station", f.Station)
	add("min_rent", f.MinRent)
	add("max_rent", f.MaxRent)
	add("floor_plan", f.FloorPlan)
	return b.String()
}

// escapeIRI percent-encodes ASCII outside the unreserved set and invalid UTF-8,
// leaving other characters as they are.
func escapeIRI(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == utf8.RuneError && size <= 1:
			c := s[i]
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0F])
		case r >= utf8.RuneSelf:
			b.WriteString(s[i : i+size])
		case isUnreserved(byte(r)):
			b.WriteByte(byte(r))
		default:
			c := byte(r)
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0F])
		}
		i += size
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

// Filters converts the form into backend filters. Blank fields stay nil; a rent that does
// not parse is dropped, so call Validate first when the input is untrusted.
func (f Form) Filters() apiclient.PropertyFilters {
	var filters apiclient.PropertyFilters
	if f.Station != "" {
		filters.Station = apiclient.String(f.Station)
	}
	if n, err := strconv.Atoi(f.MinRent); err == nil {
		filters.MinRent = apiclient.Int(n)
	}
	if n, err := strconv.Atoi(f.MaxRent); err == nil {
		filters.MaxRent = apiclient.Int(n)
	}
	if f.FloorPlan != "" {
		filters.FloorPlan = apiclient.String(f.FloorPlan)
	}
	return filters
}

// FieldErrors maps a form field (station, min_rent, ...) to a message for the user.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, fe[k]))
	}
	return "invalid search form: " + strings.Join(parts, ", ")
}

var validate = validator.New()

var fieldMessages = map[string]string{
	"Station":   "駅名は100文字以内で入力してください",
	"MinRent":   "最低賃料は0以上の整数で入力してください",
	"MaxRent":   "最高賃料は0以上の整数で入力してください",
	"FloorPlan": "間取りを選択肢から選んでください",
}

var fieldKeys = map[string]string{
	"Station":   "station",
	"MinRent":   "min_rent",
	"MaxRent":   "max_rent",
	"FloorPlan": "floor_plan",
}

// Validate checks the form. It returns nil or a FieldErrors.
func (f Form) Validate() error {
	errs := FieldErrors{}

	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate search form: %w", err)
		}
		for _, fe := range verrs {
			errs[fieldKeys[fe.Field()]] = fieldMessages[fe.Field()]
		}
	}

	if _, bad := errs["min_rent"]; !bad && f.MinRent != "" {
		if _, bad := errs["max_rent"]; !bad && f.MaxRent != "" {
			minRent, _ := strconv.Atoi(f.MinRent)
			maxRent, _ := strconv.Atoi(f.MaxRent)
			if minRent > maxRent {
				errs["max_rent"] = "最高賃料は最低賃料以上にしてください"
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
