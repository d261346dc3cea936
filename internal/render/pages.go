package render

import (
	"time"

	"property-search/internal/models"
	"property-search/internal/search"
)

// Base is shared by every page.
type Base struct {
	Title   string
	Offline bool
}

type HomePage struct {
	Base
}

type SearchPage struct {
	Base
	State       search.State
	Form        search.Form
	FieldErrors search.FieldErrors
	FloorPlans  []string
}

type DetailPage struct {
	Base
	Detail *models.PropertyDetail
	Err    string
	Now    time.Time
}

// ErrorPage is the fallback shown after an uncaught error.
type ErrorPage struct {
	Base
	Message   string
	ReloadURL string
}

// NotFoundPage is rendered for unknown routes.
type NotFoundPage struct {
	Base
}
