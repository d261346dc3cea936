// Package search keeps the state behind the property search page.
package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"property-search/internal/apiclient"
	"property-search/internal/logging"
	"property-search/internal/metrics"
	"property-search/internal/models"
)

// FetchErrorMessage is shown above the results when a search fails.
const FetchErrorMessage = "物件データの取得中にエラーが発生しました"

// ErrSuperseded is returned by Submit when a newer submit replaced it before it finished.
var ErrSuperseded = errors.New("search superseded by a newer submit")

// Lister is the part of the backend client the controller needs.
type Lister interface {
	ListProperties(ctx context.Context, filters apiclient.PropertyFilters) ([]models.Property, error)
}

// State is a copy of the controller state taken for rendering.
type State struct {
	Form       Form
	Properties []models.Property
	Loading    bool
	Err        string
	Searched   bool // at least one search has succeeded
	FetchedAt  time.Time
}

// Controller owns the search form, the last results and the loading/error flags of one view.
// A failed search keeps the previous results visible next to the error.
type Controller struct {
	client Lister

	mu     sync.Mutex
	state  State
	seq    uint64
	cancel context.CancelFunc
}

func NewController(client Lister) *Controller {
	return &Controller{client: client}
}

// Submit runs a search for form and records the outcome. Only the latest submit may write
// results; an older one still in flight is cancelled and its outcome discarded.
func (c *Controller) Submit(ctx context.Context, form Form) error {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	if c.cancel != nil {
		c.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state.Loading = true
	c.state.Err = ""
	c.state.Form = form
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		if c.seq == seq {
			c.state.Loading = false
			c.cancel = nil
		}
		c.mu.Unlock()
	}()

	properties, err := c.client.ListProperties(fetchCtx, form.Filters())

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seq != seq {
		metrics.SearchSubmits.WithLabelValues("superseded").Inc()
		return ErrSuperseded
	}
	if err != nil {
		metrics.SearchSubmits.WithLabelValues("error").Inc()
		logging.FromContext(ctx).Error("property search failed",
			"component", "search", "url", form.NavigableURL(), "error", err)
		c.state.Err = FetchErrorMessage
		return err
	}

	metrics.SearchSubmits.WithLabelValues("success").Inc()
	c.state.Properties = properties
	c.state.Searched = true
	c.state.FetchedAt = time.Now()
	return nil
}

// Snapshot returns the current state. The property slice is copied.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	s.Properties = append([]models.Property(nil), c.state.Properties...)
	return s
}

// SetForm records form without fetching, used when the input failed validation.
func (c *Controller) SetForm(form Form) {
	c.mu.Lock()
	c.state.Form = form
	c.mu.Unlock()
}
