// Package detail assembles the property detail view from one mandatory and two optional backend calls.
package detail

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"property-search/internal/boundary"
	"property-search/internal/logging"
	"property-search/internal/metrics"
	"property-search/internal/models"
)

// LoadErrorMessage is shown when the property itself could not be fetched.
const LoadErrorMessage = "物件詳細の取得中にエラーが発生しました"

var (
	// ErrNothingLoaded is returned by Refetch before any Load.
	ErrNothingLoaded = errors.New("no property loaded yet")
	// ErrSuperseded is returned when a newer Load or Refetch replaced this one.
	ErrSuperseded = errors.New("detail load superseded")
)

// Fetcher is the part of the backend client the aggregator needs.
type Fetcher interface {
	GetProperty(ctx context.Context, id int64) (*models.Property, error)
	GetInternetProvider(ctx context.Context, propertyID int64) (*models.InternetProvider, error)
	GetBikeParkings(ctx context.Context, propertyID int64) ([]models.BikeParking, error)
}

// State is a copy of the aggregator state taken for rendering.
type State struct {
	ID      int64
	Detail  *models.PropertyDetail
	Loading bool
	Err     string
}

// Aggregator loads the detail of one property. The internet provider and bike parkings
// are optional: their failures degrade to nil and an empty list and are only logged.
type Aggregator struct {
	client Fetcher

	mu     sync.Mutex
	state  State
	loaded bool
	seq    uint64
	cancel context.CancelFunc
}

func NewAggregator(client Fetcher) *Aggregator {
	return &Aggregator{client: client}
}

// Load fetches property id and then, in parallel, its optional sub-resources.
func (a *Aggregator) Load(ctx context.Context, id int64) (*models.PropertyDetail, error) {
	a.mu.Lock()
	a.seq++
	seq := a.seq
	if a.cancel != nil {
		a.cancel()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.state.ID = id
	a.state.Loading = true
	a.state.Err = ""
	a.loaded = true
	a.mu.Unlock()

	defer func() {
		cancel()
		a.mu.Lock()
		if a.seq == seq {
			a.state.Loading = false
			a.cancel = nil
		}
		a.mu.Unlock()
	}()

	detail, err := a.fetch(loadCtx, id)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.seq != seq {
		return nil, ErrSuperseded
	}
	if err != nil {
		logging.FromContext(ctx).Error("property detail failed",
			"component", "detail", "property_id", id, "error", err)
		a.state.Detail = nil
		a.state.Err = LoadErrorMessage
		return nil, err
	}
	a.state.Detail = detail
	return detail, nil
}

// Refetch repeats the last Load.
func (a *Aggregator) Refetch(ctx context.Context) (*models.PropertyDetail, error) {
	a.mu.Lock()
	id, loaded := a.state.ID, a.loaded
	a.mu.Unlock()
	if !loaded {
		return nil, ErrNothingLoaded
	}
	return a.Load(ctx, id)
}

// Snapshot returns the current state.
func (a *Aggregator) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Aggregator) fetch(ctx context.Context, id int64) (*models.PropertyDetail, error) {
	property, err := a.client.GetProperty(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get property %d: %w", id, err)
	}

	detail := &models.PropertyDetail{Property: *property, BikeParkings: []models.BikeParking{}}
	log := logging.FromContext(ctx).With("component", "detail", "property_id", id)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := boundary.Guard(func() error {
			provider, err := a.client.GetInternetProvider(gctx, id)
			if err != nil {
				return err
			}
			detail.InternetProvider = provider
			return nil
		})
		if err != nil {
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			detail.InternetProvider = nil
			metrics.Degradations.WithLabelValues("internet_provider", degradeReason(err)).Inc()
			log.Warn("internet provider unavailable", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		err := boundary.Guard(func() error {
			parkings, err := a.client.GetBikeParkings(gctx, id)
			if err != nil {
				return err
			}
			if parkings != nil {
				detail.BikeParkings = parkings
			}
			return nil
		})
		if err != nil {
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			detail.BikeParkings = []models.BikeParking{}
			metrics.Degradations.WithLabelValues("bike_parkings", degradeReason(err)).Inc()
			log.Warn("bike parkings unavailable", "error", err)
		}
		return nil
	})
	// optional failures degrade in place; only a cancelled load surfaces here
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load property %d: %w", id, err)
	}

	return detail, nil
}

func degradeReason(err error) string {
	var ure *boundary.UncaughtRuntimeError
	if errors.As(err, &ure) {
		return "panic"
	}
	return "error"
}
