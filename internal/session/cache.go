// Package session holds the client-side core of the tour map screen: an
// in-memory waypoint cache kept consistent with the remote store, the
// create/edit modal state machine, and the pure projection that turns the
// cache into map markers and a route polyline.
package session

import (
	"context"
	"errors"

	"github.com/triana-labs/tourwalk/backend/internal/gateway"
	"github.com/triana-labs/tourwalk/backend/internal/tours"
	"go.uber.org/zap"
)

var errMissingGateway = errors.New("session: stop gateway is required")

// CacheConfig describes the waypoint cache dependencies.
type CacheConfig struct {
	Gateway gateway.StopGateway
	Logger  *zap.Logger
	// OnChange fires after every successful mutation or load, so the
	// presentation layer can re-project markers and polyline.
	OnChange func()
}

// Cache is the ordered in-memory view of one tour's stops. It is owned by a
// single screen session and driven by one goroutine; it never mutates its
// sequence before the remote store has confirmed the corresponding write,
// and it assumes at most one in-flight mutation (the editor disables
// duplicate submission while a request is outstanding).
type Cache struct {
	gateway  gateway.StopGateway
	logger   *zap.Logger
	onChange func()
	tourID   tours.TourID
	stops    []tours.Stop
}

// NewCache constructs an empty cache bound to the given gateway.
func NewCache(cfg CacheConfig) (*Cache, error) {
	if cfg.Gateway == nil {
		return nil, errMissingGateway
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{gateway: cfg.Gateway, logger: logger, onChange: cfg.OnChange}, nil
}

// TourID returns the tour the cache is currently scoped to.
func (c *Cache) TourID() tours.TourID {
	return c.tourID
}

// Stops returns a copy of the current sequence in stop order.
func (c *Cache) Stops() []tours.Stop {
	copied := make([]tours.Stop, len(c.stops))
	copy(copied, c.stops)
	return copied
}

// Len returns the number of cached stops.
func (c *Cache) Len() int {
	return len(c.stops)
}

// Load rebuilds the sequence wholesale from the remote store for the given
// tour. On failure the cache is left empty and the error is returned, never
// swallowed.
func (c *Cache) Load(ctx context.Context, tourID tours.TourID) error {
	if tourID == "" {
		return tours.ErrInvalidTourID
	}
	c.tourID = tourID
	c.stops = nil

	fetched, err := c.gateway.FetchStops(ctx, tourID)
	if err != nil {
		c.logger.Warn("stop fetch failed", zap.String("tour_id", tourID.String()), zap.Error(err))
		c.notifyChange()
		return err
	}
	c.stops = fetched
	c.notifyChange()
	return nil
}

// Create inserts a new stop at the append position (current count + 1) and,
// on success, appends the server's canonical row rather than the local
// draft. On failure the sequence is unchanged.
func (c *Cache) Create(ctx context.Context, title, description string, coordinate tours.Coordinate) (tours.Stop, error) {
	if c.tourID == "" {
		return tours.Stop{}, tours.ErrInvalidTourID
	}

	draft := tours.StopDraft{
		TourID:      c.tourID,
		Title:       title,
		Description: description,
		Coordinate:  coordinate,
	}
	created, err := c.gateway.InsertStop(ctx, draft)
	if err != nil {
		c.logger.Warn("stop insert failed", zap.String("tour_id", c.tourID.String()), zap.Error(err))
		return tours.Stop{}, err
	}

	c.stops = append(c.stops, created)
	c.notifyChange()
	return created, nil
}

// Update patches an existing stop and, on success, replaces the matching
// entry in place, preserving its position. On any failure, including the
// remote zero-rows signal, the sequence is unchanged.
func (c *Cache) Update(ctx context.Context, id tours.StopID, patch tours.StopPatch) (tours.Stop, error) {
	if id == "" {
		return tours.Stop{}, tours.ErrInvalidStopID
	}

	updated, err := c.gateway.UpdateStop(ctx, id, patch)
	if err != nil {
		c.logger.Warn("stop update failed", zap.String("stop_id", id.String()), zap.Error(err))
		return tours.Stop{}, err
	}

	for index := range c.stops {
		if c.stops[index].ID == id.String() {
			c.stops[index] = updated
			c.notifyChange()
			return updated, nil
		}
	}
	// Confirmed remotely but absent locally; treat as an append so the view
	// converges with the store.
	c.logger.Warn("updated stop missing from cache", zap.String("stop_id", id.String()))
	c.stops = append(c.stops, updated)
	c.notifyChange()
	return updated, nil
}

// Remove deletes a stop and, on success, drops the matching entry. The
// orders of the remaining stops are left untouched, so deletions leave gaps.
// On any failure the sequence is unchanged.
func (c *Cache) Remove(ctx context.Context, id tours.StopID) error {
	if id == "" {
		return tours.ErrInvalidStopID
	}

	if err := c.gateway.DeleteStop(ctx, id); err != nil {
		c.logger.Warn("stop delete failed", zap.String("stop_id", id.String()), zap.Error(err))
		return err
	}

	for index := range c.stops {
		if c.stops[index].ID == id.String() {
			c.stops = append(c.stops[:index], c.stops[index+1:]...)
			break
		}
	}
	c.notifyChange()
	return nil
}

func (c *Cache) notifyChange() {
	if c.onChange != nil {
		c.onChange()
	}
}
