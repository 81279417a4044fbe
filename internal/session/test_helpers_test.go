package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/triana-labs/tourwalk/backend/internal/tours"
)

// fakeGateway mimics the remote store: inserts assign identifiers and the
// append position server-side, and configured failures are returned without
// touching the backing rows.
type fakeGateway struct {
	rows       []tours.Stop
	nextID     int
	fetchErr   error
	insertErr  error
	updateErr  error
	deleteErr  error
	insertSeen int
	updateSeen int
	deleteSeen int
}

func (g *fakeGateway) FetchStops(_ context.Context, tourID tours.TourID) ([]tours.Stop, error) {
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	result := make([]tours.Stop, 0, len(g.rows))
	for _, row := range g.rows {
		if row.TourID == tourID.String() {
			result = append(result, row)
		}
	}
	return result, nil
}

func (g *fakeGateway) InsertStop(_ context.Context, draft tours.StopDraft) (tours.Stop, error) {
	g.insertSeen++
	if g.insertErr != nil {
		return tours.Stop{}, g.insertErr
	}
	g.nextID++
	stored := tours.Stop{
		ID:          fmt.Sprintf("stop-%d", g.nextID),
		TourID:      draft.TourID.String(),
		Title:       draft.Title,
		Description: draft.Description,
		Latitude:    draft.Coordinate.Latitude,
		Longitude:   draft.Coordinate.Longitude,
		StopOrder:   g.countForTour(draft.TourID.String()) + 1,
	}
	g.rows = append(g.rows, stored)
	return stored, nil
}

func (g *fakeGateway) UpdateStop(_ context.Context, id tours.StopID, patch tours.StopPatch) (tours.Stop, error) {
	g.updateSeen++
	if g.updateErr != nil {
		return tours.Stop{}, g.updateErr
	}
	for index := range g.rows {
		if g.rows[index].ID == id.String() {
			g.rows[index].Title = patch.Title
			g.rows[index].Description = patch.Description
			return g.rows[index], nil
		}
	}
	return tours.Stop{}, fmt.Errorf("fake gateway: unknown stop %s", id.String())
}

func (g *fakeGateway) DeleteStop(_ context.Context, id tours.StopID) error {
	g.deleteSeen++
	if g.deleteErr != nil {
		return g.deleteErr
	}
	for index := range g.rows {
		if g.rows[index].ID == id.String() {
			g.rows = append(g.rows[:index], g.rows[index+1:]...)
			return nil
		}
	}
	return fmt.Errorf("fake gateway: unknown stop %s", id.String())
}

func (g *fakeGateway) countForTour(tourID string) int {
	count := 0
	for _, row := range g.rows {
		if row.TourID == tourID {
			count++
		}
	}
	return count
}

func newTestCache(t *testing.T, gw *fakeGateway) *Cache {
	t.Helper()
	cache, err := NewCache(CacheConfig{Gateway: gw})
	if err != nil {
		t.Fatalf("unexpected cache error: %v", err)
	}
	return cache
}

func mustLoad(t *testing.T, cache *Cache, tourID string) {
	t.Helper()
	id, err := tours.NewTourID(tourID)
	if err != nil {
		t.Fatalf("unexpected tour id error: %v", err)
	}
	if err := cache.Load(context.Background(), id); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
}

func mustStopID(t *testing.T, value string) tours.StopID {
	t.Helper()
	id, err := tours.NewStopID(value)
	if err != nil {
		t.Fatalf("unexpected stop id error: %v", err)
	}
	return id
}
