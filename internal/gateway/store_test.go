package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/triana-labs/tourwalk/backend/internal/tours"
)

type sequenceIDGenerator struct {
	next int
}

func (g *sequenceIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("id-%d", g.next), nil
}

func newOwnedStore(t *testing.T, owner string) (*tours.Store, tours.TourID) {
	t.Helper()

	dsn := fmt.Sprintf("file:tourwalk_gateway_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&tours.Tour{}, &tours.Stop{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	store, err := tours.NewStore(tours.StoreConfig{
		Database:   db,
		IDProvider: &sequenceIDGenerator{},
	})
	if err != nil {
		t.Fatalf("failed to construct store: %v", err)
	}

	ownerID, err := tours.NewUserID(owner)
	if err != nil {
		t.Fatalf("unexpected user id error: %v", err)
	}
	tour, err := store.CreateTour(context.Background(), ownerID, tours.TourDraft{Title: "Walking tour"})
	if err != nil {
		t.Fatalf("failed to create tour: %v", err)
	}
	tourID, err := tours.NewTourID(tour.ID)
	if err != nil {
		t.Fatalf("unexpected tour id error: %v", err)
	}
	return store, tourID
}

func TestNewStoreGatewayValidatesArguments(t *testing.T) {
	if _, err := NewStoreGateway(nil, "user-1"); err == nil {
		t.Fatalf("expected missing store error")
	}

	store, _ := newOwnedStore(t, "user-1")
	if _, err := NewStoreGateway(store, ""); !errors.Is(err, tours.ErrInvalidUserID) {
		t.Fatalf("expected invalid user id, got %v", err)
	}
}

func TestStoreGatewayRoundTripsStops(t *testing.T) {
	store, tourID := newOwnedStore(t, "user-1")
	gw, err := NewStoreGateway(store, "user-1")
	if err != nil {
		t.Fatalf("failed to construct gateway: %v", err)
	}

	created, err := gw.InsertStop(context.Background(), tours.StopDraft{
		TourID:     tourID,
		Title:      "Cathedral",
		Coordinate: tours.Coordinate{Latitude: 37.386, Longitude: -5.993},
	})
	if err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}
	if created.StopOrder != 1 {
		t.Fatalf("expected append order 1, got %d", created.StopOrder)
	}

	updated, err := gw.UpdateStop(context.Background(), tours.StopID(created.ID), tours.StopPatch{Title: "Renamed"})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if updated.Title != "Renamed" {
		t.Fatalf("patch not applied: %+v", updated)
	}

	fetched, err := gw.FetchStops(context.Background(), tourID)
	if err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	if len(fetched) != 1 || fetched[0].Title != "Renamed" {
		t.Fatalf("unexpected fetch result: %+v", fetched)
	}

	if err := gw.DeleteStop(context.Background(), tours.StopID(created.ID)); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	fetched, err = gw.FetchStops(context.Background(), tourID)
	if err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	if len(fetched) != 0 {
		t.Fatalf("expected empty sequence, got %+v", fetched)
	}
}

func TestStoreGatewayTranslatesZeroRowsToPermissionDenied(t *testing.T) {
	store, tourID := newOwnedStore(t, "user-1")
	ownerGW, err := NewStoreGateway(store, "user-1")
	if err != nil {
		t.Fatalf("failed to construct owner gateway: %v", err)
	}
	created, err := ownerGW.InsertStop(context.Background(), tours.StopDraft{
		TourID:     tourID,
		Title:      "Guarded",
		Coordinate: tours.Coordinate{Latitude: 1, Longitude: 1},
	})
	if err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}

	strangerGW, err := NewStoreGateway(store, "user-2")
	if err != nil {
		t.Fatalf("failed to construct stranger gateway: %v", err)
	}

	_, err = strangerGW.InsertStop(context.Background(), tours.StopDraft{
		TourID:     tourID,
		Title:      "Injected",
		Coordinate: tours.Coordinate{Latitude: 1, Longitude: 1},
	})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}

	_, err = strangerGW.UpdateStop(context.Background(), tours.StopID(created.ID), tours.StopPatch{Title: "Hijacked"})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if kind := Classify(err); kind != FailurePermissionDenied {
		t.Fatalf("expected permission denied classification, got %d", kind)
	}

	err = strangerGW.DeleteStop(context.Background(), tours.StopID(created.ID))
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}

	// The guarded row is untouched.
	fetched, err := ownerGW.FetchStops(context.Background(), tourID)
	if err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	if len(fetched) != 1 || fetched[0].Title != "Guarded" {
		t.Fatalf("row mutated despite denial: %+v", fetched)
	}
}

func TestClassifyBucketsErrors(t *testing.T) {
	if kind := Classify(nil); kind != FailureNone {
		t.Fatalf("expected none, got %d", kind)
	}
	if kind := Classify(fmt.Errorf("wrapped: %w", ErrNotFound)); kind != FailurePermissionDenied {
		t.Fatalf("expected permission denied for not found, got %d", kind)
	}
	if kind := Classify(errors.New("connection refused")); kind != FailureConnectivity {
		t.Fatalf("expected connectivity, got %d", kind)
	}
}
