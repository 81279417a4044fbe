package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/triana-labs/tourwalk/backend/internal/tours"
)

var errMissingStore = errors.New("gateway: store handle is required")

// StoreGateway adapts the in-process authoritative store to the StopGateway
// contract for embedded deployments and tests. Every mutation is issued on
// behalf of the configured caller identity.
type StoreGateway struct {
	store  *tours.Store
	caller tours.UserID
}

// NewStoreGateway constructs a gateway over the given store acting as caller.
func NewStoreGateway(store *tours.Store, caller tours.UserID) (*StoreGateway, error) {
	if store == nil {
		return nil, errMissingStore
	}
	if caller == "" {
		return nil, tours.ErrInvalidUserID
	}
	return &StoreGateway{store: store, caller: caller}, nil
}

// FetchStops returns the tour's stops sorted ascending by stop order.
func (g *StoreGateway) FetchStops(ctx context.Context, tourID tours.TourID) ([]tours.Stop, error) {
	return g.store.ListStops(ctx, tourID)
}

// InsertStop appends a stop to a tour the caller owns and returns the stored
// canonical row, translating the zero-rows signal into ErrPermissionDenied.
func (g *StoreGateway) InsertStop(ctx context.Context, draft tours.StopDraft) (tours.Stop, error) {
	created, err := g.store.CreateStop(ctx, g.caller, draft)
	if errors.Is(err, tours.ErrNoRowsAffected) {
		return tours.Stop{}, fmt.Errorf("%w: tour %s", ErrPermissionDenied, draft.TourID.String())
	}
	if err != nil {
		return tours.Stop{}, err
	}
	return created, nil
}

// UpdateStop patches a stop, translating the zero-rows signal into
// ErrPermissionDenied.
func (g *StoreGateway) UpdateStop(ctx context.Context, id tours.StopID, patch tours.StopPatch) (tours.Stop, error) {
	updated, err := g.store.UpdateStop(ctx, g.caller, id, patch)
	if errors.Is(err, tours.ErrNoRowsAffected) {
		return tours.Stop{}, fmt.Errorf("%w: stop %s", ErrPermissionDenied, id.String())
	}
	if err != nil {
		return tours.Stop{}, err
	}
	return updated, nil
}

// DeleteStop removes a stop, translating the zero-rows signal into
// ErrPermissionDenied.
func (g *StoreGateway) DeleteStop(ctx context.Context, id tours.StopID) error {
	_, err := g.store.DeleteStop(ctx, g.caller, id)
	if errors.Is(err, tours.ErrNoRowsAffected) {
		return fmt.Errorf("%w: stop %s", ErrPermissionDenied, id.String())
	}
	return err
}
