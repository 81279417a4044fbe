// Package gateway defines the client-side boundary to the authoritative
// tour store. The store enforces row-level permissions and reports a denied
// or vanished row as "zero rows affected, no transport error"; the gateway
// keeps that signal distinct from connectivity failures so callers can show
// the right message and leave local state untouched.
package gateway

import (
	"context"
	"errors"

	"github.com/triana-labs/tourwalk/backend/internal/tours"
)

var (
	// ErrPermissionDenied indicates the remote store refused the mutation:
	// the row exists but the caller lacks rights over it.
	ErrPermissionDenied = errors.New("gateway: permission denied")
	// ErrNotFound indicates the target row is absent, e.g. deleted elsewhere.
	// For presentation it is treated like ErrPermissionDenied because the
	// zero-rows signal cannot tell the two apart.
	ErrNotFound = errors.New("gateway: not found")
)

// StopGateway is the request/response contract the waypoint cache depends
// on. FetchStops returns the tour's stops sorted ascending by stop order.
// No operation retries; a failure leaves remote and local state untouched.
type StopGateway interface {
	FetchStops(ctx context.Context, tourID tours.TourID) ([]tours.Stop, error)
	InsertStop(ctx context.Context, draft tours.StopDraft) (tours.Stop, error)
	UpdateStop(ctx context.Context, id tours.StopID, patch tours.StopPatch) (tours.Stop, error)
	DeleteStop(ctx context.Context, id tours.StopID) error
}

// FailureKind buckets a gateway failure for presentation.
type FailureKind int

const (
	// FailureNone marks a nil error.
	FailureNone FailureKind = iota
	// FailureConnectivity marks a transport-level failure.
	FailureConnectivity
	// FailurePermissionDenied marks the remote zero-rows signal, covering
	// both denied and already-deleted rows.
	FailurePermissionDenied
)

// Classify buckets a gateway error into a FailureKind.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrNotFound):
		return FailurePermissionDenied
	default:
		return FailureConnectivity
	}
}
