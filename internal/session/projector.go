package session

import "github.com/triana-labs/tourwalk/backend/internal/tours"

// Marker is one map marker derived from a cached stop.
type Marker struct {
	ID          string
	Title       string
	Description string
	Coordinate  tours.Coordinate
}

// Projection is the render-ready view of the cache: one marker per stop and
// the route polyline in cache order.
type Projection struct {
	Markers  []Marker
	Polyline []tours.Coordinate
}

// Project derives the projection from a stop sequence. It is pure: no side
// effects, no network, safe to recompute on every cache change.
func Project(stops []tours.Stop) Projection {
	markers := make([]Marker, 0, len(stops))
	polyline := make([]tours.Coordinate, 0, len(stops))
	for _, stop := range stops {
		markers = append(markers, Marker{
			ID:          stop.ID,
			Title:       stop.Title,
			Description: stop.Description,
			Coordinate:  stop.Coordinate(),
		})
		polyline = append(polyline, stop.Coordinate())
	}
	return Projection{Markers: markers, Polyline: polyline}
}
