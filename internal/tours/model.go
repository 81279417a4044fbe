package tours

import (
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidTourID indicates that a tour identifier is empty or exceeds storage bounds.
	ErrInvalidTourID = errors.New("tours: invalid tour id")
	// ErrInvalidStopID indicates that a stop identifier is empty or exceeds storage bounds.
	ErrInvalidStopID = errors.New("tours: invalid stop id")
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("tours: invalid user id")
	// ErrEmptyTitle indicates that a tour or stop title is empty or whitespace.
	ErrEmptyTitle = errors.New("tours: title must not be empty")
	// ErrInvalidCoordinate indicates a latitude/longitude pair outside WGS-84 bounds.
	ErrInvalidCoordinate = errors.New("tours: invalid coordinate")
)

// TourID represents a validated tour identifier.
type TourID string

// NewTourID validates raw input and returns a TourID.
func NewTourID(rawInput string) (TourID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidTourID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidTourID, maxIdentifierLength)
	}
	return TourID(trimmed), nil
}

// String returns the underlying string identifier.
func (id TourID) String() string {
	return string(id)
}

// StopID represents a validated stop identifier.
type StopID string

// NewStopID validates raw input and returns a StopID.
func NewStopID(rawInput string) (StopID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidStopID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidStopID, maxIdentifierLength)
	}
	return StopID(trimmed), nil
}

// String returns the underlying string identifier.
func (id StopID) String() string {
	return string(id)
}

// UserID represents a validated user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// Coordinate is a WGS-84 latitude/longitude pair in degrees.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// Validate reports whether the coordinate lies inside WGS-84 bounds.
func (c Coordinate) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidCoordinate, c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidCoordinate, c.Longitude)
	}
	return nil
}

// Tour models a named walking route owned by a user.
type Tour struct {
	ID               string `gorm:"column:id;primaryKey;size:190;not null"`
	Title            string `gorm:"column:title;size:255;not null"`
	Description      string `gorm:"column:description;type:text;not null;default:''"`
	City             string `gorm:"column:city;size:255;not null;default:''"`
	Language         string `gorm:"column:language;size:64;not null;default:''"`
	CreatedBy        string `gorm:"column:created_by;size:190;not null;index:idx_tours_owner"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Tour) TableName() string {
	return "tours"
}

// Stop models a single waypoint along a tour route.
type Stop struct {
	ID          string  `gorm:"column:id;primaryKey;size:190;not null"`
	TourID      string  `gorm:"column:tour_id;size:190;not null;index:idx_stops_tour_order,priority:1"`
	Title       string  `gorm:"column:title;size:255;not null"`
	Description string  `gorm:"column:description;type:text;not null;default:''"`
	Latitude    float64 `gorm:"column:latitude;not null"`
	Longitude   float64 `gorm:"column:longitude;not null"`
	StopOrder   int     `gorm:"column:stop_order;not null;index:idx_stops_tour_order,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Stop) TableName() string {
	return "stops"
}

// Coordinate returns the stop's position.
func (s Stop) Coordinate() Coordinate {
	return Coordinate{Latitude: s.Latitude, Longitude: s.Longitude}
}

// TourDraft carries the user-supplied fields for a new tour.
type TourDraft struct {
	Title       string
	Description string
	City        string
	Language    string
}

// Validate checks draft invariants before the draft reaches the store.
func (d TourDraft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// TourPatch carries the mutable tour fields for an update.
type TourPatch struct {
	Title       string
	Description string
}

// Validate checks patch invariants before the patch reaches the store.
func (p TourPatch) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// StopDraft carries the user-supplied fields for a new stop. The stop order
// is assigned by the store at insert time, never by the caller.
type StopDraft struct {
	TourID      TourID
	Title       string
	Description string
	Coordinate  Coordinate
}

// Validate checks draft invariants before the draft reaches the store.
func (d StopDraft) Validate() error {
	if d.TourID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTourID)
	}
	if strings.TrimSpace(d.Title) == "" {
		return ErrEmptyTitle
	}
	return d.Coordinate.Validate()
}

// StopPatch carries the mutable stop fields for an update. Coordinates are
// fixed at creation and cannot be patched.
type StopPatch struct {
	Title       string
	Description string
}

// Validate checks patch invariants before the patch reaches the store.
func (p StopPatch) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return ErrEmptyTitle
	}
	return nil
}
