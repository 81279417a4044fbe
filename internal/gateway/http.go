package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/triana-labs/tourwalk/backend/internal/tours"
	"go.uber.org/zap"
)

var (
	errMissingBaseURL = errors.New("gateway: base url is required")
	errMissingToken   = errors.New("gateway: bearer token is required")
)

// HTTPGatewayConfig configures the remote-store HTTP client.
type HTTPGatewayConfig struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// HTTPGateway implements StopGateway against the tourwalk HTTP API using a
// bearer token. Responses with status 403 map to ErrPermissionDenied, 404 to
// ErrNotFound; transport errors and unexpected statuses surface as
// connectivity failures.
type HTTPGateway struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPGateway constructs an HTTPGateway after validating its configuration.
func NewHTTPGateway(cfg HTTPGatewayConfig) (*HTTPGateway, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errMissingBaseURL
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errMissingToken
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPGateway{baseURL: baseURL, token: cfg.Token, client: client, logger: logger}, nil
}

type stopPayload struct {
	ID          string  `json:"id"`
	TourID      string  `json:"tour_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	StopOrder   int     `json:"stop_order"`
}

func (p stopPayload) toStop() tours.Stop {
	return tours.Stop{
		ID:          p.ID,
		TourID:      p.TourID,
		Title:       p.Title,
		Description: p.Description,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		StopOrder:   p.StopOrder,
	}
}

type stopListPayload struct {
	Stops []stopPayload `json:"stops"`
}

type insertStopPayload struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

type patchStopPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// FetchStops returns the tour's stops sorted ascending by stop order.
func (g *HTTPGateway) FetchStops(ctx context.Context, tourID tours.TourID) ([]tours.Stop, error) {
	if tourID == "" {
		return nil, tours.ErrInvalidTourID
	}

	body, err := g.roundTrip(ctx, http.MethodGet, "/tours/"+tourID.String()+"/stops", nil, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var payload stopListPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("gateway: decode stop list: %w", err)
	}
	stops := make([]tours.Stop, 0, len(payload.Stops))
	for _, item := range payload.Stops {
		stops = append(stops, item.toStop())
	}
	return stops, nil
}

// InsertStop appends a stop to the tour and returns the server's canonical
// row, including its assigned identifier and stop order.
func (g *HTTPGateway) InsertStop(ctx context.Context, draft tours.StopDraft) (tours.Stop, error) {
	if err := draft.Validate(); err != nil {
		return tours.Stop{}, err
	}

	request := insertStopPayload{
		Title:       draft.Title,
		Description: draft.Description,
		Latitude:    draft.Coordinate.Latitude,
		Longitude:   draft.Coordinate.Longitude,
	}
	body, err := g.roundTrip(ctx, http.MethodPost, "/tours/"+draft.TourID.String()+"/stops", request, http.StatusCreated)
	if err != nil {
		return tours.Stop{}, err
	}

	var payload stopPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return tours.Stop{}, fmt.Errorf("gateway: decode stop: %w", err)
	}
	return payload.toStop(), nil
}

// UpdateStop patches a stop and returns the server's updated row.
func (g *HTTPGateway) UpdateStop(ctx context.Context, id tours.StopID, patch tours.StopPatch) (tours.Stop, error) {
	if id == "" {
		return tours.Stop{}, tours.ErrInvalidStopID
	}
	if err := patch.Validate(); err != nil {
		return tours.Stop{}, err
	}

	request := patchStopPayload{Title: patch.Title, Description: patch.Description}
	body, err := g.roundTrip(ctx, http.MethodPatch, "/stops/"+id.String(), request, http.StatusOK)
	if err != nil {
		return tours.Stop{}, err
	}

	var payload stopPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return tours.Stop{}, fmt.Errorf("gateway: decode stop: %w", err)
	}
	return payload.toStop(), nil
}

// DeleteStop removes a stop.
func (g *HTTPGateway) DeleteStop(ctx context.Context, id tours.StopID) error {
	if id == "" {
		return tours.ErrInvalidStopID
	}
	_, err := g.roundTrip(ctx, http.MethodDelete, "/stops/"+id.String(), nil, http.StatusNoContent)
	return err
}

func (g *HTTPGateway) roundTrip(ctx context.Context, method, path string, payload any, wantStatus int) ([]byte, error) {
	var requestBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("gateway: encode request: %w", err)
		}
		requestBody = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, requestBody)
	if err != nil {
		return nil, fmt.Errorf("gateway: build request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+g.token)
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := g.client.Do(request)
	if err != nil {
		g.logger.Warn("remote store request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return nil, fmt.Errorf("gateway: %s %s: %w", method, path, err)
	}
	defer response.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway: read response: %w", err)
	}

	switch response.StatusCode {
	case wantStatus:
		return body, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s %s", ErrPermissionDenied, method, path)
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	default:
		g.logger.Warn("remote store returned unexpected status",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", response.StatusCode))
		return nil, fmt.Errorf("gateway: %s %s: unexpected status %d", method, path, response.StatusCode)
	}
}
