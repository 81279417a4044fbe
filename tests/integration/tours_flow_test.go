package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/triana-labs/tourwalk/backend/internal/auth"
	"github.com/triana-labs/tourwalk/backend/internal/gateway"
	"github.com/triana-labs/tourwalk/backend/internal/server"
	"github.com/triana-labs/tourwalk/backend/internal/session"
	"github.com/triana-labs/tourwalk/backend/internal/tours"
)

const (
	apiSigningSecret = "integration-secret"
	jsonContentType  = "application/json"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type tourResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func newIntegrationServer(testContext *testing.T) *httptest.Server {
	testContext.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:tourwalk_integration_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&tours.Tour{}, &tours.Stop{}, &auth.Account{}); err != nil {
		testContext.Fatalf("failed to migrate: %v", err)
	}

	accounts, err := auth.NewAccounts(auth.AccountsConfig{
		Database:   db,
		IDProvider: tours.NewUUIDProvider(),
		Logger:     zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build accounts: %v", err)
	}
	store, err := tours.NewStore(tours.StoreConfig{
		Database:   db,
		IDProvider: tours.NewUUIDProvider(),
		Logger:     zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build tour store: %v", err)
	}
	issuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(apiSigningSecret),
		Issuer:        "tourwalk-auth",
		Audience:      "tourwalk-api",
	})

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Accounts: accounts,
		Tokens:   issuer,
		Store:    store,
		Logger:   zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}

	testServer := httptest.NewServer(handler)
	testContext.Cleanup(testServer.Close)
	return testServer
}

func postJSON(testContext *testing.T, client *http.Client, url, token string, payload any) *http.Response {
	testContext.Helper()
	encoded, err := json.Marshal(payload)
	if err != nil {
		testContext.Fatalf("failed to encode payload: %v", err)
	}
	request, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		testContext.Fatalf("failed to build request: %v", err)
	}
	request.Header.Set("Content-Type", jsonContentType)
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	response, err := client.Do(request)
	if err != nil {
		testContext.Fatalf("request failed: %v", err)
	}
	return response
}

func registerAccount(testContext *testing.T, client *http.Client, baseURL, email string) string {
	testContext.Helper()
	response := postJSON(testContext, client, baseURL+"/auth/register", "", map[string]string{
		"email":    email,
		"password": "secret-pass",
	})
	defer response.Body.Close() //nolint:errcheck
	if response.StatusCode != http.StatusCreated {
		testContext.Fatalf("unexpected register status %d", response.StatusCode)
	}
	var token tokenResponse
	if err := json.NewDecoder(response.Body).Decode(&token); err != nil {
		testContext.Fatalf("failed to decode token: %v", err)
	}
	if token.AccessToken == "" || token.TokenType != "Bearer" {
		testContext.Fatalf("unexpected token response: %+v", token)
	}
	return token.AccessToken
}

func createTour(testContext *testing.T, client *http.Client, baseURL, token, title string) string {
	testContext.Helper()
	response := postJSON(testContext, client, baseURL+"/tours", token, map[string]string{"title": title})
	defer response.Body.Close() //nolint:errcheck
	if response.StatusCode != http.StatusCreated {
		testContext.Fatalf("unexpected tour create status %d", response.StatusCode)
	}
	var tour tourResponse
	if err := json.NewDecoder(response.Body).Decode(&tour); err != nil {
		testContext.Fatalf("failed to decode tour: %v", err)
	}
	return tour.ID
}

func TestEditorFlowAgainstLiveServer(testContext *testing.T) {
	testServer := newIntegrationServer(testContext)
	client := testServer.Client()

	ownerToken := registerAccount(testContext, client, testServer.URL, "owner@example.com")
	tourID := createTour(testContext, client, testServer.URL, ownerToken, "Seville Walk")

	gw, err := gateway.NewHTTPGateway(gateway.HTTPGatewayConfig{
		BaseURL:    testServer.URL,
		Token:      ownerToken,
		HTTPClient: client,
		Logger:     zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build gateway: %v", err)
	}
	cache, err := session.NewCache(session.CacheConfig{Gateway: gw, Logger: zap.NewNop()})
	if err != nil {
		testContext.Fatalf("failed to build cache: %v", err)
	}
	editor, err := session.NewEditor(session.EditorConfig{Cache: cache, Logger: zap.NewNop()})
	if err != nil {
		testContext.Fatalf("failed to build editor: %v", err)
	}

	ctx := context.Background()
	parsedTourID, err := tours.NewTourID(tourID)
	if err != nil {
		testContext.Fatalf("unexpected tour id error: %v", err)
	}
	if err := cache.Load(ctx, parsedTourID); err != nil {
		testContext.Fatalf("initial load failed: %v", err)
	}
	if cache.Len() != 0 {
		testContext.Fatalf("expected empty tour, got %d stops", cache.Len())
	}

	// Create two stops through the editor against the live API.
	editor.BeginCreate(tours.Coordinate{Latitude: 37.386, Longitude: -5.992})
	editor.SetTitle("Cathedral")
	editor.SetDescription("Gothic nave")
	if err := editor.Submit(ctx); err != nil {
		testContext.Fatalf("submit failed: %v", err)
	}

	editor.BeginCreate(tours.Coordinate{Latitude: 37.383, Longitude: -5.996})
	editor.SetTitle("Torre del Oro")
	if err := editor.Submit(ctx); err != nil {
		testContext.Fatalf("submit failed: %v", err)
	}

	stops := cache.Stops()
	if len(stops) != 2 {
		testContext.Fatalf("expected 2 stops, got %d", len(stops))
	}
	if stops[0].StopOrder != 1 || stops[1].StopOrder != 2 {
		testContext.Fatalf("unexpected orders: %d, %d", stops[0].StopOrder, stops[1].StopOrder)
	}

	// A reload rebuilds the same sequence from the server.
	if err := cache.Load(ctx, parsedTourID); err != nil {
		testContext.Fatalf("reload failed: %v", err)
	}
	reloaded := cache.Stops()
	if len(reloaded) != 2 || reloaded[0].Title != "Cathedral" || reloaded[1].Title != "Torre del Oro" {
		testContext.Fatalf("unexpected reloaded sequence: %+v", reloaded)
	}

	// Edit the first stop in place.
	editor.BeginEdit(reloaded[0])
	if editor.Mode() != session.ModeEditing {
		testContext.Fatalf("expected editing mode, got %s", editor.Mode())
	}
	editor.SetTitle("Cathedral of Seville")
	if err := editor.Submit(ctx); err != nil {
		testContext.Fatalf("edit submit failed: %v", err)
	}
	edited := cache.Stops()
	if edited[0].Title != "Cathedral of Seville" || edited[0].StopOrder != 1 {
		testContext.Fatalf("edit lost position or title: %+v", edited[0])
	}

	// Delete it and leave the order gap for the survivor.
	editor.BeginEdit(edited[0])
	editor.RequestDelete()
	if err := editor.ConfirmDelete(ctx); err != nil {
		testContext.Fatalf("confirm delete failed: %v", err)
	}
	remaining := cache.Stops()
	if len(remaining) != 1 || remaining[0].StopOrder != 2 {
		testContext.Fatalf("expected survivor with order 2, got %+v", remaining)
	}

	// The map projection follows the cache.
	projection := session.Project(remaining)
	if len(projection.Markers) != 1 || len(projection.Polyline) != 1 {
		testContext.Fatalf("unexpected projection: %+v", projection)
	}
}

func TestForeignStopMutationIsDeniedEndToEnd(testContext *testing.T) {
	testServer := newIntegrationServer(testContext)
	client := testServer.Client()

	ownerToken := registerAccount(testContext, client, testServer.URL, "owner@example.com")
	strangerToken := registerAccount(testContext, client, testServer.URL, "stranger@example.com")
	tourID := createTour(testContext, client, testServer.URL, ownerToken, "Guarded Walk")

	ownerGW, err := gateway.NewHTTPGateway(gateway.HTTPGatewayConfig{
		BaseURL:    testServer.URL,
		Token:      ownerToken,
		HTTPClient: client,
	})
	if err != nil {
		testContext.Fatalf("failed to build owner gateway: %v", err)
	}
	parsedTourID, err := tours.NewTourID(tourID)
	if err != nil {
		testContext.Fatalf("unexpected tour id error: %v", err)
	}
	created, err := ownerGW.InsertStop(context.Background(), tours.StopDraft{
		TourID:     parsedTourID,
		Title:      "Guarded stop",
		Coordinate: tours.Coordinate{Latitude: 1, Longitude: 1},
	})
	if err != nil {
		testContext.Fatalf("owner insert failed: %v", err)
	}

	strangerGW, err := gateway.NewHTTPGateway(gateway.HTTPGatewayConfig{
		BaseURL:    testServer.URL,
		Token:      strangerToken,
		HTTPClient: client,
	})
	if err != nil {
		testContext.Fatalf("failed to build stranger gateway: %v", err)
	}

	cache, err := session.NewCache(session.CacheConfig{Gateway: strangerGW})
	if err != nil {
		testContext.Fatalf("failed to build cache: %v", err)
	}
	editor, err := session.NewEditor(session.EditorConfig{Cache: cache})
	if err != nil {
		testContext.Fatalf("failed to build editor: %v", err)
	}
	ctx := context.Background()
	if err := cache.Load(ctx, parsedTourID); err != nil {
		testContext.Fatalf("stranger load failed: %v", err)
	}

	// The stranger can see the stop but not modify it.
	stops := cache.Stops()
	if len(stops) != 1 {
		testContext.Fatalf("expected 1 visible stop, got %d", len(stops))
	}
	editor.BeginEdit(stops[0])
	if editor.Mode() != session.ModeEditing {
		testContext.Fatalf("expected editing mode, got %s", editor.Mode())
	}
	editor.SetTitle("Hijacked")
	if err := editor.Submit(ctx); err == nil {
		testContext.Fatalf("expected submit to fail")
	} else if !errors.Is(err, gateway.ErrPermissionDenied) {
		testContext.Fatalf("expected permission denied, got %v", err)
	}
	if editor.Mode() != session.ModeEditing {
		testContext.Fatalf("editor closed on denial, mode %s", editor.Mode())
	}
	if editor.Message() != session.MessageCannotModify {
		testContext.Fatalf("unexpected message %q", editor.Message())
	}

	// Deletion is denied the same way and the sequence is untouched.
	editor.RequestDelete()
	if err := editor.ConfirmDelete(ctx); err == nil {
		testContext.Fatalf("expected confirm delete to fail")
	}
	if editor.Message() != session.MessageCannotDelete {
		testContext.Fatalf("unexpected message %q", editor.Message())
	}
	if cache.Len() != 1 {
		testContext.Fatalf("cache mutated on denial")
	}

	// The owner still sees the original row.
	reloadedCache, err := session.NewCache(session.CacheConfig{Gateway: ownerGW})
	if err != nil {
		testContext.Fatalf("failed to build owner cache: %v", err)
	}
	if err := reloadedCache.Load(ctx, parsedTourID); err != nil {
		testContext.Fatalf("owner reload failed: %v", err)
	}
	rows := reloadedCache.Stops()
	if len(rows) != 1 || rows[0].Title != "Guarded stop" || rows[0].ID != created.ID {
		testContext.Fatalf("row drifted after denied mutations: %+v", rows)
	}
}
