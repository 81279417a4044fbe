package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/triana-labs/tourwalk/backend/internal/auth"
	"github.com/triana-labs/tourwalk/backend/internal/report"
	"github.com/triana-labs/tourwalk/backend/internal/tours"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const accountIDContextKey = "tourwalk_account_id"

const heartbeatInterval = 15 * time.Second

var (
	errMissingAccounts      = errors.New("accounts dependency required")
	errMissingTokenManager  = errors.New("token manager dependency required")
	errMissingStore         = errors.New("tour store dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// TokenManager issues and validates API bearer tokens.
type TokenManager interface {
	IssueToken(ctx context.Context, accountID string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// AccountService registers accounts and verifies credentials.
type AccountService interface {
	Register(ctx context.Context, email, password string) (auth.Account, error)
	SignIn(ctx context.Context, email, password string) (auth.Account, error)
}

// Dependencies wires the HTTP handler to its collaborators.
type Dependencies struct {
	Accounts AccountService
	Tokens   TokenManager
	Store    *tours.Store
	Events   *StopEventDispatcher
	Report   *report.Builder
	Logger   *zap.Logger
}

// NewHTTPHandler builds the gin router for the tourwalk API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Accounts == nil {
		return nil, errMissingAccounts
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenManager
	}
	if deps.Store == nil {
		return nil, errMissingStore
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	events := deps.Events
	if events == nil {
		events = NewStopEventDispatcher()
	}
	reportBuilder := deps.Report
	if reportBuilder == nil {
		reportBuilder = report.NewBuilder(report.BuilderConfig{})
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		accounts: deps.Accounts,
		tokens:   deps.Tokens,
		store:    deps.Store,
		events:   events,
		report:   reportBuilder,
		logger:   logger,
	}

	router.POST("/auth/register", handler.handleRegister)
	router.POST("/auth/login", handler.handleLogin)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/tours", handler.handleListTours)
	protected.POST("/tours", handler.handleCreateTour)
	protected.PATCH("/tours/:id", handler.handleUpdateTour)
	protected.DELETE("/tours/:id", handler.handleDeleteTour)
	protected.GET("/tours/:id/stops", handler.handleListStops)
	protected.POST("/tours/:id/stops", handler.handleCreateStop)
	protected.GET("/tours/:id/events", handler.handleStopEvents)
	protected.PATCH("/stops/:id", handler.handleUpdateStop)
	protected.DELETE("/stops/:id", handler.handleDeleteStop)
	protected.GET("/report", handler.handleReport)

	return router, nil
}

type httpHandler struct {
	accounts AccountService
	tokens   TokenManager
	store    *tours.Store
	events   *StopEventDispatcher
	report   *report.Builder
	logger   *zap.Logger
}

type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type tourPayload struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	City        string `json:"city"`
	Language    string `json:"language"`
	CreatedBy   string `json:"created_by"`
}

type tourListPayload struct {
	Tours []tourPayload `json:"tours"`
}

type tourRequestPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	City        string `json:"city"`
	Language    string `json:"language"`
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

type stopListPayload struct {
	Stops []stopPayload `json:"stops"`
}

type createStopPayload struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

type patchPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func tourToPayload(tour tours.Tour) tourPayload {
	return tourPayload{
		ID:          tour.ID,
		Title:       tour.Title,
		Description: tour.Description,
		City:        tour.City,
		Language:    tour.Language,
		CreatedBy:   tour.CreatedBy,
	}
}

func stopToPayload(stop tours.Stop) stopPayload {
	return stopPayload{
		ID:          stop.ID,
		TourID:      stop.TourID,
		Title:       stop.Title,
		Description: stop.Description,
		Latitude:    stop.Latitude,
		Longitude:   stop.Longitude,
		StopOrder:   stop.StopOrder,
	}
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	account, err := h.accounts.Register(c.Request.Context(), request.Email, request.Password)
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "email_taken"})
		return
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	case err != nil:
		h.logger.Error("account registration failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration_failed"})
		return
	}

	h.issueToken(c, account.ID, http.StatusCreated)
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	account, err := h.accounts.SignIn(c.Request.Context(), request.Email, request.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
		return
	}
	if err != nil {
		h.logger.Error("sign-in failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed"})
		return
	}

	h.issueToken(c, account.ID, http.StatusOK)
}

func (h *httpHandler) issueToken(c *gin.Context, accountID string, status int) {
	token, expiresIn, err := h.tokens.IssueToken(c.Request.Context(), accountID)
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}
	c.JSON(status, tokenResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

func (h *httpHandler) handleListTours(c *gin.Context) {
	result, err := h.store.ListTours(c.Request.Context())
	if err != nil {
		h.logger.Error("tour list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}

	payload := tourListPayload{Tours: make([]tourPayload, 0, len(result))}
	for _, tour := range result {
		payload.Tours = append(payload.Tours, tourToPayload(tour))
	}
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleCreateTour(c *gin.Context) {
	ownerID, ok := h.callerID(c)
	if !ok {
		return
	}

	var request tourRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	created, err := h.store.CreateTour(c.Request.Context(), ownerID, tours.TourDraft{
		Title:       request.Title,
		Description: request.Description,
		City:        request.City,
		Language:    request.Language,
	})
	if err != nil {
		h.respondStoreError(c, err, "tour create failed")
		return
	}
	c.JSON(http.StatusCreated, tourToPayload(created))
}

func (h *httpHandler) handleUpdateTour(c *gin.Context) {
	ownerID, ok := h.callerID(c)
	if !ok {
		return
	}
	tourID, err := tours.NewTourID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_tour_id"})
		return
	}

	var request patchPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	updated, err := h.store.UpdateTour(c.Request.Context(), ownerID, tourID, tours.TourPatch{
		Title:       request.Title,
		Description: request.Description,
	})
	if err != nil {
		h.respondStoreError(c, err, "tour update failed")
		return
	}
	c.JSON(http.StatusOK, tourToPayload(updated))
}

func (h *httpHandler) handleDeleteTour(c *gin.Context) {
	ownerID, ok := h.callerID(c)
	if !ok {
		return
	}
	tourID, err := tours.NewTourID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_tour_id"})
		return
	}

	if err := h.store.DeleteTour(c.Request.Context(), ownerID, tourID); err != nil {
		h.respondStoreError(c, err, "tour delete failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListStops(c *gin.Context) {
	tourID, err := tours.NewTourID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_tour_id"})
		return
	}

	result, err := h.store.ListStops(c.Request.Context(), tourID)
	if err != nil {
		h.logger.Error("stop list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}

	payload := stopListPayload{Stops: make([]stopPayload, 0, len(result))}
	for _, stop := range result {
		payload.Stops = append(payload.Stops, stopToPayload(stop))
	}
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleCreateStop(c *gin.Context) {
	ownerID, ok := h.callerID(c)
	if !ok {
		return
	}
	tourID, err := tours.NewTourID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_tour_id"})
		return
	}

	var request createStopPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	created, err := h.store.CreateStop(c.Request.Context(), ownerID, tours.StopDraft{
		TourID:      tourID,
		Title:       request.Title,
		Description: request.Description,
		Coordinate: tours.Coordinate{
			Latitude:  request.Latitude,
			Longitude: request.Longitude,
		},
	})
	if err != nil {
		h.respondStoreError(c, err, "stop create failed")
		return
	}

	h.events.Publish(StopEvent{
		TourID:    tourID.String(),
		EventType: StopEventChanged,
		StopIDs:   []string{created.ID},
		Timestamp: time.Now().UTC(),
	})
	c.JSON(http.StatusCreated, stopToPayload(created))
}

func (h *httpHandler) handleUpdateStop(c *gin.Context) {
	ownerID, ok := h.callerID(c)
	if !ok {
		return
	}
	stopID, err := tours.NewStopID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_stop_id"})
		return
	}

	var request patchPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	updated, err := h.store.UpdateStop(c.Request.Context(), ownerID, stopID, tours.StopPatch{
		Title:       request.Title,
		Description: request.Description,
	})
	if err != nil {
		h.respondStoreError(c, err, "stop update failed")
		return
	}

	h.events.Publish(StopEvent{
		TourID:    updated.TourID,
		EventType: StopEventChanged,
		StopIDs:   []string{updated.ID},
		Timestamp: time.Now().UTC(),
	})
	c.JSON(http.StatusOK, stopToPayload(updated))
}

func (h *httpHandler) handleDeleteStop(c *gin.Context) {
	ownerID, ok := h.callerID(c)
	if !ok {
		return
	}
	stopID, err := tours.NewStopID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_stop_id"})
		return
	}

	deleted, err := h.store.DeleteStop(c.Request.Context(), ownerID, stopID)
	if err != nil {
		h.respondStoreError(c, err, "stop delete failed")
		return
	}

	h.events.Publish(StopEvent{
		TourID:    deleted.TourID,
		EventType: StopEventChanged,
		StopIDs:   []string{deleted.ID},
		Timestamp: time.Now().UTC(),
	})
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleReport(c *gin.Context) {
	dataset, err := h.store.BuildReportDataset(c.Request.Context())
	if err != nil {
		h.logger.Error("report dataset failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}

	document, err := h.report.Build(dataset)
	if err != nil {
		h.logger.Error("report render failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "render_failed"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(document))
}

func (h *httpHandler) handleStopEvents(c *gin.Context) {
	tourID, err := tours.NewTourID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_tour_id"})
		return
	}

	stream, cleanup := h.events.Subscribe(c.Request.Context(), tourID.String())
	defer cleanup()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, open := <-stream:
			if !open {
				return false
			}
			c.SSEvent(event.EventType, gin.H{
				"tour_id":  event.TourID,
				"stop_ids": event.StopIDs,
				"time":     event.Timestamp.UTC().Unix(),
				"source":   eventSourceServer,
			})
			return true
		case <-heartbeat.C:
			c.SSEvent(eventHeartbeat, gin.H{"source": eventSourceServer})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// respondStoreError maps store failures onto the wire: the zero-rows signal
// becomes 403 so clients can tell "not yours" from a transport problem.
func (h *httpHandler) respondStoreError(c *gin.Context, err error, logMessage string) {
	switch {
	case errors.Is(err, tours.ErrNoRowsAffected):
		c.JSON(http.StatusForbidden, gin.H{"error": "permission_denied"})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "tour_not_found"})
	case errors.Is(err, tours.ErrEmptyTitle),
		errors.Is(err, tours.ErrInvalidCoordinate),
		errors.Is(err, tours.ErrInvalidTourID),
		errors.Is(err, tours.ErrInvalidStopID),
		errors.Is(err, tours.ErrInvalidUserID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
	default:
		h.logger.Error(logMessage, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store_failed"})
	}
}

func (h *httpHandler) callerID(c *gin.Context) (tours.UserID, bool) {
	raw := c.GetString(accountIDContextKey)
	ownerID, err := tours.NewUserID(raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return ownerID, true
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(accountIDContextKey, subject)
	c.Next()
}
