// Package api exposes the focus engine over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/focusflow/internal/engine"
	"github.com/verte-zerg/focusflow/internal/model"
)

// UserHeader carries the caller identity resolved by the upstream gateway.
const UserHeader = "X-User-ID"

// Service is the engine surface the handlers call.
type Service interface {
	StartSession(ctx context.Context, userID, documentName string, mode model.ReadingMode) (model.ReadingSession, error)
	EndSession(ctx context.Context, userID, sessionID string, override *float64) (model.ReadingSession, error)
	IngestGaze(ctx context.Context, userID, sessionID string, samples []model.GazeSample) (engine.IngestResult, error)
	Pause(ctx context.Context, userID, sessionID string, ts int64) (*model.FocusEvent, error)
	Resume(ctx context.Context, userID, sessionID string, ts int64) (*model.FocusEvent, error)
	SwitchMode(ctx context.Context, userID, sessionID string, mode model.ReadingMode) (model.ReadingSession, error)
	ListEvents(ctx context.Context, userID, sessionID string) ([]model.FocusEvent, error)
	GetSession(ctx context.Context, userID, sessionID string) (model.ReadingSession, error)
	GetAnalytics(ctx context.Context, userID string, opts model.ListOptions) (model.AnalyticsSummary, error)
	GetPreferences(ctx context.Context, userID string) (model.UserPreferences, error)
	SavePreferences(ctx context.Context, prefs model.UserPreferences) (model.UserPreferences, error)
}

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the handler dependencies.
type Handler struct {
	svc     Service
	db      Pinger
	log     zerolog.Logger
	maxBody int64 // request body cap in bytes
}

// NewRouter wires every route.
func NewRouter(svc Service, db Pinger, log zerolog.Logger) *mux.Router {
	h := &Handler{
		svc:     svc,
		db:      db,
		log:     log.With().Str("component", "api").Logger(),
		maxBody: 8 << 20,
	}

	r := mux.NewRouter()
	r.Use(h.observe)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(h.requireUser)
	api.HandleFunc("/sessions/start", h.startSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/analytics", h.analytics).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", h.getSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/end", h.endSession).Methods(http.MethodPut)
	api.HandleFunc("/sessions/{id}/gaze-data", h.ingestGaze).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/pause", h.pause).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/resume", h.resume).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/mode", h.switchMode).Methods(http.MethodPut)
	api.HandleFunc("/sessions/{id}/events", h.listEvents).Methods(http.MethodGet)
	api.HandleFunc("/preferences", h.getPreferences).Methods(http.MethodGet)
	api.HandleFunc("/preferences", h.savePreferences).Methods(http.MethodPut)
	return r
}
