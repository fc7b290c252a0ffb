// Package httphandler implements the status API driving adapter.
package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/slurmdbd-charm/internal/application"
	"github.com/ericfisherdev/slurmdbd-charm/internal/domain/model"
)

// Configurator is the controller surface the API exposes.
type Configurator interface {
	Status() model.Status
	Reconfigure(ctx context.Context) error
}

// Syncer re-reads the relation data on demand.
type Syncer interface {
	SyncNow(ctx context.Context) error
}

// Handler is the HTTP driving adapter that serves the status API.
type Handler struct {
	configurator Configurator
	syncer       Syncer
	logger       *slog.Logger
}

// NewHandler creates a Handler. syncer may be nil, in which case the sync
// endpoint reports 503.
func NewHandler(configurator Configurator, syncer Syncer, logger *slog.Logger) *Handler {
	return &Handler{
		configurator: configurator,
		syncer:       syncer,
		logger:       logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+healthPath, h.Health)
	mux.HandleFunc("GET /api/v1/status", h.Status)
	mux.HandleFunc("POST /api/v1/configure", h.Configure)
	mux.HandleFunc("POST /api/v1/sync", h.Sync)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// Status returns the controller state and a redacted view of the credentials.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toStatusResponse(h.configurator.Status()))
}

// Configure renders the configuration again from the current credentials.
func (h *Handler) Configure(w http.ResponseWriter, r *http.Request) {
	if err := h.configurator.Reconfigure(r.Context()); err != nil {
		if errors.Is(err, application.ErrNoCredentials) {
			writeError(w, http.StatusConflict, "no database credentials available yet")
			return
		}
		h.logger.Error("reconfigure failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toStatusResponse(h.configurator.Status()))
}

// Sync re-reads the relation data and applies any change.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		writeError(w, http.StatusServiceUnavailable, "relation sync is not running")
		return
	}

	if err := h.syncer.SyncNow(r.Context()); err != nil {
		h.logger.Error("relation sync failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toStatusResponse(h.configurator.Status()))
}
