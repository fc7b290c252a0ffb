package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/slurmdbd-charm/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// StatusResponse is the JSON representation of the controller status. The
// database password is never included.
type StatusResponse struct {
	State      string         `json:"state"`
	Unit       string         `json:"unit"`
	Database   *DBInfoSummary `json:"database"`
	LastRender string         `json:"last_render,omitempty"`
	LastError  string         `json:"last_error,omitempty"`
}

// DBInfoSummary describes the credential record without its secret.
type DBInfoSummary struct {
	User     string `json:"user"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	Database string `json:"database"`
}

// toStatusResponse converts a controller status to its JSON representation.
func toStatusResponse(s model.Status) StatusResponse {
	resp := StatusResponse{
		State:     string(s.State),
		Unit:      s.Unit,
		LastError: s.LastError,
	}
	if !s.DBInfo.IsZero() {
		resp.Database = &DBInfoSummary{
			User:     s.DBInfo.User(),
			Host:     s.DBInfo.Host(),
			Port:     s.DBInfo.Port(),
			Database: s.DBInfo.Database(),
		}
	}
	if !s.LastRender.IsZero() {
		resp.LastRender = s.LastRender.UTC().Format(time.RFC3339)
	}
	return resp
}
