package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/terra-clan/bounty-board/internal/bounty"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondServiceError maps a domain failure onto the HTTP envelope.
// Handlers only reach the service with an identity, so unauthorized means forbidden.
func respondServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	kind := bounty.KindOf(err)

	switch kind {
	case bounty.KindValidation:
		respondError(w, http.StatusBadRequest, string(kind), err.Error())
	case bounty.KindNotFound:
		respondError(w, http.StatusNotFound, string(kind), err.Error())
	case bounty.KindAlreadyAnnounced:
		respondError(w, http.StatusConflict, string(kind), bounty.ErrAlreadyAnnounced.Error())
	case bounty.KindUnauthorized:
		if WalletFromContext(r.Context()) == "" {
			respondError(w, http.StatusUnauthorized, string(kind), "wallet identity required")
			return
		}
		respondError(w, http.StatusForbidden, string(kind), "wallet is not allowed to "+op)
	case bounty.KindTransport:
		slog.Error("storage unavailable", "op", op, "error", err)
		respondError(w, http.StatusServiceUnavailable, string(kind), "storage unavailable, try again")
	default:
		slog.Error("request failed", "op", op, "error", err)
		respondError(w, http.StatusInternalServerError, string(bounty.KindInternal), "failed to "+op)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			slog.Warn("readiness check failed", "error", err)
			respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
