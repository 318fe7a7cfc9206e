// Package handlers exposes the acceptance service over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"logredact/internal/logger"
	"logredact/internal/models"
	"logredact/internal/normalizer"
)

// DefaultMaxBodySize caps request bodies when none is configured
const DefaultMaxBodySize = 10 * 1024 * 1024

// IngestHandler handles log submissions via HTTP
type IngestHandler struct {
	service     *normalizer.Service
	maxBodySize int64
}

// IngestConfig holds configuration for the ingest handler
type IngestConfig struct {
	Service     *normalizer.Service
	MaxBodySize int64
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(cfg IngestConfig) *IngestHandler {
	maxBodySize := cfg.MaxBodySize
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}

	return &IngestHandler{
		service:     cfg.Service,
		maxBodySize: maxBodySize,
	}
}

// ServeHTTP handles the ingest HTTP request
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, normalizer.MessageMalformedBody)
		return
	}

	resp, err := h.service.Accept(r.Context(), normalizer.Request{
		ContentType: r.Header.Get("Content-Type"),
		Headers:     normalizer.HeadersFromHTTP(r.Header),
		Body:        body,
	})
	if err != nil {
		status, msg := normalizer.Outcome(err)
		if status >= http.StatusInternalServerError {
			log := logger.WithComponent("ingest_handler")
			log.Error().
				Err(err).
				Str("request_id", r.Header.Get("X-Request-ID")).
				Msg("ingest failed")
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusAccepted, resp)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
