// Package handlers provides HTTP handlers for portfolio analytics queries.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aristath/statements/internal/modules/analytics"
	"github.com/aristath/statements/internal/modules/snapshot"
	"github.com/rs/zerolog"
)

// Response is the envelope every analytics endpoint answers with.
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Handler handles analytics HTTP requests
type Handler struct {
	service *analytics.Service
	log     zerolog.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(service *analytics.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "analytics").Logger(),
	}
}

// HandleGetAccounts lists the accounts of the served snapshot
func (h *Handler) HandleGetAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts()
	if err != nil {
		h.writeError(w, "Error retrieving accounts", err)
		return
	}
	h.writeOK(w, "accounts retrieved successfully", accounts)
}

// HandleGetSecurityTickers lists the securities of the served snapshot
func (h *Handler) HandleGetSecurityTickers(w http.ResponseWriter, r *http.Request) {
	securities, err := h.service.ListSecurities()
	if err != nil {
		h.writeError(w, "Error retrieving ticker", err)
		return
	}
	h.writeOK(w, "ticker retrieved successfully", securities)
}

// HandleCardData returns gains, interest and dividends for accounts at end_date
func (h *Handler) HandleCardData(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.decodeFilter(w, r)
	if !ok {
		return
	}
	data, err := h.service.CardData(filter)
	if err != nil {
		h.writeError(w, "Error retrieving card data", err)
		return
	}
	h.writeOK(w, "card data retrieved successfully", data)
}

// HandleGraphData returns the time series of one security
func (h *Handler) HandleGraphData(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.decodeFilter(w, r)
	if !ok {
		return
	}
	data, err := h.service.GraphData(filter)
	if err != nil {
		h.writeError(w, "Error retrieving graph data", err)
		return
	}
	h.writeOK(w, "graph data retrieved successfully", data)
}

// HandleTopDownBottomUp returns both security rankings
func (h *Handler) HandleTopDownBottomUp(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.decodeFilter(w, r)
	if !ok {
		return
	}
	data, err := h.service.TopDownBottomUp(filter)
	if err != nil {
		h.writeError(w, "Error retrieving Top-down and Bottom-up securities data", err)
		return
	}
	h.writeOK(w, "Top-down and Bottom-up securities data retrieved successfully", data)
}

// HandleGetSnapshot describes the served snapshot
func (h *Handler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Snapshot()
	if err != nil {
		h.writeError(w, "Error retrieving snapshot", err)
		return
	}
	h.writeOK(w, "snapshot retrieved successfully", info)
}

// HandleReloadSnapshot rebuilds the snapshot from its source
func (h *Handler) HandleReloadSnapshot(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Reload(r.Context())
	if err != nil {
		h.writeError(w, "Error reloading snapshot", err)
		return
	}
	h.log.Info().Str("version", info.Version).Int("statements", info.Statements).Msg("Snapshot reloaded")
	h.writeOK(w, "snapshot reloaded successfully", info)
}

func (h *Handler) decodeFilter(w http.ResponseWriter, r *http.Request) (analytics.Filter, bool) {
	var filter analytics.Filter
	if err := json.NewDecoder(r.Body).Decode(&filter); err != nil && !errors.Is(err, io.EOF) {
		h.writeJSON(w, http.StatusBadRequest, Response{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("Invalid request body: %v", err),
		})
		return filter, false
	}
	return filter, true
}

func (h *Handler) writeOK(w http.ResponseWriter, message string, data interface{}) {
	h.writeJSON(w, http.StatusOK, Response{Status: http.StatusOK, Message: message, Data: data})
}

func (h *Handler) writeError(w http.ResponseWriter, prefix string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg(prefix)
	} else {
		h.log.Debug().Err(err).Int("status", status).Msg(prefix)
	}
	h.writeJSON(w, status, Response{Status: status, Message: fmt.Sprintf("%s: %v", prefix, err)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, analytics.ErrNoData), errors.Is(err, analytics.ErrUnknownSecurity):
		return http.StatusNotFound
	case errors.Is(err, analytics.ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, snapshot.ErrNotLoaded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
