package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"courtbook/internal/ledger"
	"courtbook/internal/metrics"
	"courtbook/internal/models"
	"courtbook/internal/report"

	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// BookRequest is the request body for POST /api/book.
type BookRequest struct {
	SlotID       string `json:"slotId"`
	CustomerName string `json:"customerName,omitempty"`
}

// BookResponse is the success body for POST /api/book.
type BookResponse struct {
	Booked bool        `json:"booked"`
	Slot   models.Slot `json:"slot"`
}

// SlotsResponse is the body for GET /api/slots.
type SlotsResponse struct {
	Slots []models.Slot `json:"slots"`
}

// GET /health
func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	metrics.IncHTTP("health")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GET /readyz
func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("ready")

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("ledger store not ready")
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GET /api/openapi.json
func (s *HTTPServer) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	metrics.IncHTTP("openapi")
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(openapiDocument)
}

// GET /api/slots
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("slots")

	slots, err := s.slots.ListSlots(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Error fetching slots")
		writeError(w, http.StatusInternalServerError, "Failed to fetch slots")
		return
	}
	writeJSON(w, http.StatusOK, SlotsResponse{Slots: slots})
}

// POST /api/book
func (s *HTTPServer) handleBook(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("book")

	if !s.bookLimiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "Too many booking attempts, try again shortly")
		return
	}

	var req BookRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.SlotID) == "" {
		writeError(w, http.StatusBadRequest, "slotId is required")
		return
	}

	slot, err := s.slots.BookSlot(r.Context(), req.SlotID, req.CustomerName)
	switch {
	case errors.Is(err, ledger.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "Slot not found")
		return
	case errors.Is(err, ledger.ErrAlreadyBooked):
		writeError(w, http.StatusConflict, "Slot already booked")
		return
	case err != nil:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("slot_id", req.SlotID).Msg("Error booking slot")
		writeError(w, http.StatusInternalServerError, "Failed to book slot")
		return
	}

	writeJSON(w, http.StatusOK, BookResponse{Booked: true, Slot: slot})
}

// GET /api/availability
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")

	summary, err := s.slots.Availability(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Error computing availability")
		writeError(w, http.StatusInternalServerError, "Failed to fetch availability")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GET /api/export.xlsx
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export")

	slots, err := s.slots.ListSlots(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Error fetching slots for export")
		writeError(w, http.StatusInternalServerError, "Failed to export slots")
		return
	}

	wb, err := report.BuildSlotsWorkbook(slots, false)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Error building export workbook")
		writeError(w, http.StatusInternalServerError, "Failed to export slots")
		return
	}
	defer wb.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="slots.xlsx"`)
	if err := wb.Write(w); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Error writing export workbook")
	}
}
