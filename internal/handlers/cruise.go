package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"icruise-backend/internal/models"
)

type cruiseRepository interface {
	List(ctx context.Context, search string, maxPrice int, duration string, limit, offset int) ([]*models.Cruise, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Cruise, error)
}

type CruiseHandler struct {
	cruiseRepo cruiseRepository
}

func NewCruiseHandler(cruiseRepo cruiseRepository) *CruiseHandler {
	return &CruiseHandler{cruiseRepo: cruiseRepo}
}

func (h *CruiseHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 || limit > 50 {
		limit = 20
	}
	maxPrice, _ := strconv.Atoi(q.Get("max_price"))

	cruises, total, err := h.cruiseRepo.List(r.Context(), q.Get("search"), maxPrice, q.Get("duration"), limit, (page-1)*limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load cruises", r))
		return
	}

	if cruises == nil {
		cruises = []*models.Cruise{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cruises": cruises,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

func (h *CruiseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid cruise ID", r))
		return
	}

	cruise, err := h.cruiseRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Cruise not found", r))
		return
	}

	writeJSON(w, http.StatusOK, cruise)
}

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}
