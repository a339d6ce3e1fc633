package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/your-org/cityinfo/internal/domain"
	"github.com/your-org/cityinfo/internal/middleware"
	"github.com/your-org/cityinfo/internal/usecases"
)

// PaginationHeader carries the serialized PaginationMetadata of list responses
const PaginationHeader = "X-Pagination"

// CityHandler handles HTTP requests for cities
type CityHandler struct {
	usecase *usecases.CityUsecase
	logger  *zap.Logger
}

// NewCityHandler creates a new city handler
func NewCityHandler(usecase *usecases.CityUsecase, logger *zap.Logger) *CityHandler {
	return &CityHandler{
		usecase: usecase,
		logger:  logger,
	}
}

// Routes mounts the city endpoints on r
func (h *CityHandler) Routes(r chi.Router) {
	r.Get("/", h.ListCities)
	r.Get("/{id}", h.GetCity)
}

// ListCities handles GET /cities with filters and pagination
func (h *CityHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	params, err := h.parseListParams(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	page, err := h.usecase.ListCities(ctx, params)
	if err != nil {
		h.logger.Error("failed to list cities",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		h.respondError(w, http.StatusInternalServerError, "failed to list cities", requestID)
		return
	}

	metadata, err := json.Marshal(page.Pagination)
	if err != nil {
		h.logger.Error("failed to encode pagination metadata",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		h.respondError(w, http.StatusInternalServerError, "failed to list cities", requestID)
		return
	}
	w.Header().Set(PaginationHeader, string(metadata))
	w.Header().Set("Access-Control-Expose-Headers", PaginationHeader)

	h.respondJSON(w, http.StatusOK, page.Items, requestID)
}

// GetCity handles GET /cities/{id}
func (h *CityHandler) GetCity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid id parameter: must be an integer", requestID)
		return
	}

	includePointsOfInterest, err := parseIncludeFlag(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	city, err := h.usecase.GetCity(ctx, id, includePointsOfInterest)
	if errors.Is(err, domain.ErrCityNotFound) {
		w.Header().Set("X-Request-ID", requestID)
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to get city",
			zap.String("request_id", requestID),
			zap.Int("id", id),
			zap.Error(err),
		)
		h.respondError(w, http.StatusInternalServerError, "failed to get city", requestID)
		return
	}

	h.respondJSON(w, http.StatusOK, city, requestID)
}

// parseListParams parses filters and pagination, applying defaults for absent values
func (h *CityHandler) parseListParams(r *http.Request) (usecases.ListCitiesParams, error) {
	query := r.URL.Query()
	params := usecases.ListCitiesParams{
		Name:        query.Get("name"),
		SearchQuery: query.Get("searchQuery"),
		PageNumber:  usecases.DefaultPageNumber,
		PageSize:    usecases.DefaultPageSize,
	}

	var err error
	if raw := query.Get("pageNumber"); raw != "" {
		if params.PageNumber, err = strconv.Atoi(raw); err != nil {
			return params, fmt.Errorf("invalid pageNumber parameter: must be an integer")
		}
	}
	if raw := query.Get("pageSize"); raw != "" {
		if params.PageSize, err = strconv.Atoi(raw); err != nil {
			return params, fmt.Errorf("invalid pageSize parameter: must be an integer")
		}
	}

	return params, nil
}

// parseIncludeFlag reads includePointsOfInterest, or its alias includeChildren
func parseIncludeFlag(r *http.Request) (bool, error) {
	query := r.URL.Query()
	for _, key := range []string{"includePointsOfInterest", "includeChildren"} {
		raw := query.Get(key)
		if raw == "" {
			continue
		}
		include, err := strconv.ParseBool(raw)
		if err != nil {
			return false, fmt.Errorf("invalid %s parameter: must be a boolean", key)
		}
		return include, nil
	}
	return false, nil
}

// respondJSON sends a JSON response
func (h *CityHandler) respondJSON(w http.ResponseWriter, status int, data interface{}, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
	}
}

// respondError sends an error response
func (h *CityHandler) respondError(w http.ResponseWriter, status int, message, requestID string) {
	h.respondJSON(w, status, map[string]string{
		"error":      message,
		"request_id": requestID,
	}, requestID)
}
