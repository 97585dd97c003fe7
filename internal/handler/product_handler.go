package handler

import (
	"net/http"

	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/rs/zerolog"
)

// ProductHandler handles product-related HTTP requests.
type ProductHandler struct {
	service service.ProductService
	logger  zerolog.Logger
}

// NewProductHandler creates a new product handler.
func NewProductHandler(service service.ProductService, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		logger:  logger.With().Str("handler", "product").Logger(),
	}
}

// GetAll handles GET /api/products requests with pagination.
func (h *ProductHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, err.Error(), nil)
		return
	}

	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, err.Error(), nil)
		return
	}

	products, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, products)
}

// GetByID handles GET /api/products/{id} requests.
func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "product")
	if !ok {
		return
	}

	product, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, product)
}
