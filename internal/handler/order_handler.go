package handler

import (
	"net/http"

	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OrderHandler handles order-related HTTP requests.
type OrderHandler struct {
	service service.OrderService
	logger  zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(service service.OrderService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger.With().Str("handler", "order").Logger(),
	}
}

// Create handles POST /api/orders, turning the caller's cart into an order.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.CreateOrderFromCart(r.Context(), identity(r).UserID, &req)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// ListMine handles GET /api/orders.
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	page, pageSize, ok := pagination(w, r)
	if !ok {
		return
	}

	result, err := h.service.ListMyOrders(r.Context(), identity(r).UserID, queryStatus(r), page, pageSize)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Get handles GET /api/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "order")
	if !ok {
		return
	}

	order, err := h.service.GetOrder(r.Context(), id, identity(r))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// Cancel handles POST /api/orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "order")
	if !ok {
		return
	}

	var req model.CancelOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.service.CancelOrder(r.Context(), id, req.Reason, identity(r))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// AdminList handles GET /api/admin/orders. A date-only to includes that day.
func (h *OrderHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	page, pageSize, ok := pagination(w, r)
	if !ok {
		return
	}

	filter := model.OrderFilter{Status: queryStatus(r)}

	if raw := r.URL.Query().Get("userId"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid userId parameter", nil)
			return
		}
		filter.UserID = &userID
	}

	if raw := r.URL.Query().Get("paymentStatus"); raw != "" {
		payment := model.PaymentStatus(raw)
		if !payment.Valid() {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid paymentStatus parameter", nil)
			return
		}
		filter.PaymentStatus = &payment
	}

	var err error
	if filter.From, err = queryTime(r, "from"); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, err.Error(), nil)
		return
	}
	if filter.To, err = queryUntil(r, "to"); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, err.Error(), nil)
		return
	}

	result, err := h.service.ListOrders(r.Context(), filter, page, pageSize)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// UpdateStatus handles PATCH /api/admin/orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "order")
	if !ok {
		return
	}

	var req model.UpdateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.service.UpdateOrderStatus(r.Context(), id, &req, identity(r))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// ConfirmPayment handles POST /api/admin/orders/{id}/payment.
func (h *OrderHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "order")
	if !ok {
		return
	}

	var req model.ConfirmPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.service.ConfirmPayment(r.Context(), id, &req, identity(r))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// Stats handles GET /api/admin/orders/stats. A date-only to includes that day.
func (h *OrderHandler) Stats(w http.ResponseWriter, r *http.Request) {
	from, err := queryTime(r, "from")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, err.Error(), nil)
		return
	}
	to, err := queryUntil(r, "to")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, err.Error(), nil)
		return
	}

	stats, err := h.service.GetOrderStats(r.Context(), from, to)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
