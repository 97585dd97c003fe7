package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"storefront/internal/model"
	"storefront/internal/notify"
	"storefront/internal/pricing"
	"storefront/internal/promo"
	"storefront/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	// maxPage keeps (page-1)*pageSize inside a 32-bit OFFSET.
	maxPage = math.MaxInt32 / maxPageSize
)

// OrderDeps groups the collaborators of the order service.
type OrderDeps struct {
	Tx           repository.TxRunner
	Orders       repository.OrderRepository
	Products     repository.ProductRepository
	Carts        repository.CartRepository
	Users        repository.UserRepository
	Pricing      *pricing.Calculator
	Promo        promo.Resolver
	Notifier     Notifier
	MaxCartItems int
}

// orderService implements OrderService.
type orderService struct {
	tx           repository.TxRunner
	orderRepo    repository.OrderRepository
	productRepo  repository.ProductRepository
	cartRepo     repository.CartRepository
	userRepo     repository.UserRepository
	pricing      *pricing.Calculator
	promo        promo.Resolver
	notifier     Notifier
	maxCartItems int
	validate     *validator.Validate
	logger       zerolog.Logger
}

// NewOrderService creates a new order service. Promo may be nil when no catalogues are configured.
func NewOrderService(deps OrderDeps, logger zerolog.Logger) OrderService {
	return &orderService{
		tx:           deps.Tx,
		orderRepo:    deps.Orders,
		productRepo:  deps.Products,
		cartRepo:     deps.Carts,
		userRepo:     deps.Users,
		pricing:      deps.Pricing,
		promo:        deps.Promo,
		notifier:     deps.Notifier,
		maxCartItems: deps.MaxCartItems,
		validate:     newValidator(),
		logger:       logger.With().Str("service", "order").Logger(),
	}
}

// CreateOrderFromCart reserves the cart contents into an order. Stock, cart and order are
// written in one transaction; the created notification is scheduled only after commit.
func (s *orderService) CreateOrderFromCart(ctx context.Context, userID uuid.UUID, req *model.CreateOrderRequest) (*model.CreateOrderResult, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	if user == nil {
		return nil, model.NewNotFoundError("user", userID)
	}

	promoCode, percent, err := s.resolvePromo(ctx, req.PromoCode)
	if err != nil {
		return nil, err
	}

	var (
		order       *model.Order
		unavailable []model.UnavailableItem
	)

	err = s.tx.RunInTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		cart, err := s.cartRepo.LockByUserID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if cart == nil {
			return model.NewNotFoundError("cart", userID)
		}
		if len(cart.Items) == 0 {
			return model.NewBusinessError(model.ErrCodeEmptyCart, "cart is empty")
		}
		if qty := cart.TotalQuantity(); qty > s.maxCartItems {
			return &model.BusinessError{
				Code:    model.ErrCodeCartLimit,
				Message: fmt.Sprintf("cart holds %d items, the limit is %d", qty, s.maxCartItems),
				Details: map[string]int{"quantity": qty, "limit": s.maxCartItems},
			}
		}

		var items []model.LineItem
		items, unavailable, err = s.reserveLines(ctx, tx, cart.Items)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return &model.BusinessError{
				Code:    model.ErrCodeNoAvailableItems,
				Message: "none of the items in the cart are available",
				Details: unavailable,
			}
		}

		totals := s.pricing.Compute(lineTotal(items), percent)
		if s.pricing.BelowMinimum(totals.Total) {
			return &model.BusinessError{
				Code:    model.ErrCodeBelowMinimum,
				Message: fmt.Sprintf("order total %s is below the minimum of %s", totals.Total, s.pricing.MinOrderAmount()),
				Details: map[string]string{
					"total":   totals.Total.String(),
					"minimum": s.pricing.MinOrderAmount().String(),
				},
			}
		}

		now := time.Now().UTC()
		order = &model.Order{
			ID:              uuid.New(),
			UserID:          userID,
			Items:           items,
			Subtotal:        totals.Subtotal,
			Discount:        totals.Discount,
			Shipping:        totals.Shipping,
			Tax:             totals.Tax,
			Total:           totals.Total,
			PromoCode:       promoCode,
			ShippingAddress: req.ShippingAddress,
			Notes:           req.Notes,
			Payment: model.Payment{
				Method: req.PaymentMethod,
				Status: model.PaymentStatusPending,
			},
			CreatedAt: now,
		}
		order.AppendStatus(model.OrderStatusPending, "order created", &userID, now)

		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return err
		}

		ordered := make([]uuid.UUID, len(items))
		for i, item := range items {
			ordered[i] = item.ProductID
		}
		_, err = s.cartRepo.RemoveLines(ctx, tx, cart.ID, ordered)
		return err
	})
	if err != nil {
		s.logFailure(err, "failed to create order", userID)
		return nil, err
	}

	order.User = &model.UserSummary{ID: user.ID, Email: user.Email, Name: user.Name}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Str("user_id", userID.String()).
		Int("item_count", len(order.Items)).
		Int("unavailable_count", len(unavailable)).
		Str("total", order.Total.String()).
		Msg("order created successfully")

	s.notifier.Dispatch(ctx, notify.EventOrderCreated, order)

	return &model.CreateOrderResult{Order: order, Unavailable: unavailable}, nil
}

// reserveLines locks each product in ascending id order, snapshots the lines that can be
// fulfilled and decrements their stock. The rest are reported as unavailable.
func (s *orderService) reserveLines(ctx context.Context, tx pgx.Tx, lines []model.CartItem) ([]model.LineItem, []model.UnavailableItem, error) {
	sorted := slices.Clone(lines)
	slices.SortFunc(sorted, func(a, b model.CartItem) int {
		return bytes.Compare(a.ProductID[:], b.ProductID[:])
	})

	items := make([]model.LineItem, 0, len(sorted))
	unavailable := []model.UnavailableItem{}

	for _, line := range sorted {
		product, err := s.productRepo.LockByID(ctx, tx, line.ProductID)
		if err != nil {
			return nil, nil, err
		}

		missing := model.UnavailableItem{ProductID: line.ProductID, Requested: line.Quantity}
		switch {
		case product == nil:
			missing.Reason = model.UnavailableNotFound
		case !product.Active:
			missing.Title = product.Title
			missing.Reason = model.UnavailableInactive
		case line.Quantity > product.Stock:
			missing.Title = product.Title
			missing.Reason = model.UnavailableInsufficientStock
			missing.Available = product.Stock
		}
		if missing.Reason != "" {
			unavailable = append(unavailable, missing)
			continue
		}

		items = append(items, model.NewLineItem(product, line.Quantity))
		if _, err := s.productRepo.AdjustStock(ctx, tx, product.ID, -line.Quantity); err != nil {
			return nil, nil, err
		}
	}

	return items, unavailable, nil
}

func (s *orderService) resolvePromo(ctx context.Context, code *string) (*string, int, error) {
	if code == nil || strings.TrimSpace(*code) == "" {
		return nil, 0, nil
	}
	if s.promo == nil {
		return nil, 0, &model.BusinessError{
			Code:    model.ErrCodeInvalidPromoCode,
			Message: "promo codes are not available",
			Details: map[string]string{"promoCode": *code},
		}
	}

	percent, err := s.promo.Resolve(ctx, *code)
	if err != nil {
		s.logger.Warn().Err(err).Str("promo_code", *code).Msg("invalid promo code")
		return nil, 0, err
	}

	normalized := promo.Normalize(*code)
	return &normalized, percent, nil
}

// GetOrder returns the order when caller owns it or is an admin. Other callers get
// NotFoundError so that order ids cannot be probed.
func (s *orderService) GetOrder(ctx context.Context, id uuid.UUID, caller model.Identity) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id, model.OrderQueryOptions{IncludeUser: caller.IsAdmin()})
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil || (!caller.IsAdmin() && !order.OwnedBy(caller.UserID)) {
		return nil, model.NewNotFoundError("order", id)
	}

	return order, nil
}

func (s *orderService) ListMyOrders(ctx context.Context, userID uuid.UUID, status *model.OrderStatus, page, pageSize int) (*model.OrderPage, error) {
	if err := validateStatusFilter(status); err != nil {
		return nil, err
	}
	page, pageSize = normalizePage(page, pageSize)

	result, err := s.orderRepo.ListByUser(ctx, userID, status, page, pageSize)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to list user orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return result, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter model.OrderFilter, page, pageSize int) (*model.OrderPage, error) {
	if err := validateStatusFilter(filter.Status); err != nil {
		return nil, err
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, model.NewBusinessError(model.ErrCodeValidation, "from must not be after to")
	}
	page, pageSize = normalizePage(page, pageSize)

	result, err := s.orderRepo.List(ctx, filter, page, pageSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return result, nil
}

// UpdateOrderStatus moves an order along the lifecycle. A request for cancelled goes through
// CancelOrder so that stock is restored.
func (s *orderService) UpdateOrderStatus(ctx context.Context, id uuid.UUID, req *model.UpdateStatusRequest, caller model.Identity) (*model.Order, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if req.Status == model.OrderStatusCancelled {
		return s.CancelOrder(ctx, id, req.Note, caller)
	}

	var order *model.Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		if order, err = s.lockOrder(ctx, tx, id); err != nil {
			return err
		}

		if !order.Status.CanTransitionTo(req.Status) {
			return model.NewTransitionError(order.Status, req.Status)
		}
		if req.Status == model.OrderStatusRefunded && !order.RefundPending() {
			return model.NewTransitionError(order.Status, req.Status)
		}

		now := time.Now().UTC()
		switch req.Status {
		case model.OrderStatusShipped:
			order.ShippedAt = &now
			if req.Tracking != nil {
				order.Tracking = req.Tracking
			}
		case model.OrderStatusDelivered:
			order.DeliveredAt = &now
		case model.OrderStatusRefunded:
			order.Cancellation.RefundStatus = model.RefundStatusCompleted
			order.Payment.Status = model.PaymentStatusRefunded
		}

		return s.persistTransition(ctx, tx, order, req.Status, req.Note, caller.Actor(), now)
	})
	if err != nil {
		s.logFailure(err, "failed to update order status", id)
		return nil, err
	}

	s.logger.Info().
		Str("order_id", id.String()).
		Str("status", string(order.Status)).
		Msg("order status updated")

	if event, ok := notify.EventForStatus(order.Status); ok {
		s.notify(ctx, event, order)
	}

	return order, nil
}

// ConfirmPayment approves the payment of a pending order and moves it to processing.
func (s *orderService) ConfirmPayment(ctx context.Context, id uuid.UUID, req *model.ConfirmPaymentRequest, caller model.Identity) (*model.Order, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	var order *model.Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		if order, err = s.lockOrder(ctx, tx, id); err != nil {
			return err
		}

		if order.Status != model.OrderStatusPending || order.Payment.Status == model.PaymentStatusApproved {
			return model.NewPaymentStateError(order.Status, order.Payment.Status)
		}

		now := time.Now().UTC()
		order.Payment.Status = model.PaymentStatusApproved
		order.Payment.TransactionID = req.TransactionID
		order.Payment.PaidAt = &now
		order.Payment.Details = req.Details

		return s.persistTransition(ctx, tx, order, model.OrderStatusProcessing, "payment confirmed", caller.Actor(), now)
	})
	if err != nil {
		s.logFailure(err, "failed to confirm payment", id)
		return nil, err
	}

	s.logger.Info().
		Str("order_id", id.String()).
		Str("transaction_id", req.TransactionID).
		Msg("payment confirmed")

	s.notify(ctx, notify.EventPaymentConfirmed, order)

	return order, nil
}

// CancelOrder cancels a pending or processing order and puts its stock back. Owners may
// cancel their own orders; other non-admin callers get NotFoundError.
func (s *orderService) CancelOrder(ctx context.Context, id uuid.UUID, reason string, caller model.Identity) (*model.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &model.BusinessError{
			Code:    model.ErrCodeValidation,
			Message: "cancellation reason is required",
			Details: []FieldError{{Field: "reason", Rule: "required"}},
		}
	}

	var order *model.Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		if order, err = s.lockOrder(ctx, tx, id); err != nil {
			return err
		}
		if !caller.IsAdmin() && !order.OwnedBy(caller.UserID) {
			return model.NewNotFoundError("order", id)
		}
		if !order.Status.Cancellable() {
			return model.NewNotCancellableError(order.Status)
		}

		now := time.Now().UTC()
		refund := model.RefundStatusNone
		if order.Payment.Status == model.PaymentStatusApproved {
			refund = model.RefundStatusPending
		}
		order.Cancellation = &model.Cancellation{
			Reason:       reason,
			CancelledAt:  now,
			CancelledBy:  caller.Actor(),
			RefundStatus: refund,
		}

		if err := s.restoreStock(ctx, tx, order); err != nil {
			return err
		}

		return s.persistTransition(ctx, tx, order, model.OrderStatusCancelled, reason, caller.Actor(), now)
	})
	if err != nil {
		s.logFailure(err, "failed to cancel order", id)
		return nil, err
	}

	s.logger.Info().
		Str("order_id", id.String()).
		Str("refund_status", string(order.Cancellation.RefundStatus)).
		Msg("order cancelled")

	s.notify(ctx, notify.EventOrderCancelled, order)

	return order, nil
}

// restoreStock returns every ordered unit to its product, in ascending product id order.
// Products deleted since the order was placed are skipped.
func (s *orderService) restoreStock(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	items := slices.Clone(order.Items)
	slices.SortFunc(items, func(a, b model.LineItem) int {
		return bytes.Compare(a.ProductID[:], b.ProductID[:])
	})

	for _, item := range items {
		_, err := s.productRepo.AdjustStock(ctx, tx, item.ProductID, item.Quantity)
		var notFound *model.NotFoundError
		if errors.As(err, &notFound) {
			s.logger.Warn().
				Str("order_id", order.ID.String()).
				Str("product_id", item.ProductID.String()).
				Msg("product no longer exists, stock not restored")
			continue
		}
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *orderService) GetOrderStats(ctx context.Context, from, to *time.Time) (*model.OrderStats, error) {
	if from != nil && to != nil && to.Before(*from) {
		return nil, model.NewBusinessError(model.ErrCodeValidation, "from must not be after to")
	}

	stats, err := s.orderRepo.Stats(ctx, from, to)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to compute order stats")
		return nil, fmt.Errorf("failed to compute order stats: %w", err)
	}

	return stats, nil
}

func (s *orderService) lockOrder(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.LockByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, model.NewNotFoundError("order", id)
	}
	return order, nil
}

// persistTransition records status in the order and its history and writes both.
func (s *orderService) persistTransition(ctx context.Context, tx pgx.Tx, order *model.Order, status model.OrderStatus, note string, actor *uuid.UUID, at time.Time) error {
	order.AppendStatus(status, note, actor, at)

	if err := s.orderRepo.Update(ctx, tx, order); err != nil {
		return err
	}
	return s.orderRepo.AppendStatus(ctx, tx, order.ID, order.StatusHistory[len(order.StatusHistory)-1])
}

// notify attaches the owner for recipient-aware sinks and schedules event.
func (s *orderService) notify(ctx context.Context, event notify.Event, order *model.Order) {
	if order.User == nil {
		user, err := s.userRepo.GetByID(ctx, order.UserID)
		if err != nil {
			s.logger.Warn().Err(err).Str("order_id", order.ID.String()).Msg("failed to load order owner for notification")
		}
		if user != nil {
			order.User = &model.UserSummary{ID: user.ID, Email: user.Email, Name: user.Name}
		}
	}

	s.notifier.Dispatch(ctx, event, order)
}

// logFailure logs domain rejections as warnings and everything else as errors.
func (s *orderService) logFailure(err error, msg string, id uuid.UUID) {
	var (
		notFound   *model.NotFoundError
		business   *model.BusinessError
		orderError *model.OrderError
	)
	if errors.As(err, &notFound) || errors.As(err, &business) || errors.As(err, &orderError) {
		s.logger.Warn().Err(err).Str("id", id.String()).Msg(msg)
		return
	}
	s.logger.Error().Err(err).Str("id", id.String()).Msg(msg)
}

func lineTotal(items []model.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal)
	}
	return total
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func validateStatusFilter(status *model.OrderStatus) error {
	if status != nil && !status.Valid() {
		return &model.BusinessError{
			Code:    model.ErrCodeValidation,
			Message: fmt.Sprintf("unknown order status %q", *status),
			Details: []FieldError{{Field: "status", Rule: "oneof"}},
		}
	}
	return nil
}
