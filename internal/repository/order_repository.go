package repository

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const orderColumns = `o.id, o.order_number, o.user_id, o.subtotal, o.discount, o.shipping, o.tax, o.total,
	o.promo_code, o.shipping_address, o.notes, o.status, o.payment_method, o.payment_status,
	o.transaction_id, o.paid_at, o.payment_details, o.tracking, o.cancellation,
	o.shipped_at, o.delivered_at, o.created_at, o.updated_at`

const (
	withUser    = `, u.email AS user_email, u.name AS user_name FROM orders o LEFT JOIN users u ON u.id = o.user_id`
	withoutUser = `, NULL::text AS user_email, NULL::text AS user_name FROM orders o`
)

// orderRow is the flat orders table shape.
type orderRow struct {
	ID              uuid.UUID             `db:"id"`
	OrderNumber     string                `db:"order_number"`
	UserID          uuid.UUID             `db:"user_id"`
	Subtotal        decimal.Decimal       `db:"subtotal"`
	Discount        decimal.Decimal       `db:"discount"`
	Shipping        decimal.Decimal       `db:"shipping"`
	Tax             decimal.Decimal       `db:"tax"`
	Total           decimal.Decimal       `db:"total"`
	PromoCode       *string               `db:"promo_code"`
	ShippingAddress model.ShippingAddress `db:"shipping_address"`
	Notes           string                `db:"notes"`
	Status          model.OrderStatus     `db:"status"`
	PaymentMethod   model.PaymentMethod   `db:"payment_method"`
	PaymentStatus   model.PaymentStatus   `db:"payment_status"`
	TransactionID   string                `db:"transaction_id"`
	PaidAt          *time.Time            `db:"paid_at"`
	PaymentDetails  map[string]any        `db:"payment_details"`
	Tracking        *model.Tracking       `db:"tracking"`
	Cancellation    *model.Cancellation   `db:"cancellation"`
	ShippedAt       *time.Time            `db:"shipped_at"`
	DeliveredAt     *time.Time            `db:"delivered_at"`
	CreatedAt       time.Time             `db:"created_at"`
	UpdatedAt       time.Time             `db:"updated_at"`
	UserEmail       *string               `db:"user_email"`
	UserName        *string               `db:"user_name"`
}

func (r orderRow) toModel() model.Order {
	o := model.Order{
		ID:              r.ID,
		OrderNumber:     r.OrderNumber,
		UserID:          r.UserID,
		Subtotal:        r.Subtotal,
		Discount:        r.Discount,
		Shipping:        r.Shipping,
		Tax:             r.Tax,
		Total:           r.Total,
		PromoCode:       r.PromoCode,
		ShippingAddress: r.ShippingAddress,
		Notes:           r.Notes,
		Status:          r.Status,
		Payment: model.Payment{
			Method:        r.PaymentMethod,
			Status:        r.PaymentStatus,
			TransactionID: r.TransactionID,
			PaidAt:        r.PaidAt,
			Details:       r.PaymentDetails,
		},
		Tracking:     r.Tracking,
		Cancellation: r.Cancellation,
		ShippedAt:    r.ShippedAt,
		DeliveredAt:  r.DeliveredAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.UserEmail != nil {
		o.User = &model.UserSummary{ID: r.UserID, Email: *r.UserEmail}
		if r.UserName != nil {
			o.User.Name = *r.UserName
		}
	}
	return o
}

type orderItemRow struct {
	OrderID uuid.UUID `db:"order_id"`
	model.LineItem
}

type statusRow struct {
	OrderID uuid.UUID `db:"order_id"`
	model.StatusEntry
}

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// Create inserts the order, its line items and its status history within the provided transaction.
// The order number is allocated here and written back onto order.
func (r *orderRepository) Create(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}
	order.OrderNumber = r.NextOrderNumber(ctx, tx, order.CreatedAt)

	query := `
		INSERT INTO orders (
			id, order_number, user_id, subtotal, discount, shipping, tax, total,
			promo_code, shipping_address, notes, status, payment_method, payment_status,
			transaction_id, paid_at, payment_details, tracking, cancellation,
			shipped_at, delivered_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19,
			$20, $21, $22, $23
		)
	`

	_, err := tx.Exec(ctx, query,
		order.ID, order.OrderNumber, order.UserID,
		order.Subtotal, order.Discount, order.Shipping, order.Tax, order.Total,
		order.PromoCode, order.ShippingAddress, order.Notes, order.Status,
		order.Payment.Method, order.Payment.Status, order.Payment.TransactionID,
		order.Payment.PaidAt, order.Payment.Details, order.Tracking, order.Cancellation,
		order.ShippedAt, order.DeliveredAt, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Str("order_number", order.OrderNumber).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	if err := r.createItems(ctx, tx, order.ID, order.Items); err != nil {
		return err
	}

	for _, entry := range order.StatusHistory {
		if err := r.AppendStatus(ctx, tx, order.ID, entry); err != nil {
			return err
		}
	}

	r.logger.Debug().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Int("items", len(order.Items)).
		Msg("order created successfully")

	return nil
}

func (r *orderRepository) createItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, items []model.LineItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO order_items (order_id, position, product_id, code, title, thumbnail, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	batch := &pgx.Batch{}
	for i, item := range items {
		batch.Queue(query, orderID, i, item.ProductID, item.Code, item.Title, item.Thumbnail,
			item.Quantity, item.UnitPrice, item.Subtotal)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := range items {
		if _, err := results.Exec(); err != nil {
			r.logger.Error().
				Err(err).
				Str("order_id", orderID.String()).
				Str("product_id", items[i].ProductID.String()).
				Msg("failed to create order item")
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	return nil
}

// NextOrderNumber returns ORD + YYMM + a four digit monthly sequence. The counter is bumped inside a
// savepoint so that a failure leaves the surrounding transaction usable; in that case a
// time-based number is returned instead.
func (r *orderRepository) NextOrderNumber(ctx context.Context, tx pgx.Tx, at time.Time) string {
	period := at.UTC().Format("0601")

	seq, err := r.nextSequence(ctx, tx, period)
	if err != nil {
		number := fallbackOrderNumber(at)
		r.logger.Warn().
			Err(err).
			Str("period", period).
			Str("order_number", number).
			Msg("order sequence unavailable, using fallback order number")
		return number
	}

	return fmt.Sprintf("ORD%s%04d", period, seq)
}

const sequenceSavepoint = "order_sequence"

func (r *orderRepository) nextSequence(ctx context.Context, tx pgx.Tx, period string) (int, error) {
	if _, err := tx.Exec(ctx, "SAVEPOINT "+sequenceSavepoint); err != nil {
		return 0, fmt.Errorf("failed to create savepoint: %w", err)
	}

	var seq int
	err := tx.QueryRow(ctx, `
		INSERT INTO order_sequences (period, value) VALUES ($1, 1)
		ON CONFLICT (period) DO UPDATE SET value = order_sequences.value + 1
		RETURNING value
	`, period).Scan(&seq)
	if err != nil {
		r.rollbackSequence(ctx, tx)
		return 0, fmt.Errorf("failed to increment order sequence: %w", err)
	}

	if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT "+sequenceSavepoint); err != nil {
		r.rollbackSequence(ctx, tx)
		return 0, fmt.Errorf("failed to release savepoint: %w", err)
	}

	return seq, nil
}

// rollbackSequence returns the transaction to the state before the sequence bump so the
// order insert can still run.
func (r *orderRepository) rollbackSequence(ctx context.Context, tx pgx.Tx) {
	if _, err := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+sequenceSavepoint); err != nil {
		r.logger.Error().Err(err).Msg("failed to roll back order sequence savepoint")
	}
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func fallbackOrderNumber(at time.Time) string {
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = base36[rand.Intn(len(base36))]
	}
	return "ORD" + strconv.FormatInt(at.UnixMilli(), 10) + strings.ToUpper(string(suffix))
}

// GetByID retrieves an order by its ID along with its items and history.
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID, opts model.OrderQueryOptions) (*model.Order, error) {
	from := withoutUser
	if opts.IncludeUser {
		from = withUser
	}

	return r.getOne(ctx, r.pool, `SELECT `+orderColumns+from+` WHERE o.id = $1`, id)
}

// LockByID reads an order with SELECT ... FOR UPDATE.
func (r *orderRepository) LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error) {
	return r.getOne(ctx, tx, `SELECT `+orderColumns+withoutUser+` WHERE o.id = $1 FOR UPDATE`, id)
}

func (r *orderRepository) getOne(ctx context.Context, q Querier, query string, id uuid.UUID) (*model.Order, error) {
	row, err := queryOne[orderRow](ctx, q, query, id)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}
	if row == nil {
		r.logger.Debug().Str("order_id", id.String()).Msg("order not found")
		return nil, nil
	}

	orders := []model.Order{row.toModel()}
	if err := r.attachDetails(ctx, q, orders); err != nil {
		return nil, err
	}

	return &orders[0], nil
}

// attachDetails loads line items and status history for every order in one round trip each.
func (r *orderRepository) attachDetails(ctx context.Context, q Querier, orders []model.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(orders))
	index := make(map[uuid.UUID]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
		orders[i].Items = []model.LineItem{}
		orders[i].StatusHistory = []model.StatusEntry{}
	}

	items, err := queryAll[orderItemRow](ctx, q, `
		SELECT order_id, product_id, code, title, thumbnail, quantity, unit_price, subtotal
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, ids)
	if err != nil {
		r.logger.Error().Err(err).Int("orders", len(ids)).Msg("failed to query order items")
		return fmt.Errorf("failed to query order items: %w", err)
	}
	for _, item := range items {
		o := &orders[index[item.OrderID]]
		o.Items = append(o.Items, item.LineItem)
	}

	history, err := queryAll[statusRow](ctx, q, `
		SELECT order_id, status, note, actor, created_at
		FROM order_status_history
		WHERE order_id = ANY($1)
		ORDER BY order_id, id
	`, ids)
	if err != nil {
		r.logger.Error().Err(err).Int("orders", len(ids)).Msg("failed to query order status history")
		return fmt.Errorf("failed to query order status history: %w", err)
	}
	for _, entry := range history {
		o := &orders[index[entry.OrderID]]
		o.StatusHistory = append(o.StatusHistory, entry.StatusEntry)
	}

	return nil
}

// ListByUser pages through a user's own orders.
func (r *orderRepository) ListByUser(ctx context.Context, userID uuid.UUID, status *model.OrderStatus, page, pageSize int) (*model.OrderPage, error) {
	return r.List(ctx, model.OrderFilter{UserID: &userID, Status: status}, page, pageSize)
}

// List pages through orders matching filter with the owner resolved.
func (r *orderRepository) List(ctx context.Context, filter model.OrderFilter, page, pageSize int) (*model.OrderPage, error) {
	where, args := filterClause(filter)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders o`+where, args...).Scan(&total); err != nil {
		r.logger.Error().Err(err).Msg("failed to count orders")
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	args = append(args, pageSize, (page-1)*pageSize)
	query := `SELECT ` + orderColumns + withUser + where +
		fmt.Sprintf(` ORDER BY o.created_at DESC, o.id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := queryAll[orderRow](ctx, r.pool, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Int("page", page).Int("page_size", pageSize).Msg("failed to query orders")
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	orders := make([]model.Order, len(rows))
	for i, row := range rows {
		orders[i] = row.toModel()
	}
	if err := r.attachDetails(ctx, r.pool, orders); err != nil {
		return nil, err
	}

	return &model.OrderPage{
		Orders:   orders,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func filterClause(f model.OrderFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != nil {
		add("o.status = $%d", *f.Status)
	}
	if f.UserID != nil {
		add("o.user_id = $%d", *f.UserID)
	}
	if f.PaymentStatus != nil {
		add("o.payment_status = $%d", *f.PaymentStatus)
	}
	if f.From != nil {
		add("o.created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("o.created_at < $%d", *f.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Update persists status, payment, tracking, cancellation and lifecycle timestamps.
// Items, totals and the order number are immutable and never written here.
func (r *orderRepository) Update(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	query := `
		UPDATE orders SET
			status = $2,
			payment_status = $3,
			transaction_id = $4,
			paid_at = $5,
			payment_details = $6,
			tracking = $7,
			cancellation = $8,
			shipped_at = $9,
			delivered_at = $10,
			updated_at = $11
		WHERE id = $1
	`

	tag, err := tx.Exec(ctx, query,
		order.ID, order.Status, order.Payment.Status, order.Payment.TransactionID,
		order.Payment.PaidAt, order.Payment.Details, order.Tracking, order.Cancellation,
		order.ShippedAt, order.DeliveredAt, order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to update order")
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError("order", order.ID)
	}

	return nil
}

// AppendStatus inserts one status history entry.
func (r *orderRepository) AppendStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, entry model.StatusEntry) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO order_status_history (order_id, status, note, actor, created_at) VALUES ($1, $2, $3, $4, $5)`,
		orderID, entry.Status, entry.Note, entry.Actor, entry.CreatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", orderID.String()).
			Str("status", string(entry.Status)).
			Msg("failed to append order status")
		return fmt.Errorf("failed to append order status: %w", err)
	}

	return nil
}

type statusTotalRow struct {
	Status model.OrderStatus `db:"status"`
	Count  int               `db:"count"`
	Sum    decimal.Decimal   `db:"sum"`
}

// Stats counts orders per status and sums revenue over revenue-bearing statuses.
func (r *orderRepository) Stats(ctx context.Context, from, to *time.Time) (*model.OrderStats, error) {
	where, args := filterClause(model.OrderFilter{From: from, To: to})

	rows, err := queryAll[statusTotalRow](ctx, r.pool,
		`SELECT o.status AS status, COUNT(*)::int AS count, COALESCE(SUM(o.total), 0) AS sum
		FROM orders o`+where+` GROUP BY o.status`, args...)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to aggregate orders")
		return nil, fmt.Errorf("failed to aggregate orders: %w", err)
	}

	stats := &model.OrderStats{
		Revenue:           decimal.Zero,
		AverageOrderValue: decimal.Zero,
		ByStatus:          make(map[model.OrderStatus]int, len(model.AllOrderStatuses)),
		From:              from,
		To:                to,
	}
	for _, s := range model.AllOrderStatuses {
		stats.ByStatus[s] = 0
	}

	revenueOrders := 0
	for _, row := range rows {
		stats.ByStatus[row.Status] = row.Count
		stats.TotalOrders += row.Count
		if row.Status.RevenueBearing() {
			stats.Revenue = stats.Revenue.Add(row.Sum)
			revenueOrders += row.Count
		}
	}
	if revenueOrders > 0 {
		stats.AverageOrderValue = stats.Revenue.Div(decimal.NewFromInt(int64(revenueOrders))).Round(2)
	}

	return stats, nil
}
