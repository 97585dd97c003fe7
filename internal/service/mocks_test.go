package service

import (
	"context"
	"sync"
	"time"

	"storefront/internal/model"
	"storefront/internal/notify"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

// MockProductRepository is a mock implementation of ProductRepository.
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *MockProductRepository) LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Product, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductRepository) AdjustStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int) (*model.Product, error) {
	args := m.Called(ctx, tx, id, delta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

// MockCartRepository is a mock implementation of CartRepository.
type MockCartRepository struct {
	mock.Mock
}

func (m *MockCartRepository) GetByUserID(ctx context.Context, q repository.Querier, userID uuid.UUID, opts model.CartQueryOptions) (*model.Cart, error) {
	args := m.Called(ctx, q, userID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cart), args.Error(1)
}

func (m *MockCartRepository) LockByUserID(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*model.Cart, error) {
	args := m.Called(ctx, tx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cart), args.Error(1)
}

func (m *MockCartRepository) RemoveLines(ctx context.Context, tx pgx.Tx, cartID uuid.UUID, productIDs []uuid.UUID) (*model.Cart, error) {
	args := m.Called(ctx, tx, cartID, productIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cart), args.Error(1)
}

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

// MockOrderRepository is a mock implementation of OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	args := m.Called(ctx, tx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID, opts model.OrderQueryOptions) (*model.Order, error) {
	args := m.Called(ctx, id, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) ListByUser(ctx context.Context, userID uuid.UUID, status *model.OrderStatus, page, pageSize int) (*model.OrderPage, error) {
	args := m.Called(ctx, userID, status, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderPage), args.Error(1)
}

func (m *MockOrderRepository) List(ctx context.Context, filter model.OrderFilter, page, pageSize int) (*model.OrderPage, error) {
	args := m.Called(ctx, filter, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderPage), args.Error(1)
}

func (m *MockOrderRepository) Update(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	args := m.Called(ctx, tx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) AppendStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, entry model.StatusEntry) error {
	args := m.Called(ctx, tx, orderID, entry)
	return args.Error(0)
}

func (m *MockOrderRepository) Stats(ctx context.Context, from, to *time.Time) (*model.OrderStats, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderStats), args.Error(1)
}

func (m *MockOrderRepository) NextOrderNumber(ctx context.Context, tx pgx.Tx, at time.Time) string {
	args := m.Called(ctx, tx, at)
	return args.String(0)
}

// MockPromoResolver is a mock implementation of promo.Resolver.
type MockPromoResolver struct {
	mock.Mock
}

func (m *MockPromoResolver) Resolve(ctx context.Context, code string) (int, error) {
	args := m.Called(ctx, code)
	return args.Int(0), args.Error(1)
}

func (m *MockPromoResolver) Close() error {
	args := m.Called()
	return args.Error(0)
}

// recordingNotifier captures dispatched events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	orders []model.Order
}

func (n *recordingNotifier) Dispatch(_ context.Context, event notify.Event, order *model.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	n.orders = append(n.orders, *order)
}

// MockTx is a minimal mock implementation of pgx.Tx for testing.
type MockTx struct {
	mock.Mock
	committed  bool
	rolledBack bool
}

func (m *MockTx) Commit(ctx context.Context) error {
	m.committed = true
	return nil
}

func (m *MockTx) Rollback(ctx context.Context) error {
	m.rolledBack = true
	return nil
}

// Stub methods to satisfy pgx.Tx interface - these are not used in our tests
func (m *MockTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (m *MockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (m *MockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (m *MockTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (m *MockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (m *MockTx) Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error) {
	return
}
func (m *MockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (m *MockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (m *MockTx) Conn() *pgx.Conn                                               { return nil }

// stubTxRunner runs fn on a MockTx and commits or rolls back like the real runner.
type stubTxRunner struct {
	tx *MockTx
}

func newStubTxRunner() *stubTxRunner {
	return &stubTxRunner{tx: &MockTx{}}
}

func (r *stubTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if err := fn(ctx, r.tx); err != nil {
		_ = r.tx.Rollback(ctx)
		return err
	}
	return r.tx.Commit(ctx)
}
