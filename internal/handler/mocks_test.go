package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/middleware"
	"storefront/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProductService is a mock implementation of ProductService.
type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *MockProductService) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductService) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

// MockOrderService is a mock implementation of OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrderFromCart(ctx context.Context, userID uuid.UUID, req *model.CreateOrderRequest) (*model.CreateOrderResult, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CreateOrderResult), args.Error(1)
}

func (m *MockOrderService) GetOrder(ctx context.Context, id uuid.UUID, caller model.Identity) (*model.Order, error) {
	args := m.Called(ctx, id, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) ListMyOrders(ctx context.Context, userID uuid.UUID, status *model.OrderStatus, page, pageSize int) (*model.OrderPage, error) {
	args := m.Called(ctx, userID, status, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderPage), args.Error(1)
}

func (m *MockOrderService) ListOrders(ctx context.Context, filter model.OrderFilter, page, pageSize int) (*model.OrderPage, error) {
	args := m.Called(ctx, filter, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderPage), args.Error(1)
}

func (m *MockOrderService) UpdateOrderStatus(ctx context.Context, id uuid.UUID, req *model.UpdateStatusRequest, caller model.Identity) (*model.Order, error) {
	args := m.Called(ctx, id, req, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) ConfirmPayment(ctx context.Context, id uuid.UUID, req *model.ConfirmPaymentRequest, caller model.Identity) (*model.Order, error) {
	args := m.Called(ctx, id, req, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) CancelOrder(ctx context.Context, id uuid.UUID, reason string, caller model.Identity) (*model.Order, error) {
	args := m.Called(ctx, id, reason, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) GetOrderStats(ctx context.Context, from, to *time.Time) (*model.OrderStats, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderStats), args.Error(1)
}

// serve routes a single request through a chi router that mounts h at pattern,
// with caller stored as the authenticated identity.
func serve(method, pattern, target string, body io.Reader, h http.HandlerFunc, caller model.Identity) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithIdentity(req.Context(), caller)))
		})
	})
	r.Method(method, pattern, h)

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()

	if s, ok := v.(string); ok {
		return bytes.NewBufferString(s)
	}
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()

	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}
