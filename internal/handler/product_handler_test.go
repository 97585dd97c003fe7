package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var reader = model.Identity{UserID: uuid.New(), Role: model.RoleUser}

func TestProductHandler_GetAll(t *testing.T) {
	logger := zerolog.Nop()

	testProducts := []model.Product{
		{ID: uuid.New(), Code: "P001", Title: "Product 1", Price: decimal.NewFromInt(10000), Stock: 5, Active: true, CreatedAt: time.Now()},
		{ID: uuid.New(), Code: "P002", Title: "Product 2", Price: decimal.NewFromInt(20000), Stock: 3, Active: true, CreatedAt: time.Now()},
	}

	tests := []struct {
		name           string
		queryParams    string
		mockReturn     []model.Product
		mockError      error
		expectedStatus int
		expectService  bool
		limit          int
		offset         int
	}{
		{
			name:           "Success with default pagination",
			queryParams:    "",
			mockReturn:     testProducts,
			expectedStatus: http.StatusOK,
			expectService:  true,
			limit:          0,
			offset:         0,
		},
		{
			name:           "Success with custom pagination",
			queryParams:    "?limit=5&offset=10",
			mockReturn:     testProducts,
			expectedStatus: http.StatusOK,
			expectService:  true,
			limit:          5,
			offset:         10,
		},
		{
			name:           "Invalid limit parameter",
			queryParams:    "?limit=invalid",
			expectedStatus: http.StatusBadRequest,
			expectService:  false,
		},
		{
			name:           "Invalid offset parameter",
			queryParams:    "?offset=invalid",
			expectedStatus: http.StatusBadRequest,
			expectService:  false,
		},
		{
			name:           "Service error",
			queryParams:    "",
			mockError:      errors.New("database error"),
			expectedStatus: http.StatusInternalServerError,
			expectService:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockProductService)
			if tt.expectService {
				mockService.On("GetAll", mock.Anything, tt.limit, tt.offset).Return(tt.mockReturn, tt.mockError)
			}

			handler := NewProductHandler(mockService, logger)
			w := serve(http.MethodGet, "/api/products", "/api/products"+tt.queryParams, nil, handler.GetAll, reader)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				var products []model.Product
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &products))
				assert.Len(t, products, len(tt.mockReturn))
			}

			mockService.AssertExpectations(t)
		})
	}
}

func TestProductHandler_GetByID(t *testing.T) {
	logger := zerolog.Nop()

	productID := uuid.New()
	testProduct := &model.Product{ID: productID, Code: "P001", Title: "Product 1", Price: decimal.NewFromInt(10000), Active: true}

	tests := []struct {
		name           string
		productID      string
		mockReturn     *model.Product
		mockError      error
		expectedStatus int
		expectedCode   string
		expectService  bool
	}{
		{
			name:           "Success",
			productID:      productID.String(),
			mockReturn:     testProduct,
			expectedStatus: http.StatusOK,
			expectService:  true,
		},
		{
			name:           "Product not found",
			productID:      productID.String(),
			mockError:      model.NewNotFoundError("product", productID),
			expectedStatus: http.StatusNotFound,
			expectedCode:   model.ErrCodeNotFound,
			expectService:  true,
		},
		{
			name:           "Malformed ID",
			productID:      "P001",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeValidation,
			expectService:  false,
		},
		{
			name:           "Service error",
			productID:      productID.String(),
			mockError:      errors.New("connection reset"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   model.ErrCodeInternalError,
			expectService:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockProductService)
			if tt.expectService {
				mockService.On("GetByID", mock.Anything, productID).Return(tt.mockReturn, tt.mockError)
			}

			handler := NewProductHandler(mockService, logger)
			w := serve(http.MethodGet, "/api/products/{id}", "/api/products/"+tt.productID, nil, handler.GetByID, reader)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				resp := decodeError(t, w)
				assert.Equal(t, tt.expectedCode, resp.Error)
				assert.NotEmpty(t, resp.CorrelationID)
			} else {
				var product model.Product
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &product))
				assert.Equal(t, productID, product.ID)
			}

			mockService.AssertExpectations(t)
		})
	}
}
