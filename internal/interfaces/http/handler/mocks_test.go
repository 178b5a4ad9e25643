package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/gstbilling/internal/application/billing"
	"github.com/erp/gstbilling/internal/interfaces/http/dto"
	"github.com/erp/gstbilling/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testTenantID = uuid.MustParse("11111111-1111-1111-1111-111111111111")

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// newTestEngine mirrors the production chain that handlers rely on
func newTestEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Tenant(middleware.TenantConfig{DefaultTenantID: testTenantID}),
	)
	return engine
}

func doJSON(t *testing.T, engine http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

// decodeResponse unmarshals the envelope and its data into out when out is non-nil
func decodeResponse(t *testing.T, w *httptest.ResponseRecorder, out any) dto.Response {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *dto.ErrorInfo  `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	if out != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
	return dto.Response{Success: envelope.Success, Error: envelope.Error}
}

type MockTaxPreviewer struct {
	mock.Mock
}

func (m *MockTaxPreviewer) ComputeTax(ctx context.Context, req billing.ComputeTaxRequest) (*billing.TaxBreakdownResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.TaxBreakdownResponse), args.Error(1)
}

func (m *MockTaxPreviewer) Match(ctx context.Context, req billing.MatchRequest) (*billing.MatchResultResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.MatchResultResponse), args.Error(1)
}

func (m *MockTaxPreviewer) Jurisdictions() []billing.JurisdictionResponse {
	args := m.Called()
	return args.Get(0).([]billing.JurisdictionResponse)
}

type MockInvoiceService struct {
	mock.Mock
}

func (m *MockInvoiceService) Create(ctx context.Context, tenantID uuid.UUID, req billing.CreateInvoiceRequest) (*billing.InvoiceResponse, error) {
	args := m.Called(ctx, tenantID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.InvoiceResponse), args.Error(1)
}

func (m *MockInvoiceService) Recalculate(ctx context.Context, tenantID, invoiceID uuid.UUID, req billing.RecalculateInvoiceRequest) (*billing.InvoiceResponse, error) {
	args := m.Called(ctx, tenantID, invoiceID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.InvoiceResponse), args.Error(1)
}

func (m *MockInvoiceService) Get(ctx context.Context, tenantID, invoiceID uuid.UUID) (*billing.InvoiceResponse, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.InvoiceResponse), args.Error(1)
}

type MockProcurementService struct {
	mock.Mock
}

func (m *MockProcurementService) CreatePurchaseOrder(ctx context.Context, tenantID uuid.UUID, req billing.CreatePurchaseOrderRequest) (*billing.PurchaseOrderResponse, error) {
	args := m.Called(ctx, tenantID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.PurchaseOrderResponse), args.Error(1)
}

func (m *MockProcurementService) GetPurchaseOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*billing.PurchaseOrderResponse, error) {
	args := m.Called(ctx, tenantID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.PurchaseOrderResponse), args.Error(1)
}

func (m *MockProcurementService) RecordReceipt(ctx context.Context, tenantID uuid.UUID, req billing.RecordReceiptRequest) (*billing.ReceiptResponse, error) {
	args := m.Called(ctx, tenantID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.ReceiptResponse), args.Error(1)
}

func (m *MockProcurementService) GetReceipt(ctx context.Context, tenantID, receiptID uuid.UUID) (*billing.ReceiptResponse, error) {
	args := m.Called(ctx, tenantID, receiptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.ReceiptResponse), args.Error(1)
}

type MockReceiptReconciler struct {
	mock.Mock
}

func (m *MockReceiptReconciler) ReconcileReceipt(ctx context.Context, tenantID, receiptID uuid.UUID, req billing.ReconcileReceiptRequest) (*billing.ReconciliationResponse, error) {
	args := m.Called(ctx, tenantID, receiptID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.ReconciliationResponse), args.Error(1)
}
