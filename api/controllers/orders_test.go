package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hermagulator/shopbot/api/middleware"
	ordersvc "github.com/hermagulator/shopbot/internal/orders"
	paymentsvc "github.com/hermagulator/shopbot/internal/payments"
	"github.com/hermagulator/shopbot/pkg/db/models"
	"github.com/hermagulator/shopbot/pkg/enums"
	pkgerrors "github.com/hermagulator/shopbot/pkg/errors"
	"github.com/hermagulator/shopbot/pkg/pagination"
)

type stubOrdersService struct {
	create       func(ctx context.Context, input ordersvc.CreateOrderInput) (*models.Order, error)
	selectMethod func(ctx context.Context, input ordersvc.SelectPaymentMethodInput) (*models.Order, error)
	cancel       func(ctx context.Context, input ordersvc.CancelInput) error
	getUserOrder func(ctx context.Context, orderID uuid.UUID, userID int64) (*models.Order, error)
	list         func(ctx context.Context, userID int64, page pagination.Params) ([]models.Order, error)
}

func (s *stubOrdersService) CreateOrder(ctx context.Context, input ordersvc.CreateOrderInput) (*models.Order, error) {
	if s.create != nil {
		return s.create(ctx, input)
	}
	return nil, nil
}

func (s *stubOrdersService) SelectPaymentMethod(ctx context.Context, input ordersvc.SelectPaymentMethodInput) (*models.Order, error) {
	if s.selectMethod != nil {
		return s.selectMethod(ctx, input)
	}
	return nil, nil
}

func (s *stubOrdersService) SubmitReceipt(ctx context.Context, input ordersvc.SubmitReceiptInput) error {
	return nil
}

func (s *stubOrdersService) RejectVerification(ctx context.Context, orderID uuid.UUID, actorID int64, reason string) error {
	return nil
}

func (s *stubOrdersService) MarkPaid(ctx context.Context, input ordersvc.MarkPaidInput) (*models.Order, error) {
	return nil, nil
}

func (s *stubOrdersService) Cancel(ctx context.Context, input ordersvc.CancelInput) error {
	if s.cancel != nil {
		return s.cancel(ctx, input)
	}
	return nil
}

func (s *stubOrdersService) Refund(ctx context.Context, input ordersvc.RefundInput) error {
	return nil
}

func (s *stubOrdersService) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return nil, nil
}

func (s *stubOrdersService) GetUserOrder(ctx context.Context, orderID uuid.UUID, userID int64) (*models.Order, error) {
	if s.getUserOrder != nil {
		return s.getUserOrder(ctx, orderID, userID)
	}
	return nil, nil
}

func (s *stubOrdersService) ListUserOrders(ctx context.Context, userID int64, page pagination.Params) ([]models.Order, error) {
	if s.list != nil {
		return s.list(ctx, userID, page)
	}
	return nil, nil
}

type stubPaymentsService struct {
	process func(ctx context.Context, input paymentsvc.PayInput) (*paymentsvc.Outcome, error)
	resolve func(ctx context.Context, input paymentsvc.ResolveCardInput) (*models.Order, error)
	deposit func(ctx context.Context, input paymentsvc.CryptoDepositInput) (*models.WalletTransaction, error)
}

func (s *stubPaymentsService) ProcessPayment(ctx context.Context, input paymentsvc.PayInput) (*paymentsvc.Outcome, error) {
	if s.process != nil {
		return s.process(ctx, input)
	}
	return nil, nil
}

func (s *stubPaymentsService) ResolveCardPayment(ctx context.Context, input paymentsvc.ResolveCardInput) (*models.Order, error) {
	if s.resolve != nil {
		return s.resolve(ctx, input)
	}
	return nil, nil
}

func (s *stubPaymentsService) DepositWithCrypto(ctx context.Context, input paymentsvc.CryptoDepositInput) (*models.WalletTransaction, error) {
	if s.deposit != nil {
		return s.deposit(ctx, input)
	}
	return nil, nil
}

func sampleOrder(userID int64) *models.Order {
	return &models.Order{
		ID:             uuid.New(),
		UserID:         userID,
		Status:         enums.OrderStatusPending,
		SubtotalAmount: decimal.RequireFromString("30.00"),
		DiscountAmount: decimal.Zero,
		TotalAmount:    decimal.RequireFromString("30.00"),
		Items: []models.OrderItem{
			{
				ProductID:    uuid.New(),
				Name:         "starter pack",
				Quantity:     2,
				PricePerUnit: decimal.RequireFromString("15.00"),
			},
		},
	}
}

func authedRequest(method, target, body string, userID int64) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(middleware.WithUserID(req.Context(), userID))
}

func TestOrderCreateReturnsCreatedOrder(t *testing.T) {
	productID := uuid.New()
	svc := &stubOrdersService{
		create: func(ctx context.Context, input ordersvc.CreateOrderInput) (*models.Order, error) {
			if input.UserID != 42 {
				t.Fatalf("unexpected user id %d", input.UserID)
			}
			if len(input.Items) != 1 || input.Items[0].ProductID != productID || input.Items[0].Quantity != 2 {
				t.Fatalf("unexpected items %+v", input.Items)
			}
			if input.DiscountCode != "WELCOME" {
				t.Fatalf("unexpected discount code %q", input.DiscountCode)
			}
			return sampleOrder(input.UserID), nil
		},
	}

	body := `{"items":[{"product_id":"` + productID.String() + `","quantity":2}],"discount_code":"WELCOME"}`
	req := authedRequest(http.MethodPost, "/api/v1/orders", body, 42)

	resp := httptest.NewRecorder()
	OrderCreate(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data orderResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.TotalAmount != "30.00" {
		t.Fatalf("unexpected total %q", envelope.Data.TotalAmount)
	}
	if len(envelope.Data.Items) != 1 || envelope.Data.Items[0].TotalPrice != "30.00" {
		t.Fatalf("unexpected items in response: %+v", envelope.Data.Items)
	}
}

func TestOrderCreateRejectsEmptyItems(t *testing.T) {
	req := authedRequest(http.MethodPost, "/api/v1/orders", `{"items":[]}`, 42)

	resp := httptest.NewRecorder()
	OrderCreate(&stubOrdersService{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected error code %q", envelope.Error.Code)
	}
}

func TestOrderPayMarksNeedsReview(t *testing.T) {
	orderID := uuid.New()
	order := sampleOrder(7)
	order.ID = orderID
	order.Status = enums.OrderStatusPaymentVerification

	svc := &stubPaymentsService{
		process: func(ctx context.Context, input paymentsvc.PayInput) (*paymentsvc.Outcome, error) {
			if input.OrderID != orderID {
				t.Fatalf("unexpected order id %s", input.OrderID)
			}
			if input.Method != enums.PaymentMethodCard {
				t.Fatalf("unexpected method %s", input.Method)
			}
			if input.Reference != "receipt-123" {
				t.Fatalf("unexpected reference %q", input.Reference)
			}
			return &paymentsvc.Outcome{Order: order, NeedsReview: true}, nil
		},
	}

	r := chi.NewRouter()
	r.Post("/api/v1/orders/{orderID}/pay", OrderPay(svc, nil))

	body := `{"method":"card","reference":"receipt-123"}`
	req := authedRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/pay", body, 7)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data orderResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.NeedsReview {
		t.Fatalf("expected needs_review in response")
	}
	if envelope.Data.Status != enums.OrderStatusPaymentVerification {
		t.Fatalf("unexpected status %s", envelope.Data.Status)
	}
}

func TestOrderPayRejectsUnknownMethod(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/v1/orders/{orderID}/pay", OrderPay(&stubPaymentsService{}, nil))

	req := authedRequest(http.MethodPost, "/api/v1/orders/"+uuid.NewString()+"/pay", `{"method":"barter"}`, 7)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestOrderCancelMapsStateConflict(t *testing.T) {
	svc := &stubOrdersService{
		cancel: func(ctx context.Context, input ordersvc.CancelInput) error {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer cancellable")
		},
	}

	r := chi.NewRouter()
	r.Post("/api/v1/orders/{orderID}/cancel", OrderCancel(svc, nil))

	req := authedRequest(http.MethodPost, "/api/v1/orders/"+uuid.NewString()+"/cancel", "", 7)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeStateConflict) {
		t.Fatalf("unexpected error code %q", envelope.Error.Code)
	}
	if envelope.Error.Message != "order is no longer cancellable" {
		t.Fatalf("unexpected message %q", envelope.Error.Message)
	}
}

func TestOrderGetRejectsMalformedID(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/v1/orders/{orderID}", OrderGet(&stubOrdersService{}, nil))

	req := authedRequest(http.MethodGet, "/api/v1/orders/not-a-uuid", "", 7)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestOrderListPassesPagination(t *testing.T) {
	svc := &stubOrdersService{
		list: func(ctx context.Context, userID int64, page pagination.Params) ([]models.Order, error) {
			if userID != 9 {
				t.Fatalf("unexpected user id %d", userID)
			}
			if page.Limit != 5 || page.Offset != 10 {
				t.Fatalf("unexpected pagination %+v", page)
			}
			return []models.Order{*sampleOrder(userID)}, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/orders?limit=5&offset=10", "", 9)

	resp := httptest.NewRecorder()
	OrderList(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data []orderResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data) != 1 {
		t.Fatalf("expected one order, got %d", len(envelope.Data))
	}
}
