package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	catalogsvc "github.com/hermagulator/shopbot/internal/catalog"
	discountsvc "github.com/hermagulator/shopbot/internal/discounts"
	ordersvc "github.com/hermagulator/shopbot/internal/orders"
	paymentsvc "github.com/hermagulator/shopbot/internal/payments"
	walletsvc "github.com/hermagulator/shopbot/internal/wallet"
	pkgauth "github.com/hermagulator/shopbot/pkg/auth"
	"github.com/hermagulator/shopbot/pkg/config"
	"github.com/hermagulator/shopbot/pkg/db/models"
	"github.com/hermagulator/shopbot/pkg/logger"
	"github.com/hermagulator/shopbot/pkg/pagination"
	"github.com/hermagulator/shopbot/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubCatalogService struct {
	listProducts func(ctx context.Context, categoryID *uuid.UUID, page pagination.Params) ([]models.Product, error)
}

func (s *stubCatalogService) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	return nil
}

func (s *stubCatalogService) CommitReservation(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	return nil
}

func (s *stubCatalogService) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	return nil
}

func (s *stubCatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCatalogService) ListProducts(ctx context.Context, categoryID *uuid.UUID, page pagination.Params) ([]models.Product, error) {
	if s.listProducts != nil {
		return s.listProducts(ctx, categoryID, page)
	}
	return nil, nil
}

func (s *stubCatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return nil, nil
}

func (s *stubCatalogService) CreateProduct(ctx context.Context, input catalogsvc.CreateProductInput) (*models.Product, error) {
	return nil, nil
}

func (s *stubCatalogService) SetProductActive(ctx context.Context, id uuid.UUID, active bool) error {
	return nil
}

type stubWalletService struct{}

func (stubWalletService) EnsureWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	return nil, nil
}

func (stubWalletService) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (stubWalletService) Credit(ctx context.Context, input walletsvc.EntryInput) (*models.WalletTransaction, error) {
	return nil, nil
}

func (stubWalletService) CreditTx(ctx context.Context, tx *gorm.DB, input walletsvc.EntryInput) (*models.WalletTransaction, error) {
	return nil, nil
}

func (stubWalletService) Debit(ctx context.Context, input walletsvc.EntryInput) (*models.WalletTransaction, error) {
	return nil, nil
}

func (stubWalletService) History(ctx context.Context, userID int64, page pagination.Params) ([]models.WalletTransaction, error) {
	return nil, nil
}

func (stubWalletService) RequestDeposit(ctx context.Context, input walletsvc.DepositRequestInput) (*models.WalletTransaction, error) {
	return nil, nil
}

func (stubWalletService) ApproveDeposit(ctx context.Context, transactionID int64, actorID int64) (*models.WalletTransaction, error) {
	return nil, nil
}

func (stubWalletService) RejectDeposit(ctx context.Context, transactionID int64, actorID int64, reason string) error {
	return nil
}

type stubDiscountService struct {
	list func(ctx context.Context, page pagination.Params) ([]models.Discount, error)
}

func (s *stubDiscountService) Validate(ctx context.Context, code string, lines []discountsvc.CartLine) (*discountsvc.Quote, error) {
	return nil, nil
}

func (s *stubDiscountService) Apply(ctx context.Context, tx *gorm.DB, discountID, orderID uuid.UUID) error {
	return nil
}

func (s *stubDiscountService) Revert(ctx context.Context, tx *gorm.DB, discountID, orderID uuid.UUID) error {
	return nil
}

func (s *stubDiscountService) Create(ctx context.Context, input discountsvc.CreateDiscountInput) (*models.Discount, error) {
	return nil, nil
}

func (s *stubDiscountService) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return nil
}

func (s *stubDiscountService) Get(ctx context.Context, id uuid.UUID) (*models.Discount, error) {
	return nil, nil
}

func (s *stubDiscountService) List(ctx context.Context, page pagination.Params) ([]models.Discount, error) {
	if s.list != nil {
		return s.list(ctx, page)
	}
	return nil, nil
}

type stubRouterOrdersService struct{}

func (stubRouterOrdersService) CreateOrder(ctx context.Context, input ordersvc.CreateOrderInput) (*models.Order, error) {
	return nil, nil
}

func (stubRouterOrdersService) SelectPaymentMethod(ctx context.Context, input ordersvc.SelectPaymentMethodInput) (*models.Order, error) {
	return nil, nil
}

func (stubRouterOrdersService) SubmitReceipt(ctx context.Context, input ordersvc.SubmitReceiptInput) error {
	return nil
}

func (stubRouterOrdersService) RejectVerification(ctx context.Context, orderID uuid.UUID, actorID int64, reason string) error {
	return nil
}

func (stubRouterOrdersService) MarkPaid(ctx context.Context, input ordersvc.MarkPaidInput) (*models.Order, error) {
	return nil, nil
}

func (stubRouterOrdersService) Cancel(ctx context.Context, input ordersvc.CancelInput) error {
	return nil
}

func (stubRouterOrdersService) Refund(ctx context.Context, input ordersvc.RefundInput) error {
	return nil
}

func (stubRouterOrdersService) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return nil, nil
}

func (stubRouterOrdersService) GetUserOrder(ctx context.Context, orderID uuid.UUID, userID int64) (*models.Order, error) {
	return nil, nil
}

func (stubRouterOrdersService) ListUserOrders(ctx context.Context, userID int64, page pagination.Params) ([]models.Order, error) {
	return nil, nil
}

type stubRouterPaymentsService struct{}

func (stubRouterPaymentsService) ProcessPayment(ctx context.Context, input paymentsvc.PayInput) (*paymentsvc.Outcome, error) {
	return nil, nil
}

func (stubRouterPaymentsService) ResolveCardPayment(ctx context.Context, input paymentsvc.ResolveCardInput) (*models.Order, error) {
	return nil, nil
}

func (stubRouterPaymentsService) DepositWithCrypto(ctx context.Context, input paymentsvc.CryptoDepositInput) (*models.WalletTransaction, error) {
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		(*redis.Client)(nil),
		nil,
		&stubCatalogService{},
		stubWalletService{},
		&stubDiscountService{},
		stubRouterOrdersService{},
		stubRouterPaymentsService{},
	)
}

func buildToken(t *testing.T, cfg *config.Config, userID int64, isAdmin bool) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID:  userID,
		IsAdmin: isAdmin,
		JTI:     uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLiveIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for liveness got %d", resp.Code)
	}
	if env := resp.Header().Get("X-Shopbot-Env"); env != "test" {
		t.Fatalf("unexpected env header %q", env)
	}
}

func TestAPIGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestAPIGroupSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, 42, false))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for authed products got %d", resp.Code)
	}
}

func TestAdminGroupRequiresAdminFlag(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	nonAdmin := httptest.NewRequest(http.MethodGet, "/api/v1/admin/discounts", nil)
	nonAdmin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, 42, false))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, nonAdmin)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/v1/admin/discounts", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, 1, true))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
}

func TestMetricsEndpointOnlyWhenRegistryProvided(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without registry got %d", resp.Code)
	}
}
