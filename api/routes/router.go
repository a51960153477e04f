package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hermagulator/shopbot/api/controllers"
	"github.com/hermagulator/shopbot/api/middleware"
	catalogsvc "github.com/hermagulator/shopbot/internal/catalog"
	discountsvc "github.com/hermagulator/shopbot/internal/discounts"
	ordersvc "github.com/hermagulator/shopbot/internal/orders"
	paymentsvc "github.com/hermagulator/shopbot/internal/payments"
	walletsvc "github.com/hermagulator/shopbot/internal/wallet"
	"github.com/hermagulator/shopbot/pkg/config"
	"github.com/hermagulator/shopbot/pkg/db"
	"github.com/hermagulator/shopbot/pkg/logger"
	"github.com/hermagulator/shopbot/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	promRegistry *prometheus.Registry,
	catalogService catalogsvc.Service,
	walletService walletsvc.Service,
	discountService discountsvc.Service,
	orderService ordersvc.Service,
	paymentService paymentsvc.Service,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if promRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	payPolicy := middleware.NewRateLimitPolicy("order_pay", cfg.RateLimit.PayWindow, cfg.RateLimit.PayLimit)
	depositPolicy := middleware.NewRateLimitPolicy("wallet_deposit", cfg.RateLimit.DepositWindow, cfg.RateLimit.DepositLimit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(catalogService, logg))
			r.Get("/{productID}", controllers.ProductGet(catalogService, logg))
		})
		r.Get("/categories", controllers.CategoryList(catalogService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(orderService, logg))
			r.Get("/", controllers.OrderList(orderService, logg))
			r.Get("/{orderID}", controllers.OrderGet(orderService, logg))
			r.Post("/{orderID}/method", controllers.OrderSelectMethod(orderService, logg))
			r.With(middleware.RateLimit(payPolicy, redisClient, logg)).Post("/{orderID}/pay", controllers.OrderPay(paymentService, logg))
			r.Post("/{orderID}/cancel", controllers.OrderCancel(orderService, logg))
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/balance", controllers.WalletBalance(walletService, logg))
			r.Get("/transactions", controllers.WalletHistory(walletService, logg))
			r.With(middleware.RateLimit(depositPolicy, redisClient, logg)).Post("/deposits", controllers.WalletDeposit(walletService, logg))
			r.With(middleware.RateLimit(depositPolicy, redisClient, logg)).Post("/deposits/crypto", controllers.WalletCryptoDeposit(paymentService, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AdminOnly(logg))

			r.Post("/orders/{orderID}/resolve", controllers.AdminResolvePayment(paymentService, logg))
			r.Post("/orders/{orderID}/refund", controllers.AdminRefundOrder(orderService, logg))

			r.Post("/deposits/{transactionID}/approve", controllers.AdminApproveDeposit(walletService, logg))
			r.Post("/deposits/{transactionID}/reject", controllers.AdminRejectDeposit(walletService, logg))

			r.Post("/products", controllers.AdminCreateProduct(catalogService, logg))
			r.Post("/products/{productID}/active", controllers.AdminSetProductActive(catalogService, logg))

			r.Route("/discounts", func(r chi.Router) {
				r.Get("/", controllers.AdminListDiscounts(discountService, logg))
				r.Post("/", controllers.AdminCreateDiscount(discountService, logg))
				r.Post("/{discountID}/active", controllers.AdminSetDiscountActive(discountService, logg))
			})
		})
	})

	return r
}
