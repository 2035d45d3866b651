package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/frostlinehq/frostline-backend/api/controllers"
	"github.com/frostlinehq/frostline-backend/api/middleware"
	cartsvc "github.com/frostlinehq/frostline-backend/internal/cart"
	"github.com/frostlinehq/frostline-backend/internal/catalog"
	checkoutsvc "github.com/frostlinehq/frostline-backend/internal/checkout"
	ordersvc "github.com/frostlinehq/frostline-backend/internal/orders"
	"github.com/frostlinehq/frostline-backend/pkg/config"
	"github.com/frostlinehq/frostline-backend/pkg/db"
	"github.com/frostlinehq/frostline-backend/pkg/enums"
	"github.com/frostlinehq/frostline-backend/pkg/logger"
	"github.com/frostlinehq/frostline-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	promRegistry *prometheus.Registry,
	catalogService *catalog.Service,
	cartService *cartsvc.Service,
	checkoutService *checkoutsvc.Service,
	ordersService *ordersvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if promRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/products", controllers.CatalogList(catalogService, logg))
		r.Get("/products/{productId}", controllers.CatalogGet(catalogService, logg))
	})

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(middleware.Shopper(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/", controllers.CartGet(cartService, logg))
		r.Delete("/", controllers.CartClear(cartService, logg))
		r.Post("/items", controllers.CartAddItem(cartService, logg))
		r.Put("/items/{productId}", controllers.CartSetQuantity(cartService, logg))
		r.Delete("/items/{productId}", controllers.CartRemoveItem(cartService, logg))
		r.Post("/coupon", controllers.CartApplyCoupon(cartService, logg))
		r.Delete("/coupon", controllers.CartRemoveCoupon(cartService, logg))
		r.Post("/merge", controllers.CartMerge(cartService, logg))
	})

	r.Route("/api/v1/checkout", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/information", controllers.CheckoutInformationGet(checkoutService, logg))
		r.Post("/information", controllers.CheckoutInformation(checkoutService, logg))
		r.Get("/quotes", controllers.CheckoutQuotes(checkoutService, logg))
		r.Get("/shipping", controllers.CheckoutShippingGet(checkoutService, logg))
		r.Post("/shipping", controllers.CheckoutShipping(checkoutService, logg))
		r.Post("/payment", controllers.CheckoutPayment(checkoutService, logg))
		r.Post("/complete", controllers.CheckoutComplete(checkoutService, logg))
		r.Post("/cancel", controllers.CheckoutCancel(checkoutService, logg))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/", controllers.OrdersList(ordersService, logg))
		r.Get("/{orderId}", controllers.OrderGet(ordersService, logg))
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(string(enums.ActorRoleAdmin), logg))

		r.Get("/orders/{orderId}", controllers.OrderGet(ordersService, logg))
	})

	return r
}
