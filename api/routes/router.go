package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tillpoint/tillpoint-backend/api/controllers"
	"github.com/tillpoint/tillpoint-backend/api/middleware"
	"github.com/tillpoint/tillpoint-backend/internal/catalog"
	"github.com/tillpoint/tillpoint-backend/internal/feed"
	"github.com/tillpoint/tillpoint-backend/internal/ingest"
	"github.com/tillpoint/tillpoint-backend/internal/stock"
	"github.com/tillpoint/tillpoint-backend/internal/vouchers"
	"github.com/tillpoint/tillpoint-backend/pkg/config"
	"github.com/tillpoint/tillpoint-backend/pkg/db"
	"github.com/tillpoint/tillpoint-backend/pkg/enums"
	"github.com/tillpoint/tillpoint-backend/pkg/logger"
	"github.com/tillpoint/tillpoint-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	ingestService ingest.Service,
	feedService feed.Service,
	voucherService vouchers.Service,
	catalogService catalog.Service,
	stockService stock.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	var redisPinger redis.Pinger
	if redisClient != nil {
		redisPinger = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger))
	})

	r.Get("/api/public/ping", controllers.PublicPing())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.StoreContext(logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/sync", func(r chi.Router) {
			r.Post("/push", controllers.SyncPush(ingestService, logg))
			r.Get("/pull", controllers.SyncPull(feedService, logg))
			r.Get("/full", controllers.SyncFull(feedService, logg))
			r.Get("/status", controllers.SyncStatus(feedService, logg))
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", controllers.ListTransactions(ingestService, logg))
			r.Get("/{transactionId}", controllers.GetTransaction(ingestService, logg))
			r.With(middleware.RequireRole(logg, enums.MemberRoleManager, enums.MemberRoleAdmin)).
				Post("/{transactionId}/void", controllers.VoidTransaction(ingestService, logg))
		})

		r.Route("/vouchers/code/{code}", func(r chi.Router) {
			r.Get("/", controllers.GetVoucher(voucherService, logg))
			r.Post("/use", controllers.UseVoucher(voucherService, logg))
			r.Post("/validate", controllers.ValidateVoucher(voucherService, logg))
			r.With(middleware.RequireRole(logg, enums.MemberRoleManager, enums.MemberRoleAdmin)).
				Post("/void", controllers.VoidVoucher(voucherService, logg))
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/stock", controllers.ListStockLevels(stockService, logg))
			r.Get("/stock/low", controllers.ListLowStock(stockService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.MemberRoleManager, enums.MemberRoleAdmin))

				r.Post("/categories", controllers.UpsertCategory(catalogService, logg))
				r.Delete("/categories/{categoryId}", controllers.DeleteCategory(catalogService, logg))
				r.Post("/products", controllers.UpsertProduct(catalogService, logg))
				r.Delete("/products/{productId}", controllers.DeleteProduct(catalogService, logg))
				r.Post("/discounts", controllers.UpsertDiscount(catalogService, logg))
				r.Delete("/discounts/{discountId}", controllers.DeleteDiscount(catalogService, logg))
				r.Put("/stock/{productId}", controllers.SetStockLevel(catalogService, logg))
			})
		})
	})

	return r
}
