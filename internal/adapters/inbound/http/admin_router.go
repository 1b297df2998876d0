package http

import (
	"net/http"

	"github.com/architeacher/gpstracker/internal/adapters/inbound/http/handlers/admin"
	"github.com/architeacher/gpstracker/internal/adapters/inbound/http/middleware"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/internal/usecases"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// AdminRouterConfig holds dependencies for the admin router.
type AdminRouterConfig struct {
	App           *usecases.WebApplication
	LocationCache ports.LocationCache
	Logger        logger.Logger
}

// NewAdminRouter creates a router for internal admin endpoints.
// These endpoints are intended to run on a separate internal port.
func NewAdminRouter(cfg AdminRouterConfig) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestTracking())
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Recovery(cfg.Logger))

	if cfg.LocationCache == nil {
		cfg.Logger.Warn().Msg("admin router: location cache not available, cache endpoints will return 503")
	}

	adminHandler := admin.NewAdminHandler(cfg.LocationCache, cfg.App)

	return admin.HandlerWithOptions(adminHandler, admin.ChiServerOptions{
		BaseRouter: router,
	})
}
