package app

import (
	"log/slog"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rog/backend/internal/auth"
	"github.com/rog/backend/internal/domain"
	"github.com/rog/backend/internal/guard"
	"github.com/rog/backend/internal/handler"
	"github.com/rog/backend/internal/infra"
	"github.com/rog/backend/internal/repository"
	"github.com/rog/backend/internal/service"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	// DB is passed to every repository call. It is nil for the memory backend.
	DB     repository.DBTX
	Pinger infra.Pinger
	Repos  repository.Set
	JWTMgr *auth.JWTManager
	// Metrics may be nil; /metrics is then not mounted.
	Metrics *infra.Metrics
	Logger  *slog.Logger

	Location         *time.Location
	AllowedOrigins   []string
	LegacyPlainPINs  bool
	SuperAccountCode string
	BcryptCost       int

	LoginMaxAttempts int
	LoginLockout     time.Duration
	LoginRateLimit   int
	LoginRateWindow  time.Duration
	// TrustedProxies may set the client address through forwarding headers.
	TrustedProxies []netip.Prefix
}

// DepsFromConfig fills the config-derived fields of RouterDeps.
func DepsFromConfig(cfg *infra.Config, deps RouterDeps) RouterDeps {
	deps.Location = cfg.Location()
	deps.AllowedOrigins = cfg.AllowedOrigins()
	deps.LegacyPlainPINs = cfg.LegacyPlainPINs
	deps.SuperAccountCode = cfg.SuperAccountCode
	deps.BcryptCost = cfg.BcryptCost
	deps.LoginMaxAttempts = cfg.LoginMaxAttempts
	deps.LoginLockout = cfg.LoginLockoutWindow
	deps.LoginRateLimit = cfg.LoginRateLimit
	deps.LoginRateWindow = cfg.LoginRateWindow
	deps.TrustedProxies = cfg.TrustedProxies()
	return deps
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	db := deps.DB
	repos := deps.Repos
	logger := deps.Logger

	if deps.LoginRateLimit <= 0 {
		deps.LoginRateLimit = 20
	}
	if deps.LoginRateWindow <= 0 {
		deps.LoginRateWindow = time.Minute
	}
	if len(deps.AllowedOrigins) == 0 {
		deps.AllowedOrigins = []string{"*"}
	}

	// Guards
	lockout := guard.NewLockout(db, repos.LoginAttempts, deps.LoginMaxAttempts, deps.LoginLockout, logger)
	loginLimiter := guard.NewRateLimiter(deps.LoginRateLimit, deps.LoginRateWindow)

	// Services
	authSvc := service.NewAuthService(db, repos.Accounts, repos.Associations, lockout, deps.JWTMgr, deps.Metrics, service.AuthOptions{
		LegacyPlainPINs:  deps.LegacyPlainPINs,
		SuperAccountCode: deps.SuperAccountCode,
		BcryptCost:       deps.BcryptCost,
	}, logger)
	memberSvc := service.NewMemberService(db, repos.Accounts, deps.BcryptCost, logger)
	dashboardSvc := service.NewDashboardService(db, repos.Accounts, repos.Associations, repos.HuntLogs, deps.Location, logger)
	huntSvc := service.NewHuntService(db, repos.ActiveHunts, repos.HuntLogs, deps.Location, logger)
	pointSvc := service.NewPointService(db, repos.Points, deps.Metrics, logger)
	quotaSvc := service.NewQuotaService(db, repos.QuotaPlans, repos.HuntLogs, deps.Location, deps.Metrics, logger)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc)
	memberHandler := handler.NewMemberHandler(memberSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	huntHandler := handler.NewHuntHandler(huntSvc)
	pointHandler := handler.NewPointHandler(pointSvc)
	quotaHandler := handler.NewQuotaHandler(quotaSvc)

	// Router
	r := chi.NewRouter()
	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.TrustedRealIP(deps.TrustedProxies))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.Metrics(deps.Metrics))
	r.Use(handler.CORSWithOrigins(deps.AllowedOrigins...))

	// Health and metrics (no auth)
	r.Get("/health", handler.HealthHandler(deps.Pinger))
	if reg := deps.Metrics.Registry(); reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(handler.JSONContentType)

		r.Route("/auth", func(r chi.Router) {
			r.With(handler.RateLimit(loginLimiter)).Post("/login", authHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(auth.Authenticate(deps.JWTMgr))
				r.Get("/me", authHandler.Me)

				r.Group(func(r chi.Router) {
					r.Use(auth.RequireCapability(domain.CapSwitchAssociation))
					r.Get("/lds", authHandler.ListAssociations)
					r.Post("/switch-ld", authHandler.SwitchAssociation)
				})
			})
		})

		r.Route("/ld", func(r chi.Router) {
			r.Use(auth.Authenticate(deps.JWTMgr))

			// Any member of the association
			r.Get("/dashboard", dashboardHandler.Get)
			r.Put("/active-hunts/me", huntHandler.StartActive)
			r.Delete("/active-hunts/me", huntHandler.EndActive)
			r.Get("/points", pointHandler.List)
			r.Get("/odvzem-view", quotaHandler.View)
			r.Get("/hunt-logs", huntHandler.ListLogs)
			r.Post("/hunt-logs", huntHandler.CreateLog)

			// Staff
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireCapability(domain.CapManageMembers))
				r.Get("/users", memberHandler.List)
				r.Post("/users", memberHandler.Create)
				r.Patch("/users/{code}", memberHandler.Update)
				r.Delete("/users/{code}", memberHandler.Delete)
				r.Post("/users/{code}/reset-pin", memberHandler.ResetPIN)
			})
			r.With(auth.RequireCapability(domain.CapViewActiveHunts)).Get("/active-hunts", huntHandler.ListActive)
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireCapability(domain.CapImport))
				r.Post("/points/import-csv", pointHandler.Import)
				r.Post("/odvzem-plan/import-excel", quotaHandler.Import)
			})
		})
	})

	return r
}
