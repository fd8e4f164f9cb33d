package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/honesta/lostfound-api/internal/auth"
	"github.com/honesta/lostfound-api/internal/config"
	"github.com/honesta/lostfound-api/internal/http/handler"
	"github.com/honesta/lostfound-api/internal/http/middleware"
	"go.uber.org/zap"
)

type Router struct {
	cfg                 *config.Config
	logger              *zap.Logger
	authMiddleware      *auth.Middleware
	rateLimiter         *middleware.RateLimiter
	healthHandler       *handler.HealthHandler
	authHandler         *handler.AuthHandler
	itemHandler         *handler.ItemHandler
	claimHandler        *handler.ClaimHandler
	messageHandler      *handler.MessageHandler
	notificationHandler *handler.NotificationHandler
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	healthHandler *handler.HealthHandler,
	authHandler *handler.AuthHandler,
	itemHandler *handler.ItemHandler,
	claimHandler *handler.ClaimHandler,
	messageHandler *handler.MessageHandler,
	notificationHandler *handler.NotificationHandler,
) *Router {
	return &Router{
		cfg:                 cfg,
		logger:              logger,
		authMiddleware:      authMiddleware,
		rateLimiter:         rateLimiter,
		healthHandler:       healthHandler,
		authHandler:         authHandler,
		itemHandler:         itemHandler,
		claimHandler:        claimHandler,
		messageHandler:      messageHandler,
		notificationHandler: notificationHandler,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	r.Get("/health", rt.healthHandler.Live)
	r.Get("/health/db", rt.healthHandler.Database)
	r.Get("/health/ready", rt.healthHandler.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		if timeout := rt.cfg.Server.RequestTimeoutDuration(); timeout > 0 {
			r.Use(chimw.Timeout(timeout))
		}

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", rt.authHandler.Register)
			r.Post("/login", rt.authHandler.Login)
			r.With(rt.authMiddleware.Authenticate).Get("/me", rt.authHandler.Me)
		})

		r.Route("/items", func(r chi.Router) {
			// The dark rendition is public so the feed can render without tokens
			r.Get("/{id}/image", rt.itemHandler.PublicImage)

			r.Group(func(r chi.Router) {
				r.Use(rt.authMiddleware.Authenticate)
				r.Use(rt.rateLimiter.Limit)

				r.Get("/", rt.itemHandler.List)
				r.Post("/", rt.itemHandler.Report)
				r.Get("/mine", rt.itemHandler.Mine)

				r.Get("/{id}", rt.itemHandler.Get)
				r.Delete("/{id}", rt.itemHandler.Delete)
				r.Post("/{id}/handover", rt.itemHandler.Handover)
				r.Get("/{id}/original", rt.itemHandler.OriginalImage)

				r.With(rt.rateLimiter.LimitClaims).Post("/{id}/claims", rt.claimHandler.Verify)
				r.Get("/{id}/claims/me", rt.claimHandler.Status)

				r.Get("/{id}/messages", rt.messageHandler.List)
				r.Post("/{id}/messages", rt.messageHandler.Send)
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Use(rt.authMiddleware.Authenticate)
			r.Use(rt.rateLimiter.Limit)

			r.Get("/", rt.notificationHandler.List)
			r.Get("/count", rt.notificationHandler.GetUnreadCount)
			r.Put("/read-all", rt.notificationHandler.MarkAllAsRead)
			r.Get("/{id}", rt.notificationHandler.GetByID)
			r.Put("/{id}/read", rt.notificationHandler.MarkAsRead)
		})
	})

	return r
}
