// Package router wires the HTTP surface: which handler serves which
// path, and which middleware guards it.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/venue-reservation-sync/internal/config"
	"github.com/iliyamo/venue-reservation-sync/internal/handler"
	"github.com/iliyamo/venue-reservation-sync/internal/middleware"
	"github.com/iliyamo/venue-reservation-sync/internal/model"
)

// Handlers groups everything the router needs to register.
type Handlers struct {
	Auth        *handler.AuthHandler
	Reservation *handler.ReservationHandler
	Request     *handler.RequestHandler
	Sync        *handler.SyncHandler
	Engine      echo.HandlerFunc // health endpoint, pre-bound
}

// Register sets up all routes.  The surface splits three ways:
// unauthenticated (health, auth, special dates), any authenticated
// actor (request submission and reads), and privileged
// (ADMIN/MANAGEMENT: approvals, direct reservation mutation,
// maintenance).
func Register(e *echo.Echo, h Handlers, cfg config.Config, rdb *redis.Client) {
	e.GET("/healthz", h.Engine)

	g := e.Group("/v1/auth")
	g.POST("/register", h.Auth.Register)
	g.POST("/login", h.Auth.Login)

	e.GET("/v1/special-dates", h.Sync.SpecialDates)

	// Any authenticated actor.  Submission is rate limited: it is
	// the only endpoint guests of the venue hammer.
	authed := e.Group(
		"/v1",
		middleware.JWTAuth(cfg.JWTSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleManagement, model.RoleCustomer),
	)
	authed.GET("/reservations", h.Reservation.List)
	authed.GET("/requests", h.Request.List)
	authed.POST("/requests", h.Request.Create,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	// Privileged surface.
	priv := e.Group(
		"/v1",
		middleware.JWTAuth(cfg.JWTSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleManagement),
	)
	priv.POST("/reservations", h.Reservation.Create)
	priv.PUT("/reservations/:id", h.Reservation.Update)
	priv.DELETE("/reservations/:id", h.Reservation.Delete)
	priv.POST("/reservations/:id/paid", h.Reservation.MarkPaid)

	priv.POST("/requests/:id/approve", h.Request.Approve)
	priv.POST("/requests/:id/reject", h.Request.Reject)
	priv.DELETE("/requests/:id", h.Request.Delete)
	priv.GET("/requests/pending-count", h.Request.PendingCount)

	priv.POST("/sync/refresh", h.Sync.Refresh)
	priv.POST("/sync/recompute", h.Sync.Recompute)
}
