package router

import (
	"foodshare-api/handler"
	"foodshare-api/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers groups everything SetupRouter mounts. Images may be nil when no image backend is configured.
type Handlers struct {
	Health   *handler.HealthHandler
	Listings *handler.ListingHandler
	Requests *handler.RequestHandler
	Me       *handler.MeHandler
	Images   *handler.ImageHandler
}

// SetupRouter wires the health routes at the root and the API under /api/v1.
// Reads are public and take an optional token so discovery can hide the
// caller's own listings; anything that acts on behalf of a user requires one.
func SetupRouter(h Handlers, verifier middleware.TokenVerifier) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Logger(), gin.Recovery())

	h.Health.RegisterRoutes(router)

	public := router.Group("/api/v1", middleware.OptionalAuth(verifier))
	authed := router.Group("/api/v1", middleware.AuthMiddleware(verifier))

	h.Listings.RegisterRoutes(public, authed)
	h.Requests.RegisterRoutes(authed)
	h.Me.RegisterRoutes(authed)
	if h.Images != nil {
		h.Images.RegisterRoutes(public, authed)
	}

	return router
}
