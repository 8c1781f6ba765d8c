package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"climate-repair-server/middleware"
	"climate-repair-server/services"
	ws "climate-repair-server/websocket"
)

// Dependencies are the collaborators the HTTP layer dispatches to.
type Dependencies struct {
	Users      *services.UserDirectory
	Requests   *services.RequestService
	Feedback   *services.FeedbackLedger
	Statistics *services.StatisticsService
	Tokens     *services.TokenService
	Auth       *middleware.Authenticator

	// AuthLimiter throttles the credential endpoints. Nil disables it.
	AuthLimiter *middleware.RateLimiter

	Hub      *ws.Hub
	Upgrader *gorillaws.Upgrader

	// SurveyURL prefixes the request id in feedback QR codes.
	SurveyURL string
}

// Register mounts every endpoint on the router.
func Register(router *gin.Engine, deps Dependencies) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Climate repair server is running",
			"time":    time.Now().UTC(),
		})
	})

	api := router.Group("/api")

	authRoutes := api.Group("/auth")
	if deps.AuthLimiter != nil {
		authRoutes.Use(deps.AuthLimiter.Middleware())
	}
	RegisterAuthRoutes(authRoutes, deps)

	if deps.Hub != nil {
		api.GET("/ws/requests", deps.Auth.RequireQueryToken(), watchRequests(deps))
	}

	protected := api.Group("")
	protected.Use(deps.Auth.RequireAuth())
	{
		RegisterRepairRequestRoutes(protected.Group("/repair-requests"), deps)
		RegisterUserRoutes(protected.Group("/users"), deps)
		protected.GET("/statistics", getStatistics(deps))
	}
}
