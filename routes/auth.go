package routes

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"climate-repair-server/middleware"
	"climate-repair-server/models"
)

// RegisterAuthRoutes registers registration, login and the current-profile endpoint.
func RegisterAuthRoutes(router *gin.RouterGroup, deps Dependencies) {
	router.POST("/register", func(c *gin.Context) {
		var in models.RegisterInput
		if !bindJSON(c, &in) {
			return
		}

		user, err := deps.Users.Register(c.Request.Context(), in)
		if err != nil {
			respondError(c, err)
			return
		}
		token, err := deps.Tokens.Issue(user)
		if err != nil {
			log.Printf("auth: sign token for user %d: %v", user.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "storage_error",
				"message": "failed to issue token",
			})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"token": token,
			"user":  user.Profile(),
		})
	})

	router.POST("/login", func(c *gin.Context) {
		var in models.LoginInput
		if !bindJSON(c, &in) {
			return
		}

		user, err := deps.Users.Authenticate(c.Request.Context(), in.Login, in.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		token, err := deps.Tokens.Issue(user)
		if err != nil {
			log.Printf("auth: sign token for user %d: %v", user.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "storage_error",
				"message": "failed to issue token",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user":  user.Profile(),
		})
	})

	router.GET("/me", deps.Auth.RequireAuth(), func(c *gin.Context) {
		user, _ := middleware.UserFrom(c)
		c.JSON(http.StatusOK, user.Profile())
	})
}
