package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"climate-repair-server/models"
)

// RegisterUserRoutes registers account listing and manager account administration.
func RegisterUserRoutes(router *gin.RouterGroup, deps Dependencies) {
	router.GET("", func(c *gin.Context) {
		users, err := deps.Users.List(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	})

	router.GET("/specialists", func(c *gin.Context) {
		users, err := deps.Users.ListSpecialists(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	})

	router.GET("/specialists/stats", func(c *gin.Context) {
		stats, err := deps.Users.SpecialistStats(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	router.POST("", func(c *gin.Context) {
		var in models.RegisterInput
		if !bindJSON(c, &in) {
			return
		}
		user, err := deps.Users.CreateByManager(c.Request.Context(), actor(c), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	})

	router.DELETE("/:id", func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		if err := deps.Users.Delete(c.Request.Context(), actor(c), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
}
