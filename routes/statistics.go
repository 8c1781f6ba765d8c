package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func getStatistics(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := deps.Statistics.Stats(c.Request.Context(), actor(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
