package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"climate-repair-server/middleware"
	"climate-repair-server/models"
	"climate-repair-server/services"
)

var statusByKind = map[services.Kind]int{
	services.KindValidation:      http.StatusBadRequest,
	services.KindForbidden:       http.StatusForbidden,
	services.KindNotFound:        http.StatusNotFound,
	services.KindUnauthenticated: http.StatusUnauthorized,
	services.KindStorage:         http.StatusInternalServerError,
}

// respondError writes a service error as {"error": kind, "message": text}.
func respondError(c *gin.Context, err error) {
	kind := services.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{
		"error":   string(kind),
		"message": services.MessageOf(err),
	})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   string(services.KindValidation),
		"message": message,
	})
}

// bindJSON decodes the body into dst, answering 400 on failure.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondBadRequest(c, err.Error())
		return false
	}
	return true
}

// paramID parses a positive integer path parameter, answering 400 on failure.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondBadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// actor returns the authenticated actor. Routes using it sit behind RequireAuth.
func actor(c *gin.Context) models.Actor {
	a, _ := middleware.ActorFrom(c)
	return a
}
