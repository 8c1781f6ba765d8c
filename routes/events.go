package routes

import (
	"github.com/gin-gonic/gin"

	"climate-repair-server/policy"
	"climate-repair-server/services"
	ws "climate-repair-server/websocket"
)

// watchRequests upgrades staff connections onto the live request feed.
func watchRequests(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		a := actor(c)
		if !policy.Can(a.Role, policy.WatchRequests, false) {
			respondError(c, &services.Error{Kind: services.KindForbidden, Message: "only staff can watch requests"})
			return
		}
		ws.ServeWebSocket(deps.Hub, deps.Upgrader, c.Writer, c.Request, a)
	}
}
