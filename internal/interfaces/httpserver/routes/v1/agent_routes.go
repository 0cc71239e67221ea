package v1

import (
	"github.com/gin-gonic/gin"

	"caremesh/services/agent-guard/internal/interfaces/httpserver/handlers"
)

func registerAgentRoutes(router gin.IRoutes, handler *handlers.AgentHandler) {
	router.POST("/agent/requests", handler.Submit)
	router.GET("/agent/requests/:request_id", handler.Get)
	router.POST("/agent/plans/:plan_id/approval", handler.Approve)
}

func registerAuditRoutes(router gin.IRoutes, handler *handlers.AuditHandler) {
	router.GET("/audit/events", handler.List)
}

func registerAdminRoutes(router gin.IRoutes, handler *handlers.AdminHandler) {
	router.GET("/admin/killswitch", handler.GetKillSwitches)
	router.PUT("/admin/killswitch/:capability", handler.ToggleKillSwitch)
	router.GET("/admin/breakers", handler.GetBreakers)
	router.GET("/admin/ratelimits", handler.GetRateLimits)
}
