package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/shenikar/municipal_incidents/internal/models"
)

// RegisterRoutes регистрирует все маршруты API
func (h *Handler) RegisterRoutes(api gin.IRouter) {
	api.Use(Timeout(h.cfg.RequestTimeout))

	identity := IdentityMiddleware(h.identity, h.logger)
	citizen := RequireRoleMiddleware(models.RoleCitizen, h.logger)
	operator := RequireRoleMiddleware(models.RoleOperator, h.logger)
	admin := RequireRoleMiddleware(models.RoleAdmin, h.logger)

	incidents := api.Group("/incidents")
	{
		incidents.POST("", identity, citizen, h.createIncident)
		incidents.GET("", h.listIncidents)
		incidents.GET("/near", h.incidentsNear)
		incidents.GET("/h3/:cellId", h.incidentsByCell)
		incidents.GET("/:id", h.getIncident)
		incidents.PATCH("/:id", identity, operator, h.updateIncidentStatus)
	}

	api.GET("/audit", identity, admin, h.listAuditLogs)

	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)
}
