package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shenikar/municipal_incidents/internal/config"
	"github.com/shenikar/municipal_incidents/internal/service"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	incidentService service.IncidentService
	auditService    service.AuditService
	identity        service.IdentityResolver
	logger          *logrus.Logger
	validate        *validator.Validate
	cfg             *config.Config
}

func NewHandler(
	incidentService service.IncidentService,
	auditService service.AuditService,
	identity service.IdentityResolver,
	logger *logrus.Logger,
	cfg *config.Config,
) *Handler {
	return &Handler{
		incidentService: incidentService,
		auditService:    auditService,
		identity:        identity,
		logger:          logger,
		validate:        validator.New(),
		cfg:             cfg,
	}
}

// @Summary Create a new incident
// @Description Report an incident at a point. Requires a CITIZEN identity.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security UserIDAuth
// @Param incident body CreateIncidentRequest true "Incident creation request"
// @Success 201 {object} CreateIncidentResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unknown or missing user"
// @Failure 403 {object} map[string]string "Caller is not a CITIZEN"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents [post]
func (h *Handler) createIncident(c *gin.Context) {
	var input CreateIncidentRequest
	log := h.logger.WithField("method", "createIncident")

	if err := c.ShouldBind(&input); err != nil {
		log.WithError(err).Warn("Failed to bind request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	incident, err := h.incidentService.CreateIncident(c.Request.Context(), currentUser(c), DTOToIncidentInput(input))
	if err != nil {
		respondError(c, log, err)
		return
	}

	c.JSON(http.StatusCreated, CreateIncidentResponse{
		IncidentID: incident.ID,
		H3:         incident.H3Index,
		Status:     string(incident.Status),
	})
}

// @Summary Get a list of incidents
// @Description Get all incidents ordered by id.
// @Tags Incidents
// @Produce json
// @Success 200 {array} IncidentResponse
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents [get]
func (h *Handler) listIncidents(c *gin.Context) {
	log := h.logger.WithField("method", "listIncidents")

	incidents, err := h.incidentService.ListIncidents(c.Request.Context())
	if err != nil {
		respondError(c, log, err)
		return
	}

	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Get incident by ID
// @Description Get a single incident by its ID.
// @Tags Incidents
// @Produce json
// @Param id path int true "Incident ID"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/{id} [get]
func (h *Handler) getIncident(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	log := h.logger.WithField("method", "getIncident").WithField("id", id)

	incident, err := h.incidentService.GetIncident(c.Request.Context(), id)
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Change incident status
// @Description Move an incident to a new status. Requires an OPERATOR identity.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security UserIDAuth
// @Param id path int true "Incident ID"
// @Param status body UpdateIncidentStatusRequest true "New status"
// @Success 200 {object} UpdateIncidentStatusResponse
// @Failure 400 {object} map[string]string "Invalid ID, status or transition"
// @Failure 401 {object} map[string]string "Unknown or missing user"
// @Failure 403 {object} map[string]string "Caller is not an OPERATOR"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/{id} [patch]
func (h *Handler) updateIncidentStatus(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	log := h.logger.WithField("method", "updateIncidentStatus").WithField("id", id)

	var input UpdateIncidentStatusRequest
	if err := c.ShouldBind(&input); err != nil {
		log.WithError(err).Warn("Failed to bind request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.incidentService.UpdateIncidentStatus(c.Request.Context(), currentUser(c), id, input.Status); err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, UpdateIncidentStatusResponse{Status: "updated"})
}

// @Summary Get the audit log
// @Description List audit entries, optionally filtered. Requires an ADMIN identity.
// @Tags Audit
// @Produce json
// @Security UserIDAuth
// @Param action query string false "CREATE or UPDATE"
// @Param user_id query int false "Acting user"
// @Param incident_id query int false "Affected incident"
// @Success 200 {array} AuditLogResponse
// @Failure 400 {object} map[string]string "Invalid filter"
// @Failure 401 {object} map[string]string "Unknown or missing user"
// @Failure 403 {object} map[string]string "Caller is not an ADMIN"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /audit [get]
func (h *Handler) listAuditLogs(c *gin.Context) {
	var query AuditQuery
	log := h.logger.WithField("method", "listAuditLogs")

	if err := c.ShouldBindQuery(&query); err != nil {
		log.WithError(err).Warn("Failed to bind query")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}

	if err := h.validate.Struct(query); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entries, err := h.auditService.ListAuditLogs(c.Request.Context(), currentUser(c), query.toFilter())
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToAuditLogResponses(entries))
}

// @Summary Incidents in a cell
// @Description Get incidents whose hexagonal cell id equals the given one.
// @Tags Geo
// @Produce json
// @Param cellId path string true "Cell id"
// @Success 200 {array} IncidentResponse
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/h3/{cellId} [get]
func (h *Handler) incidentsByCell(c *gin.Context) {
	cell := c.Param("cellId")
	log := h.logger.WithField("method", "incidentsByCell").WithField("cell", cell)

	incidents, err := h.incidentService.IncidentsByCell(c.Request.Context(), cell)
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Incidents near a point
// @Description Get incidents in the same cell as the given coordinates.
// @Tags Geo
// @Produce json
// @Param lat query number true "Latitude"
// @Param lon query number true "Longitude"
// @Success 200 {array} IncidentResponse
// @Failure 400 {object} map[string]string "Missing or invalid coordinates"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/near [get]
func (h *Handler) incidentsNear(c *gin.Context) {
	var query NearQuery
	log := h.logger.WithField("method", "incidentsNear")

	if err := c.ShouldBindQuery(&query); err != nil {
		log.WithError(err).Warn("Failed to bind query")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid coordinates"})
		return
	}

	if err := h.validate.Struct(query); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	incidents, err := h.incidentService.IncidentsNear(c.Request.Context(), *query.Lat, *query.Lon)
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseIncidentID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return 0, false
	}
	return id, true
}

