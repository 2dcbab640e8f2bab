package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shenikar/municipal_incidents/internal/service"
	"github.com/sirupsen/logrus"
)

// respondError переводит ошибки сервиса в HTTP-статусы
func respondError(c *gin.Context, log *logrus.Entry, err error) {
	var (
		forbidden *service.ForbiddenError
		invalid   *service.InvalidArgumentError
	)

	switch {
	case errors.As(err, &forbidden):
		log.WithError(err).Warn("Forbidden")
		c.JSON(http.StatusForbidden, gin.H{"error": forbidden.Error()})
	case errors.Is(err, service.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user"})
	case errors.Is(err, service.ErrNotFound):
		log.WithError(err).Warn("Incident not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
	case errors.As(err, &invalid):
		log.WithError(err).Warn("Invalid argument")
		c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Error()})
	default:
		log.WithError(err).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
