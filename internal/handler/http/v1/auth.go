package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shenikar/municipal_incidents/internal/models"
	"github.com/shenikar/municipal_incidents/internal/service"
	"github.com/sirupsen/logrus"
)

const (
	userIDHeader   = "X-User-ID"
	currentUserKey = "currentUser"
)

// IdentityMiddleware - middleware, определяющее вызывающего по заголовку X-User-ID.
// Заголовку доверяют без проверки, роль проверяется уже в сервисе.
func IdentityMiddleware(resolver service.IdentityResolver, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(userIDHeader)
		if raw == "" {
			log.Warn("User identity missing from request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user identity required"})
			return
		}

		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Warnf("Malformed user identity: %q", raw)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid user"})
			return
		}

		user, err := resolver.Resolve(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, service.ErrUnauthenticated) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid user"})
				return
			}
			log.WithError(err).Error("Failed to resolve user identity")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// RequireRoleMiddleware пропускает дальше только пользователя с ровно этой ролью.
// Ставится после IdentityMiddleware, до разбора тела запроса.
func RequireRoleMiddleware(role models.Role, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := service.RequireRole(currentUser(c), role); err != nil {
			respondError(c, log.WithFields(logrus.Fields{
				"path":          c.FullPath(),
				"required_role": role,
			}), err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// currentUser возвращает nil, если middleware не выполнялось
func currentUser(c *gin.Context) *models.User {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
