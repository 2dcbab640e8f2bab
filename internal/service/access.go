package service

import (
	"github.com/shenikar/municipal_incidents/internal/models"
)

// RequireRole пропускает пользователя только при точном совпадении роли.
// Иерархии ролей нет: ADMIN не проходит проверку на OPERATOR.
func RequireRole(user *models.User, required models.Role) (*models.User, error) {
	if user == nil {
		return nil, ErrUnauthenticated
	}
	if user.Role != required {
		return nil, &ForbiddenError{Required: required}
	}
	return user, nil
}
