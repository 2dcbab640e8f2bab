package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shenikar/municipal_incidents/internal/models"
	"github.com/sirupsen/logrus"
)

// UserRepository определяет контракт чтения пользователей
type UserRepository interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// IdentityResolver сопоставляет идентификатор вызывающего с пользователем.
// Право вызывающего на этот идентификатор не проверяется: здесь подключается настоящая аутентификация.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID int64) (*models.User, error)
}

type identityResolver struct {
	users  UserRepository
	logger *logrus.Logger
}

func NewIdentityResolver(users UserRepository, logger *logrus.Logger) IdentityResolver {
	return &identityResolver{
		users:  users,
		logger: logger,
	}
}

func (r *identityResolver) Resolve(ctx context.Context, userID int64) (*models.User, error) {
	user, err := r.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			r.logger.WithFields(logrus.Fields{
				"service": "identity",
				"user_id": userID,
			}).Warn("Unknown caller identity")
			return nil, fmt.Errorf("%w: unknown user %d", ErrUnauthenticated, userID)
		}
		return nil, fmt.Errorf("service: could not resolve user: %w", err)
	}
	return user, nil
}
