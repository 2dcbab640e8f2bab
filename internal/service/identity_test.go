package service_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/shenikar/municipal_incidents/internal/models"
	"github.com/shenikar/municipal_incidents/internal/service"
	"github.com/shenikar/municipal_incidents/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	return logger
}

func TestResolve_KnownUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserRepository(ctrl)
	resolver := service.NewIdentityResolver(users, newTestLogger())
	ctx := context.Background()

	users.EXPECT().GetUserByID(ctx, int64(2)).Return(operator, nil).Times(1)

	user, err := resolver.Resolve(ctx, 2)

	require.NoError(t, err)
	assert.Equal(t, operator, user)
}

func TestResolve_UnknownUserIsUnauthenticated(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserRepository(ctrl)
	resolver := service.NewIdentityResolver(users, newTestLogger())
	ctx := context.Background()

	users.EXPECT().GetUserByID(ctx, int64(99)).Return(nil, service.ErrNotFound).Times(1)

	_, err := resolver.Resolve(ctx, 99)

	assert.ErrorIs(t, err, service.ErrUnauthenticated)
	assert.NotErrorIs(t, err, service.ErrNotFound)
}

func TestResolve_StorageErrorIsNotUnauthenticated(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserRepository(ctrl)
	resolver := service.NewIdentityResolver(users, newTestLogger())
	ctx := context.Background()

	users.EXPECT().GetUserByID(ctx, int64(1)).Return(nil, errors.New("connection refused")).Times(1)

	_, err := resolver.Resolve(ctx, 1)

	require.Error(t, err)
	assert.NotErrorIs(t, err, service.ErrUnauthenticated)
}

func TestRequireRole(t *testing.T) {
	user, err := service.RequireRole(citizen, models.RoleCitizen)
	require.NoError(t, err)
	assert.Same(t, citizen, user)

	_, err = service.RequireRole(admin, models.RoleOperator)
	var forbidden *service.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	assert.Equal(t, models.RoleOperator, forbidden.Required)
	assert.EqualError(t, err, "requires role OPERATOR")

	_, err = service.RequireRole(nil, models.RoleAdmin)
	assert.ErrorIs(t, err, service.ErrUnauthenticated)
}
