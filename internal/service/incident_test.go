package service_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/shenikar/municipal_incidents/internal/geo"
	"github.com/shenikar/municipal_incidents/internal/models"
	"github.com/shenikar/municipal_incidents/internal/service"
	"github.com/shenikar/municipal_incidents/internal/service/mocks"
	"github.com/shenikar/municipal_incidents/internal/webhook"
	webhook_mocks "github.com/shenikar/municipal_incidents/internal/webhook/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	citizen  = &models.User{ID: 1, Name: "Alice", Role: models.RoleCitizen}
	operator = &models.User{ID: 2, Name: "Bob", Role: models.RoleOperator}
	admin    = &models.User{ID: 3, Name: "Admin", Role: models.RoleAdmin}
)

// newTestIncidentService — вспомогательная функция для создания инстанса сервиса с моками.
func newTestIncidentService(t *testing.T) (service.IncidentService, *mocks.MockIncidentRepository, *mocks.MockIncidentTx, *webhook_mocks.MockEventPublisher) {
	ctrl := gomock.NewController(t)
	repoMock := mocks.NewMockIncidentRepository(ctrl)
	txMock := mocks.NewMockIncidentTx(ctrl)
	publisherMock := webhook_mocks.NewMockEventPublisher(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	svc := service.NewIncidentService(repoMock, geo.NewH3Indexer(), publisherMock, logger)
	return svc, repoMock, txMock, publisherMock
}

// runInTx заставляет мок репозитория выполнить колбэк с моком транзакции
func runInTx(repoMock *mocks.MockIncidentRepository, txMock *mocks.MockIncidentTx) {
	repoMock.EXPECT().
		WithTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, fn func(service.IncidentTx) error) error {
			return fn(txMock)
		}).Times(1)
}

func TestCreateIncident_Success(t *testing.T) {
	// Подготовка
	svc, repoMock, txMock, publisherMock := newTestIncidentService(t)
	ctx := context.Background()
	expectedCell := geo.NewH3Indexer().CellOf(40.0, -75.0)

	// Ожидания
	runInTx(repoMock, txMock)
	txMock.EXPECT().
		CreateIncident(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, inc *models.Incident) error {
			assert.Equal(t, models.StatusOpen, inc.Status)
			assert.Equal(t, expectedCell, inc.H3Index)
			inc.ID = 7 // Симулируем, что БД присвоила ID
			return nil
		}).Times(1)
	txMock.EXPECT().
		AppendAuditLog(ctx, gomock.Any()).
		Do(func(_ context.Context, entry *models.AuditLogEntry) {
			assert.Equal(t, models.AuditActionCreate, entry.Action)
			assert.Equal(t, citizen.ID, entry.UserID)
			assert.Equal(t, int64(7), entry.IncidentID)
			assert.Equal(t, "UTC", entry.Time.Location().String())
		}).Return(nil).Times(1)
	publisherMock.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, event webhook.IncidentEvent) {
			assert.Equal(t, webhook.EventIncidentCreated, event.Type)
			assert.Equal(t, int64(7), event.Incident.ID)
		}).Return(nil).Times(1)

	// Действие
	incident, err := svc.CreateIncident(ctx, citizen, models.IncidentInput{
		Title:     "Pothole",
		Latitude:  40.0,
		Longitude: -75.0,
		Severity:  "LOW",
	})

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, int64(7), incident.ID)
	assert.Equal(t, expectedCell, incident.H3Index)
	assert.Equal(t, models.SeverityLow, incident.Severity)
}

func TestCreateIncident_WrongRoleIsForbidden(t *testing.T) {
	svc, repoMock, _, publisherMock := newTestIncidentService(t)
	repoMock.EXPECT().WithTx(gomock.Any(), gomock.Any()).Times(0)
	publisherMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	for _, actor := range []*models.User{operator, admin} {
		_, err := svc.CreateIncident(context.Background(), actor, models.IncidentInput{
			Title: "Pothole", Latitude: 40.0, Longitude: -75.0, Severity: "LOW",
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, service.ErrForbidden)
		assert.NotErrorIs(t, err, service.ErrUnauthenticated)

		var forbidden *service.ForbiddenError
		require.ErrorAs(t, err, &forbidden)
		assert.Equal(t, models.RoleCitizen, forbidden.Required)
	}
}

func TestCreateIncident_InvalidInput(t *testing.T) {
	svc, repoMock, _, _ := newTestIncidentService(t)
	repoMock.EXPECT().WithTx(gomock.Any(), gomock.Any()).Times(0)

	inputs := []models.IncidentInput{
		{Title: "Pothole", Latitude: 40.0, Longitude: -75.0, Severity: "CRITICAL"},
		{Title: "Pothole", Latitude: 40.0, Longitude: -75.0, Severity: "low"},
		{Title: "   ", Latitude: 40.0, Longitude: -75.0, Severity: "LOW"},
		{Title: "Pothole", Latitude: math.NaN(), Longitude: -75.0, Severity: "LOW"},
		{Title: "Pothole", Latitude: 40.0, Longitude: math.Inf(1), Severity: "LOW"},
	}
	for _, in := range inputs {
		_, err := svc.CreateIncident(context.Background(), citizen, in)
		assert.ErrorIs(t, err, service.ErrInvalidArgument, "%+v", in)
	}
}

func TestCreateIncident_AuditFailureAbortsTransaction(t *testing.T) {
	svc, repoMock, txMock, publisherMock := newTestIncidentService(t)
	ctx := context.Background()
	auditErr := errors.New("disk full")

	runInTx(repoMock, txMock)
	txMock.EXPECT().CreateIncident(ctx, gomock.Any()).Return(nil).Times(1)
	txMock.EXPECT().AppendAuditLog(ctx, gomock.Any()).Return(auditErr).Times(1)
	publisherMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	incident, err := svc.CreateIncident(ctx, citizen, models.IncidentInput{
		Title: "Pothole", Latitude: 40.0, Longitude: -75.0, Severity: "HIGH",
	})

	require.Error(t, err)
	assert.Nil(t, incident)
	assert.ErrorIs(t, err, auditErr)
	assert.ErrorContains(t, err, "could not create incident")
}

func TestCreateIncident_PublishFailureDoesNotFail(t *testing.T) {
	svc, repoMock, txMock, publisherMock := newTestIncidentService(t)
	ctx := context.Background()

	runInTx(repoMock, txMock)
	txMock.EXPECT().CreateIncident(ctx, gomock.Any()).Return(nil).Times(1)
	txMock.EXPECT().AppendAuditLog(ctx, gomock.Any()).Return(nil).Times(1)
	publisherMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("redis down")).Times(1)

	_, err := svc.CreateIncident(ctx, citizen, models.IncidentInput{
		Title: "Pothole", Latitude: 40.0, Longitude: -75.0, Severity: "MEDIUM",
	})
	require.NoError(t, err)
}

func TestUpdateIncidentStatus_Success(t *testing.T) {
	svc, repoMock, txMock, publisherMock := newTestIncidentService(t)
	ctx := context.Background()
	existing := &models.Incident{ID: 5, Title: "Pothole", Status: models.StatusOpen}

	runInTx(repoMock, txMock)
	txMock.EXPECT().GetIncidentForUpdate(ctx, int64(5)).Return(existing, nil).Times(1)
	txMock.EXPECT().UpdateIncidentStatus(ctx, int64(5), models.StatusInProgress).Return(nil).Times(1)
	txMock.EXPECT().
		AppendAuditLog(ctx, gomock.Any()).
		Do(func(_ context.Context, entry *models.AuditLogEntry) {
			assert.Equal(t, models.AuditActionUpdate, entry.Action)
			assert.Equal(t, operator.ID, entry.UserID)
			assert.Equal(t, int64(5), entry.IncidentID)
		}).Return(nil).Times(1)
	publisherMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	updated, err := svc.UpdateIncidentStatus(ctx, operator, 5, "IN_PROGRESS")

	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, updated.Status)
}

func TestUpdateIncidentStatus_NotFound(t *testing.T) {
	svc, repoMock, txMock, publisherMock := newTestIncidentService(t)
	ctx := context.Background()

	runInTx(repoMock, txMock)
	txMock.EXPECT().GetIncidentForUpdate(ctx, int64(404)).Return(nil, service.ErrNotFound).Times(1)
	txMock.EXPECT().UpdateIncidentStatus(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	txMock.EXPECT().AppendAuditLog(gomock.Any(), gomock.Any()).Times(0)
	publisherMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.UpdateIncidentStatus(ctx, operator, 404, "RESOLVED")

	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestUpdateIncidentStatus_TerminalStatusRejected(t *testing.T) {
	svc, repoMock, txMock, _ := newTestIncidentService(t)
	ctx := context.Background()
	closed := &models.Incident{ID: 5, Status: models.StatusClosed}

	runInTx(repoMock, txMock)
	txMock.EXPECT().GetIncidentForUpdate(ctx, int64(5)).Return(closed, nil).Times(1)
	txMock.EXPECT().AppendAuditLog(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.UpdateIncidentStatus(ctx, operator, 5, "OPEN")

	assert.ErrorIs(t, err, service.ErrInvalidArgument)
	var invalid *service.InvalidArgumentError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "incident 5 is CLOSED and cannot change status", invalid.Reason)
}

func TestUpdateIncidentStatus_InvalidTransitionRejected(t *testing.T) {
	svc, repoMock, txMock, _ := newTestIncidentService(t)
	ctx := context.Background()
	resolved := &models.Incident{ID: 6, Status: models.StatusResolved}

	runInTx(repoMock, txMock)
	txMock.EXPECT().GetIncidentForUpdate(ctx, int64(6)).Return(resolved, nil).Times(1)
	txMock.EXPECT().UpdateIncidentStatus(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	txMock.EXPECT().AppendAuditLog(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.UpdateIncidentStatus(ctx, operator, 6, "IN_PROGRESS")

	assert.ErrorIs(t, err, service.ErrInvalidArgument)
	assert.ErrorContains(t, err, "from RESOLVED to IN_PROGRESS")
}

func TestUpdateIncidentStatus_UnknownStatus(t *testing.T) {
	svc, repoMock, _, _ := newTestIncidentService(t)
	repoMock.EXPECT().WithTx(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.UpdateIncidentStatus(context.Background(), operator, 5, "FIXED")

	assert.ErrorIs(t, err, service.ErrInvalidArgument)
}

func TestUpdateIncidentStatus_RoleGate(t *testing.T) {
	svc, repoMock, _, _ := newTestIncidentService(t)
	repoMock.EXPECT().WithTx(gomock.Any(), gomock.Any()).Times(0)

	// ADMIN не наследует права OPERATOR
	for _, actor := range []*models.User{citizen, admin} {
		_, err := svc.UpdateIncidentStatus(context.Background(), actor, 5, "RESOLVED")
		assert.ErrorIs(t, err, service.ErrForbidden)
	}

	_, err := svc.UpdateIncidentStatus(context.Background(), nil, 5, "RESOLVED")
	assert.ErrorIs(t, err, service.ErrUnauthenticated)
}

func TestIncidentsNear_UsesCellOfPoint(t *testing.T) {
	svc, repoMock, _, _ := newTestIncidentService(t)
	ctx := context.Background()
	cell := geo.NewH3Indexer().CellOf(55.75, 37.61)
	found := []*models.Incident{{ID: 1, H3Index: cell}}

	repoMock.EXPECT().ListIncidentsByCell(ctx, cell).Return(found, nil).Times(1)

	incidents, err := svc.IncidentsNear(ctx, 55.75, 37.61)

	require.NoError(t, err)
	assert.Equal(t, found, incidents)
}

func TestIncidentsByCell_RepositoryError(t *testing.T) {
	svc, repoMock, _, _ := newTestIncidentService(t)
	ctx := context.Background()

	repoMock.EXPECT().ListIncidentsByCell(ctx, "abc").Return(nil, errors.New("db down")).Times(1)

	_, err := svc.IncidentsByCell(ctx, "abc")
	assert.ErrorContains(t, err, "could not list incidents by cell")
}

func TestGetIncident_NotFound(t *testing.T) {
	svc, repoMock, _, _ := newTestIncidentService(t)
	ctx := context.Background()

	repoMock.EXPECT().GetIncident(ctx, int64(9)).Return(nil, service.ErrNotFound).Times(1)

	incident, err := svc.GetIncident(ctx, 9)

	assert.Nil(t, incident)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestListIncidents_Success(t *testing.T) {
	svc, repoMock, _, _ := newTestIncidentService(t)
	ctx := context.Background()
	expected := []*models.Incident{{ID: 1}, {ID: 2}}

	repoMock.EXPECT().ListIncidents(ctx).Return(expected, nil).Times(1)

	incidents, err := svc.ListIncidents(ctx)

	require.NoError(t, err)
	assert.Equal(t, expected, incidents)
}
