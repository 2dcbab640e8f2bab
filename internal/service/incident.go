package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shenikar/municipal_incidents/internal/geo"
	"github.com/shenikar/municipal_incidents/internal/models"
	"github.com/shenikar/municipal_incidents/internal/webhook"
	"github.com/sirupsen/logrus"
)

// IncidentTx - операции, выполняемые внутри одной транзакции хранилища.
// Изменение инцидента и запись аудита либо фиксируются вместе, либо откатываются вместе.
type IncidentTx interface {
	CreateIncident(ctx context.Context, incident *models.Incident) error
	GetIncidentForUpdate(ctx context.Context, id int64) (*models.Incident, error)
	UpdateIncidentStatus(ctx context.Context, id int64, status models.Status) error
	AppendAuditLog(ctx context.Context, entry *models.AuditLogEntry) error
}

// IncidentRepository определяет контракт для работы с бд инцидентов
type IncidentRepository interface {
	// WithTx фиксирует транзакцию, только если fn вернула nil
	WithTx(ctx context.Context, fn func(tx IncidentTx) error) error
	GetIncident(ctx context.Context, id int64) (*models.Incident, error)
	ListIncidents(ctx context.Context) ([]*models.Incident, error)
	ListIncidentsByCell(ctx context.Context, cell string) ([]*models.Incident, error)
}

// IncidentService определяет контракт для бизнес-логики управления инцидентами
type IncidentService interface {
	CreateIncident(ctx context.Context, actor *models.User, input models.IncidentInput) (*models.Incident, error)
	GetIncident(ctx context.Context, id int64) (*models.Incident, error)
	ListIncidents(ctx context.Context) ([]*models.Incident, error)
	UpdateIncidentStatus(ctx context.Context, actor *models.User, id int64, status string) (*models.Incident, error)
	IncidentsByCell(ctx context.Context, cell string) ([]*models.Incident, error)
	IncidentsNear(ctx context.Context, lat, lon float64) ([]*models.Incident, error)
}

type incidentService struct {
	repo      IncidentRepository
	indexer   geo.Indexer
	publisher webhook.EventPublisher
	logger    *logrus.Logger
	now       func() time.Time
}

func NewIncidentService(repo IncidentRepository, indexer geo.Indexer, publisher webhook.EventPublisher, logger *logrus.Logger) IncidentService {
	return &incidentService{
		repo:      repo,
		indexer:   indexer,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateIncident создает инцидент от имени жителя и пишет аудит CREATE в той же транзакции
func (s *incidentService) CreateIncident(ctx context.Context, actor *models.User, input models.IncidentInput) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "CreateIncident",
		"title":   input.Title,
	})

	if _, err := RequireRole(actor, models.RoleCitizen); err != nil {
		log.WithError(err).Warn("Role check failed")
		return nil, err
	}
	log = log.WithField("user_id", actor.ID)
	log.Info("Attempting to create a new incident")

	incident, err := s.newIncident(input)
	if err != nil {
		log.WithError(err).Warn("Invalid incident input")
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(tx IncidentTx) error {
		if err := tx.CreateIncident(ctx, incident); err != nil {
			return err
		}
		return s.recordAudit(ctx, tx, models.AuditActionCreate, actor.ID, incident.ID)
	})
	if err != nil {
		log.WithError(err).Error("Failed to create incident in repository")
		return nil, fmt.Errorf("service: could not create incident: %w", err)
	}

	log.WithFields(logrus.Fields{
		"incident_id": incident.ID,
		"h3_index":    incident.H3Index,
	}).Info("Incident created successfully")
	s.publish(ctx, log, webhook.EventIncidentCreated, actor.ID, incident)
	return incident, nil
}

// GetIncident получает инцидент по ID
func (s *incidentService) GetIncident(ctx context.Context, id int64) (*models.Incident, error) {
	incident, err := s.repo.GetIncident(ctx, id)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"service":     "incident",
			"method":      "GetIncident",
			"incident_id": id,
		}).WithError(err).Warn("Failed to get incident in repository")
		return nil, fmt.Errorf("service: could not get incident: %w", err)
	}
	return incident, nil
}

// ListIncidents возвращает все инциденты без фильтрации
func (s *incidentService) ListIncidents(ctx context.Context) ([]*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "ListIncidents",
	})

	incidents, err := s.repo.ListIncidents(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list incidents from repository")
		return nil, fmt.Errorf("service: could not list incidents: %w", err)
	}

	log.WithField("count", len(incidents)).Debug("Incidents listed successfully")
	return incidents, nil
}

// UpdateIncidentStatus меняет статус от имени оператора и пишет аудит UPDATE в той же транзакции
func (s *incidentService) UpdateIncidentStatus(ctx context.Context, actor *models.User, id int64, status string) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "UpdateIncidentStatus",
		"incident_id": id,
		"status":      status,
	})

	if _, err := RequireRole(actor, models.RoleOperator); err != nil {
		log.WithError(err).Warn("Role check failed")
		return nil, err
	}
	log = log.WithField("user_id", actor.ID)
	log.Info("Attempting to update incident status")

	next, ok := models.ParseStatus(status)
	if !ok {
		err := invalidArgument("unknown status %q", status)
		log.WithError(err).Warn("Invalid status")
		return nil, err
	}

	var updated *models.Incident
	err := s.repo.WithTx(ctx, func(tx IncidentTx) error {
		current, err := tx.GetIncidentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status.IsTerminal() {
			return invalidArgument("incident %d is %s and cannot change status", id, current.Status)
		}
		if !current.Status.CanTransitionTo(next) {
			return invalidArgument("cannot change status of incident %d from %s to %s", id, current.Status, next)
		}
		if err := tx.UpdateIncidentStatus(ctx, id, next); err != nil {
			return err
		}
		if err := s.recordAudit(ctx, tx, models.AuditActionUpdate, actor.ID, id); err != nil {
			return err
		}
		current.Status = next
		updated = current
		return nil
	})
	if err != nil {
		log.WithError(err).Warn("Failed to update incident status")
		return nil, fmt.Errorf("service: could not update incident status: %w", err)
	}

	log.Info("Incident status updated successfully")
	s.publish(ctx, log, webhook.EventIncidentStatusUpdated, actor.ID, updated)
	return updated, nil
}

// IncidentsByCell ищет инциденты по точному совпадению ячейки. Некорректная ячейка дает пустой результат.
func (s *incidentService) IncidentsByCell(ctx context.Context, cell string) ([]*models.Incident, error) {
	incidents, err := s.repo.ListIncidentsByCell(ctx, cell)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"service": "incident",
			"method":  "IncidentsByCell",
			"cell":    cell,
		}).WithError(err).Error("Failed to list incidents by cell")
		return nil, fmt.Errorf("service: could not list incidents by cell: %w", err)
	}
	return incidents, nil
}

// IncidentsNear возвращает инциденты из ячейки, содержащей точку.
// Это не поиск по радиусу: инциденты из соседней ячейки не попадают в результат.
func (s *incidentService) IncidentsNear(ctx context.Context, lat, lon float64) ([]*models.Incident, error) {
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	return s.IncidentsByCell(ctx, s.indexer.CellOf(lat, lon))
}

func (s *incidentService) newIncident(input models.IncidentInput) (*models.Incident, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, invalidArgument("title is required")
	}
	severity, ok := models.ParseSeverity(input.Severity)
	if !ok {
		return nil, invalidArgument("unknown severity %q", input.Severity)
	}
	if err := validateCoordinates(input.Latitude, input.Longitude); err != nil {
		return nil, err
	}

	return &models.Incident{
		Title:     title,
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
		H3Index:   s.indexer.CellOf(input.Latitude, input.Longitude),
		Severity:  severity,
		Status:    models.StatusOpen,
	}, nil
}

// recordAudit добавляет запись аудита. Ошибка откатывает всю транзакцию.
func (s *incidentService) recordAudit(ctx context.Context, tx IncidentTx, action models.AuditAction, actorID, incidentID int64) error {
	entry := &models.AuditLogEntry{
		Action:     action,
		UserID:     actorID,
		IncidentID: incidentID,
		Time:       s.now().UTC(),
	}
	if err := tx.AppendAuditLog(ctx, entry); err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}

// publish вызывается после фиксации транзакции, поэтому ошибка только логируется
func (s *incidentService) publish(ctx context.Context, log *logrus.Entry, eventType webhook.EventType, actorID int64, incident *models.Incident) {
	event := webhook.NewIncidentEvent(eventType, actorID, incident, s.now().UTC())
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		log.WithError(err).Error("Failed to publish incident event")
	}
}

// validateCoordinates не ограничивает диапазон, отсекаются только NaN и бесконечности
func validateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return invalidArgument("coordinates must be finite numbers")
	}
	return nil
}
