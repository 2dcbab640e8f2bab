package service

import (
	"context"
	"fmt"

	"github.com/shenikar/municipal_incidents/internal/models"
	"github.com/sirupsen/logrus"
)

// AuditRepository - только чтение, запись идет через IncidentTx
type AuditRepository interface {
	ListAuditLogs(ctx context.Context, filter models.AuditFilter) ([]*models.AuditLogEntry, error)
}

type AuditService interface {
	ListAuditLogs(ctx context.Context, actor *models.User, filter models.AuditFilter) ([]*models.AuditLogEntry, error)
}

type auditService struct {
	repo   AuditRepository
	logger *logrus.Logger
}

func NewAuditService(repo AuditRepository, logger *logrus.Logger) AuditService {
	return &auditService{
		repo:   repo,
		logger: logger,
	}
}

// ListAuditLogs доступен только администратору
func (s *auditService) ListAuditLogs(ctx context.Context, actor *models.User, filter models.AuditFilter) ([]*models.AuditLogEntry, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "audit",
		"method":  "ListAuditLogs",
	})

	if _, err := RequireRole(actor, models.RoleAdmin); err != nil {
		log.WithError(err).Warn("Role check failed")
		return nil, err
	}

	entries, err := s.repo.ListAuditLogs(ctx, filter)
	if err != nil {
		log.WithError(err).Error("Failed to list audit logs from repository")
		return nil, fmt.Errorf("service: could not list audit logs: %w", err)
	}

	log.WithFields(logrus.Fields{
		"user_id": actor.ID,
		"count":   len(entries),
	}).Info("Audit logs listed")
	return entries, nil
}
