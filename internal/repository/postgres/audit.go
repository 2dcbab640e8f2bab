package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/municipal_incidents/internal/models"
	"github.com/shenikar/municipal_incidents/internal/service"
)

type AuditRepository struct {
	db *pgxpool.Pool
}

func NewAuditRepository(db *pgxpool.Pool) service.AuditRepository {
	return &AuditRepository{db: db}
}

// ListAuditLogs возвращает записи аудита в порядке добавления
func (r *AuditRepository) ListAuditLogs(ctx context.Context, filter models.AuditFilter) ([]*models.AuditLogEntry, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Action != "" {
		args = append(args, string(filter.Action))
		conds = append(conds, fmt.Sprintf("action = $%d", len(args)))
	}
	if filter.UserID != 0 {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.IncidentID != 0 {
		args = append(args, filter.IncidentID)
		conds = append(conds, fmt.Sprintf("incident_id = $%d", len(args)))
	}

	query := `SELECT id, action, user_id, incident_id, time FROM audit_logs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.AuditLogEntry, 0)
	for rows.Next() {
		entry := &models.AuditLogEntry{}
		var action string
		if err := rows.Scan(&entry.ID, &action, &entry.UserID, &entry.IncidentID, &entry.Time); err != nil {
			return nil, fmt.Errorf("failed to scan audit log row: %w", err)
		}
		entry.Action = models.AuditAction(action)
		entry.Time = entry.Time.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error audit log iteration: %w", err)
	}
	return entries, nil
}
