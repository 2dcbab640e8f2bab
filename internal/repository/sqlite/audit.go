package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shenikar/municipal_incidents/internal/models"
	"github.com/shenikar/municipal_incidents/internal/service"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) service.AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) ListAuditLogs(ctx context.Context, filter models.AuditFilter) ([]*models.AuditLogEntry, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, string(filter.Action))
	}
	if filter.UserID != 0 {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.IncidentID != 0 {
		conds = append(conds, "incident_id = ?")
		args = append(args, filter.IncidentID)
	}

	query := `SELECT id, action, user_id, incident_id, time FROM audit_logs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.AuditLogEntry, 0)
	for rows.Next() {
		entry := &models.AuditLogEntry{}
		var action, at string
		if err := rows.Scan(&entry.ID, &action, &entry.UserID, &entry.IncidentID, &at); err != nil {
			return nil, fmt.Errorf("failed to scan audit log row: %w", err)
		}
		entry.Action = models.AuditAction(action)
		if entry.Time, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("invalid audit time %q: %w", at, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error audit log iteration: %w", err)
	}
	return entries, nil
}
