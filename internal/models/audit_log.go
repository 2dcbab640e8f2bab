package models

import "time"

type AuditAction string

const (
	AuditActionCreate AuditAction = "CREATE"
	AuditActionUpdate AuditAction = "UPDATE"
)

// AuditLogEntry никогда не изменяется и не удаляется после вставки
type AuditLogEntry struct {
	ID         int64       `json:"id"`
	Action     AuditAction `json:"action"`
	UserID     int64       `json:"user_id"`
	IncidentID int64       `json:"incident_id"`
	Time       time.Time   `json:"time"`
}

// AuditFilter - нулевые поля не участвуют в фильтрации
type AuditFilter struct {
	Action     AuditAction
	UserID     int64
	IncidentID int64
}
