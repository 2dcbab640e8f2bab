package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/municipal_incidents/internal/models"
	"github.com/shenikar/municipal_incidents/internal/service"
)

const incidentColumns = `id, title, lat, lon, h3_index, severity, status, created_at, updated_at`

// querier - общее подмножество pgxpool.Pool и pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type IncidentRepository struct {
	db *pgxpool.Pool
}

func NewIncidentRepository(db *pgxpool.Pool) service.IncidentRepository {
	return &IncidentRepository{
		db: db,
	}
}

// WithTx выполняет fn в одной транзакции: коммит при nil, иначе откат
func (r *IncidentRepository) WithTx(ctx context.Context, fn func(tx service.IncidentTx) error) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		return fn(&incidentTx{q: tx})
	})
}

// GetIncident возвращает инцидент по его ID
func (r *IncidentRepository) GetIncident(ctx context.Context, id int64) (*models.Incident, error) {
	return getIncident(ctx, r.db, `SELECT `+incidentColumns+` FROM incidents WHERE id = $1`, id)
}

// ListIncidents возвращает все инциденты, порядок стабилен по id
func (r *IncidentRepository) ListIncidents(ctx context.Context) ([]*models.Incident, error) {
	return listIncidents(ctx, r.db, `SELECT `+incidentColumns+` FROM incidents ORDER BY id`)
}

// ListIncidentsByCell ищет по точному совпадению h3_index
func (r *IncidentRepository) ListIncidentsByCell(ctx context.Context, cell string) ([]*models.Incident, error) {
	return listIncidents(ctx, r.db, `SELECT `+incidentColumns+` FROM incidents WHERE h3_index = $1 ORDER BY id`, cell)
}

type incidentTx struct {
	q querier
}

// CreateIncident создает запись об инциденте, id и метки времени присваивает бд
func (t *incidentTx) CreateIncident(ctx context.Context, incident *models.Incident) error {
	query := `
		INSERT INTO incidents (title, lat, lon, h3_index, severity, status)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at, updated_at;
	`
	err := t.q.QueryRow(ctx, query,
		incident.Title,
		incident.Latitude,
		incident.Longitude,
		incident.H3Index,
		string(incident.Severity),
		string(incident.Status),
	).Scan(&incident.ID, &incident.CreatedAt, &incident.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}
	return nil
}

// GetIncidentForUpdate блокирует строку до конца транзакции
func (t *incidentTx) GetIncidentForUpdate(ctx context.Context, id int64) (*models.Incident, error) {
	return getIncident(ctx, t.q, `SELECT `+incidentColumns+` FROM incidents WHERE id = $1 FOR UPDATE`, id)
}

func (t *incidentTx) UpdateIncidentStatus(ctx context.Context, id int64, status models.Status) error {
	cmdTag, err := t.q.Exec(ctx, `UPDATE incidents SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update incident status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("incident with id %d: %w", id, service.ErrNotFound)
	}
	return nil
}

// AppendAuditLog только добавляет записи, обновления и удаления аудита не предусмотрены
func (t *incidentTx) AppendAuditLog(ctx context.Context, entry *models.AuditLogEntry) error {
	query := `
		INSERT INTO audit_logs (action, user_id, incident_id, time)
		VALUES ($1, $2, $3, $4) RETURNING id;
	`
	err := t.q.QueryRow(ctx, query,
		string(entry.Action),
		entry.UserID,
		entry.IncidentID,
		entry.Time,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to append audit log: %w", err)
	}
	return nil
}

func getIncident(ctx context.Context, q querier, query string, id int64) (*models.Incident, error) {
	incident, err := scanIncident(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("incident with id %d: %w", id, service.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get incident by id: %w", err)
	}
	return incident, nil
}

func listIncidents(ctx context.Context, q querier, query string, args ...any) ([]*models.Incident, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]*models.Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident row: %w", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return incidents, nil
}

func scanIncident(row pgx.Row) (*models.Incident, error) {
	incident := &models.Incident{}
	var severity, status string
	err := row.Scan(
		&incident.ID,
		&incident.Title,
		&incident.Latitude,
		&incident.Longitude,
		&incident.H3Index,
		&severity,
		&status,
		&incident.CreatedAt,
		&incident.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	incident.Severity = models.Severity(severity)
	incident.Status = models.Status(status)
	return incident, nil
}
