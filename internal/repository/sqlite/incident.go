package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shenikar/municipal_incidents/internal/models"
	"github.com/shenikar/municipal_incidents/internal/service"
)

const incidentColumns = `id, title, lat, lon, h3_index, severity, status, created_at, updated_at`

// timeLayout - метки времени хранятся текстом в UTC
const timeLayout = time.RFC3339Nano

// querier - общее подмножество *sql.DB и *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

type IncidentRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewIncidentRepository(db *sql.DB) service.IncidentRepository {
	return &IncidentRepository{
		db:  db,
		now: time.Now,
	}
}

// WithTx выполняет fn в одной транзакции: коммит при nil, иначе откат
func (r *IncidentRepository) WithTx(ctx context.Context, fn func(tx service.IncidentTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&incidentTx{q: tx, now: r.now}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("failed to rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *IncidentRepository) GetIncident(ctx context.Context, id int64) (*models.Incident, error) {
	return getIncident(ctx, r.db, id)
}

func (r *IncidentRepository) ListIncidents(ctx context.Context) ([]*models.Incident, error) {
	return listIncidents(ctx, r.db, `SELECT `+incidentColumns+` FROM incidents ORDER BY id`)
}

func (r *IncidentRepository) ListIncidentsByCell(ctx context.Context, cell string) ([]*models.Incident, error) {
	return listIncidents(ctx, r.db, `SELECT `+incidentColumns+` FROM incidents WHERE h3_index = ? ORDER BY id`, cell)
}

type incidentTx struct {
	q   querier
	now func() time.Time
}

func (t *incidentTx) CreateIncident(ctx context.Context, incident *models.Incident) error {
	now := t.now().UTC()
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO incidents (title, lat, lon, h3_index, severity, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		incident.Title,
		incident.Latitude,
		incident.Longitude,
		incident.H3Index,
		string(incident.Severity),
		string(incident.Status),
		now.Format(timeLayout),
		now.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read incident id: %w", err)
	}
	incident.ID = id
	incident.CreatedAt = now
	incident.UpdatedAt = now
	return nil
}

// GetIncidentForUpdate - блокировка строк не нужна: у базы одно соединение
func (t *incidentTx) GetIncidentForUpdate(ctx context.Context, id int64) (*models.Incident, error) {
	return getIncident(ctx, t.q, id)
}

func (t *incidentTx) UpdateIncidentStatus(ctx context.Context, id int64, status models.Status) error {
	res, err := t.q.ExecContext(ctx, `UPDATE incidents SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), t.now().UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("failed to update incident status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("incident with id %d: %w", id, service.ErrNotFound)
	}
	return nil
}

func (t *incidentTx) AppendAuditLog(ctx context.Context, entry *models.AuditLogEntry) error {
	res, err := t.q.ExecContext(ctx, `INSERT INTO audit_logs (action, user_id, incident_id, time) VALUES (?, ?, ?, ?)`,
		string(entry.Action),
		entry.UserID,
		entry.IncidentID,
		entry.Time.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit log: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read audit log id: %w", err)
	}
	entry.ID = id
	return nil
}

func getIncident(ctx context.Context, q querier, id int64) (*models.Incident, error) {
	row := q.QueryRowContext(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id = ?`, id)
	incident, err := scanIncident(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("incident with id %d: %w", id, service.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get incident by id: %w", err)
	}
	return incident, nil
}

func listIncidents(ctx context.Context, q querier, query string, args ...any) ([]*models.Incident, error) {
	rows, err := q.QueryContext(ctx, query, args...)
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

func scanIncident(row rowScanner) (*models.Incident, error) {
	incident := &models.Incident{}
	var severity, status, createdAt, updatedAt string
	err := row.Scan(
		&incident.ID,
		&incident.Title,
		&incident.Latitude,
		&incident.Longitude,
		&incident.H3Index,
		&severity,
		&status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	incident.Severity = models.Severity(severity)
	incident.Status = models.Status(status)

	if incident.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	if incident.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at %q: %w", updatedAt, err)
	}
	return incident, nil
}
