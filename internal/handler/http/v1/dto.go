package v1

import (
	"time"
)

// CreateIncidentRequest DTO для создания инцидента, поля принимаются из JSON или из query/form
// @Description DTO для создания инцидента
type CreateIncidentRequest struct {
	Title    string   `json:"title" form:"title" validate:"required,max=255"`
	Lat      *float64 `json:"lat" form:"lat" validate:"required"`
	Lon      *float64 `json:"lon" form:"lon" validate:"required"`
	Severity string   `json:"severity" form:"severity" validate:"required"`
}

// CreateIncidentResponse DTO ответа на создание инцидента
// @Description DTO ответа на создание инцидента
type CreateIncidentResponse struct {
	IncidentID int64  `json:"incident_id"`
	H3         string `json:"h3"`
	Status     string `json:"status"`
}

// UpdateIncidentStatusRequest DTO для смены статуса инцидента
// @Description DTO для смены статуса инцидента
type UpdateIncidentStatusRequest struct {
	Status string `json:"status" form:"status" validate:"required"`
}

// UpdateIncidentStatusResponse DTO подтверждения смены статуса
type UpdateIncidentStatusResponse struct {
	Status string `json:"status"`
}

// IncidentResponse DTO для ответа с информацией об инциденте
// @Description DTO для ответа с информацией об инциденте
type IncidentResponse struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
	H3Index   string    `json:"h3_index"`
	Severity  string    `json:"severity"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NearQuery параметры поиска инцидентов рядом с точкой
type NearQuery struct {
	Lat *float64 `form:"lat" validate:"required"`
	Lon *float64 `form:"lon" validate:"required"`
}

// AuditQuery необязательные фильтры журнала аудита
type AuditQuery struct {
	Action     string `form:"action" validate:"omitempty,oneof=CREATE UPDATE"`
	UserID     int64  `form:"user_id" validate:"min=0"`
	IncidentID int64  `form:"incident_id" validate:"min=0"`
}

// AuditLogResponse DTO записи журнала аудита
// @Description DTO записи журнала аудита
type AuditLogResponse struct {
	ID         int64     `json:"id"`
	Action     string    `json:"action"`
	UserID     int64     `json:"user_id"`
	IncidentID int64     `json:"incident_id"`
	Time       time.Time `json:"time"`
}
