package v1

import "github.com/shenikar/municipal_incidents/internal/models"

// DTOToIncidentInput преобразует DTO создания в входные данные сервиса
func DTOToIncidentInput(dto CreateIncidentRequest) models.IncidentInput {
	return models.IncidentInput{
		Title:     dto.Title,
		Latitude:  *dto.Lat,
		Longitude: *dto.Lon,
		Severity:  dto.Severity,
	}
}

// ModelToIncidentResponse преобразует доменную модель в DTO для ответа
func ModelToIncidentResponse(model *models.Incident) *IncidentResponse {
	return &IncidentResponse{
		ID:        model.ID,
		Title:     model.Title,
		Latitude:  model.Latitude,
		Longitude: model.Longitude,
		H3Index:   model.H3Index,
		Severity:  string(model.Severity),
		Status:    string(model.Status),
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

// ModelsToIncidentResponses преобразует слайс моделей в слайс DTO
func ModelsToIncidentResponses(models []*models.Incident) []*IncidentResponse {
	responses := make([]*IncidentResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToIncidentResponse(model)
	}
	return responses
}

func ModelsToAuditLogResponses(entries []*models.AuditLogEntry) []*AuditLogResponse {
	responses := make([]*AuditLogResponse, len(entries))
	for i, e := range entries {
		responses[i] = &AuditLogResponse{
			ID:         e.ID,
			Action:     string(e.Action),
			UserID:     e.UserID,
			IncidentID: e.IncidentID,
			Time:       e.Time,
		}
	}
	return responses
}

func (q AuditQuery) toFilter() models.AuditFilter {
	return models.AuditFilter{
		Action:     models.AuditAction(q.Action),
		UserID:     q.UserID,
		IncidentID: q.IncidentID,
	}
}
