package models

import (
	"time"
)

type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// ParseSeverity возвращает false, если значение не входит в перечисление
func ParseSeverity(s string) (Severity, bool) {
	switch sev := Severity(s); sev {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return sev, true
	}
	return "", false
}

type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
	StatusClosed     Status = "CLOSED"
)

// statusTransitions описывает допустимые переходы жизненного цикла. CLOSED - терминальный статус.
var statusTransitions = map[Status][]Status{
	StatusOpen:       {StatusInProgress, StatusResolved, StatusClosed},
	StatusInProgress: {StatusOpen, StatusResolved, StatusClosed},
	StatusResolved:   {StatusOpen, StatusClosed},
	StatusClosed:     nil,
}

func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	if _, ok := statusTransitions[st]; !ok {
		return "", false
	}
	return st, true
}

// CanTransitionTo сообщает, разрешен ли переход из текущего статуса в next
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal true для статусов без исходящих переходов
func (s Status) IsTerminal() bool {
	allowed, ok := statusTransitions[s]
	return ok && len(allowed) == 0
}

type Incident struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	H3Index   string    `json:"h3_index"`
	Severity  Severity  `json:"severity"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IncidentInput - необработанные данные от заявителя, проверяются в сервисе
type IncidentInput struct {
	Title     string
	Latitude  float64
	Longitude float64
	Severity  string
}
