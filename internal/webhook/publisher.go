package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/municipal_incidents/internal/models"
)

const (
	webhookQueueKey = "incident_events"
)

type EventType string

const (
	EventIncidentCreated       EventType = "incident.created"
	EventIncidentStatusUpdated EventType = "incident.status_updated"
)

// IncidentEvent - событие, отправляемое подписчику после фиксации изменения
type IncidentEvent struct {
	ID        uuid.UUID        `json:"id"`
	Type      EventType        `json:"type"`
	ActorID   int64            `json:"actor_id"`
	Incident  *models.Incident `json:"incident"`
	Timestamp time.Time        `json:"timestamp"`
}

func NewIncidentEvent(eventType EventType, actorID int64, incident *models.Incident, at time.Time) IncidentEvent {
	return IncidentEvent{
		ID:        uuid.New(),
		Type:      eventType,
		ActorID:   actorID,
		Incident:  incident,
		Timestamp: at,
	}
}

// EventPublisher - интерфейс для публикации событий
type EventPublisher interface {
	Publish(ctx context.Context, event IncidentEvent) error
}

// RedisEventPublisher - реализация EventPublisher, использующая список Redis как очередь
type RedisEventPublisher struct {
	redisClient *redis.Client
}

func NewRedisEventPublisher(client *redis.Client) *RedisEventPublisher {
	return &RedisEventPublisher{
		redisClient: client,
	}
}

// Publish публикует событие в очередь Redis
func (p *RedisEventPublisher) Publish(ctx context.Context, event IncidentEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal incident event: %w", err)
	}

	// LPUSH добавляет в голову списка, воркер забирает с хвоста через BRPOP
	if err := p.redisClient.LPush(ctx, webhookQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish incident event to Redis: %w", err)
	}
	return nil
}

// NopPublisher используется, когда Redis не настроен
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, IncidentEvent) error {
	return nil
}
