package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shenikar/municipal_incidents/internal/config"
	"github.com/shenikar/municipal_incidents/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorker(cfg *config.Config) *WebhookWorker {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	w := NewWebhookWorker(nil, logger, cfg)
	w.sleep = func(context.Context, time.Duration) {}
	return w
}

func testEvent(t *testing.T) (IncidentEvent, string) {
	t.Helper()
	event := NewIncidentEvent(EventIncidentCreated, 1, &models.Incident{ID: 7, Title: "Pothole", Status: models.StatusOpen}, time.Now().UTC())
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return event, string(payload)
}

func TestDeliver_SignsPayload(t *testing.T) {
	event, payload := testEvent(t)
	var gotBody, gotSignature, gotType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotSignature = r.Header.Get("X-Webhook-Signature")
		gotType = r.Header.Get("X-Event-Type")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := newTestWorker(&config.Config{
		WebhookURL:        srv.URL,
		WebhookSecret:     "s3cret",
		WebhookTimeout:    time.Second,
		WebhookMaxRetries: 3,
	})

	require.True(t, w.deliver(context.Background(), event, payload))
	assert.Equal(t, payload, gotBody)
	assert.Equal(t, "incident.created", gotType)
	assert.Equal(t, generateHMACSHA256(payload, "s3cret"), gotSignature)
}

func TestDeliver_RetriesWithBackoff(t *testing.T) {
	event, payload := testEvent(t)
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := newTestWorker(&config.Config{
		WebhookURL:        srv.URL,
		WebhookTimeout:    time.Second,
		WebhookMaxRetries: 3,
		WebhookBaseDelay:  100 * time.Millisecond,
	})
	var delays []time.Duration
	w.sleep = func(_ context.Context, d time.Duration) { delays = append(delays, d) }

	require.True(t, w.deliver(context.Background(), event, payload))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, delays)
}

func TestDeliver_GivesUp(t *testing.T) {
	event, payload := testEvent(t)
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	w := newTestWorker(&config.Config{
		WebhookURL:        srv.URL,
		WebhookTimeout:    time.Second,
		WebhookMaxRetries: 2,
	})

	assert.False(t, w.deliver(context.Background(), event, payload))
	assert.Equal(t, int32(2), calls.Load())
}

func TestDeliver_NoURL(t *testing.T) {
	event, payload := testEvent(t)
	w := newTestWorker(&config.Config{WebhookMaxRetries: 3})

	assert.False(t, w.deliver(context.Background(), event, payload))
}

func TestGenerateHMACSHA256(t *testing.T) {
	// RFC 4231, тест 2
	assert.Equal(t,
		"5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843",
		generateHMACSHA256("what do ya want for nothing?", "Jefe"))
}

func TestNopPublisher(t *testing.T) {
	event, _ := testEvent(t)
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), event))
}

// Требует запущенного Redis: TEST_REDIS_ADDR=localhost:6379
func TestRedisEventPublisher_Queue(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR is not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	require.NoError(t, client.Del(ctx, webhookQueueKey).Err())

	event, _ := testEvent(t)
	require.NoError(t, NewRedisEventPublisher(client).Publish(ctx, event))

	result, err := client.BRPop(ctx, time.Second, webhookQueueKey).Result()
	require.NoError(t, err)

	var got IncidentEvent
	require.NoError(t, json.Unmarshal([]byte(result[1]), &got))
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, int64(7), got.Incident.ID)
}
