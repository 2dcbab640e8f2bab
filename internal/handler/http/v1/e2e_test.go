package v1

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shenikar/municipal_incidents/internal/config"
	"github.com/shenikar/municipal_incidents/internal/geo"
	"github.com/shenikar/municipal_incidents/internal/repository/sqlite"
	"github.com/shenikar/municipal_incidents/internal/service"
	"github.com/shenikar/municipal_incidents/internal/webhook"
	sqlitedb "github.com/shenikar/municipal_incidents/pkg/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSQLiteRouter собирает весь HTTP-стек поверх временной базы SQLite
func newSQLiteRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db, err := sqlitedb.Open(filepath.Join(t.TempDir(), "incidents.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlitedb.Migrate(db))

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	handler := NewHandler(
		service.NewIncidentService(sqlite.NewIncidentRepository(db), geo.NewH3Indexer(), webhook.NopPublisher{}, logger),
		service.NewAuditService(sqlite.NewAuditRepository(db), logger),
		service.NewIdentityResolver(sqlite.NewUserRepository(db), logger),
		logger,
		&config.Config{},
	)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), RequestLogger(logger))
	handler.RegisterRoutes(router)
	return router
}

func asUser(id int64) map[string]string {
	return map[string]string{userIDHeader: fmt.Sprint(id)}
}

func TestSQLiteFlow_ReportTriageAudit(t *testing.T) {
	router := newSQLiteRouter(t)

	w := makeRequest(router, http.MethodPost, "/incidents?title=Pothole&lat=40.0&lon=-75.0&severity=LOW", nil, asUser(1))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created CreateIncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "OPEN", created.Status)
	assert.Equal(t, geo.NewH3Indexer().CellOf(40.0, -75.0), created.H3)

	// оператор не может сообщать об инцидентах
	w = makeRequest(router, http.MethodPost, "/incidents?title=Pothole&lat=40.0&lon=-75.0&severity=LOW", nil, asUser(2))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = makeRequest(router, http.MethodGet, "/incidents/near?lat=40.0&lon=-75.0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var near []IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &near))
	require.Len(t, near, 1)
	assert.Equal(t, created.IncidentID, near[0].ID)

	path := fmt.Sprintf("/incidents/%d", created.IncidentID)
	w = makeRequest(router, http.MethodPatch, path+"?status=IN_PROGRESS", nil, asUser(2))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// жителю менять статус нельзя
	w = makeRequest(router, http.MethodPatch, path+"?status=RESOLVED", nil, asUser(1))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = makeRequest(router, http.MethodPatch, "/incidents/999?status=RESOLVED", nil, asUser(2))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = makeRequest(router, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "IN_PROGRESS", got.Status)

	// аудит видит только администратор
	w = makeRequest(router, http.MethodGet, "/audit", nil, asUser(2))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = makeRequest(router, http.MethodGet, "/audit", nil, asUser(3))
	require.Equal(t, http.StatusOK, w.Code)
	var entries []AuditLogResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "CREATE", entries[0].Action)
	assert.Equal(t, int64(1), entries[0].UserID)
	assert.Equal(t, "UPDATE", entries[1].Action)
	assert.Equal(t, int64(2), entries[1].UserID)

	w = makeRequest(router, http.MethodGet, "/incidents", nil, asUser(404))
	assert.Equal(t, http.StatusOK, w.Code)

	w = makeRequest(router, http.MethodGet, "/audit", nil, asUser(404))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
