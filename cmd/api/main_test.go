package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-procurement-workflow/internal/config"
	"github.com/imrishuroy/go-procurement-workflow/internal/handlers"
	"github.com/imrishuroy/go-procurement-workflow/internal/metrics"
	"github.com/imrishuroy/go-procurement-workflow/internal/requests"
)

func TestSetupRouter_HealthAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := metrics.New(nil)
	r := setupRouter(handlers.HandlerConfig{Service: requests.NewService(requests.NewMemoryStore())}, m)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/requests", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `procurement_http_requests_total{method="GET",route="/api/requests",status="200"} 1`), w.Body.String())
}

func TestOpenStore(t *testing.T) {
	s, closer, err := openStore(t.Context(), config.Config{Storage: config.StorageMemory}, nil)
	require.NoError(t, err)
	assert.Nil(t, closer)
	assert.IsType(t, &requests.MemoryStore{}, s)

	s, closer, err = openStore(t.Context(), config.Config{Storage: config.StorageSQLite, SQLitePath: t.TempDir() + "/p.db"}, nil)
	require.NoError(t, err)
	require.NotNil(t, closer)
	defer closer.Close()
	assert.IsType(t, &requests.SQLiteStore{}, s)
}

func TestNeedsAWS(t *testing.T) {
	assert.True(t, needsAWS(config.Config{Storage: config.StorageDynamoDB}))
	assert.False(t, needsAWS(config.Config{Storage: config.StorageMemory}))
	assert.True(t, needsAWS(config.Config{Storage: config.StorageSQLite, EventsQueueURL: "https://sqs/q"}))
}
