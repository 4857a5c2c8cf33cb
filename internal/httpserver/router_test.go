package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func newTestRouter(mqAlive bool, workers int) *Router {
	gin.SetMode(gin.TestMode)
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	return NewRouter(rdb, func() bool { return mqAlive }, func() int { return workers })
}

func get(router *Router, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.Engine.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	w := get(newTestRouter(true, 2), "/healthz")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestReadyzFailsWhenMQDown(t *testing.T) {
	w := get(newTestRouter(false, 2), "/readyz")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "mq_not_ready")
}

func TestReadyzFailsWithoutRedis(t *testing.T) {
	w := get(newTestRouter(true, 2), "/readyz")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "redis_not_ready")
}

func TestMetricsEndpoint(t *testing.T) {
	w := get(newTestRouter(true, 2), "/metrics")

	assert.Equal(t, http.StatusOK, w.Code)
}
