package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"site-cloner/internal/database"
)

func TestRewriteRecorder(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RowsScanned("wp_5_posts", 4)
	m.RowUpdated("wp_5_posts", 2)
	m.RowUpdated("wp_5_posts", 1)
	m.RowFailed("wp_5_options", "codec")
	m.TableFinished("wp_5_posts", 20*time.Millisecond)
	m.CloneFinished("partial", time.Second)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.RewriteScanned))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RewriteUpdated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RewriteFailed.WithLabelValues("codec")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClonesTotal.WithLabelValues("partial")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RewriteTableDur))
}

func TestUpdateDatabaseHealth(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.UpdateDatabaseHealth(database.HealthCheckResult{Status: "healthy", Stats: database.ConnectionStats{InUse: 1, Idle: 4}})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatabaseUp))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ConnectionPoolIdle))

	m.UpdateDatabaseHealth(database.HealthCheckResult{Status: "unhealthy"})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.DatabaseUp))
}

func TestObserveRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(m.observeRequest)
	r.POST("/api/v1/sites/:id/clone", func(c *gin.Context) { c.Status(http.StatusCreated) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/sites/2/clone", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/sites/3/clone", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HttpRequestsTotal.WithLabelValues("POST", "/api/v1/sites/:id/clone", "201")))
}
