package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/imrishuroy/go-procurement-workflow/internal/procurement"
)

func TestRecorderCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := procurement.ProcurementRequest{Draft: procurement.Draft{Department: "IT", TotalCost: decimal.RequireFromString("829.90")}}
	m.Submitted(r)
	m.Submitted(r)
	m.Transitioned(procurement.StatusOpen, procurement.StatusClosed)
	m.Rejected("MISSING_FIELD")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.submitted.WithLabelValues("IT")))
	assert.InDelta(t, 1659.8, testutil.ToFloat64(m.submitValue), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("Open", "Closed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejected.WithLabelValues("MISSING_FIELD")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(nil)

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/requests/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	req := httptest.NewRequest(http.MethodGet, "/api/requests/abc", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/requests/:id", "GET", "404")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "procurement_http_requests_total"))
}
