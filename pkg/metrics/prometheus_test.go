package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPrometheus_MiddlewareAndEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	p := NewPrometheus(NewPrometheusOptions{Registry: reg})

	r := gin.New()
	require.Nil(t, p.Use(r))
	r.GET("/workspaces/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/workspaces/"+id, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	require.Equal(t, 2.0, testutil.ToFloat64(p.reqCnt.WithLabelValues("200", "GET", "/workspaces/:id", "")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), "tenantmaster_req_total"))
}

func TestPrometheus_SeparateListener(t *testing.T) {
	p := NewPrometheus(NewPrometheusOptions{Registry: prometheus.NewRegistry()})
	p.SetListenAddress(":0")
	srv := p.Use(gin.New())
	require.NotNil(t, srv)
	require.Equal(t, ":0", srv.Addr)
}
