package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RouteLabels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/api/v1/chat/requests/:id", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"code": 0}) })
	r.PUT("/api/v1/chat/requests/read", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	count := func(method, path, status string) float64 {
		return testutil.ToFloat64(httpReqs.WithLabelValues(method, path, status))
	}
	cases := []struct {
		method, url, label, status string
	}{
		// path params collapse into the route template
		{http.MethodGet, "/api/v1/chat/requests/7", "/api/v1/chat/requests/:id", "200"},
		{http.MethodGet, "/api/v1/chat/requests/8", "/api/v1/chat/requests/:id", "200"},
		{http.MethodPut, "/api/v1/chat/requests/read", "/api/v1/chat/requests/read", "204"},
		// unmatched requests fall back to the raw path
		{http.MethodGet, "/api/v1/nope", "/api/v1/nope", "404"},
	}
	before := map[string]float64{}
	for _, tc := range cases {
		before[tc.method+tc.label+tc.status] = count(tc.method, tc.label, tc.status)
	}
	for _, tc := range cases {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tc.method, tc.url, nil))
	}

	want := map[string]float64{}
	for _, tc := range cases {
		want[tc.method+tc.label+tc.status]++
	}
	for _, tc := range cases {
		k := tc.method + tc.label + tc.status
		if got := count(tc.method, tc.label, tc.status) - before[k]; got != want[k] {
			t.Fatalf("%s %s %s: +%v, want +%v", tc.method, tc.label, tc.status, got, want[k])
		}
	}
	if v := testutil.ToFloat64(httpInflight); v != 0 {
		t.Fatalf("in-flight gauge = %v after requests finished", v)
	}
}

func TestMetrics_WebsocketUpgradeSkipsLatency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/ws-check", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	base := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/ws-check", "400"))
	baseLat := testutil.CollectAndCount(httpLat)

	req := httptest.NewRequest(http.MethodGet, "/ws-check", nil)
	req.Header.Set("Connection", "upgrade")
	req.Header.Set("Upgrade", "websocket")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/ws-check", "400")); got != base+1 {
		t.Fatalf("upgrade not counted: %v", got)
	}
	if got := testutil.CollectAndCount(httpLat); got != baseLat {
		t.Fatalf("upgrade observed in latency histogram: %d series, want %d", got, baseLat)
	}
}
