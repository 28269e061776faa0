package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector("test", zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.requestsTotal)
	assert.NotNil(t, collector.requestDuration)
	assert.NotNil(t, collector.parseResults)
	assert.NotNil(t, collector.sessionsActive)
	assert.NotNil(t, collector.Registry())
}

func TestNewCollector_IndependentRegistries(t *testing.T) {
	// 同一 namespace 重复创建不会因重复注册而 panic
	assert.NotPanics(t, func() {
		NewCollector("dup", zap.NewNop())
		NewCollector("dup", zap.NewNop())
	})
}

func TestCollector_RecordDispatch(t *testing.T) {
	c := NewCollector("test", zap.NewNop())

	c.RecordDispatch("/echo", 200, 10*time.Millisecond)
	c.RecordDispatch("/echo", 200, 5*time.Millisecond)
	c.RecordDispatch("", 404, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requestsTotal.WithLabelValues("/echo", "200", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requestsTotal.WithLabelValues("unmatched", "404", "4xx")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.requestDuration))
}

func TestCollector_ParseAndConnections(t *testing.T) {
	c := NewCollector("test", zap.NewNop())

	c.RecordParse("bad_request")
	c.RecordParse("proper_request")
	c.RecordParse("proper_request")
	c.RecordConnection("accepted")
	c.RecordConnection("rate_limited")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.parseResults.WithLabelValues("proper_request")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.connectionsTotal.WithLabelValues("rate_limited")))
}

func TestCollector_SessionsGauge(t *testing.T) {
	c := NewCollector("test", zap.NewNop())

	c.SessionStarted()
	c.SessionStarted()
	c.SessionFinished()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionsActive))
}

func TestCollector_CacheAndDB(t *testing.T) {
	c := NewCollector("test", zap.NewNop())

	c.RecordCacheHit()
	c.RecordCacheMiss()
	c.RecordCacheMiss()
	c.RecordDBQuery("create", 3*time.Millisecond)
	c.RecordSizes(120, 512)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.cacheResults.WithLabelValues("miss")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.dbQueryDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(c.responseSize))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("webserver", zap.NewNop())
	c.RecordDispatch("/health", 200, time.Millisecond)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `webserver_http_requests_total{class="2xx",route="/health",status="200"} 1`))
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{302, "3xx"},
		{404, "4xx"},
		{503, "5xx"},
		{100, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusClass(tt.code))
	}
}
