package config

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// 服务器默认值
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 1024, cfg.Server.ReadBufferSize)
	assert.Zero(t, cfg.Server.RateLimitRPS)

	// Redis 默认关闭
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	// Database 默认 sqlite
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "webserver.db", cfg.Database.DSN())

	// Log 默认值
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "webserver", cfg.Telemetry.ServiceName)

	assert.NoError(t, cfg.Validate())
}

func TestDefaultWorkers(t *testing.T) {
	w := DefaultWorkers()
	assert.GreaterOrEqual(t, w, 4)
	assert.GreaterOrEqual(t, w, runtime.GOMAXPROCS(0))
}
