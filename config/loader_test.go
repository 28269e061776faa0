// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BaSui01/webserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 1024, cfg.Server.ReadBufferSize)
	assert.Empty(t, cfg.Locations)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "absent.conf")).Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	yamlContent := `
server:
  port: 8888
  read_timeout: 60s
  read_buffer_size: 2048
  rate_limit_rps: 5.5

redis:
  enabled: true
  addr: "redis.example.com:6379"
  ttl: 1m

log:
  level: "debug"
  format: "console"

locations:
  - name: echo
    path: /echo
    type: echo
  - path: /static
    type: static
    options:
      root: ./www
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 2048, cfg.Server.ReadBufferSize)
	assert.Equal(t, 5.5, cfg.Server.RateLimitRPS)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, time.Minute, cfg.Redis.TTL)
	assert.Equal(t, "debug", cfg.Log.Level)

	require.Len(t, cfg.Locations, 2)
	assert.Equal(t, "echo", cfg.Locations[0].Name)
	assert.Equal(t, types.HandlerStatic, cfg.Locations[1].Type)
	assert.Equal(t, "./www", cfg.Locations[1].Option("root"))
}

func TestLoader_LoadFromNginx(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "server.conf")
	content := `
# test server
server {
    listen 8081;
    location /echo {
        handler echo;
    }
    location "/files" {
        handler static;
        root "./www root";
    }
}
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := NewLoader().WithConfigPath(configPath).WithValidator(func(c *Config) error {
		return c.Validate()
	}).Load()
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	require.Len(t, cfg.Locations, 2)
	assert.Equal(t, "/files", cfg.Locations[1].Path)
	assert.Equal(t, "./www root", cfg.Locations[1].Option("root"))
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("WEBSERVER_SERVER_PORT", "7777")
	t.Setenv("WEBSERVER_SERVER_WRITE_TIMEOUT", "5s")
	t.Setenv("WEBSERVER_REDIS_ADDR", "env-redis:6379")
	t.Setenv("WEBSERVER_LOG_OUTPUT_PATHS", "stdout, logs/server.log")
	t.Setenv("WEBSERVER_TELEMETRY_SAMPLE_RATE", "0.25")
	t.Setenv("WEBSERVER_TELEMETRY_ENABLED", "true")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "env-redis:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"stdout", "logs/server.log"}, cfg.Log.OutputPaths)
	assert.Equal(t, 0.25, cfg.Telemetry.SampleRate)
	assert.True(t, cfg.Telemetry.Enabled)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  port: 8888\n  workers: 3\n"), 0644))

	t.Setenv("WEBSERVER_SERVER_PORT", "9999")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Server.Workers)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_PORT", "6666")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, 6666, cfg.Server.Port)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("WEBSERVER_SERVER_PORT", "not-a-number")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEBSERVER_SERVER_PORT")
}

func TestLoader_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [unclosed"), 0644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
}

func TestLoader_ValidatorError(t *testing.T) {
	_, err := NewLoader().WithValidator(func(c *Config) error {
		return types.NewError(types.ErrInvalidConfig, "rejected")
	}).Load()
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrInvalidConfig))
}

func TestLoader_EnvErrorsCombined(t *testing.T) {
	t.Setenv("WEBSERVER_SERVER_PORT", "http")
	t.Setenv("WEBSERVER_SERVER_READ_TIMEOUT", "soon")
	t.Setenv("WEBSERVER_REDIS_ENABLED", "maybe")
	t.Setenv("WEBSERVER_REDIS_ADDR", "")

	_, err := NewLoader().Load()
	require.Error(t, err)
	for _, key := range []string{"WEBSERVER_SERVER_PORT", "WEBSERVER_SERVER_READ_TIMEOUT", "WEBSERVER_REDIS_ENABLED"} {
		assert.Contains(t, err.Error(), key)
	}
	assert.NotContains(t, err.Error(), "WEBSERVER_REDIS_ADDR", "empty values are ignored")
}

// --- Validate 测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "invalid server port"},
		{name: "metrics port clash", mutate: func(c *Config) { c.Server.MetricsPort = c.Server.Port }, wantErr: "metrics port"},
		{name: "negative buffer", mutate: func(c *Config) { c.Server.ReadBufferSize = -1 }, wantErr: "read_buffer_size"},
		{name: "negative timeout", mutate: func(c *Config) { c.Server.ReadTimeout = -time.Second }, wantErr: "timeouts"},
		{
			name: "relative path",
			mutate: func(c *Config) {
				c.Locations = []types.HandlerSpec{{Path: "echo", Type: "echo"}}
			},
			wantErr: "must start with '/'",
		},
		{
			name: "missing type",
			mutate: func(c *Config) {
				c.Locations = []types.HandlerSpec{{Path: "/echo"}}
			},
			wantErr: "handler type must be specified",
		},
		{
			name: "duplicate path",
			mutate: func(c *Config) {
				c.Locations = []types.HandlerSpec{
					{Path: "/a", Type: "echo"},
					{Path: "/a", Type: "health"},
				}
			},
			wantErr: "duplicate location path: /a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, types.ErrInvalidConfig, types.GetErrorCode(err))
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", pg.DSN())

	my := DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, User: "u", Password: "p", Name: "n"}
	assert.Equal(t, "u:p@tcp(db:3306)/n?parseTime=true", my.DSN())

	lite := DatabaseConfig{Driver: "sqlite", Name: "links.db"}
	assert.Equal(t, "links.db", lite.DSN())

	assert.Empty(t, (&DatabaseConfig{Driver: "oracle"}).DSN())
}

func TestServerConfig_ListenAddr(t *testing.T) {
	assert.Equal(t, ":8080", DefaultServerConfig().ListenAddr())
	assert.Equal(t, "127.0.0.1:9000", ServerConfig{Host: "127.0.0.1", Port: 9000}.ListenAddr())
}
