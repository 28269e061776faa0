// Package cache provides internal cache management.
// This package is internal and should not be imported by external projects.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BaSui01/webserver/internal/tlsutil"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// =============================================================================
// 💾 短链缓存
// =============================================================================

// ErrCacheMiss 缓存未命中错误
var ErrCacheMiss = errors.New("cache miss")

// ErrCacheClosed 缓存已关闭
var ErrCacheClosed = errors.New("link cache is closed")

// IsCacheMiss 判断是否为缓存未命中错误
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// Observer 接收命中/未命中事件（由 metrics.Collector 实现）
type Observer interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// Config 缓存配置
type Config struct {
	// Redis 地址
	Addr string `yaml:"addr" json:"addr"`

	// 密码
	Password string `yaml:"password" json:"password"`

	// 数据库编号
	DB int `yaml:"db" json:"db"`

	// 键前缀，短码拼接在其后
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`

	// 缓存过期时间
	TTL time.Duration `yaml:"ttl" json:"ttl"`

	// 最大重试次数
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// 连接池大小
	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// 最小空闲连接数
	MinIdleConns int `yaml:"min_idle_conns" json:"min_idle_conns"`

	// 健康检查间隔
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval"`

	// 是否使用 TLS 连接
	TLS bool `yaml:"tls" json:"tls"`
}

// DefaultConfig 返回默认缓存配置
func DefaultConfig() Config {
	return Config{
		Addr:                "localhost:6379",
		KeyPrefix:           "webserver:link:",
		TTL:                 10 * time.Minute,
		MaxRetries:          3,
		PoolSize:            10,
		MinIdleConns:        2,
		HealthCheckInterval: 30 * time.Second,
	}
}

// LinkCache 短码 → 目标 URL 的 Redis 缓存
type LinkCache struct {
	redis    *redis.Client
	config   Config
	logger   *zap.Logger
	observer Observer

	hits   atomic.Int64
	misses atomic.Int64

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// Option 配置 LinkCache
type Option func(*LinkCache)

// WithObserver 设置命中率观察者
func WithObserver(o Observer) Option {
	return func(c *LinkCache) { c.observer = o }
}

// NewLinkCache 创建短链缓存并测试连接
func NewLinkCache(config Config, logger *zap.Logger, opts ...Option) (*LinkCache, error) {
	options := &redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		MaxRetries:   config.MaxRetries,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
	}
	if config.TLS {
		options.TLSConfig = tlsutil.ClientConfig(config.Addr)
	}
	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	c := &LinkCache{
		redis:  client,
		config: config,
		logger: logger.With(zap.String("component", "link_cache")),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if config.HealthCheckInterval > 0 {
		go c.healthCheckLoop()
	}

	logger.Info("link cache initialized",
		zap.String("addr", config.Addr),
		zap.String("key_prefix", config.KeyPrefix),
		zap.Duration("ttl", config.TTL),
	)

	return c, nil
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// Get 返回短码对应的 URL；未缓存时返回 ErrCacheMiss
func (c *LinkCache) Get(ctx context.Context, code string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return "", ErrCacheClosed
	}

	val, err := c.redis.Get(ctx, c.key(code)).Result()
	if errors.Is(err, redis.Nil) {
		c.recordMiss()
		return "", ErrCacheMiss
	}
	if err != nil {
		c.logger.Error("cache get failed", zap.String("code", code), zap.Error(err))
		return "", fmt.Errorf("cache get failed: %w", err)
	}

	c.recordHit()
	return val, nil
}

// Set 缓存短码对应的 URL
func (c *LinkCache) Set(ctx context.Context, code, url string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrCacheClosed
	}

	if err := c.redis.Set(ctx, c.key(code), url, c.config.TTL).Err(); err != nil {
		c.logger.Error("cache set failed", zap.String("code", code), zap.Error(err))
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Invalidate 删除若干短码的缓存
func (c *LinkCache) Invalidate(ctx context.Context, codes ...string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrCacheClosed
	}
	if len(codes) == 0 {
		return nil
	}

	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = c.key(code)
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.Error("cache invalidate failed", zap.Strings("codes", codes), zap.Error(err))
		return fmt.Errorf("cache invalidate failed: %w", err)
	}
	return nil
}

// Ping 检查 Redis 连接
func (c *LinkCache) Ping(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrCacheClosed
	}
	return c.redis.Ping(ctx).Err()
}

// Name 健康检查名称
func (c *LinkCache) Name() string { return "redis" }

// Check 健康检查（供 health handler 使用）
func (c *LinkCache) Check(ctx context.Context) error { return c.Ping(ctx) }

// Close 关闭缓存，停止健康检查
func (c *LinkCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)
	c.logger.Info("closing link cache")

	return c.redis.Close()
}

func (c *LinkCache) key(code string) string {
	return c.config.KeyPrefix + code
}

// =============================================================================
// 🏥 健康检查
// =============================================================================

func (c *LinkCache) healthCheckLoop() {
	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.Ping(ctx); err != nil && !errors.Is(err, ErrCacheClosed) {
			c.logger.Error("cache health check failed", zap.Error(err))
		} else {
			c.logger.Debug("cache health check passed")
		}
		cancel()
	}
}

// =============================================================================
// 📊 统计信息
// =============================================================================

// Stats 缓存统计信息
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// HitRate 命中率
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Stats 返回本进程内的命中统计
func (c *LinkCache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

func (c *LinkCache) recordHit() {
	c.hits.Add(1)
	if c.observer != nil {
		c.observer.RecordCacheHit()
	}
}

func (c *LinkCache) recordMiss() {
	c.misses.Add(1)
	if c.observer != nil {
		c.observer.RecordCacheMiss()
	}
}
