package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/webserver/api/handlers"
	"github.com/BaSui01/webserver/config"
	"github.com/BaSui01/webserver/dispatch"
	"github.com/BaSui01/webserver/internal/cache"
	"github.com/BaSui01/webserver/internal/metrics"
	"github.com/BaSui01/webserver/internal/server"
	"github.com/BaSui01/webserver/internal/telemetry"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

const defaultShutdownTimeout = 15 * time.Second

// Server 组装请求管道、指标端点与可选的 Redis 缓存
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	// 服务器管理器
	httpManager   *server.Manager
	metricsServer *http.Server

	// 管道组件
	dispatcher *dispatch.Dispatcher
	deps       *handlers.Deps
	linkCache  *cache.LinkCache

	// 指标与遥测
	metricsCollector *metrics.Collector
	otelProviders    *telemetry.Providers

	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器与遥测
	s.metricsCollector = metrics.NewCollector("webserver", s.logger)
	s.initTelemetry()

	// 2. 初始化短链缓存（可选）
	s.initLinkCache()

	// 3. 构建 handler 注册表与分发器
	s.initDispatcher()

	// 4. 启动 HTTP/1.1 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 5. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.String("addr", s.cfg.Server.ListenAddr()),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Int("routes", len(s.dispatcher.Routes())),
	)
	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

func (s *Server) initTelemetry() {
	providers, err := telemetry.Init(s.cfg.Telemetry, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize telemetry", zap.Error(err))
		providers = &telemetry.Providers{}
	}
	s.otelProviders = providers
}

// initLinkCache 连接 Redis；失败时降级为无缓存运行
func (s *Server) initLinkCache() {
	if !s.cfg.Redis.Enabled {
		s.logger.Info("Redis not enabled, link cache disabled")
		return
	}

	lc, err := cache.NewLinkCache(cacheConfig(s.cfg.Redis), s.logger,
		cache.WithObserver(s.metricsCollector))
	if err != nil {
		s.logger.Warn("Redis not available, link cache disabled", zap.Error(err))
		return
	}
	s.linkCache = lc
}

func cacheConfig(rc config.RedisConfig) cache.Config {
	cc := cache.DefaultConfig()
	cc.Addr = rc.Addr
	cc.Password = rc.Password
	cc.DB = rc.DB
	cc.TLS = rc.TLS
	if rc.PoolSize > 0 {
		cc.PoolSize = rc.PoolSize
	}
	if rc.MinIdleConns > 0 {
		cc.MinIdleConns = rc.MinIdleConns
	}
	if rc.KeyPrefix != "" {
		cc.KeyPrefix = rc.KeyPrefix
	}
	if rc.TTL > 0 {
		cc.TTL = rc.TTL
	}
	return cc
}

// initDispatcher 构建 handler 依赖、注册表和路由表
func (s *Server) initDispatcher() {
	deps := handlers.NewDeps(s.logger)
	deps.Database = s.cfg.Database
	deps.QueryObserver = s.metricsCollector
	if s.linkCache != nil {
		deps.Cache = s.linkCache
		deps.Health.Register(s.linkCache)
	}
	s.deps = deps

	recorders := []dispatch.Recorder{s.metricsCollector}
	otelRecorder, err := telemetry.NewDispatchRecorder(s.otelProviders.Meter())
	if err != nil {
		s.logger.Warn("failed to create otel dispatch recorder", zap.Error(err))
	} else {
		recorders = append(recorders, otelRecorder)
	}

	s.dispatcher = dispatch.New(s.cfg.Locations, handlers.NewRegistry(deps),
		dispatch.WithLogger(s.logger),
		dispatch.WithTracer(s.otelProviders.Tracer()),
		dispatch.WithRecorder(dispatch.Recorders(recorders...)),
	)

	for _, r := range s.dispatcher.Routes() {
		s.logger.Info("route registered",
			zap.String("location", r.Location),
			zap.String("handler", r.Name),
			zap.String("type", r.Type),
		)
	}
}

// =============================================================================
// 🌐 HTTP/1.1 服务器
// =============================================================================

func (s *Server) startHTTPServer() error {
	s.httpManager = server.NewManager(s.dispatcher, server.ConfigFrom(s.cfg.Server), s.logger,
		server.WithObserver(s.metricsCollector))

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.String("addr", s.cfg.Server.ListenAddr()))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 在独立端口暴露 /metrics 与 /healthz
func (s *Server) startMetricsServer() error {
	if s.cfg.Server.MetricsPort == 0 {
		s.logger.Info("Metrics server disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metricsCollector.Handler())
	mux.HandleFunc("/healthz", healthzHandler(s.deps.Health, s.logger))

	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
	)

	addr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.MetricsPort))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.metricsServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.metricsServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务，可重复调用
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(s.shutdown)
}

func (s *Server) shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// 1. 关闭 HTTP/1.1 服务器
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 2. 关闭 Metrics 服务器
	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 3. 关闭存储连接与缓存
	if s.deps != nil {
		if err := s.deps.Close(); err != nil {
			s.logger.Error("Database shutdown error", zap.Error(err))
		}
	}
	if s.linkCache != nil {
		if err := s.linkCache.Close(); err != nil {
			s.logger.Error("Link cache shutdown error", zap.Error(err))
		}
	}

	// 4. 刷新遥测数据
	if err := s.otelProviders.Shutdown(ctx); err != nil {
		s.logger.Error("Telemetry shutdown error", zap.Error(err))
	}

	// 5. 等待所有 goroutine 完成
	s.wg.Wait()

	s.logger.Info("Graceful shutdown completed")
}
