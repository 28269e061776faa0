package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/BaSui01/webserver/config"
	"github.com/BaSui01/webserver/internal/pool"
	"github.com/BaSui01/webserver/protocol/http1"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrServerClosed Serve/Start 在 Shutdown 之后调用
var ErrServerClosed = errors.New("server closed")

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second

	// 拒绝响应的写入与排空共用的时限，以及最多丢弃的请求字节
	rejectTimeout    = time.Second
	rejectDrainLimit = 64 << 10
)

// Connection outcomes reported to the Observer.
const (
	OutcomeAccepted    = "accepted"
	OutcomeRejected    = "rejected"
	OutcomeRateLimited = "rate_limited"
)

// =============================================================================
// 🌐 服务器管理器
// =============================================================================

// Manager 监听 TCP 端口，为每个连接在 worker 池中运行一个 Session
type Manager struct {
	dispatcher Dispatcher
	config     Config
	logger     *zap.Logger
	observer   Observer

	buffers  *pool.BufferPool
	workers  *semaphore.Weighted
	sessions *pool.GoroutinePool
	limiter  *ipLimiter

	listener  net.Listener
	errCh     chan error
	done      chan struct{}
	serving   sync.WaitGroup
	rejecting sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// Config 服务器配置
type Config struct {
	// 监听地址
	Addr string `yaml:"addr" json:"addr"`

	// 单次读超时（0 表示不限制）
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// 写超时（0 表示不限制）
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// 读缓冲区大小
	ReadBufferSize int `yaml:"read_buffer_size" json:"read_buffer_size"`

	// 同时执行 handler 的最大数量
	Workers int `yaml:"workers" json:"workers"`

	// 最大并发连接数
	MaxConnections int `yaml:"max_connections" json:"max_connections"`

	// 等待调度的连接数
	AcceptQueue int `yaml:"accept_queue" json:"accept_queue"`

	// 每 IP 每秒新建连接数（0 表示不限流）
	RateLimitRPS float64 `yaml:"rate_limit_rps" json:"rate_limit_rps"`

	// 每 IP 突发连接数
	RateLimitBurst int `yaml:"rate_limit_burst" json:"rate_limit_burst"`
}

// DefaultConfig 返回默认服务器配置
func DefaultConfig() Config {
	return ConfigFrom(config.DefaultServerConfig())
}

// ConfigFrom 由配置文件中的 server 段构造
func ConfigFrom(sc config.ServerConfig) Config {
	return Config{
		Addr:            sc.ListenAddr(),
		ReadTimeout:     sc.ReadTimeout,
		WriteTimeout:    sc.WriteTimeout,
		ShutdownTimeout: sc.ShutdownTimeout,
		ReadBufferSize:  sc.ReadBufferSize,
		Workers:         sc.Workers,
		MaxConnections:  sc.MaxConnections,
		AcceptQueue:     sc.AcceptQueue,
		RateLimitRPS:    sc.RateLimitRPS,
		RateLimitBurst:  sc.RateLimitBurst,
	}
}

// Option 配置 Manager
type Option func(*Manager)

// WithObserver 设置连接与会话指标观察者
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// NewManager 创建服务器管理器
func NewManager(dispatcher Dispatcher, cfg Config, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = config.DefaultWorkers()
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = pool.DefaultGoroutinePoolConfig().MaxWorkers
	}

	m := &Manager{
		dispatcher: dispatcher,
		config:     cfg,
		logger:     logger.With(zap.String("component", "server")),
		observer:   nopObserver{},
		buffers:    pool.NewBufferPool(cfg.ReadBufferSize),
		workers:    semaphore.NewWeighted(int64(cfg.Workers)),
		errCh:      make(chan error, 1),
		done:       make(chan struct{}),
		conns:      make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.sessions = pool.NewGoroutinePool(pool.GoroutinePoolConfig{
		MaxWorkers: cfg.MaxConnections,
		QueueSize:  cfg.AcceptQueue,
		PanicHandler: func(r any) {
			m.logger.Error("session panicked", zap.Any("panic", r), zap.Stack("stack"))
		},
	})
	if cfg.RateLimitRPS > 0 {
		m.limiter = newIPLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	return m
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// Start 监听并在后台运行 accept 循环（非阻塞）
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrServerClosed
	}
	if m.listener != nil {
		m.mu.Unlock()
		return fmt.Errorf("server already started")
	}
	m.mu.Unlock()

	listener, err := net.Listen("tcp", m.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", m.config.Addr, err)
	}

	go func() {
		if err := m.Serve(listener); err != nil && !errors.Is(err, ErrServerClosed) {
			m.logger.Error("server failed", zap.Error(err))
			select {
			case m.errCh <- err:
			default:
			}
		}
	}()
	return nil
}

// Serve 在 listener 上运行 accept 循环直到 Shutdown（阻塞）
func (m *Manager) Serve(listener net.Listener) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = listener.Close()
		return ErrServerClosed
	}
	if m.listener != nil {
		m.mu.Unlock()
		return fmt.Errorf("server already started")
	}
	m.listener = listener
	m.serving.Add(1)
	m.mu.Unlock()
	defer m.serving.Done()

	m.logger.Info("server listening",
		zap.String("addr", listener.Addr().String()),
		zap.Int("workers", m.config.Workers),
		zap.Int("max_connections", m.config.MaxConnections),
	)

	backoff := time.Duration(0)
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-m.done:
				return ErrServerClosed
			default:
			}
			if isTemporary(err) {
				if backoff == 0 {
					backoff = minAcceptBackoff
				} else if backoff *= 2; backoff > maxAcceptBackoff {
					backoff = maxAcceptBackoff
				}
				m.logger.Warn("accept failed, retrying", zap.Error(err), zap.Duration("backoff", backoff))
				select {
				case <-time.After(backoff):
				case <-m.done:
					return ErrServerClosed
				}
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0
		m.handleConn(conn)
	}
}

func (m *Manager) handleConn(conn net.Conn) {
	if m.limiter != nil && !m.limiter.Allow(clientIP(conn)) {
		m.observer.RecordConnection(OutcomeRateLimited)
		m.logger.Info("connection rate limited", zap.String("client_ip", clientIP(conn)))
		m.reject(conn, http1.NewBuilderWithReason(429, "Too Many Requests").
			WithContentType("text/plain").
			WithBodyString("Too Many Requests").
			Build())
		return
	}

	m.track(conn)
	session := NewSession(conn, m.dispatcher, m.buffers, m.workers, m.observer, SessionConfig{
		ReadTimeout:  m.config.ReadTimeout,
		WriteTimeout: m.config.WriteTimeout,
	}, m.logger)

	err := m.sessions.Submit(func(ctx context.Context) {
		defer m.untrack(conn)
		session.Run(ctx)
	})
	if err != nil {
		m.untrack(conn)
		m.observer.RecordConnection(OutcomeRejected)
		m.logger.Warn("connection rejected", zap.String("remote_addr", remoteAddr(conn)), zap.Error(err))
		_ = conn.Close()
		return
	}
	m.observer.RecordConnection(OutcomeAccepted)
}

// reject 在独立 goroutine 中写出响应，半关闭后排空客户端已发送的请求再关闭，
// 避免未读数据触发 RST 让客户端丢失响应。不占用 accept 循环。
func (m *Manager) reject(conn net.Conn, resp *http1.Response) {
	m.track(conn)
	m.rejecting.Add(1)
	go func() {
		defer m.rejecting.Done()
		defer m.untrack(conn)
		defer conn.Close()

		bufs, err := resp.Buffers()
		if err != nil {
			return
		}
		_ = conn.SetDeadline(time.Now().Add(rejectTimeout))
		if _, err := bufs.WriteTo(conn); err != nil {
			m.logger.Debug("write rejection failed", zap.Error(err))
			return
		}
		if cw, ok := conn.(interface{ CloseWrite() error }); ok {
			_ = cw.CloseWrite()
		}
		_, _ = io.CopyN(io.Discard, conn, rejectDrainLimit)
	}()
}

// Shutdown 关闭 listener，等待进行中的会话结束；ctx 到期后强制关闭剩余连接
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.done)
	listener := m.listener
	m.mu.Unlock()

	m.logger.Info("shutting down server")

	if m.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.ShutdownTimeout)
		defer cancel()
	}

	if listener != nil {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			m.logger.Warn("close listener failed", zap.Error(err))
		}
	}
	m.serving.Wait()
	m.rejecting.Wait()

	if err := m.sessions.Close(ctx); err != nil {
		n := m.closeConns()
		m.logger.Error("server shutdown timed out", zap.Int("forced_connections", n), zap.Error(err))
		return err
	}

	m.logger.Info("server stopped")
	return nil
}

// WaitForShutdown 等待 SIGINT/SIGTERM 或致命错误，然后优雅关闭
func (m *Manager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		m.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-m.errCh:
		if err != nil {
			m.logger.Error("server exited unexpectedly", zap.Error(err))
		}
	}

	if err := m.Shutdown(context.Background()); err != nil {
		m.logger.Error("shutdown error", zap.Error(err))
	}
}

// Errors returns asynchronous server errors.
func (m *Manager) Errors() <-chan error {
	return m.errCh
}

// =============================================================================
// 🔧 辅助方法
// =============================================================================

// Addr 返回实际监听地址；未启动时返回配置地址
func (m *Manager) Addr() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listener != nil {
		return m.listener.Addr().String()
	}
	return m.config.Addr
}

// IsRunning 检查服务器是否运行中
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.closed
}

// Stats 返回会话池统计
func (m *Manager) Stats() pool.GoroutinePoolStats {
	return m.sessions.Stats()
}

func (m *Manager) track(conn net.Conn) {
	m.connMu.Lock()
	m.conns[conn] = struct{}{}
	m.connMu.Unlock()
}

func (m *Manager) untrack(conn net.Conn) {
	m.connMu.Lock()
	delete(m.conns, conn)
	m.connMu.Unlock()
}

func (m *Manager) closeConns() int {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	n := len(m.conns)
	for c := range m.conns {
		_ = c.Close()
		delete(m.conns, c)
	}
	return n
}

func isTemporary(err error) bool {
	var ne interface{ Temporary() bool }
	if errors.As(err, &ne) {
		return ne.Temporary()
	}
	return false
}
