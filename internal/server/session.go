package server

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"github.com/BaSui01/webserver/internal/ctxkeys"
	"github.com/BaSui01/webserver/internal/pool"
	"github.com/BaSui01/webserver/protocol/http1"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// =============================================================================
// 🔌 连接会话
// =============================================================================

// State 会话所处阶段
type State uint8

const (
	StateStart State = iota
	StateReading
	StateDispatching
	StateWriting
	StateClosed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateReading:
		return "reading"
	case StateDispatching:
		return "dispatching"
	case StateWriting:
		return "writing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Dispatcher 会话需要的分发能力（由 dispatch.Dispatcher 实现）
type Dispatcher interface {
	Dispatch(ctx context.Context, req *http1.Request) *http1.Response
	HandleBadRequest() *http1.Response
}

// Observer 会话与连接级指标（由 metrics.Collector 实现）
type Observer interface {
	RecordParse(result string)
	RecordSizes(requestBytes, responseBytes int)
	RecordConnection(outcome string)
	SessionStarted()
	SessionFinished()
}

type nopObserver struct{}

func (nopObserver) RecordParse(string)      {}
func (nopObserver) RecordSizes(int, int)    {}
func (nopObserver) RecordConnection(string) {}
func (nopObserver) SessionStarted()         {}
func (nopObserver) SessionFinished()        {}

// SessionConfig 会话参数
type SessionConfig struct {
	// 单次读超时，0 表示不设置
	ReadTimeout time.Duration
	// 写超时，0 表示不设置
	WriteTimeout time.Duration
}

// Session 持有一条已接受的连接，顺序执行 读 → 解析 → 分发 → 写 → 关闭。
// 一个连接只服务一个请求。
type Session struct {
	id         string
	conn       net.Conn
	dispatcher Dispatcher
	buffers    *pool.BufferPool
	workers    *semaphore.Weighted
	observer   Observer
	config     SessionConfig
	logger     *zap.Logger

	parser *http1.Parser
	req    http1.Request
	state  State
}

// NewSession 创建会话。buffers 为 nil 时使用 1024 字节缓冲；workers 为 nil 时不限制并发分发。
func NewSession(conn net.Conn, d Dispatcher, buffers *pool.BufferPool, workers *semaphore.Weighted,
	observer Observer, config SessionConfig, logger *zap.Logger) *Session {
	if buffers == nil {
		buffers = pool.NewBufferPool(0)
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	id := uuid.NewString()
	logger = logger.With(
		zap.String("session_id", id),
		zap.String("remote_addr", remoteAddr(conn)),
	)

	return &Session{
		id:         id,
		conn:       conn,
		dispatcher: d,
		buffers:    buffers,
		workers:    workers,
		observer:   observer,
		config:     config,
		logger:     logger,
		parser:     http1.NewParser(logger),
	}
}

// ID 返回会话 ID
func (s *Session) ID() string { return s.id }

// State 返回当前阶段；Run 返回后为 StateClosed
func (s *Session) State() State { return s.state }

// Run 驱动会话直至连接关闭
func (s *Session) Run(ctx context.Context) {
	s.observer.SessionStarted()
	defer s.observer.SessionFinished()
	defer s.close()

	ctx = ctxkeys.WithSessionID(ctx, s.id)
	ctx = ctxkeys.WithRemoteAddr(ctx, remoteAddr(s.conn))

	start := time.Now()
	resp, ok := s.readRequest(ctx)
	if !ok {
		return
	}
	if err := s.write(resp); err != nil {
		return
	}

	s.observer.RecordSizes(len(s.req.Raw), resp.Len())
	s.logger.Info("response sent",
		zap.Int("status", resp.StatusCode()),
		zap.String("client_ip", clientIP(s.conn)),
		zap.Int("body_length", len(resp.Body())),
		zap.String("method", s.req.Method),
		zap.String("uri", s.req.URI),
		zap.Duration("duration", time.Since(start)),
	)
	s.shutdown()
}

// readRequest 读取直到解析器给出结论，返回待写出的响应
func (s *Session) readRequest(ctx context.Context) (*http1.Response, bool) {
	s.state = StateReading

	buf := s.buffers.Get()
	defer s.buffers.Put(buf)

	for {
		if s.config.ReadTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		}
		n, err := s.conn.Read(*buf)

		if n > 0 {
			switch s.parser.Parse(&s.req, (*buf)[:n]) {
			case http1.ResultProperRequest:
				s.observer.RecordParse(http1.ResultProperRequest.String())
				return s.dispatch(ctx)
			case http1.ResultBadRequest:
				s.observer.RecordParse(http1.ResultBadRequest.String())
				s.logger.Info("bad request", zap.String("parser_state", s.parser.ErrorState()))
				return s.dispatcher.HandleBadRequest(), true
			}
		}

		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				s.logger.Debug("connection closed before a complete request",
					zap.Int("bytes_read", len(s.req.Raw)))
			case errors.Is(err, os.ErrDeadlineExceeded):
				s.logger.Info("read timed out", zap.Duration("timeout", s.config.ReadTimeout))
			default:
				s.logger.Warn("read failed", zap.Error(err))
			}
			return nil, false
		}
	}
}

func (s *Session) dispatch(ctx context.Context) (*http1.Response, bool) {
	s.state = StateDispatching

	if s.workers != nil {
		if err := s.workers.Acquire(ctx, 1); err != nil {
			s.logger.Warn("no dispatch worker available", zap.Error(err))
			return nil, false
		}
		defer s.workers.Release(1)
	}

	return s.dispatcher.Dispatch(ctx, &s.req), true
}

// write 以 vectored write 写出三段响应；响应不完整时改写标准 500
func (s *Session) write(resp *http1.Response) error {
	s.state = StateWriting

	bufs, err := resp.Buffers()
	if err != nil {
		s.logger.Error("handler produced an incomplete response", zap.Error(err))
		*resp = *http1.InternalServerError().Build()
		if bufs, err = resp.Buffers(); err != nil {
			return err
		}
	}

	if s.config.WriteTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}
	if _, err := bufs.WriteTo(s.conn); err != nil {
		s.logger.Warn("write failed", zap.Error(err))
		return err
	}
	return nil
}

// shutdown 关闭两个方向
func (s *Session) shutdown() {
	if cw, ok := s.conn.(interface{ CloseWrite() error }); ok {
		if err := cw.CloseWrite(); err != nil {
			s.logger.Debug("shutdown write side failed", zap.Error(err))
		}
	}
	if cr, ok := s.conn.(interface{ CloseRead() error }); ok {
		if err := cr.CloseRead(); err != nil {
			s.logger.Debug("shutdown read side failed", zap.Error(err))
		}
	}
}

func (s *Session) close() {
	s.state = StateClosed
	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Debug("close failed", zap.Error(err))
	}
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// clientIP 去掉端口的对端地址
func clientIP(conn net.Conn) string {
	addr := remoteAddr(conn)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
