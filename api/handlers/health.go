package handlers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/webserver/dispatch"
	"github.com/BaSui01/webserver/protocol/http1"
	"github.com/BaSui01/webserver/types"

	"go.uber.org/zap"
)

// =============================================================================
// 🏥 健康检查 Handler
// =============================================================================

const healthCheckTimeout = 5 * time.Second

// HealthCheck 健康检查接口
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthChecks 运行期注册的依赖检查（数据库、Redis 等）
type HealthChecks struct {
	mu     sync.RWMutex
	checks []HealthCheck
	names  map[string]struct{}
}

// NewHealthChecks 创建空的检查集合
func NewHealthChecks() *HealthChecks {
	return &HealthChecks{names: make(map[string]struct{})}
}

// Register 注册健康检查；同名检查只保留第一个
func (c *HealthChecks) Register(check HealthCheck) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.names[check.Name()]; ok {
		return
	}
	c.names[check.Name()] = struct{}{}
	c.checks = append(c.checks, check)
}

func (c *HealthChecks) snapshot() []HealthCheck {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]HealthCheck, len(c.checks))
	copy(out, c.checks)
	return out
}

// Run 执行全部检查，返回失败项（名称 → 错误信息）
func (c *HealthChecks) Run(ctx context.Context, logger *zap.Logger) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	failed := make(map[string]string)
	for _, check := range c.snapshot() {
		start := time.Now()
		err := check.Check(ctx)
		if err == nil {
			continue
		}
		failed[check.Name()] = err.Error()
		logger.Warn("health check failed",
			zap.String("check", check.Name()),
			zap.Error(err),
			zap.Duration("latency", time.Since(start)),
		)
	}
	return failed
}

// HealthHandler 200 OK；任一依赖检查失败时返回 503 并列出失败项
type HealthHandler struct {
	name   string
	checks *HealthChecks
	logger *zap.Logger
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(name string, checks *HealthChecks, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{name: name, checks: checks, logger: logger}
}

func (h *HealthHandler) Name() string { return h.name }

func (h *HealthHandler) Handle(ctx context.Context, _ *http1.Request) *http1.Response {
	failed := h.checks.Run(ctx, h.logger)
	if len(failed) == 0 {
		return WriteText(http1.StatusOK, "OK")
	}

	names := make([]string, 0, len(failed))
	for name := range failed {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Service Unavailable\n")
	for _, name := range names {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(failed[name])
		b.WriteByte('\n')
	}
	return WriteText(http1.StatusServiceUnavailable, b.String())
}

func newHealthFactory(deps *Deps) dispatch.FactoryCtor {
	return func(spec types.HandlerSpec) (dispatch.Factory, error) {
		return dispatch.Static(NewHealthHandler(spec.DisplayName(), deps.Health, deps.logger(spec))), nil
	}
}
