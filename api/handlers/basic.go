package handlers

import (
	"context"
	"time"

	"github.com/BaSui01/webserver/dispatch"
	"github.com/BaSui01/webserver/protocol/http1"
	"github.com/BaSui01/webserver/types"

	"go.uber.org/zap"
)

const (
	notFoundBody     = "The requested resource could not be found."
	defaultSleepTime = time.Second
)

// =============================================================================
// 🔁 echo
// =============================================================================

// EchoHandler 原样返回请求的全部字节
type EchoHandler struct {
	name string
}

func (h *EchoHandler) Name() string { return h.name }

func (h *EchoHandler) Handle(_ context.Context, req *http1.Request) *http1.Response {
	return http1.OK().
		WithContentType(contentTypeText).
		WithBody(req.Raw).
		Build()
}

func newEchoFactory(*Deps) dispatch.FactoryCtor {
	return func(spec types.HandlerSpec) (dispatch.Factory, error) {
		return dispatch.Static(&EchoHandler{name: spec.DisplayName()}), nil
	}
}

// =============================================================================
// 🚫 not_found
// =============================================================================

// NotFoundHandler 总是返回 404
type NotFoundHandler struct {
	name string
}

func (h *NotFoundHandler) Name() string { return h.name }

func (h *NotFoundHandler) Handle(context.Context, *http1.Request) *http1.Response {
	return http1.NotFound(notFoundBody).
		WithContentType(contentTypeText).
		Build()
}

func newNotFoundFactory(*Deps) dispatch.FactoryCtor {
	return func(spec types.HandlerSpec) (dispatch.Factory, error) {
		return dispatch.Static(&NotFoundHandler{name: spec.DisplayName()}), nil
	}
}

// =============================================================================
// 😴 sleep
// =============================================================================

// SleepHandler 阻塞指定时长后返回 SLEPT，用于验证并发处理
type SleepHandler struct {
	name     string
	duration time.Duration
}

func (h *SleepHandler) Name() string { return h.name }

// Handle 休眠期间 ctx 被取消时提前返回 503
func (h *SleepHandler) Handle(ctx context.Context, _ *http1.Request) *http1.Response {
	timer := time.NewTimer(h.duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return WriteText(http1.StatusOK, "SLEPT")
	case <-ctx.Done():
		return WriteText(http1.StatusServiceUnavailable, "Service Unavailable")
	}
}

// Duration 返回休眠时长
func (h *SleepHandler) Duration() time.Duration { return h.duration }

func newSleepFactory(deps *Deps) dispatch.FactoryCtor {
	return func(spec types.HandlerSpec) (dispatch.Factory, error) {
		duration := defaultSleepTime
		if raw := spec.Option("sleep_ms"); raw != "" {
			if ms, ok := spec.OptionInt("sleep_ms"); ok && ms > 0 {
				duration = time.Duration(ms) * time.Millisecond
			} else {
				deps.logger(spec).Warn("invalid sleep_ms, using default",
					zap.String("sleep_ms", raw),
					zap.Duration("default", defaultSleepTime),
				)
			}
		}
		return dispatch.Static(&SleepHandler{name: spec.DisplayName(), duration: duration}), nil
	}
}
