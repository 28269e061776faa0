package dispatch

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/BaSui01/webserver/internal/ctxkeys"
	"github.com/BaSui01/webserver/protocol/http1"
	"github.com/BaSui01/webserver/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const rootLocation = "/"

// Route location 前缀与 Factory 的不可变组合
type Route struct {
	Location string
	Name     string
	Type     string
	Factory  Factory
}

// Recorder 接收每次分发的结果（由 metrics.Collector 实现）
type Recorder interface {
	RecordDispatch(route string, status int, duration time.Duration)
}

// Recorders 将多个 Recorder 合并为一个，nil 项被忽略
func Recorders(rs ...Recorder) Recorder {
	kept := make(multiRecorder, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			kept = append(kept, r)
		}
	}
	return kept
}

type multiRecorder []Recorder

func (m multiRecorder) RecordDispatch(route string, status int, duration time.Duration) {
	for _, r := range m {
		r.RecordDispatch(route, status, duration)
	}
}

// Dispatcher 最长前缀路由表。构建后只读，可被所有会话并发使用。
type Dispatcher struct {
	routes   []Route
	root     *Route
	logger   *zap.Logger
	tracer   trace.Tracer
	recorder Recorder
}

// Option 配置 Dispatcher
type Option func(*Dispatcher)

// WithLogger 设置 logger
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger.With(zap.String("component", "dispatcher"))
		}
	}
}

// WithTracer 设置 tracer，默认使用全局 TracerProvider
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) {
		if tracer != nil {
			d.tracer = tracer
		}
	}
}

// WithRecorder 设置指标记录器
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

func newDispatcher(opts []Option) *Dispatcher {
	d := &Dispatcher{
		logger: zap.NewNop(),
		tracer: otel.Tracer("webserver/dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// New 根据 HandlerSpec 列表构建 Dispatcher。
//
// 无法构建的 spec 会被记录并丢弃；若没有 "/" 路由，则追加 not_found 路由；
// 最后按 location 长度降序排序（稳定排序，等长时保持配置顺序）。
func New(specs []types.HandlerSpec, registry *Registry, opts ...Option) *Dispatcher {
	d := newDispatcher(opts)

	routes := make([]Route, 0, len(specs)+1)
	for _, spec := range specs {
		factory, err := registry.CreateFactory(spec)
		if err != nil {
			d.logger.Warn("dropping handler spec",
				zap.String("name", spec.DisplayName()),
				zap.String("path", spec.Path),
				zap.String("type", spec.Type),
				zap.Error(err),
			)
			continue
		}
		routes = append(routes, Route{
			Location: spec.Path,
			Name:     spec.DisplayName(),
			Type:     spec.Type,
			Factory:  factory,
		})
	}

	if !hasRoot(routes) {
		d.logger.Debug("injecting not_found handler at '/'")
		routes = append(routes, d.defaultRoot(registry))
	}

	d.install(routes)
	return d
}

// NewFromRoutes 直接由路由构建 Dispatcher，不注入默认根路由
func NewFromRoutes(routes []Route, opts ...Option) *Dispatcher {
	d := newDispatcher(opts)
	d.install(append([]Route(nil), routes...))
	return d
}

func (d *Dispatcher) defaultRoot(registry *Registry) Route {
	spec := types.HandlerSpec{
		Name: "default_not_found",
		Path: rootLocation,
		Type: types.HandlerNotFound,
	}
	if registry != nil {
		if factory, err := registry.CreateFactory(spec); err == nil {
			return Route{Location: rootLocation, Name: spec.Name, Type: spec.Type, Factory: factory}
		}
	}
	stock := NewHandlerFunc(spec.Name, func(context.Context, *http1.Request) *http1.Response {
		return http1.NotFound().Build()
	})
	return Route{Location: rootLocation, Name: spec.Name, Type: spec.Type, Factory: Static(stock)}
}

func (d *Dispatcher) install(routes []Route) {
	kept := routes[:0]
	for _, r := range routes {
		if r.Factory != nil {
			kept = append(kept, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return len(kept[i].Location) > len(kept[j].Location)
	})
	d.routes = kept
	for i := range d.routes {
		if d.routes[i].Location == rootLocation {
			d.root = &d.routes[i]
			break
		}
	}
}

func hasRoot(routes []Route) bool {
	for _, r := range routes {
		if r.Location == rootLocation {
			return true
		}
	}
	return false
}

// Routes 返回路由表副本（按匹配顺序）
func (d *Dispatcher) Routes() []Route {
	return append([]Route(nil), d.routes...)
}

// Match 返回第一个 location 是 uri 前缀的路由
func (d *Dispatcher) Match(uri string) (Route, bool) {
	for _, r := range d.routes {
		if strings.HasPrefix(uri, r.Location) {
			return r, true
		}
	}
	return Route{}, false
}

// =============================================================================
// 🎯 分发
// =============================================================================

// Dispatch 将请求路由到最长前缀匹配的 handler
func (d *Dispatcher) Dispatch(ctx context.Context, req *http1.Request) *http1.Response {
	start := time.Now()

	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", req.Method),
		attribute.String("url.path", req.URI),
	}
	if addr, ok := ctxkeys.RemoteAddr(ctx); ok {
		attrs = append(attrs, attribute.String("client.address", addr))
	}
	if id, ok := ctxkeys.SessionID(ctx); ok {
		attrs = append(attrs, attribute.String("session.id", id))
	}

	ctx = otel.GetTextMapPropagator().Extract(ctx, HeaderCarrier{req: req})
	ctx, span := d.tracer.Start(ctx, req.Method+" "+req.Path(),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	route, resp := d.dispatch(ctx, req)

	span.SetAttributes(
		attribute.String("http.route", route),
		attribute.Int("http.response.status_code", resp.StatusCode()),
	)
	if resp.StatusCode() >= http1.StatusInternalServerError {
		span.SetStatus(codes.Error, resp.Reason())
	}
	if d.recorder != nil {
		d.recorder.RecordDispatch(route, resp.StatusCode(), time.Since(start))
	}
	return resp
}

func (d *Dispatcher) dispatch(ctx context.Context, req *http1.Request) (string, *http1.Response) {
	route, ok := d.Match(req.URI)
	if !ok {
		return "", http1.NotFound().Build()
	}

	handler, err := route.Factory.Create(route.Location, req.URI)
	if err != nil || handler == nil {
		d.logger.Error("factory failed to create handler",
			zap.String("location", route.Location),
			zap.String("uri", req.URI),
			zap.Error(err),
		)
		return d.fallback(ctx, req, route)
	}

	return route.Location, d.invoke(ctxkeys.WithRoute(ctx, route.Location), handler, req)
}

// fallback 使用根路由处理请求；根路由不可用时返回 500
func (d *Dispatcher) fallback(ctx context.Context, req *http1.Request, failed Route) (string, *http1.Response) {
	if d.root == nil || failed.Location == rootLocation {
		d.logger.Error("no usable root handler for fallback", zap.String("uri", req.URI))
		return failed.Location, http1.InternalServerError().Build()
	}

	handler, err := d.root.Factory.Create(rootLocation, req.URI)
	if err != nil || handler == nil {
		d.logger.Error("root factory failed to create handler", zap.String("uri", req.URI), zap.Error(err))
		return rootLocation, http1.InternalServerError().Build()
	}

	d.logger.Debug("falling back to root handler",
		zap.String("failed_location", failed.Location),
		zap.String("uri", req.URI),
	)
	return rootLocation, d.invoke(ctxkeys.WithRoute(ctx, rootLocation), handler, req)
}

// invoke 调用 handler；panic 与 nil 响应都转为 500
func (d *Dispatcher) invoke(ctx context.Context, h Handler, req *http1.Request) (resp *http1.Response) {
	defer func() {
		if r := recover(); r != nil {
			location, _ := ctxkeys.Route(ctx)
			addr, _ := ctxkeys.RemoteAddr(ctx)
			d.logger.Error("handler panicked",
				zap.String("handler", h.Name()),
				zap.String("location", location),
				zap.String("uri", req.URI),
				zap.String("remote_addr", addr),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			resp = http1.InternalServerError().Build()
		}
	}()

	resp = h.Handle(ctx, req)
	if resp == nil {
		d.logger.Error("handler returned nil response", zap.String("handler", h.Name()))
		return http1.InternalServerError().Build()
	}
	return resp
}

// HandleBadRequest 返回标准 400 响应
func (d *Dispatcher) HandleBadRequest() *http1.Response {
	return http1.BadRequest().Build()
}

// =============================================================================
// 🔗 Trace context 传播
// =============================================================================

// HeaderCarrier 将请求头适配为 propagation.TextMapCarrier（只读）
type HeaderCarrier struct {
	req *http1.Request
}

var _ propagation.TextMapCarrier = HeaderCarrier{}

// Get implements propagation.TextMapCarrier.
func (c HeaderCarrier) Get(key string) string {
	return c.req.Header(key)
}

// Set is a no-op; requests are never mutated for propagation.
func (c HeaderCarrier) Set(string, string) {}

// Keys implements propagation.TextMapCarrier.
func (c HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c.req.Headers))
	for _, h := range c.req.Headers {
		keys = append(keys, h.Name)
	}
	return keys
}
