package dispatch

import (
	"context"

	"github.com/BaSui01/webserver/protocol/http1"
)

// Handler 将一个请求转换为响应
type Handler interface {
	Name() string
	Handle(ctx context.Context, req *http1.Request) *http1.Response
}

// Factory 为匹配到的 location 创建 Handler。
// 返回 error 表示无法为该请求实例化 handler。
type Factory interface {
	Create(location, uri string) (Handler, error)
}

// FactoryFunc 函数适配器
type FactoryFunc func(location, uri string) (Handler, error)

// Create implements Factory.
func (f FactoryFunc) Create(location, uri string) (Handler, error) {
	return f(location, uri)
}

// HandlerFunc 具名函数适配器
type HandlerFunc struct {
	name string
	fn   func(ctx context.Context, req *http1.Request) *http1.Response
}

// NewHandlerFunc wraps fn as a Handler called name.
func NewHandlerFunc(name string, fn func(ctx context.Context, req *http1.Request) *http1.Response) *HandlerFunc {
	return &HandlerFunc{name: name, fn: fn}
}

// Name implements Handler.
func (h *HandlerFunc) Name() string { return h.name }

// Handle implements Handler.
func (h *HandlerFunc) Handle(ctx context.Context, req *http1.Request) *http1.Response {
	return h.fn(ctx, req)
}

// Static 返回总是产出同一个 handler 的 Factory
func Static(h Handler) Factory {
	return FactoryFunc(func(string, string) (Handler, error) { return h, nil })
}
