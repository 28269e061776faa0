package dispatch

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/BaSui01/webserver/types"
)

// ErrUnknownHandlerType 注册表中不存在该类型
var ErrUnknownHandlerType = errors.New("unknown handler type")

// FactoryCtor 根据 HandlerSpec 构造 Factory；缺少必需配置时返回 error
type FactoryCtor func(spec types.HandlerSpec) (Factory, error)

// Registry 显式的 handler 类型注册表，启动时填充一次后只读
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]FactoryCtor
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]FactoryCtor)}
}

// Register 注册类型；重复注册同一类型会覆盖之前的构造函数
func (r *Registry) Register(typeTag string, ctor FactoryCtor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[typeTag] = ctor
}

// Has reports whether typeTag is registered.
func (r *Registry) Has(typeTag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ctors[typeTag]
	return ok
}

// Types 返回已注册类型（排序后）
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.ctors))
	for k := range r.ctors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CreateFactory 按 spec.Type 构造 Factory
func (r *Registry) CreateFactory(spec types.HandlerSpec) (Factory, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[spec.Type]
	r.mu.RUnlock()

	if !ok {
		return nil, types.NewError(types.ErrUnknownHandler, fmt.Sprintf("handler type %q is not registered", spec.Type)).
			WithHandler(spec.DisplayName()).
			WithCause(ErrUnknownHandlerType)
	}

	factory, err := ctor(spec)
	if err != nil {
		return nil, fmt.Errorf("create %s factory for %s: %w", spec.Type, spec.Path, err)
	}
	if factory == nil {
		return nil, types.NewError(types.ErrMissingOption, "factory constructor returned nil").
			WithHandler(spec.DisplayName())
	}
	return factory, nil
}
