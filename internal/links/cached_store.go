package links

import (
	"context"

	"github.com/BaSui01/webserver/internal/cache"
	"go.uber.org/zap"
)

// URLCache 短码 → URL 缓存（由 cache.LinkCache 实现）
type URLCache interface {
	Get(ctx context.Context, code string) (string, error)
	Set(ctx context.Context, code, url string) error
	Invalidate(ctx context.Context, codes ...string) error
}

var _ URLCache = (*cache.LinkCache)(nil)

// CachedStore 为任意 Store 加上 Resolve 的读穿缓存。
// 缓存故障只记录日志，不影响底层存储的结果。
type CachedStore struct {
	Store
	cache  URLCache
	logger *zap.Logger
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore 包装 inner
func NewCachedStore(inner Store, c URLCache, logger *zap.Logger) *CachedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedStore{
		Store:  inner,
		cache:  c,
		logger: logger.With(zap.String("component", "link_cached_store")),
	}
}

// Resolve 先查缓存，未命中回源并回填
func (s *CachedStore) Resolve(ctx context.Context, code string) (string, error) {
	if !ValidCode(code) {
		return "", invalidCode(code)
	}

	url, err := s.cache.Get(ctx, code)
	if err == nil {
		return url, nil
	}
	if !cache.IsCacheMiss(err) {
		s.logger.Warn("link cache lookup failed", zap.String("code", code), zap.Error(err))
	}

	url, err = s.Store.Resolve(ctx, code)
	if err != nil {
		return "", err
	}
	if err := s.cache.Set(ctx, code, url); err != nil {
		s.logger.Warn("link cache fill failed", zap.String("code", code), zap.Error(err))
	}
	return url, nil
}

// Update 成功后失效缓存
func (s *CachedStore) Update(ctx context.Context, code string, params UpdateParams) error {
	if err := s.Store.Update(ctx, code, params); err != nil {
		return err
	}
	s.invalidate(ctx, code)
	return nil
}

// Delete 成功后失效缓存
func (s *CachedStore) Delete(ctx context.Context, code string) error {
	if err := s.Store.Delete(ctx, code); err != nil {
		return err
	}
	s.invalidate(ctx, code)
	return nil
}

func (s *CachedStore) invalidate(ctx context.Context, code string) {
	if err := s.cache.Invalidate(ctx, code); err != nil {
		s.logger.Warn("link cache invalidate failed", zap.String("code", code), zap.Error(err))
	}
}

// scopedCache 给短码加上命名空间，使多个 Store 共用一个 Redis 缓存时互不覆盖
type scopedCache struct {
	URLCache
	scope string
}

// ScopedCache 返回在每个短码前加 scope 前缀的 URLCache；scope 为空时返回 c 本身
func ScopedCache(c URLCache, scope string) URLCache {
	if scope == "" {
		return c
	}
	return scopedCache{URLCache: c, scope: scope + ":"}
}

func (s scopedCache) Get(ctx context.Context, code string) (string, error) {
	return s.URLCache.Get(ctx, s.scope+code)
}

func (s scopedCache) Set(ctx context.Context, code, url string) error {
	return s.URLCache.Set(ctx, s.scope+code, url)
}

func (s scopedCache) Invalidate(ctx context.Context, codes ...string) error {
	scoped := make([]string, len(codes))
	for i, code := range codes {
		scoped[i] = s.scope + code
	}
	return s.URLCache.Invalidate(ctx, scoped...)
}
