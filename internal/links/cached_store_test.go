package links

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/webserver/internal/cache"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingStore 统计回源次数
type countingStore struct {
	Store
	resolves int
}

func (s *countingStore) Resolve(ctx context.Context, code string) (string, error) {
	s.resolves++
	return s.Store.Resolve(ctx, code)
}

func setupCachedStore(t *testing.T) (*miniredis.Miniredis, *countingStore, *CachedStore) {
	t.Helper()
	mr := miniredis.RunT(t)

	lc, err := cache.NewLinkCache(cache.Config{
		Addr:      mr.Addr(),
		KeyPrefix: "links:",
		TTL:       time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = lc.Close() })

	inner := &countingStore{Store: newFileStore(t)}
	return mr, inner, NewCachedStore(inner, lc, zap.NewNop())
}

func TestCachedStore_ResolveReadThrough(t *testing.T) {
	mr, inner, s := setupCachedStore(t)
	ctx := context.Background()

	code, err := s.Create(ctx, CreateParams{URL: "http://cached.example"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		url, err := s.Resolve(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, "http://cached.example", url)
	}
	assert.Equal(t, 1, inner.resolves)

	got, err := mr.Get("links:" + code)
	require.NoError(t, err)
	assert.Equal(t, "http://cached.example", got)
}

func TestCachedStore_UpdateInvalidates(t *testing.T) {
	mr, inner, s := setupCachedStore(t)
	ctx := context.Background()

	code, err := s.Create(ctx, CreateParams{URL: "http://before.example"})
	require.NoError(t, err)
	_, err = s.Resolve(ctx, code)
	require.NoError(t, err)
	assert.True(t, mr.Exists("links:"+code))

	require.NoError(t, s.Update(ctx, code, UpdateParams{URL: "http://after.example"}))
	assert.False(t, mr.Exists("links:"+code))

	url, err := s.Resolve(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "http://after.example", url)
	assert.Equal(t, 2, inner.resolves)
}

func TestCachedStore_DeleteInvalidates(t *testing.T) {
	mr, _, s := setupCachedStore(t)
	ctx := context.Background()

	code, err := s.Create(ctx, CreateParams{URL: "http://bye.example"})
	require.NoError(t, err)
	_, err = s.Resolve(ctx, code)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, code))
	assert.False(t, mr.Exists("links:"+code))

	_, err = s.Resolve(ctx, code)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCachedStore_CacheFailureFallsBack(t *testing.T) {
	mr, inner, s := setupCachedStore(t)
	ctx := context.Background()

	code, err := s.Create(ctx, CreateParams{URL: "http://fallback.example"})
	require.NoError(t, err)

	mr.SetError("ERR injected failure")
	url, err := s.Resolve(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "http://fallback.example", url)
	assert.Equal(t, 1, inner.resolves)

	require.NoError(t, s.Delete(ctx, code), "invalidate failure must not fail delete")
	mr.SetError("")
}

func TestCachedStore_InvalidCodeSkipsCache(t *testing.T) {
	_, inner, s := setupCachedStore(t)

	_, err := s.Resolve(context.Background(), "not-valid")
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Zero(t, inner.resolves)
}

func TestScopedCache_SeparatesStores(t *testing.T) {
	mr := miniredis.RunT(t)
	lc, err := cache.NewLinkCache(cache.Config{Addr: mr.Addr(), KeyPrefix: "links:", TTL: time.Minute}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = lc.Close() })

	ctx := context.Background()
	a := NewCachedStore(newFileStore(t), ScopedCache(lc, "a"), zap.NewNop())
	b := NewCachedStore(newFileStore(t), ScopedCache(lc, "b"), zap.NewNop())

	codeA, err := a.Create(ctx, CreateParams{URL: "http://a.example"})
	require.NoError(t, err)
	codeB, err := b.Create(ctx, CreateParams{URL: "http://b.example"})
	require.NoError(t, err)
	require.Equal(t, codeA, codeB, "fresh stores hand out the same first code")

	urlA, err := a.Resolve(ctx, codeA)
	require.NoError(t, err)
	urlB, err := b.Resolve(ctx, codeB)
	require.NoError(t, err)
	assert.Equal(t, "http://a.example", urlA)
	assert.Equal(t, "http://b.example", urlB)
	assert.True(t, mr.Exists("links:a:"+codeA))
	assert.True(t, mr.Exists("links:b:"+codeB))

	assert.Same(t, URLCache(lc), ScopedCache(lc, ""))
}
