package pool

import (
	"sync"
	"sync/atomic"
)

// Pool is a generic object pool over sync.Pool with an optional reset hook.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)

	gets atomic.Int64
	puts atomic.Int64
	news atomic.Int64
}

// NewPool creates a new object pool.
func NewPool[T any](newFunc func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() any {
		p.news.Add(1)
		return newFunc()
	}
	return p
}

// Get retrieves an object from the pool.
func (p *Pool[T]) Get() T {
	p.gets.Add(1)
	return p.pool.Get().(T)
}

// Put resets obj and returns it to the pool.
func (p *Pool[T]) Put(obj T) {
	p.puts.Add(1)
	if p.reset != nil {
		p.reset(obj)
	}
	p.pool.Put(obj)
}

// Stats returns pool statistics.
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Gets: p.gets.Load(),
		Puts: p.puts.Load(),
		News: p.news.Load(),
	}
}

// PoolStats contains pool statistics.
type PoolStats struct {
	Gets int64 `json:"gets"`
	Puts int64 `json:"puts"`
	News int64 `json:"news"`
}

// HitRate returns the fraction of Gets served without allocating.
func (s PoolStats) HitRate() float64 {
	if s.Gets == 0 {
		return 0
	}
	return float64(s.Gets-s.News) / float64(s.Gets)
}

// =============================================================================
// 📦 读缓冲池
// =============================================================================

// BufferPool 固定大小的读缓冲池
type BufferPool struct {
	size int
	pool *Pool[*[]byte]
}

// NewBufferPool 创建大小为 size 的缓冲池
func NewBufferPool(size int) *BufferPool {
	if size <= 0 {
		size = 1024
	}
	return &BufferPool{
		size: size,
		pool: NewPool(func() *[]byte {
			b := make([]byte, size)
			return &b
		}, nil),
	}
}

// Size 返回缓冲区大小
func (b *BufferPool) Size() int { return b.size }

// Get 获取缓冲区
func (b *BufferPool) Get() *[]byte { return b.pool.Get() }

// Put 归还缓冲区；大小不符的缓冲区直接丢弃
func (b *BufferPool) Put(buf *[]byte) {
	if buf == nil || len(*buf) != b.size {
		return
	}
	b.pool.Put(buf)
}

// Stats 返回统计信息
func (b *BufferPool) Stats() PoolStats { return b.pool.Stats() }
