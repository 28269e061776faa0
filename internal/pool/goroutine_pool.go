// Package pool provides the worker pool that runs connection sessions and
// reusable buffers for the read path.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrPoolClosed = errors.New("pool is closed")
	ErrPoolFull   = errors.New("pool is full")
)

// Task 一个连接会话，或任何需要在池中运行的工作
type Task func(ctx context.Context)

// GoroutinePoolConfig configures the pool.
type GoroutinePoolConfig struct {
	// 同时运行的最大 goroutine 数（即最大并发连接数）
	MaxWorkers int `yaml:"max_workers" json:"max_workers"`
	// 所有 worker 忙碌时可排队的任务数
	QueueSize int `yaml:"queue_size" json:"queue_size"`
	// 空闲 worker 的退出时间
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	// 任务 panic 时的回调
	PanicHandler func(any) `yaml:"-" json:"-"`
}

// DefaultGoroutinePoolConfig returns sensible defaults.
func DefaultGoroutinePoolConfig() GoroutinePoolConfig {
	return GoroutinePoolConfig{
		MaxWorkers:  1024,
		QueueSize:   256,
		IdleTimeout: 30 * time.Second,
	}
}

// GoroutinePool 按需伸缩的 worker 池；worker 数达到上限且队列已满时拒绝任务
type GoroutinePool struct {
	ctx    context.Context
	cancel context.CancelFunc

	queue      chan Task
	maxWorkers int32
	workers    atomic.Int32
	active     atomic.Int32
	mu         sync.RWMutex
	closed     bool
	wg         sync.WaitGroup

	submitted atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64
	rejected  atomic.Int64

	idleTimeout  time.Duration
	panicHandler func(any)
}

// NewGoroutinePool creates a new goroutine pool.
func NewGoroutinePool(config GoroutinePoolConfig) *GoroutinePool {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = DefaultGoroutinePoolConfig().MaxWorkers
	}
	if config.QueueSize < 0 {
		config.QueueSize = 0
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultGoroutinePoolConfig().IdleTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &GoroutinePool{
		ctx:          ctx,
		cancel:       cancel,
		queue:        make(chan Task, config.QueueSize),
		maxWorkers:   int32(config.MaxWorkers),
		idleTimeout:  config.IdleTimeout,
		panicHandler: config.PanicHandler,
	}
}

// Submit 提交任务（不阻塞）。
// 优先交给空闲 worker，其次新建 worker，再次排队，全部失败返回 ErrPoolFull。
func (p *GoroutinePool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}
	p.submitted.Add(1)

	if p.active.Load() < p.workers.Load() {
		select {
		case p.queue <- task:
			return nil
		default:
		}
	}

	if p.spawn(task) {
		return nil
	}

	select {
	case p.queue <- task:
		return nil
	default:
		p.rejected.Add(1)
		return ErrPoolFull
	}
}

func (p *GoroutinePool) spawn(first Task) bool {
	for {
		n := p.workers.Load()
		if n >= p.maxWorkers {
			return false
		}
		if p.workers.CompareAndSwap(n, n+1) {
			p.wg.Add(1)
			go p.worker(first)
			return true
		}
	}
}

func (p *GoroutinePool) worker(first Task) {
	defer p.wg.Done()

	p.run(first)

	idle := time.NewTimer(p.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case task, ok := <-p.queue:
			if !ok {
				p.workers.Add(-1)
				return
			}
			p.run(task)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(p.idleTimeout)
		case <-idle.C:
			if p.retire() {
				return
			}
			idle.Reset(p.idleTimeout)
		}
	}
}

// retire 空闲退出，但始终保留一个 worker 消费队列
func (p *GoroutinePool) retire() bool {
	for {
		n := p.workers.Load()
		if n <= 1 {
			return false
		}
		if p.workers.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

func (p *GoroutinePool) run(task Task) {
	p.active.Add(1)
	defer p.active.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			if p.panicHandler != nil {
				p.panicHandler(r)
			}
			return
		}
		p.completed.Add(1)
	}()

	task(p.ctx)
}

// Close 停止接收任务并等待所有任务完成；ctx 到期时取消任务 context 并返回错误
func (p *GoroutinePool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return fmt.Errorf("waiting for %d active tasks: %w", p.active.Load(), ctx.Err())
	}
}

// Stats returns pool statistics.
func (p *GoroutinePool) Stats() GoroutinePoolStats {
	return GoroutinePoolStats{
		Workers:   int(p.workers.Load()),
		Active:    int(p.active.Load()),
		Queued:    len(p.queue),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
		Rejected:  p.rejected.Load(),
	}
}

// GoroutinePoolStats contains pool statistics.
type GoroutinePoolStats struct {
	Workers   int   `json:"workers"`
	Active    int   `json:"active"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Panicked  int64 `json:"panicked"`
	Rejected  int64 `json:"rejected"`
}
