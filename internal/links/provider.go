package links

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// Provider 按键共享 Store：文件存储以规范化的绝对路径为键，
// SQL 存储以 "driver:dsn" 为键。同一键只构建一次。
type Provider struct {
	mu     sync.Mutex
	stores map[string]Store
}

// NewProvider 创建 Provider
func NewProvider() *Provider {
	return &Provider{stores: make(map[string]Store)}
}

// GetOrCreate 返回 key 对应的 Store，不存在时调用 build 构建。
// build 失败时不缓存结果。
func (p *Provider) GetOrCreate(key string, build func() (Store, error)) (Store, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.stores[key]; ok {
		return s, nil
	}
	s, err := build()
	if err != nil {
		return nil, err
	}
	p.stores[key] = s
	return s, nil
}

// Stores 返回已构建的全部 Store
func (p *Provider) Stores() []Store {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Store, 0, len(p.stores))
	for _, s := range p.stores {
		out = append(out, s)
	}
	return out
}

// PathKey 文件存储的共享键
func PathKey(dataPath string) (string, error) {
	if strings.TrimSpace(dataPath) == "" {
		return "", fmt.Errorf("empty data path")
	}
	abs, err := filepath.Abs(dataPath)
	if err != nil {
		return "", fmt.Errorf("resolve data path %q: %w", dataPath, err)
	}
	return "file:" + filepath.Clean(abs), nil
}

// DSNKey SQL 存储的共享键
func DSNKey(driver, dsn string) string {
	return driver + ":" + dsn
}
