package crud

import (
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Provider 按规范化后的数据目录共享 FileManager，
// 挂载在同一目录的多个 location 因此共用同一把锁
type Provider struct {
	mu       sync.Mutex
	managers map[string]*FileManager
	logger   *zap.Logger
}

// NewProvider 创建 Provider
func NewProvider(logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		managers: make(map[string]*FileManager),
		logger:   logger,
	}
}

// GetOrCreate 返回 dataPath 对应的共享 FileManager
func (p *Provider) GetOrCreate(dataPath string) (*FileManager, error) {
	key, err := normalize(dataPath)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if m, ok := p.managers[key]; ok {
		return m, nil
	}
	m, err := NewFileManager(key, p.logger)
	if err != nil {
		return nil, err
	}
	p.managers[key] = m
	return m, nil
}

func normalize(dataPath string) (string, error) {
	if dataPath == "" {
		return "", fmt.Errorf("empty data path")
	}
	abs, err := filepath.Abs(dataPath)
	if err != nil {
		return "", fmt.Errorf("resolve data path %q: %w", dataPath, err)
	}
	return filepath.Clean(abs), nil
}
