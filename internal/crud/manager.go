package crud

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// =============================================================================
// 📁 实体存储
// =============================================================================

// ErrNotFound 实体不存在
var ErrNotFound = errors.New("entity not found")

// ErrInvalidType 实体类型不合法（为空、含路径分隔符或 ..）
var ErrInvalidType = errors.New("invalid entity type")

// Manager 按实体类型存取不透明数据，ID 为正整数
type Manager interface {
	Create(entityType string, data []byte) (int, error)
	Read(entityType string, id int) ([]byte, error)
	Update(entityType string, id int, data []byte) error
	Delete(entityType string, id int) error
	List(entityType string) ([]int, error)
}

// FileManager 文件系统实现：每种实体一个目录，每个实体一个以 ID 命名的文件
type FileManager struct {
	root   string
	mu     sync.Mutex
	logger *zap.Logger
}

var _ Manager = (*FileManager)(nil)

// NewFileManager 创建以 root 为数据目录的 FileManager
func NewFileManager(root string, logger *zap.Logger) (*FileManager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve data path %q: %w", root, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileManager{
		root:   abs,
		logger: logger.With(zap.String("component", "crud_manager")),
	}, nil
}

// Root 返回数据根目录（绝对路径）
func (m *FileManager) Root() string { return m.root }

// Create 写入新实体，ID 为现有最大 ID + 1
func (m *FileManager) Create(entityType string, data []byte) (int, error) {
	dir, err := m.typeDir(entityType)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		m.logger.Error("create entity directory failed", zap.String("dir", dir), zap.Error(err))
		return 0, fmt.Errorf("create directory %s: %w", dir, err)
	}

	ids, err := listIDs(dir)
	if err != nil {
		return 0, err
	}
	next := 1
	if len(ids) > 0 {
		next = ids[len(ids)-1] + 1
	}

	path := filepath.Join(dir, strconv.Itoa(next))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		m.logger.Error("write entity failed", zap.String("path", path), zap.Error(err))
		return 0, fmt.Errorf("write %s: %w", path, err)
	}

	m.logger.Debug("entity created", zap.String("type", entityType), zap.Int("id", next))
	return next, nil
}

// Read 读取实体内容，不存在返回 ErrNotFound
func (m *FileManager) Read(entityType string, id int) ([]byte, error) {
	dir, err := m.typeDir(entityType)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	path := filepath.Join(dir, strconv.Itoa(id))
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, ErrNotFound
	}

	data, err := os.ReadFile(path)
	if err != nil {
		m.logger.Error("read entity failed", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Update 覆盖写入实体，实体不存在时直接创建
func (m *FileManager) Update(entityType string, id int, data []byte) error {
	dir, err := m.typeDir(entityType)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		m.logger.Error("create entity directory failed", zap.String("dir", dir), zap.Error(err))
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, strconv.Itoa(id))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		m.logger.Error("write entity failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Delete 删除实体；文件本就不存在视为成功
func (m *FileManager) Delete(entityType string, id int) error {
	dir, err := m.typeDir(entityType)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	path := filepath.Join(dir, strconv.Itoa(id))
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("delete of missing entity", zap.String("path", path))
			return nil
		}
		m.logger.Error("delete entity failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// List 返回某类型下全部 ID（升序）；目录不存在返回空列表
func (m *FileManager) List(entityType string) ([]int, error) {
	dir, err := m.typeDir(entityType)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return listIDs(dir)
}

func (m *FileManager) typeDir(entityType string) (string, error) {
	if !ValidType(entityType) {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, entityType)
	}
	return filepath.Join(m.root, entityType), nil
}

// ValidType 实体类型必须是单个路径段
func ValidType(entityType string) bool {
	if entityType == "" || entityType == "." || entityType == ".." {
		return false
	}
	return !strings.ContainsAny(entityType, `/\`) && !strings.Contains(entityType, "..")
}

// listIDs 返回目录下文件名为正整数的常规文件，非数字文件名忽略
func listIDs(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []int{}, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	ids := make([]int, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		id, err := strconv.Atoi(e.Name())
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}
