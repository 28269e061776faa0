package links

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BaSui01/webserver/types"
	"go.uber.org/zap"
)

// =============================================================================
// 📁 文件存储
// =============================================================================

// FileStore 文件系统实现，布局：
//
//	<root>/urls/<code>       记录 JSON
//	<root>/urls/.counter     最近一次分配的计数器值
//	<root>/url_stats.json    目标 URL → 累计访问数
//
// 所有写入先落临时文件再 rename，所有操作由同一把互斥锁串行化。
type FileStore struct {
	root   string
	mu     sync.Mutex
	logger *zap.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore 创建以 root 为数据目录的 FileStore
func NewFileStore(root string, logger *zap.Logger) (*FileStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve data path %q: %w", root, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{
		root:   abs,
		logger: logger.With(zap.String("component", "link_file_store")),
	}, nil
}

// Root 返回数据根目录
func (s *FileStore) Root() string { return s.root }

func (s *FileStore) urlsDir() string          { return filepath.Join(s.root, "urls") }
func (s *FileStore) codePath(c string) string { return filepath.Join(s.urlsDir(), c) }
func (s *FileStore) counterPath() string      { return filepath.Join(s.urlsDir(), ".counter") }
func (s *FileStore) statsPath() string        { return filepath.Join(s.root, "url_stats.json") }

// Create 分配下一个计数器值并写入记录
func (s *FileStore) Create(_ context.Context, params CreateParams) (string, error) {
	if !ValidURL(params.URL) {
		return "", invalidURL(params.URL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.urlsDir(), 0o755); err != nil {
		return "", storageError("create urls directory", err)
	}

	counter, err := s.readCounter()
	if err != nil {
		return "", err
	}
	counter++
	if err := atomicWrite(s.counterPath(), []byte(strconv.FormatUint(counter, 10))); err != nil {
		return "", storageError("write counter", err)
	}

	code := EncodeBase62(counter)
	rec := Record{
		Code:         code,
		URL:          params.URL,
		PasswordHash: params.PasswordHash,
		PasswordSalt: params.PasswordSalt,
	}
	if err := s.writeRecord(rec); err != nil {
		return "", err
	}

	s.logger.Debug("link created", zap.String("code", code))
	return code, nil
}

// Get 读取记录
func (s *FileStore) Get(_ context.Context, code string) (Record, error) {
	if !ValidCode(code) {
		return Record{}, invalidCode(code)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readRecord(code)
}

// Update 替换目标 URL，保留访问数与密码
func (s *FileStore) Update(_ context.Context, code string, params UpdateParams) error {
	if !ValidCode(code) {
		return invalidCode(code)
	}
	if !ValidURL(params.URL) {
		return invalidURL(params.URL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.readRecord(code)
	if err != nil {
		return err
	}
	rec.URL = params.URL
	return s.writeRecord(rec)
}

// Delete 删除记录，不存在时返回 nil
func (s *FileStore) Delete(_ context.Context, code string) error {
	if !ValidCode(code) {
		return invalidCode(code)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.codePath(code)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return storageError("delete record", err)
	}
	return nil
}

// Resolve 返回目标 URL
func (s *FileStore) Resolve(ctx context.Context, code string) (string, error) {
	rec, err := s.Get(ctx, code)
	if err != nil {
		return "", err
	}
	return rec.URL, nil
}

// IncrementCodeVisits 记录自身访问数加一
func (s *FileStore) IncrementCodeVisits(_ context.Context, code string) error {
	if !ValidCode(code) {
		return invalidCode(code)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.readRecord(code)
	if err != nil {
		return err
	}
	rec.Visits++
	return s.writeRecord(rec)
}

// IncrementURLVisits 记录当前目标 URL 的累计访问数加一
func (s *FileStore) IncrementURLVisits(_ context.Context, code string) error {
	if !ValidCode(code) {
		return invalidCode(code)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.readRecord(code)
	if err != nil {
		return err
	}
	stats, err := s.readStats()
	if err != nil {
		return err
	}
	stats[rec.URL]++
	return s.writeStats(stats)
}

// URLVisitCount 目标 URL 的累计访问数，未出现过返回 0
func (s *FileStore) URLVisitCount(_ context.Context, url string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, err := s.readStats()
	if err != nil {
		return 0, err
	}
	return stats[url], nil
}

// AllURLVisits 全部目标 URL 的访问数，顺序不定
func (s *FileStore) AllURLVisits(_ context.Context) ([]URLVisits, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, err := s.readStats()
	if err != nil {
		return nil, err
	}
	out := make([]URLVisits, 0, len(stats))
	for url, n := range stats {
		out = append(out, URLVisits{URL: url, Visits: n})
	}
	return out, nil
}

// =============================================================================
// 🔧 内部读写（调用方持锁）
// =============================================================================

func (s *FileStore) readCounter() (uint64, error) {
	data, err := os.ReadFile(s.counterPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return CounterSeed, nil
		}
		return 0, storageError("read counter", err)
	}
	n, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, storageError("parse counter", err)
	}
	return n, nil
}

func (s *FileStore) readRecord(code string) (Record, error) {
	path := s.codePath(code)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, storageError("read record", err)
	}

	var raw struct {
		URL          *string         `json:"url"`
		Visits       json.RawMessage `json:"visits"`
		PasswordHash *string         `json:"password_hash"`
		PasswordSalt *string         `json:"password_salt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{}, storageError("decode record "+code, err)
	}
	if raw.URL == nil {
		return Record{}, storageError("decode record "+code, errors.New("missing url"))
	}

	rec := Record{Code: code, URL: *raw.URL, Visits: parseVisits(raw.Visits)}
	if raw.PasswordHash != nil {
		rec.PasswordHash = *raw.PasswordHash
	}
	if raw.PasswordSalt != nil {
		rec.PasswordSalt = *raw.PasswordSalt
	}
	return rec, nil
}

func (s *FileStore) writeRecord(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return storageError("encode record", err)
	}
	if err := atomicWrite(s.codePath(rec.Code), data); err != nil {
		return storageError("write record", err)
	}
	return nil
}

func (s *FileStore) readStats() (map[string]uint64, error) {
	stats := make(map[string]uint64)
	data, err := os.ReadFile(s.statsPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return stats, nil
		}
		return nil, storageError("read url stats", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, storageError("decode url stats", err)
	}
	for url, v := range raw {
		var n json.Number
		if json.Unmarshal(v, &n) != nil {
			continue
		}
		stats[url] = parseVisits(v)
	}
	return stats, nil
}

func (s *FileStore) writeStats(stats map[string]uint64) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return storageError("create data directory", err)
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return storageError("encode url stats", err)
	}
	if err := atomicWrite(s.statsPath(), data); err != nil {
		return storageError("write url stats", err)
	}
	return nil
}

// parseVisits 负数与非数字按 0 处理
func parseVisits(raw json.RawMessage) uint64 {
	if len(raw) == 0 {
		return 0
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0
	}
	if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
		return u
	}
	return 0
}

// atomicWrite 写同目录临时文件后 rename 覆盖目标
func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func storageError(op string, err error) error {
	return types.NewError(types.ErrStorage, op).WithCause(err)
}
