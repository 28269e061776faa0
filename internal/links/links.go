package links

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// 🔗 短链存储契约
// =============================================================================

var (
	// ErrNotFound 短码不存在
	ErrNotFound = errors.New("link not found")

	// ErrInvalid URL 或短码不合法
	ErrInvalid = errors.New("invalid link")

	// ErrUnsupportedScheme URL 带有 http/https 以外的协议
	ErrUnsupportedScheme = errors.New("only http:// and https:// URLs are supported")
)

const (
	// CounterSeed 首个短码由 CounterSeed+1 编码而来
	CounterSeed uint64 = 15000000

	maxURLLength  = 2048
	maxCodeLength = 32
)

// Record 单条短链记录
type Record struct {
	Code         string `json:"-"`
	URL          string `json:"url"`
	Visits       uint64 `json:"visits"`
	PasswordHash string `json:"password_hash,omitempty"`
	PasswordSalt string `json:"password_salt,omitempty"`
}

// Protected 记录是否设置了访问密码
func (r Record) Protected() bool {
	return r.PasswordHash != "" && r.PasswordSalt != ""
}

// CreateParams 创建参数，密码字段需预先加盐哈希
type CreateParams struct {
	URL          string
	PasswordHash string
	PasswordSalt string
}

// UpdateParams 更新参数，只允许替换目标 URL
type UpdateParams struct {
	URL string
}

// URLVisits 单个目标 URL 的累计访问数
type URLVisits struct {
	URL    string `json:"url"`
	Visits uint64 `json:"visits"`
}

// Store 短链持久化接口
type Store interface {
	Create(ctx context.Context, params CreateParams) (string, error)
	Get(ctx context.Context, code string) (Record, error)
	Update(ctx context.Context, code string, params UpdateParams) error
	// Delete 幂等：短码不存在时返回 nil
	Delete(ctx context.Context, code string) error
	Resolve(ctx context.Context, code string) (string, error)

	IncrementCodeVisits(ctx context.Context, code string) error
	IncrementURLVisits(ctx context.Context, code string) error
	URLVisitCount(ctx context.Context, url string) (uint64, error)
	AllURLVisits(ctx context.Context) ([]URLVisits, error)
}

// =============================================================================
// ✅ 校验
// =============================================================================

// ValidURL 非空、不超过 2048 字符、http/https 开头，且不含空格和控制字符。
// URL 会原样进入 Location 头，CR/LF 必须在这里拦截。
func ValidURL(url string) bool {
	if url == "" || len(url) > maxURLLength {
		return false
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return false
	}
	for i := 0; i < len(url); i++ {
		if c := url[i]; c <= ' ' || c == 0x7f {
			return false
		}
	}
	return true
}

// ValidCode 1 到 32 个 ASCII 字母或数字
func ValidCode(code string) bool {
	if code == "" || len(code) > maxCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z') {
			return false
		}
	}
	return true
}

// NormalizeURL 无协议时补 http://，带非 http(s) 协议时返回 ErrUnsupportedScheme
func NormalizeURL(raw string) (string, error) {
	if strings.Contains(raw, "://") {
		if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
			return "", ErrUnsupportedScheme
		}
		return raw, nil
	}
	return "http://" + raw, nil
}

// TopURLs 按访问数降序、URL 升序排序后截取前 n 项
func TopURLs(stats []URLVisits, n int) []URLVisits {
	out := make([]URLVisits, len(stats))
	copy(out, stats)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Visits == out[j].Visits {
			return out[i].URL < out[j].URL
		}
		return out[i].Visits > out[j].Visits
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

func invalidCode(code string) error {
	return fmt.Errorf("%w: code %q", ErrInvalid, code)
}

func invalidURL(url string) error {
	return fmt.Errorf("%w: url %q", ErrInvalid, url)
}
