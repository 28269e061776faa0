package types

import (
	"sort"
	"strconv"
	"strings"
)

// Well-known handler type tags.
const (
	HandlerEcho         = "echo"
	HandlerStatic       = "static"
	HandlerCrud         = "crud"
	HandlerHealth       = "health"
	HandlerSleep        = "sleep"
	HandlerNotFound     = "not_found"
	HandlerLinkManage   = "link_manage"
	HandlerLinkRedirect = "link_redirect"
	HandlerAnalytics    = "analytics"
)

// HandlerSpec 描述一个 location 块：挂载路径、handler 类型与选项。
// 启动时由配置构建，之后只读。
type HandlerSpec struct {
	Name    string            `yaml:"name" json:"name"`
	Path    string            `yaml:"path" json:"path"`
	Type    string            `yaml:"type" json:"type"`
	Options map[string]string `yaml:"options" json:"options,omitempty"`
}

// DisplayName returns Name, or Type when no name was configured.
func (s HandlerSpec) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Type
}

// Option returns the option value, or "" if unset.
func (s HandlerSpec) Option(key string) string {
	if s.Options == nil {
		return ""
	}
	return s.Options[key]
}

// OptionInt parses an integer option. ok is false when the option is
// missing or not an integer.
func (s HandlerSpec) OptionInt(key string) (v int, ok bool) {
	raw := strings.TrimSpace(s.Option(key))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// OptionKeys returns the option keys in sorted order.
func (s HandlerSpec) OptionKeys() []string {
	keys := make([]string, 0, len(s.Options))
	for k := range s.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
