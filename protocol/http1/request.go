package http1

import "strings"

// Header 单个请求头（保留原始大小写与顺序）
type Header struct {
	Name  string
	Value string
}

// Request 解析后的 HTTP/1.1 请求。
//
// Raw 恰好是构成本请求的字节（请求行、头部、空行与 body），
// Content-Length 之外的多余字节不会进入 Body 或 Raw。
type Request struct {
	Method  string
	URI     string
	Version string
	Headers []Header
	Body    []byte
	Raw     []byte
}

// Reset 清空请求，保留底层切片容量以便复用
func (r *Request) Reset() {
	r.Method = ""
	r.URI = ""
	r.Version = ""
	r.Headers = r.Headers[:0]
	r.Body = r.Body[:0]
	r.Raw = r.Raw[:0]
}

// HeaderValue 按名称（大小写不敏感）查找第一个匹配的请求头
func (r *Request) HeaderValue(name string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// Header returns the first value for name, or "" if absent.
func (r *Request) Header(name string) string {
	v, _ := r.HeaderValue(name)
	return v
}

// Path returns the URI without its query string.
func (r *Request) Path() string {
	if i := strings.IndexByte(r.URI, '?'); i >= 0 {
		return r.URI[:i]
	}
	return r.URI
}
