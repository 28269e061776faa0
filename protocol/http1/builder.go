package http1

import (
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// 常用状态码
const (
	StatusOK                  = 200
	StatusFound               = 302
	StatusBadRequest          = 400
	StatusForbidden           = 403
	StatusNotFound            = 404
	StatusMethodNotAllowed    = 405
	StatusTooManyRequests     = 429
	StatusInternalServerError = 500
	StatusServiceUnavailable  = 503
)

const (
	headerContentLength = "Content-Length"
	headerConnection    = "Connection"
	headerContentType   = "Content-Type"
	connectionClose     = "close"
	defaultHTTPVersion  = "1.1"
)

// ReasonPhrase 返回默认原因短语；只内置 200/400/404/500，其余为 "Unknown"
func ReasonPhrase(code int) string {
	switch code {
	case StatusOK:
		return "OK"
	case StatusBadRequest:
		return "Bad Request"
	case StatusNotFound:
		return "Not Found"
	case StatusInternalServerError:
		return "Internal Server Error"
	default:
		return "Unknown"
	}
}

// =============================================================================
// 🧱 Builder
// =============================================================================

// Builder 组装响应。
//
// Build 时头部按键排序；Content-Length 总是根据最终 body 重新计算，
// Connection 总是强制为 close。
type Builder struct {
	code    int
	reason  string
	version string
	headers map[string]string
	body    []byte
	logger  *zap.Logger
}

// NewBuilder 使用默认原因短语创建 Builder
func NewBuilder(code int) *Builder {
	return NewBuilderWithReason(code, ReasonPhrase(code))
}

// NewBuilderWithReason 使用自定义原因短语创建 Builder
func NewBuilderWithReason(code int, reason string) *Builder {
	return &Builder{
		code:    code,
		reason:  reason,
		version: defaultHTTPVersion,
		headers: make(map[string]string),
	}
}

// OK 200
func OK() *Builder { return NewBuilder(StatusOK) }

// BadRequest 400，可选 body
func BadRequest(msg ...string) *Builder { return withMessage(NewBuilder(StatusBadRequest), msg) }

// NotFound 404，可选 body
func NotFound(msg ...string) *Builder { return withMessage(NewBuilder(StatusNotFound), msg) }

// InternalServerError 500，可选 body
func InternalServerError(msg ...string) *Builder {
	return withMessage(NewBuilder(StatusInternalServerError), msg)
}

func withMessage(b *Builder, msg []string) *Builder {
	if len(msg) > 0 {
		b.WithBodyString(strings.Join(msg, ""))
	}
	return b
}

// WithLogger 设置用于报告异常头部的 logger
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithBody 设置 body
func (b *Builder) WithBody(body []byte) *Builder {
	b.body = body
	return b
}

// WithBodyString 设置字符串 body
func (b *Builder) WithBodyString(body string) *Builder {
	b.body = []byte(body)
	return b
}

// WithHeader 设置响应头，同名键覆盖
func (b *Builder) WithHeader(name, value string) *Builder {
	b.headers[name] = value
	return b
}

// WithContentType 设置 Content-Type
func (b *Builder) WithContentType(contentType string) *Builder {
	return b.WithHeader(headerContentType, contentType)
}

// WithHTTPVersion 覆盖状态行中的版本号（默认 1.1）
func (b *Builder) WithHTTPVersion(version string) *Builder {
	b.version = version
	return b
}

// Build 构建新的 Response
func (b *Builder) Build() *Response {
	resp := &Response{}
	b.BuildInto(resp)
	return resp
}

// BuildInto 将结果写入已有 Response
func (b *Builder) BuildInto(resp *Response) {
	headers := make([]Header, 0, len(b.headers)+2)
	for name, value := range b.headers {
		switch {
		case strings.EqualFold(name, headerContentLength):
			continue
		case strings.EqualFold(name, headerConnection):
			if !strings.EqualFold(value, connectionClose) && b.logger != nil {
				b.logger.Warn("only 'Connection: close' is supported, overriding",
					zap.String("connection", value),
				)
			}
			continue
		}
		if !validHeaderField(name, value) {
			if b.logger != nil {
				b.logger.Warn("dropping header with invalid bytes",
					zap.String("header", strconv.Quote(name)),
				)
			}
			continue
		}
		headers = append(headers, Header{Name: name, Value: value})
	}
	headers = append(headers,
		Header{Name: headerContentLength, Value: strconv.Itoa(len(b.body))},
		Header{Name: headerConnection, Value: connectionClose},
	)
	sort.SliceStable(headers, func(i, j int) bool { return headers[i].Name < headers[j].Name })

	status := make([]byte, 0, 32+len(b.reason))
	status = append(status, "HTTP/"...)
	status = append(status, b.version...)
	status = append(status, ' ')
	status = strconv.AppendInt(status, int64(b.code), 10)
	status = append(status, ' ')
	status = append(status, b.reason...)
	status = append(status, "\r\n"...)

	block := make([]byte, 0, 64*len(headers))
	for _, h := range headers {
		block = append(block, h.Name...)
		block = append(block, ": "...)
		block = append(block, h.Value...)
		block = append(block, "\r\n"...)
	}
	block = append(block, "\r\n"...)

	body := b.body
	if body == nil {
		body = []byte{}
	}

	resp.code = b.code
	resp.reason = b.reason
	resp.headerList = headers
	resp.SetStatusLine(status)
	resp.SetHeaderBlock(block)
	resp.SetBody(body)
}

// validHeaderField 名称非空且不含冒号与空白；值不能含 CR、LF、NUL
func validHeaderField(name, value string) bool {
	if name == "" || strings.ContainsAny(name, ":\r\n\x00 ") {
		return false
	}
	return !strings.ContainsAny(value, "\r\n\x00")
}
