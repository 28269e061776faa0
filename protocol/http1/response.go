package http1

import (
	"errors"
	"net"
	"strings"
)

// ErrResponseIncomplete 状态行、头部块与 body 未全部设置时请求输出
var ErrResponseIncomplete = errors.New("response is incomplete: status line, headers and body must all be set")

const (
	partStatusLine uint8 = 1 << iota
	partHeaders
	partBody

	partsAll = partStatusLine | partHeaders | partBody
)

// Response 由三段独立字节组成的 HTTP 响应：状态行、头部块（含结尾空行）与 body。
// 三段都显式设置过之后才可以发送。
type Response struct {
	statusLine []byte
	headers    []byte
	body       []byte
	set        uint8

	code       int
	reason     string
	headerList []Header
}

// SetStatusLine 设置完整状态行（含 CRLF）
func (r *Response) SetStatusLine(line []byte) {
	r.statusLine = line
	r.set |= partStatusLine
}

// SetHeaderBlock 设置序列化后的头部块（含结尾空行）
func (r *Response) SetHeaderBlock(block []byte) {
	r.headers = block
	r.set |= partHeaders
}

// SetBody 设置 body，nil 也算已设置
func (r *Response) SetBody(body []byte) {
	r.body = body
	r.set |= partBody
}

// Complete reports whether all three parts have been set.
func (r *Response) Complete() bool {
	return r.set&partsAll == partsAll
}

// Buffers 返回用于 vectored write 的三段字节
func (r *Response) Buffers() (net.Buffers, error) {
	if !r.Complete() {
		return nil, ErrResponseIncomplete
	}
	return net.Buffers{r.statusLine, r.headers, r.body}, nil
}

// Bytes returns the three parts concatenated.
func (r *Response) Bytes() ([]byte, error) {
	if !r.Complete() {
		return nil, ErrResponseIncomplete
	}
	out := make([]byte, 0, r.Len())
	out = append(out, r.statusLine...)
	out = append(out, r.headers...)
	return append(out, r.body...), nil
}

// Len returns the total wire size.
func (r *Response) Len() int {
	return len(r.statusLine) + len(r.headers) + len(r.body)
}

// StatusLine 返回状态行
func (r *Response) StatusLine() []byte { return r.statusLine }

// HeaderBlock 返回头部块
func (r *Response) HeaderBlock() []byte { return r.headers }

// Body 返回 body
func (r *Response) Body() []byte { return r.body }

// StatusCode 返回状态码，未由 Builder 构建时为 0
func (r *Response) StatusCode() int { return r.code }

// Reason 返回原因短语
func (r *Response) Reason() string { return r.reason }

// Headers 返回按键排序后的响应头副本
func (r *Response) Headers() []Header {
	out := make([]Header, len(r.headerList))
	copy(out, r.headerList)
	return out
}

// Header 按名称（大小写不敏感）查找响应头
func (r *Response) Header(name string) string {
	for _, h := range r.headerList {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}
