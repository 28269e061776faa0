// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供上下文、原始请求构造、分片与 TCP 往返等通用测试工具
//
// 使用方法:
//
//	raw := testutil.NewRawRequest("POST", "/echo").Header("Host", "x").Body("hi").String()
//	out := testutil.RoundTrip(t, addr, raw)
//	chunks := testutil.SplitAt([]byte(raw), []int{3, 10})
// =============================================================================
package testutil

import (
	"context"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// IOTimeout 网络辅助函数的读写超时
const IOTimeout = 5 * time.Second

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t testing.TB) context.Context {
	return TestContextWithTimeout(t, 30*time.Second)
}

// TestContextWithTimeout 返回带自定义超时的测试上下文
func TestContextWithTimeout(t testing.TB, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// =============================================================================
// 📝 原始请求构造
// =============================================================================

// RawRequest 按线上格式拼装 HTTP/1.1 请求
type RawRequest struct {
	method  string
	uri     string
	version string
	headers [][2]string
	body    string
	length  bool
}

// NewRawRequest 创建 HTTP/1.1 请求构造器
func NewRawRequest(method, uri string) *RawRequest {
	return &RawRequest{method: method, uri: uri, version: "HTTP/1.1"}
}

// Version 覆盖协议版本
func (r *RawRequest) Version(v string) *RawRequest {
	r.version = v
	return r
}

// Header 追加一个请求头，保留顺序与重复项
func (r *RawRequest) Header(name, value string) *RawRequest {
	r.headers = append(r.headers, [2]string{name, value})
	return r
}

// Body 设置请求体并自动追加 Content-Length
func (r *RawRequest) Body(body string) *RawRequest {
	r.body = body
	r.length = true
	return r
}

// String 返回完整的请求字节
func (r *RawRequest) String() string {
	var b strings.Builder
	b.WriteString(r.method + " " + r.uri + " " + r.version + "\r\n")
	for _, h := range r.headers {
		b.WriteString(h[0] + ": " + h[1] + "\r\n")
	}
	if r.length {
		b.WriteString("Content-Length: " + strconv.Itoa(len(r.body)) + "\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(r.body)
	return b.String()
}

// =============================================================================
// ✂️ 分片
// =============================================================================

// SplitAt 在给定偏移处切分 raw；偏移可以无序、重复或越界，空片段被丢弃
func SplitAt(raw []byte, cuts []int) [][]byte {
	sorted := append([]int(nil), cuts...)
	sort.Ints(sorted)

	var chunks [][]byte
	prev := 0
	for _, c := range sorted {
		if c <= prev || c >= len(raw) {
			continue
		}
		chunks = append(chunks, raw[prev:c])
		prev = c
	}
	if prev < len(raw) {
		chunks = append(chunks, raw[prev:])
	}
	return chunks
}

// =============================================================================
// 🌐 TCP 往返
// =============================================================================

// RoundTrip 连接 addr，写入 raw，读取直到服务端关闭连接
func RoundTrip(t testing.TB, addr, raw string) string {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(IOTimeout))
	_, err = io.WriteString(conn, raw)
	require.NoError(t, err)

	out, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(out)
}

// ReadOnly 连接后不发送任何字节，只读取服务端的输出（如拒绝响应）
func ReadOnly(t testing.TB, addr string) string {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(IOTimeout))
	out, _ := io.ReadAll(conn)
	return string(out)
}
