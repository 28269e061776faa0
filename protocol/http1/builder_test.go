package http1

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"
)

func TestBuilder_WireFormat(t *testing.T) {
	resp := OK().
		WithContentType("text/plain").
		WithHeader("X-Trace", "abc").
		WithBodyString("hi").
		Build()

	assert.Equal(t, "HTTP/1.1 200 OK\r\n", string(resp.StatusLine()))
	assert.Equal(t,
		"Connection: close\r\nContent-Length: 2\r\nContent-Type: text/plain\r\nX-Trace: abc\r\n\r\n",
		string(resp.HeaderBlock()),
	)
	assert.Equal(t, "hi", string(resp.Body()))
	assert.Equal(t, 200, resp.StatusCode())
	assert.Equal(t, "OK", resp.Reason())

	bufs, err := resp.Buffers()
	require.NoError(t, err)
	assert.Len(t, bufs, 3)

	all, err := resp.Bytes()
	require.NoError(t, err)
	assert.Equal(t, resp.Len(), len(all))
	assert.True(t, strings.HasSuffix(string(all), "\r\n\r\nhi"))
}

func TestBuilder_DefaultReasonPhrases(t *testing.T) {
	tests := []struct {
		code   int
		reason string
	}{
		{200, "OK"},
		{400, "Bad Request"},
		{404, "Not Found"},
		{500, "Internal Server Error"},
		{302, "Unknown"},
		{418, "Unknown"},
	}
	for _, tt := range tests {
		resp := NewBuilder(tt.code).Build()
		assert.Equal(t, "HTTP/1.1 "+strconv.Itoa(tt.code)+" "+tt.reason+"\r\n", string(resp.StatusLine()))
	}
}

func TestBuilder_CustomReasonAndVersion(t *testing.T) {
	resp := NewBuilderWithReason(302, "Found").WithHTTPVersion("1.0").Build()
	assert.Equal(t, "HTTP/1.0 302 Found\r\n", string(resp.StatusLine()))
}

func TestBuilder_StockHelpers(t *testing.T) {
	assert.Equal(t, 400, BadRequest().Build().StatusCode())
	assert.Empty(t, BadRequest().Build().Body())
	assert.Equal(t, "missing", string(NotFound("missing").Build().Body()))
	assert.Equal(t, 500, InternalServerError("boom").Build().StatusCode())
}

func TestBuilder_OverridesContentLengthAndConnection(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	resp := OK().
		WithLogger(zap.New(core)).
		WithHeader("content-length", "999").
		WithHeader("Connection", "keep-alive").
		WithBodyString("abc").
		Build()

	assert.Equal(t, "3", resp.Header("Content-Length"))
	assert.Equal(t, "close", resp.Header("connection"))
	assert.NotContains(t, string(resp.HeaderBlock()), "999")
	assert.NotContains(t, string(resp.HeaderBlock()), "keep-alive")
	assert.Equal(t, 1, logs.Len())
}

func TestBuilder_ConnectionCloseNotReported(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	OK().WithLogger(zap.New(core)).WithHeader("Connection", "close").Build()
	assert.Equal(t, 0, logs.Len())
}

func TestBuilder_DropsHeadersWithLineBreaks(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	resp := NewBuilder(302).
		WithLogger(zap.New(core)).
		WithHeader("Location", "http://a.example/\r\nSet-Cookie: sid=evil").
		WithHeader("X-Bad\r\nName", "v").
		WithHeader("X-Ok", "fine").
		Build()

	assert.Equal(t,
		"Connection: close\r\nContent-Length: 0\r\nX-Ok: fine\r\n\r\n",
		string(resp.HeaderBlock()),
	)
	assert.Empty(t, resp.Header("Location"))
	assert.Equal(t, 2, logs.FilterMessage("dropping header with invalid bytes").Len())

	// 无 logger 时同样丢弃
	resp = OK().WithHeader("X-Split", "a\nb").Build()
	assert.NotContains(t, string(resp.HeaderBlock()), "X-Split")
}

func TestBuilder_HeadersSortedByKey(t *testing.T) {
	resp := OK().
		WithHeader("Zeta", "1").
		WithHeader("Alpha", "2").
		WithHeader("Location", "/x").
		Build()

	var names []string
	for _, h := range resp.Headers() {
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{"Alpha", "Connection", "Content-Length", "Location", "Zeta"}, names)
}

func TestBuilder_ContentLengthProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		body := rapid.SliceOf(rapid.Byte()).Draw(rt, "body")
		conn := rapid.SampledFrom([]string{"", "close", "keep-alive", "upgrade"}).Draw(rt, "connection")

		b := NewBuilder(rapid.IntRange(100, 599).Draw(rt, "code")).WithBody(body)
		if conn != "" {
			b.WithHeader("Connection", conn)
		}
		resp := b.Build()

		block := string(resp.HeaderBlock())
		if !strings.Contains(block, "Content-Length: "+strconv.Itoa(len(body))+"\r\n") {
			rt.Fatalf("missing content length in %q", block)
		}
		if !strings.Contains(block, "Connection: close\r\n") {
			rt.Fatalf("missing connection close in %q", block)
		}
		if !strings.HasSuffix(block, "\r\n\r\n") {
			rt.Fatalf("header block not terminated: %q", block)
		}
	})
}

func TestResponse_IncompleteParts(t *testing.T) {
	var resp Response

	_, err := resp.Buffers()
	assert.ErrorIs(t, err, ErrResponseIncomplete)

	resp.SetStatusLine([]byte("HTTP/1.1 200 OK\r\n"))
	resp.SetHeaderBlock([]byte("\r\n"))
	_, err = resp.Bytes()
	assert.ErrorIs(t, err, ErrResponseIncomplete)

	resp.SetBody(nil)
	assert.True(t, resp.Complete())
	bufs, err := resp.Buffers()
	require.NoError(t, err)
	assert.Len(t, bufs, 3)
}

func TestBuildInto_ReusesResponse(t *testing.T) {
	resp := &Response{}
	NotFound().BuildInto(resp)
	assert.Equal(t, 404, resp.StatusCode())
	assert.True(t, resp.Complete())
	assert.NotNil(t, resp.Body())
}
