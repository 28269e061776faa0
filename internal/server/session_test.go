package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/webserver/dispatch"
	"github.com/BaSui01/webserver/internal/ctxkeys"
	"github.com/BaSui01/webserver/internal/pool"
	"github.com/BaSui01/webserver/protocol/http1"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/semaphore"
)

// =============================================================================
// 🧪 测试夹具
// =============================================================================

func echoRoute() dispatch.Route {
	h := dispatch.NewHandlerFunc("echo", func(_ context.Context, req *http1.Request) *http1.Response {
		return http1.OK().WithContentType("text/plain").WithBody(req.Raw).Build()
	})
	return dispatch.Route{Location: "/echo", Name: "echo", Factory: dispatch.Static(h)}
}

func bodyRoute() dispatch.Route {
	h := dispatch.NewHandlerFunc("body", func(_ context.Context, req *http1.Request) *http1.Response {
		return http1.OK().WithContentType("text/plain").WithBody(req.Body).Build()
	})
	return dispatch.Route{Location: "/body", Name: "body", Factory: dispatch.Static(h)}
}

func sessionIDRoute() dispatch.Route {
	h := dispatch.NewHandlerFunc("whoami", func(ctx context.Context, _ *http1.Request) *http1.Response {
		id, _ := ctxkeys.SessionID(ctx)
		route, _ := ctxkeys.Route(ctx)
		return http1.OK().WithBodyString(id + " " + route).Build()
	})
	return dispatch.Route{Location: "/whoami", Name: "whoami", Factory: dispatch.Static(h)}
}

func brokenRoute() dispatch.Route {
	h := dispatch.NewHandlerFunc("broken", func(context.Context, *http1.Request) *http1.Response {
		resp := &http1.Response{}
		resp.SetStatusLine([]byte("HTTP/1.1 200 OK\r\n"))
		return resp
	})
	return dispatch.Route{Location: "/broken", Name: "broken", Factory: dispatch.Static(h)}
}

func testDispatcher() *dispatch.Dispatcher {
	return dispatch.NewFromRoutes([]dispatch.Route{echoRoute(), bodyRoute(), sessionIDRoute(), brokenRoute()})
}

type recordingObserver struct {
	mu          sync.Mutex
	parses      []string
	connections []string
	started     int
	finished    int
	reqBytes    int
	respBytes   int
}

func (o *recordingObserver) RecordParse(result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.parses = append(o.parses, result)
}

func (o *recordingObserver) RecordSizes(req, resp int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reqBytes += req
	o.respBytes += resp
}

func (o *recordingObserver) RecordConnection(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.connections = append(o.connections, outcome)
}

func (o *recordingObserver) SessionStarted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *recordingObserver) SessionFinished() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished++
}

func (o *recordingObserver) outcomes() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.connections...)
}

// runSession 通过 net.Pipe 驱动一个会话，按 chunks 分次写入，返回客户端收到的全部字节
func runSession(t *testing.T, s func(conn net.Conn) *Session, chunks ...string) (string, *Session) {
	t.Helper()
	client, srv := net.Pipe()
	session := s(srv)

	done := make(chan struct{})
	go func() {
		defer close(done)
		session.Run(context.Background())
	}()

	go func() {
		for _, c := range chunks {
			if _, err := client.Write([]byte(c)); err != nil {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	_ = client.SetReadDeadline(time.Now().Add(5 * time.Second))
	out, _ := io.ReadAll(client)
	_ = client.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}
	return string(out), session
}

func newTestSession(t *testing.T, obs Observer, bufSize int) func(conn net.Conn) *Session {
	return func(conn net.Conn) *Session {
		return NewSession(conn, testDispatcher(), pool.NewBufferPool(bufSize), semaphore.NewWeighted(2),
			obs, SessionConfig{ReadTimeout: time.Second, WriteTimeout: time.Second}, zaptest.NewLogger(t))
	}
}

// =============================================================================
// 🧪 Session
// =============================================================================

func TestSession_EchoEndToEnd(t *testing.T) {
	raw := "GET /echo HTTP/1.1\r\nHost: localhost\r\nX-Test: 1\r\n\r\n"
	out, session := runSession(t, newTestSession(t, nil, 1024), raw)

	require.True(t, strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n"), out)
	assert.Contains(t, out, fmt.Sprintf("Content-Length: %d\r\n", len(raw)))
	assert.Contains(t, out, "Connection: close\r\n")
	assert.True(t, strings.HasSuffix(out, "\r\n\r\n"+raw), out)
	assert.Equal(t, StateClosed, session.State())
}

func TestSession_PostBodyOneChunk(t *testing.T) {
	raw := "POST /body HTTP/1.1\r\nContent-Length: 11\r\n\r\nhello world"
	out, _ := runSession(t, newTestSession(t, nil, 1024), raw)

	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n"), out)
	assert.True(t, strings.HasSuffix(out, "\r\n\r\nhello world"), out)
}

func TestSession_PostBodyTwoChunks(t *testing.T) {
	out, _ := runSession(t, newTestSession(t, nil, 1024),
		"POST /body HTTP/1.1\r\nContent-Length: 11\r\n\r\nhello",
		" world",
	)

	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n"), out)
	assert.True(t, strings.HasSuffix(out, "\r\n\r\nhello world"), out)
}

func TestSession_SmallReadBuffer(t *testing.T) {
	raw := "POST /body HTTP/1.1\r\nContent-Length: 26\r\n\r\nabcdefghijklmnopqrstuvwxyz"
	out, _ := runSession(t, newTestSession(t, nil, 3), raw)

	assert.True(t, strings.HasSuffix(out, "\r\n\r\nabcdefghijklmnopqrstuvwxyz"), out)
}

func TestSession_LowercaseMethodIsBadRequest(t *testing.T) {
	obs := &recordingObserver{}
	out, _ := runSession(t, newTestSession(t, obs, 1024), "get /echo HTTP/1.1\r\n\r\n")

	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 400 Bad Request\r\n"), out)
	assert.Contains(t, out, "Connection: close\r\n")
	assert.Equal(t, []string{"bad_request"}, obs.parses)
}

func TestSession_UnknownPathIs404WithoutRoot(t *testing.T) {
	out, _ := runSession(t, newTestSession(t, nil, 1024), "GET /nowhere HTTP/1.1\r\n\r\n")
	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 404 Not Found\r\n"), out)
}

func TestSession_IncompleteResponseBecomes500(t *testing.T) {
	out, _ := runSession(t, newTestSession(t, nil, 1024), "GET /broken HTTP/1.1\r\n\r\n")
	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 500 Internal Server Error\r\n"), out)
}

func TestSession_EOFBeforeVerdictWritesNothing(t *testing.T) {
	obs := &recordingObserver{}
	client, srv := net.Pipe()
	session := newTestSession(t, obs, 1024)(srv)

	done := make(chan struct{})
	go func() {
		defer close(done)
		session.Run(context.Background())
	}()

	_, err := client.Write([]byte("GET /echo HTTP/1.1\r\n"))
	require.NoError(t, err)
	require.NoError(t, client.Close())

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}
	assert.Empty(t, obs.parses)
	assert.Equal(t, 1, obs.started)
	assert.Equal(t, 1, obs.finished)
	assert.Equal(t, StateClosed, session.State())
}

func TestSession_ReadTimeout(t *testing.T) {
	client, srv := net.Pipe()
	defer client.Close()

	session := NewSession(srv, testDispatcher(), nil, nil, nil,
		SessionConfig{ReadTimeout: 20 * time.Millisecond}, zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		session.Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("read timeout did not end the session")
	}
	assert.Equal(t, StateClosed, session.State())
}

func TestSession_ContextCarriesSessionAndRoute(t *testing.T) {
	var session *Session
	out, _ := runSession(t, func(conn net.Conn) *Session {
		session = newTestSession(t, nil, 1024)(conn)
		return session
	}, "GET /whoami HTTP/1.1\r\n\r\n")

	assert.True(t, strings.HasSuffix(out, "\r\n\r\n"+session.ID()+" /whoami"), out)
}

func TestSession_ObserverSizes(t *testing.T) {
	obs := &recordingObserver{}
	raw := "GET /echo HTTP/1.1\r\n\r\n"
	out, _ := runSession(t, newTestSession(t, obs, 1024), raw)

	assert.Equal(t, []string{"proper_request"}, obs.parses)
	assert.Equal(t, len(raw), obs.reqBytes)
	assert.Equal(t, len(out), obs.respBytes)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "start", StateStart.String())
	assert.Equal(t, "reading", StateReading.String())
	assert.Equal(t, "dispatching", StateDispatching.String())
	assert.Equal(t, "writing", StateWriting.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(42).String())
}
