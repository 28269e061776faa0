package handlers

import (
	"context"
	"testing"

	"github.com/BaSui01/webserver/dispatch"
	"github.com/BaSui01/webserver/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRegistry_BuiltinTypes(t *testing.T) {
	reg := NewRegistry(testDeps(t))
	for _, typ := range []string{
		types.HandlerEcho, types.HandlerStatic, types.HandlerCrud,
		types.HandlerHealth, types.HandlerSleep, types.HandlerNotFound,
		types.HandlerLinkManage, types.HandlerLinkRedirect, types.HandlerAnalytics,
	} {
		assert.True(t, reg.Has(typ), typ)
	}
	assert.Len(t, reg.Types(), 9)
}

func TestDispatcher_WithBuiltins(t *testing.T) {
	deps := testDeps(t)
	dataPath := t.TempDir()
	specs := []types.HandlerSpec{
		{Name: "echo", Path: "/echo", Type: types.HandlerEcho},
		{Name: "api", Path: "/api", Type: types.HandlerCrud, Options: map[string]string{"data_path": dataPath}},
		{Name: "links", Path: "/api/link", Type: types.HandlerLinkManage, Options: map[string]string{"data_path": dataPath}},
		{Name: "go", Path: "/l", Type: types.HandlerLinkRedirect, Options: map[string]string{"data_path": dataPath}},
		{Name: "health", Path: "/health", Type: types.HandlerHealth},
		{Name: "broken", Path: "/broken", Type: types.HandlerStatic},
		{Name: "mystery", Path: "/mystery", Type: "teleport"},
	}
	d := dispatch.New(specs, NewRegistry(deps), dispatch.WithLogger(zap.NewNop()))
	ctx := context.Background()

	// 缺少 root 选项和未知类型的 spec 被丢弃，并注入默认根路由
	var names []string
	for _, r := range d.Routes() {
		names = append(names, r.Name)
	}
	assert.ElementsMatch(t, []string{"echo", "api", "links", "go", "health", "default_not_found"}, names)

	resp := d.Dispatch(ctx, newRequest("GET", "/health", ""))
	assert.Equal(t, 200, resp.StatusCode())

	// 最长前缀优先：/api/link 不会落到 crud
	resp = d.Dispatch(ctx, newRequest("POST", "/api/link", `{"url":"example.com"}`))
	require.Equal(t, 200, resp.StatusCode())
	assert.Equal(t, `{"code":"10wBV"}`, string(resp.Body()))

	resp = d.Dispatch(ctx, newRequest("GET", "/l/10wBV", ""))
	assert.Equal(t, 302, resp.StatusCode())
	assert.Equal(t, "http://example.com", resp.Header("Location"))

	resp = d.Dispatch(ctx, newRequest("POST", "/api/Shoes", `{"size":1}`))
	assert.Equal(t, `{"id": 1}`, string(resp.Body()))

	resp = d.Dispatch(ctx, newRequest("GET", "/broken/x.html", ""))
	assert.Equal(t, 404, resp.StatusCode())
	assert.Equal(t, notFoundBody, string(resp.Body()))
}
