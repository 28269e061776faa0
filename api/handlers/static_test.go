package handlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/BaSui01/webserver/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStaticRoot(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "public")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "css"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<h1>hi</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "css", "site.css"), []byte("body{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.md"), []byte("# md"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir.html"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secret.txt"), []byte("secret"), 0o644))
	return dir, root
}

func TestStaticHandler(t *testing.T) {
	_, root := setupStaticRoot(t)
	h := handlerFor(t, testDeps(t), types.HandlerSpec{
		Path:    "/static",
		Type:    types.HandlerStatic,
		Options: map[string]string{"root": root},
	})

	tests := []struct {
		name        string
		uri         string
		wantStatus  int
		wantType    string
		wantContent string
	}{
		{name: "html", uri: "/static/index.html", wantStatus: 200, wantType: "text/html", wantContent: "<h1>hi</h1>"},
		{name: "nested css", uri: "/static/css/site.css", wantStatus: 200, wantType: "text/css", wantContent: "body{}"},
		{name: "query ignored", uri: "/static/index.html?v=2", wantStatus: 200, wantType: "text/html", wantContent: "<h1>hi</h1>"},
		{name: "empty path", uri: "/static", wantStatus: 404},
		{name: "root slash", uri: "/static/", wantStatus: 404},
		{name: "unsupported extension", uri: "/static/notes.md", wantStatus: 404},
		{name: "missing file", uri: "/static/missing.html", wantStatus: 404},
		{name: "directory", uri: "/static/dir.html", wantStatus: 404},
		{name: "traversal", uri: "/static/../secret.txt", wantStatus: 404},
		{name: "deep traversal", uri: "/static/css/../../secret.txt", wantStatus: 404},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.Handle(context.Background(), newRequest("GET", tt.uri, ""))
			assert.Equal(t, tt.wantStatus, resp.StatusCode())
			if tt.wantStatus == 200 {
				assert.Equal(t, tt.wantType, resp.Header("Content-Type"))
				assert.Equal(t, tt.wantContent, string(resp.Body()))
			}
		})
	}
}

func TestStaticFactory_MissingRoot(t *testing.T) {
	_, err := NewRegistry(testDeps(t)).CreateFactory(types.HandlerSpec{Path: "/static", Type: types.HandlerStatic})
	assert.True(t, types.IsCode(err, types.ErrMissingOption))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "text/html", ContentTypeFor("a/index.HTM"))
	assert.Equal(t, "image/jpeg", ContentTypeFor("photo.jpeg"))
	assert.Equal(t, "application/pdf", ContentTypeFor("doc.pdf"))
	assert.Equal(t, "image/svg+xml", ContentTypeFor("logo.svg"))
	assert.Empty(t, ContentTypeFor("README"))
	assert.Empty(t, ContentTypeFor("archive.tar.gz"))
}
