package handlers

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BaSui01/webserver/dispatch"
	"github.com/BaSui01/webserver/protocol/http1"
	"github.com/BaSui01/webserver/types"

	"go.uber.org/zap"
)

// =============================================================================
// 📁 static
// =============================================================================

var staticContentTypes = map[string]string{
	"html": "text/html",
	"htm":  "text/html",
	"css":  "text/css",
	"js":   "text/javascript",
	"json": "application/json",
	"txt":  "text/plain",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
	"zip":  "application/zip",
	"pdf":  "application/pdf",
}

// ContentTypeFor 按扩展名返回内容类型；不支持的扩展名返回 ""
func ContentTypeFor(path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return staticContentTypes[strings.ToLower(ext)]
}

// StaticHandler 把 location 之后的路径映射到 root 下的文件
type StaticHandler struct {
	name     string
	location string
	root     string
	logger   *zap.Logger
}

func (h *StaticHandler) Name() string { return h.name }

func (h *StaticHandler) Handle(_ context.Context, req *http1.Request) *http1.Response {
	rel := relativePath(req, h.location)
	if rel == "" {
		h.logger.Debug("empty relative path", zap.String("uri", req.URI))
		return http1.NotFound().Build()
	}

	full, ok := h.resolve(rel)
	if !ok {
		h.logger.Warn("path traversal attempt detected", zap.String("uri", req.URI))
		return http1.NotFound().Build()
	}

	contentType := ContentTypeFor(full)
	if contentType == "" {
		h.logger.Debug("unsupported extension", zap.String("path", full))
		return http1.NotFound().Build()
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || isDirectory(full) {
			h.logger.Debug("file not found", zap.String("path", full))
			return http1.NotFound().Build()
		}
		h.logger.Error("read static file failed", zap.String("path", full), zap.Error(err))
		return http1.InternalServerError().Build()
	}

	return http1.OK().WithContentType(contentType).WithBody(data).Build()
}

// resolve 拼接并校验路径不逃出 root
func (h *StaticHandler) resolve(rel string) (string, bool) {
	full := filepath.Join(h.root, filepath.FromSlash(rel))
	inside, err := filepath.Rel(h.root, full)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}

func isDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func newStaticFactory(deps *Deps) dispatch.FactoryCtor {
	return func(spec types.HandlerSpec) (dispatch.Factory, error) {
		root := spec.Option("root")
		if root == "" {
			return nil, missingOption(spec, "root")
		}
		root = filepath.Clean(root)
		logger := deps.logger(spec)

		return dispatch.FactoryFunc(func(location, _ string) (dispatch.Handler, error) {
			return &StaticHandler{
				name:     spec.DisplayName(),
				location: location,
				root:     root,
				logger:   logger,
			}, nil
		}), nil
	}
}
