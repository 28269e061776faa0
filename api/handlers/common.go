package handlers

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/BaSui01/webserver/internal/links"
	"github.com/BaSui01/webserver/protocol/http1"
	"github.com/BaSui01/webserver/types"

	"go.uber.org/zap"
)

// =============================================================================
// 📦 通用响应
// =============================================================================

const (
	contentTypeText = "text/plain"
	contentTypeJSON = "application/json"
)

// WriteJSON 序列化 v 为 JSON 响应；序列化失败时返回 500
func WriteJSON(status int, v any, logger *zap.Logger) *http1.Response {
	body, err := json.Marshal(v)
	if err != nil {
		if logger != nil {
			logger.Error("encode json response failed", zap.Error(err))
		}
		return http1.InternalServerError().Build()
	}
	return newStatusBuilder(status).
		WithContentType(contentTypeJSON).
		WithBody(body).
		Build()
}

// WriteText 纯文本响应
func WriteText(status int, body string) *http1.Response {
	return newStatusBuilder(status).
		WithContentType(contentTypeText).
		WithBodyString(body).
		Build()
}

// WriteError 将存储层错误映射为响应
func WriteError(err error, logger *zap.Logger) *http1.Response {
	status := mapErrorToStatus(err)
	if logger != nil && status >= http1.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("code", string(types.GetErrorCode(err))),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	switch status {
	case http1.StatusNotFound:
		return http1.NotFound().Build()
	case http1.StatusBadRequest:
		return http1.BadRequest(err.Error()).Build()
	case http1.StatusServiceUnavailable:
		return WriteText(status, "Service Unavailable")
	default:
		return http1.InternalServerError().Build()
	}
}

// MethodNotAllowed 405，附带 Allow 头
func MethodNotAllowed(allow string) *http1.Response {
	return http1.NewBuilderWithReason(http1.StatusMethodNotAllowed, "Method Not Allowed").
		WithHeader("Allow", allow).
		Build()
}

// Forbidden 403
func Forbidden(msg string) *http1.Response {
	return http1.NewBuilderWithReason(http1.StatusForbidden, "Forbidden").
		WithBodyString(msg).
		Build()
}

// =============================================================================
// 🔄 错误到状态码映射
// =============================================================================

func mapErrorToStatus(err error) int {
	switch {
	case err == nil:
		return http1.StatusOK
	case errors.Is(err, links.ErrNotFound):
		return http1.StatusNotFound
	case errors.Is(err, links.ErrInvalid):
		return http1.StatusBadRequest
	}

	switch types.GetErrorCode(err) {
	case types.ErrServiceUnavailable:
		return http1.StatusServiceUnavailable
	default:
		return http1.StatusInternalServerError
	}
}

var reasonPhrases = map[int]string{
	http1.StatusFound:              "Found",
	http1.StatusForbidden:          "Forbidden",
	http1.StatusMethodNotAllowed:   "Method Not Allowed",
	http1.StatusServiceUnavailable: "Service Unavailable",
}

func newStatusBuilder(status int) *http1.Builder {
	if reason, ok := reasonPhrases[status]; ok {
		return http1.NewBuilderWithReason(status, reason)
	}
	return http1.NewBuilder(status)
}

// =============================================================================
// 🛡️ 请求辅助函数
// =============================================================================

// relativePath 去掉挂载前缀与查询串，结果不含开头的 '/'
func relativePath(req *http1.Request, location string) string {
	rel := strings.TrimPrefix(req.Path(), location)
	return strings.TrimPrefix(rel, "/")
}

// decodeObject 解析 JSON 对象；非对象或格式错误时返回 false
func decodeObject(body []byte) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}
