package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/BaSui01/webserver/dispatch"
	"github.com/BaSui01/webserver/internal/crud"
	"github.com/BaSui01/webserver/protocol/http1"
	"github.com/BaSui01/webserver/types"

	"go.uber.org/zap"
)

// =============================================================================
// 🗂️ crud
// =============================================================================

const crudAllow = "GET, POST, PUT, DELETE"

// CrudHandler 把 /{type}[/{id}] 映射到 crud.Manager
type CrudHandler struct {
	name     string
	location string
	manager  crud.Manager
	logger   *zap.Logger
}

// NewCrudHandler 创建挂载在 location 的 CRUD 处理器
func NewCrudHandler(name, location string, manager crud.Manager, logger *zap.Logger) *CrudHandler {
	return &CrudHandler{name: name, location: location, manager: manager, logger: logger}
}

func (h *CrudHandler) Name() string { return h.name }

func (h *CrudHandler) Handle(_ context.Context, req *http1.Request) *http1.Response {
	parts := strings.Split(relativePath(req, h.location), "/")
	entityType := parts[0]
	if entityType == "" {
		h.logger.Warn("entity type is missing", zap.String("uri", req.URI))
		return http1.BadRequest("Entity type is missing.").Build()
	}
	if !crud.ValidType(entityType) {
		h.logger.Warn("invalid entity type", zap.String("uri", req.URI))
		return http1.BadRequest("Invalid entity type.").Build()
	}

	var (
		id    int
		hasID bool
	)
	if len(parts) > 1 {
		n, err := strconv.Atoi(parts[1])
		if err != nil || len(parts) > 2 {
			h.logger.Warn("invalid id format", zap.String("uri", req.URI))
			return http1.BadRequest("Invalid ID format.").Build()
		}
		id, hasID = n, true
	}

	switch req.Method {
	case "POST":
		return h.create(entityType, req.Body)
	case "GET":
		if hasID {
			return h.read(entityType, id)
		}
		return h.list(entityType)
	case "PUT":
		if !hasID {
			return http1.BadRequest("ID is required for PUT.").Build()
		}
		return h.update(entityType, id, req.Body)
	case "DELETE":
		if !hasID {
			return http1.BadRequest("ID is required for DELETE.").Build()
		}
		return h.delete(entityType, id)
	default:
		h.logger.Warn("unsupported method", zap.String("method", req.Method))
		return MethodNotAllowed(crudAllow)
	}
}

func (h *CrudHandler) create(entityType string, body []byte) *http1.Response {
	id, err := h.manager.Create(entityType, body)
	if err != nil {
		h.logger.Error("create entity failed", zap.String("type", entityType), zap.Error(err))
		return http1.InternalServerError("failed to create entity.").Build()
	}
	h.logger.Debug("entity created", zap.String("type", entityType), zap.Int("id", id))
	return idResponse(id)
}

func (h *CrudHandler) read(entityType string, id int) *http1.Response {
	data, err := h.manager.Read(entityType, id)
	if err != nil {
		if errors.Is(err, crud.ErrNotFound) {
			return http1.NotFound("Entity not found.").Build()
		}
		h.logger.Error("read entity failed", zap.String("type", entityType), zap.Int("id", id), zap.Error(err))
		return http1.InternalServerError("failed to read entity.").Build()
	}
	return http1.OK().WithContentType(contentTypeJSON).WithBody(data).Build()
}

func (h *CrudHandler) list(entityType string) *http1.Response {
	ids, err := h.manager.List(entityType)
	if err != nil {
		h.logger.Error("list entities failed", zap.String("type", entityType), zap.Error(err))
		return http1.InternalServerError("failed to list entities.").Build()
	}
	if ids == nil {
		ids = []int{}
	}
	return WriteJSON(http1.StatusOK, ids, h.logger)
}

func (h *CrudHandler) update(entityType string, id int, body []byte) *http1.Response {
	if err := h.manager.Update(entityType, id, body); err != nil {
		h.logger.Error("update entity failed", zap.String("type", entityType), zap.Int("id", id), zap.Error(err))
		return http1.InternalServerError("failed to update entity.").Build()
	}
	return idResponse(id)
}

func (h *CrudHandler) delete(entityType string, id int) *http1.Response {
	if err := h.manager.Delete(entityType, id); err != nil {
		h.logger.Error("delete entity failed", zap.String("type", entityType), zap.Int("id", id), zap.Error(err))
		return http1.InternalServerError("failed to delete entity.").Build()
	}
	return idResponse(id)
}

func idResponse(id int) *http1.Response {
	return http1.OK().
		WithContentType(contentTypeJSON).
		WithBodyString(fmt.Sprintf(`{"id": %d}`, id)).
		Build()
}

func newCrudFactory(deps *Deps) dispatch.FactoryCtor {
	return func(spec types.HandlerSpec) (dispatch.Factory, error) {
		dataPath := spec.Option("data_path")
		if dataPath == "" {
			return nil, missingOption(spec, "data_path")
		}
		manager, err := deps.Crud.GetOrCreate(dataPath)
		if err != nil {
			return nil, types.NewError(types.ErrInvalidConfig, "crud data_path is invalid").
				WithHandler(spec.DisplayName()).
				WithCause(err)
		}
		logger := deps.logger(spec)

		return dispatch.FactoryFunc(func(location, _ string) (dispatch.Handler, error) {
			return NewCrudHandler(spec.DisplayName(), location, manager, logger), nil
		}), nil
	}
}
