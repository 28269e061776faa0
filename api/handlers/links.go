package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/webserver/config"
	"github.com/BaSui01/webserver/dispatch"
	"github.com/BaSui01/webserver/internal/database"
	"github.com/BaSui01/webserver/internal/links"
	"github.com/BaSui01/webserver/protocol/http1"
	"github.com/BaSui01/webserver/types"

	"go.uber.org/zap"
)

const (
	linkPasswordHeader = "Link-Password"
	linkManageAllow    = "POST, GET, PUT, DELETE"
	storeOpenTimeout   = 10 * time.Second
)

// =============================================================================
// 🗄️ 短链存储选择
// =============================================================================

// linkStore 按 store 选项返回共享的短链存储：
// 缺省或 "file" 使用 data_path 下的文件存储，sqlite/postgres/mysql 使用 SQL 存储。
func (d *Deps) linkStore(spec types.HandlerSpec) (links.Store, error) {
	kind := strings.ToLower(strings.TrimSpace(spec.Option("store")))
	switch kind {
	case "", "file":
		dataPath := spec.Option("data_path")
		if dataPath == "" {
			return nil, missingOption(spec, "data_path")
		}
		key, err := links.PathKey(dataPath)
		if err != nil {
			return nil, invalidStoreConfig(spec, err)
		}
		return d.Links.GetOrCreate(key, func() (links.Store, error) {
			store, err := links.NewFileStore(dataPath, d.Logger)
			if err != nil {
				return nil, err
			}
			return d.withCache(key, store), nil
		})

	case database.DriverSQLite, database.DriverPostgres, database.DriverMySQL:
		cfg := d.Database
		cfg.Driver = kind
		dsn := spec.Option("dsn")
		if dsn == "" {
			dsn = cfg.DSN()
		}
		key := links.DSNKey(kind, dsn)
		return d.Links.GetOrCreate(key, func() (links.Store, error) {
			return d.openSQLStore(key, cfg, dsn)
		})

	default:
		return nil, types.NewError(types.ErrInvalidConfig, "unsupported link store '"+kind+"'").
			WithHandler(spec.DisplayName())
	}
}

func (d *Deps) openSQLStore(key string, cfg config.DatabaseConfig, dsn string) (links.Store, error) {
	pm, err := database.Open(cfg, dsn, d.Logger)
	if err != nil {
		return nil, err
	}
	if err := database.Instrument(pm.DB(), d.QueryObserver); err != nil {
		_ = pm.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeOpenTimeout)
	defer cancel()

	store, err := links.NewSQLStore(ctx, pm, d.Logger)
	if err != nil {
		_ = pm.Close()
		return nil, err
	}
	d.trackPool(pm)
	return d.withCache(key, store), nil
}

func (d *Deps) withCache(key string, store links.Store) links.Store {
	if d.Cache == nil {
		return store
	}
	sum := sha256.Sum256([]byte(key))
	scope := hex.EncodeToString(sum[:6])
	return links.NewCachedStore(store, links.ScopedCache(d.Cache, scope), d.Logger)
}

func invalidStoreConfig(spec types.HandlerSpec, err error) error {
	return types.NewError(types.ErrInvalidConfig, "invalid link store configuration").
		WithHandler(spec.DisplayName()).
		WithCause(err)
}

// linkFactory 所有短链 handler 共用的构造流程
func linkFactory(deps *Deps, build func(name, location string, store links.Store, logger *zap.Logger) dispatch.Handler) dispatch.FactoryCtor {
	return func(spec types.HandlerSpec) (dispatch.Factory, error) {
		store, err := deps.linkStore(spec)
		if err != nil {
			return nil, err
		}
		logger := deps.logger(spec)
		return dispatch.FactoryFunc(func(location, _ string) (dispatch.Handler, error) {
			return build(spec.DisplayName(), location, store, logger), nil
		}), nil
	}
}

// =============================================================================
// 🔗 link_manage
// =============================================================================

// LinkManageHandler 短链的创建、查询、修改与删除
type LinkManageHandler struct {
	name     string
	location string
	store    links.Store
	logger   *zap.Logger
}

// NewLinkManageHandler 创建短链管理处理器
func NewLinkManageHandler(name, location string, store links.Store, logger *zap.Logger) *LinkManageHandler {
	return &LinkManageHandler{name: name, location: location, store: store, logger: logger}
}

func (h *LinkManageHandler) Name() string { return h.name }

func (h *LinkManageHandler) Handle(ctx context.Context, req *http1.Request) *http1.Response {
	code := relativePath(req, h.location)
	if req.Method == "POST" && code == "" {
		return h.create(ctx, req)
	}
	if code == "" {
		return MethodNotAllowed(linkManageAllow)
	}

	switch req.Method {
	case "GET":
		return h.get(ctx, code, req)
	case "PUT":
		return h.update(ctx, code, req)
	case "DELETE":
		return h.delete(ctx, code, req)
	default:
		return MethodNotAllowed(linkManageAllow)
	}
}

func (h *LinkManageHandler) create(ctx context.Context, req *http1.Request) *http1.Response {
	obj, ok := decodeObject(req.Body)
	if !ok {
		return http1.BadRequest("malformed json").Build()
	}
	url, resp := urlField(obj)
	if resp != nil {
		return resp
	}

	params := links.CreateParams{URL: url}
	if raw, present := obj["password"]; present {
		password, isString := raw.(string)
		if !isString {
			return http1.BadRequest("password must be a string").Build()
		}
		if password == "" {
			return http1.BadRequest("password cannot be empty").Build()
		}
		salt, err := links.GenerateSalt()
		if err != nil {
			h.logger.Error("generate salt failed", zap.Error(err))
			return http1.InternalServerError().Build()
		}
		params.PasswordSalt = salt
		params.PasswordHash = links.HashPassword(password, salt)
	}

	code, err := h.store.Create(ctx, params)
	if err != nil {
		if errors.Is(err, links.ErrInvalid) {
			return http1.BadRequest("invalid url").Build()
		}
		h.logger.Error("create link failed", zap.Error(err))
		return http1.InternalServerError().Build()
	}
	h.logger.Info("link created", zap.String("code", code), zap.Bool("protected", params.PasswordHash != ""))
	return codeResponse(code)
}

func (h *LinkManageHandler) get(ctx context.Context, code string, req *http1.Request) *http1.Response {
	if !links.ValidCode(code) {
		return http1.BadRequest("invalid code").Build()
	}
	rec, resp := h.lookup(ctx, code)
	if resp != nil {
		return resp
	}
	if !links.Authorized(rec, req.Header(linkPasswordHeader)) {
		return Forbidden("missing or invalid password")
	}
	return WriteJSON(http1.StatusOK, linkView{
		Code:              rec.Code,
		URL:               rec.URL,
		Visits:            rec.Visits,
		PasswordProtected: rec.Protected(),
	}, h.logger)
}

func (h *LinkManageHandler) update(ctx context.Context, code string, req *http1.Request) *http1.Response {
	if !links.ValidCode(code) {
		return http1.BadRequest("invalid code").Build()
	}
	obj, ok := decodeObject(req.Body)
	if !ok {
		return http1.BadRequest("malformed json").Build()
	}
	url, resp := urlField(obj)
	if resp != nil {
		return resp
	}

	rec, resp := h.lookup(ctx, code)
	if resp != nil {
		return resp
	}
	if !links.Authorized(rec, req.Header(linkPasswordHeader)) {
		return Forbidden("missing or invalid password")
	}

	if err := h.store.Update(ctx, code, links.UpdateParams{URL: url}); err != nil {
		switch {
		case errors.Is(err, links.ErrInvalid):
			return http1.BadRequest("invalid url").Build()
		case errors.Is(err, links.ErrNotFound):
			return http1.NotFound().Build()
		}
		h.logger.Error("update link failed", zap.String("code", code), zap.Error(err))
		return http1.InternalServerError().Build()
	}
	return codeResponse(code)
}

func (h *LinkManageHandler) delete(ctx context.Context, code string, req *http1.Request) *http1.Response {
	if !links.ValidCode(code) {
		return http1.BadRequest("invalid code").Build()
	}

	rec, err := h.store.Get(ctx, code)
	switch {
	case err == nil:
		if !links.Authorized(rec, req.Header(linkPasswordHeader)) {
			return Forbidden("missing or invalid password")
		}
	case errors.Is(err, links.ErrNotFound):
	case errors.Is(err, links.ErrInvalid):
		return http1.BadRequest("invalid code").Build()
	default:
		h.logger.Error("get link failed", zap.String("code", code), zap.Error(err))
		return http1.InternalServerError().Build()
	}

	if err := h.store.Delete(ctx, code); err != nil {
		h.logger.Error("delete link failed", zap.String("code", code), zap.Error(err))
		return http1.InternalServerError().Build()
	}
	return codeResponse(code)
}

// lookup Get 并把错误映射为响应
func (h *LinkManageHandler) lookup(ctx context.Context, code string) (links.Record, *http1.Response) {
	rec, err := h.store.Get(ctx, code)
	if err == nil {
		return rec, nil
	}
	switch {
	case errors.Is(err, links.ErrNotFound):
		return rec, http1.NotFound().Build()
	case errors.Is(err, links.ErrInvalid):
		return rec, http1.BadRequest("invalid code").Build()
	}
	h.logger.Error("get link failed", zap.String("code", code), zap.Error(err))
	return rec, http1.InternalServerError().Build()
}

type linkView struct {
	Code              string `json:"code"`
	URL               string `json:"url"`
	Visits            uint64 `json:"visits"`
	PasswordProtected bool   `json:"password_protected"`
}

// urlField 读取并规范化 url 字段
func urlField(obj map[string]any) (string, *http1.Response) {
	raw, ok := obj["url"].(string)
	if !ok {
		return "", http1.BadRequest("missing url").Build()
	}
	url, err := links.NormalizeURL(raw)
	if err != nil {
		return "", http1.BadRequest(err.Error()).Build()
	}
	return url, nil
}

func codeResponse(code string) *http1.Response {
	return http1.OK().
		WithContentType(contentTypeJSON).
		WithBodyString(`{"code":"` + code + `"}`).
		Build()
}

func newLinkManageFactory(deps *Deps) dispatch.FactoryCtor {
	return linkFactory(deps, func(name, location string, store links.Store, logger *zap.Logger) dispatch.Handler {
		return NewLinkManageHandler(name, location, store, logger)
	})
}

// =============================================================================
// ↪️ link_redirect
// =============================================================================

// LinkRedirectHandler GET /{code} → 302 到目标 URL，并累加访问计数
type LinkRedirectHandler struct {
	name     string
	location string
	store    links.Store
	logger   *zap.Logger
}

// NewLinkRedirectHandler 创建跳转处理器
func NewLinkRedirectHandler(name, location string, store links.Store, logger *zap.Logger) *LinkRedirectHandler {
	return &LinkRedirectHandler{name: name, location: location, store: store, logger: logger}
}

func (h *LinkRedirectHandler) Name() string { return h.name }

func (h *LinkRedirectHandler) Handle(ctx context.Context, req *http1.Request) *http1.Response {
	if req.Method != "GET" {
		h.logger.Debug("method not allowed", zap.String("method", req.Method))
		return MethodNotAllowed("GET")
	}

	code := relativePath(req, h.location)
	if code == "" {
		return http1.BadRequest("empty code").Build()
	}
	if !links.ValidCode(code) {
		return http1.BadRequest("invalid code").Build()
	}

	url, err := h.store.Resolve(ctx, code)
	switch {
	case err == nil:
	case errors.Is(err, links.ErrNotFound):
		h.logger.Debug("code not found", zap.String("code", code))
		return http1.NotFound().Build()
	case errors.Is(err, links.ErrInvalid):
		return http1.BadRequest("Invalid code").Build()
	default:
		h.logger.Warn("resolve link failed", zap.String("code", code), zap.Error(err))
		return http1.InternalServerError("Filesystem error").Build()
	}

	if err := h.store.IncrementCodeVisits(ctx, code); err != nil {
		h.logger.Warn("increment code visits failed", zap.String("code", code), zap.Error(err))
	}
	if err := h.store.IncrementURLVisits(ctx, code); err != nil {
		h.logger.Warn("increment url visits failed", zap.String("code", code), zap.Error(err))
	}

	return http1.NewBuilderWithReason(http1.StatusFound, "Found").
		WithHeader("Location", url).
		Build()
}

func newLinkRedirectFactory(deps *Deps) dispatch.FactoryCtor {
	return linkFactory(deps, func(name, location string, store links.Store, logger *zap.Logger) dispatch.Handler {
		return NewLinkRedirectHandler(name, location, store, logger)
	})
}

// =============================================================================
// 📊 analytics
// =============================================================================

// AnalyticsHandler /{code} 查询单条统计，/top/{n} 返回访问量排行
type AnalyticsHandler struct {
	name     string
	location string
	store    links.Store
	logger   *zap.Logger
}

// NewAnalyticsHandler 创建统计处理器
func NewAnalyticsHandler(name, location string, store links.Store, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{name: name, location: location, store: store, logger: logger}
}

func (h *AnalyticsHandler) Name() string { return h.name }

func (h *AnalyticsHandler) Handle(ctx context.Context, req *http1.Request) *http1.Response {
	rel := relativePath(req, h.location)
	if rel == "" {
		return http1.BadRequest("missing analytics path").Build()
	}

	if strings.HasPrefix(rel, "top") {
		switch {
		case rel == "top":
			return http1.BadRequest("missing leaderboard size").Build()
		case rel[3] != '/':
			return http1.BadRequest("malformed analytics path").Build()
		}
		return h.top(ctx, rel[4:])
	}
	return h.code(ctx, rel)
}

type codeStats struct {
	Code      string `json:"code"`
	URL       string `json:"url"`
	Visits    uint64 `json:"visits"`
	URLVisits uint64 `json:"url_visits"`
}

func (h *AnalyticsHandler) code(ctx context.Context, code string) *http1.Response {
	if !links.ValidCode(code) {
		return http1.BadRequest("invalid code").Build()
	}
	rec, err := h.store.Get(ctx, code)
	if err != nil {
		if errors.Is(err, links.ErrNotFound) {
			return http1.NotFound().Build()
		}
		h.logger.Error("get link failed", zap.String("code", code), zap.Error(err))
		return http1.InternalServerError().Build()
	}
	urlVisits, err := h.store.URLVisitCount(ctx, rec.URL)
	if err != nil {
		h.logger.Error("url visit count failed", zap.String("url", rec.URL), zap.Error(err))
		return http1.InternalServerError().Build()
	}
	return WriteJSON(http1.StatusOK, codeStats{
		Code:      rec.Code,
		URL:       rec.URL,
		Visits:    rec.Visits,
		URLVisits: urlVisits,
	}, h.logger)
}

func (h *AnalyticsHandler) top(ctx context.Context, raw string) *http1.Response {
	if raw == "" {
		return http1.BadRequest("missing leaderboard size").Build()
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return http1.BadRequest("invalid leaderboard size").Build()
	}

	stats, err := h.store.AllURLVisits(ctx)
	if err != nil {
		h.logger.Error("load url visits failed", zap.Error(err))
		return http1.InternalServerError().Build()
	}
	return WriteJSON(http1.StatusOK, links.TopURLs(stats, n), h.logger)
}

func newAnalyticsFactory(deps *Deps) dispatch.FactoryCtor {
	return linkFactory(deps, func(name, location string, store links.Store, logger *zap.Logger) dispatch.Handler {
		return NewAnalyticsHandler(name, location, store, logger)
	})
}
