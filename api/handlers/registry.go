package handlers

import (
	"errors"
	"sync"

	"github.com/BaSui01/webserver/config"
	"github.com/BaSui01/webserver/dispatch"
	"github.com/BaSui01/webserver/internal/cache"
	"github.com/BaSui01/webserver/internal/crud"
	"github.com/BaSui01/webserver/internal/database"
	"github.com/BaSui01/webserver/internal/links"
	"github.com/BaSui01/webserver/types"

	"go.uber.org/zap"
)

// =============================================================================
// 🧩 内置 handler 注册
// =============================================================================

// Deps 内置 handler 共享的依赖。同一进程内只应创建一个。
type Deps struct {
	Logger *zap.Logger

	// Crud 按 data_path 共享 CRUD 管理器
	Crud *crud.Provider

	// Links 按 data_path / DSN 共享短链存储
	Links *links.Provider

	// Cache 可选的短链 Redis 缓存
	Cache *cache.LinkCache

	// Database link_manage 等使用 SQL 存储时的默认连接配置
	Database config.DatabaseConfig

	// QueryObserver 可选的 SQL 查询指标观察者
	QueryObserver database.QueryObserver

	// Health 健康检查集合；SQL 存储打开后会自动注册
	Health *HealthChecks

	mu    sync.Mutex
	pools []*database.PoolManager
}

// NewDeps 创建依赖集合，未设置的字段使用默认值
func NewDeps(logger *zap.Logger) *Deps {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deps{
		Logger:   logger,
		Crud:     crud.NewProvider(logger),
		Links:    links.NewProvider(),
		Database: config.DefaultDatabaseConfig(),
		Health:   NewHealthChecks(),
	}
}

func (d *Deps) logger(spec types.HandlerSpec) *zap.Logger {
	return d.Logger.With(zap.String("handler", spec.DisplayName()))
}

func (d *Deps) trackPool(pm *database.PoolManager) {
	d.mu.Lock()
	d.pools = append(d.pools, pm)
	d.mu.Unlock()
	d.Health.Register(pm)
}

// Close 关闭 handler 打开的数据库连接池
func (d *Deps) Close() error {
	d.mu.Lock()
	pools := d.pools
	d.pools = nil
	d.mu.Unlock()

	var errs []error
	for _, pm := range pools {
		if err := pm.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RegisterBuiltins 注册全部内置 handler 类型
func RegisterBuiltins(reg *dispatch.Registry, deps *Deps) {
	reg.Register(types.HandlerEcho, newEchoFactory(deps))
	reg.Register(types.HandlerNotFound, newNotFoundFactory(deps))
	reg.Register(types.HandlerHealth, newHealthFactory(deps))
	reg.Register(types.HandlerSleep, newSleepFactory(deps))
	reg.Register(types.HandlerStatic, newStaticFactory(deps))
	reg.Register(types.HandlerCrud, newCrudFactory(deps))
	reg.Register(types.HandlerLinkManage, newLinkManageFactory(deps))
	reg.Register(types.HandlerLinkRedirect, newLinkRedirectFactory(deps))
	reg.Register(types.HandlerAnalytics, newAnalyticsFactory(deps))
}

// NewRegistry 返回已注册全部内置类型的注册表
func NewRegistry(deps *Deps) *dispatch.Registry {
	reg := dispatch.NewRegistry()
	RegisterBuiltins(reg, deps)
	return reg
}

func missingOption(spec types.HandlerSpec, key string) error {
	return types.NewError(types.ErrMissingOption, spec.Type+" handler requires option '"+key+"'").
		WithHandler(spec.DisplayName())
}
