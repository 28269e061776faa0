package database

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// QueryObserver 接收每条 SQL 的耗时（由 metrics.Collector 实现）
type QueryObserver interface {
	RecordDBQuery(operation string, duration time.Duration)
}

const startKey = "webserver:query_start"

// Instrument 为 db 注册 gorm 回调，按操作类型上报查询耗时
func Instrument(db *gorm.DB, observer QueryObserver) error {
	if observer == nil {
		return nil
	}

	before := func(tx *gorm.DB) {
		tx.InstanceSet(startKey, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(startKey)
			if !ok {
				return
			}
			if start, ok := v.(time.Time); ok {
				observer.RecordDBQuery(operation, time.Since(start))
			}
		}
	}

	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("webserver:before_create", before),
		cb.Create().After("gorm:create").Register("webserver:after_create", after("create")),
		cb.Query().Before("gorm:query").Register("webserver:before_query", before),
		cb.Query().After("gorm:query").Register("webserver:after_query", after("query")),
		cb.Update().Before("gorm:update").Register("webserver:before_update", before),
		cb.Update().After("gorm:update").Register("webserver:after_update", after("update")),
		cb.Delete().Before("gorm:delete").Register("webserver:before_delete", before),
		cb.Delete().After("gorm:delete").Register("webserver:after_delete", after("delete")),
		cb.Raw().Before("gorm:raw").Register("webserver:before_raw", before),
		cb.Raw().After("gorm:raw").Register("webserver:after_raw", after("raw")),
	)
}
