package links

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/webserver/internal/database"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// =============================================================================
// 🗄️ SQL 存储
// =============================================================================

const (
	counterName   = "links"
	txMaxAttempts = 3
)

type linkModel struct {
	Code         string `gorm:"primaryKey;size:32"`
	URL          string `gorm:"size:2048;not null"`
	Visits       uint64 `gorm:"not null;default:0"`
	PasswordHash string `gorm:"size:64"`
	PasswordSalt string `gorm:"size:32"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (linkModel) TableName() string { return "links" }

// urlVisitModel 以 URL 的 sha256 作主键，避免长 URL 超出索引长度
type urlVisitModel struct {
	URLHash string `gorm:"primaryKey;size:64"`
	URL     string `gorm:"size:2048;not null"`
	Visits  uint64 `gorm:"not null;default:0"`
}

func (urlVisitModel) TableName() string { return "url_visits" }

type counterModel struct {
	Name  string `gorm:"primaryKey;size:32"`
	Value uint64 `gorm:"not null"`
}

func (counterModel) TableName() string { return "link_counters" }

// SQLStore 基于 gorm 的实现，支持 sqlite/postgres/mysql
type SQLStore struct {
	pm     *database.PoolManager
	logger *zap.Logger
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore 迁移表结构并初始化计数器
func NewSQLStore(ctx context.Context, pm *database.PoolManager, logger *zap.Logger) (*SQLStore, error) {
	if pm == nil {
		return nil, fmt.Errorf("pool manager cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db := pm.DB().WithContext(ctx)
	if err := db.AutoMigrate(&linkModel{}, &urlVisitModel{}, &counterModel{}); err != nil {
		return nil, storageError("migrate link tables", err)
	}
	seed := counterModel{Name: counterName, Value: CounterSeed}
	if err := db.Where(counterModel{Name: counterName}).FirstOrCreate(&seed).Error; err != nil {
		return nil, storageError("seed link counter", err)
	}

	return &SQLStore{
		pm:     pm,
		logger: logger.With(zap.String("component", "link_sql_store")),
	}, nil
}

func (s *SQLStore) db(ctx context.Context) *gorm.DB {
	return s.pm.DB().WithContext(ctx)
}

// Create 在事务内递增计数器并插入记录
func (s *SQLStore) Create(ctx context.Context, params CreateParams) (string, error) {
	if !ValidURL(params.URL) {
		return "", invalidURL(params.URL)
	}

	var code string
	err := s.pm.WithTransactionRetry(ctx, txMaxAttempts, func(tx *gorm.DB) error {
		res := tx.Model(&counterModel{}).
			Where("name = ?", counterName).
			UpdateColumn("value", gorm.Expr("value + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("link counter row missing")
		}

		var c counterModel
		if err := tx.First(&c, "name = ?", counterName).Error; err != nil {
			return err
		}

		code = EncodeBase62(c.Value)
		return tx.Create(&linkModel{
			Code:         code,
			URL:          params.URL,
			PasswordHash: params.PasswordHash,
			PasswordSalt: params.PasswordSalt,
		}).Error
	})
	if err != nil {
		return "", storageError("create link", err)
	}

	s.logger.Debug("link created", zap.String("code", code))
	return code, nil
}

// Get 读取记录
func (s *SQLStore) Get(ctx context.Context, code string) (Record, error) {
	if !ValidCode(code) {
		return Record{}, invalidCode(code)
	}

	var m linkModel
	if err := s.db(ctx).First(&m, "code = ?", code).Error; err != nil {
		return Record{}, translateNotFound(code, err, "get link")
	}
	return m.record(), nil
}

// Update 替换目标 URL
func (s *SQLStore) Update(ctx context.Context, code string, params UpdateParams) error {
	if !ValidCode(code) {
		return invalidCode(code)
	}
	if !ValidURL(params.URL) {
		return invalidURL(params.URL)
	}

	err := s.pm.WithTransaction(ctx, func(tx *gorm.DB) error {
		var m linkModel
		if err := tx.First(&m, "code = ?", code).Error; err != nil {
			return err
		}
		return tx.Model(&m).Update("url", params.URL).Error
	})
	if err != nil {
		return translateNotFound(code, err, "update link")
	}
	return nil
}

// Delete 删除记录，不存在时返回 nil
func (s *SQLStore) Delete(ctx context.Context, code string) error {
	if !ValidCode(code) {
		return invalidCode(code)
	}
	if err := s.db(ctx).Where("code = ?", code).Delete(&linkModel{}).Error; err != nil {
		return storageError("delete link", err)
	}
	return nil
}

// Resolve 返回目标 URL
func (s *SQLStore) Resolve(ctx context.Context, code string) (string, error) {
	rec, err := s.Get(ctx, code)
	if err != nil {
		return "", err
	}
	return rec.URL, nil
}

// IncrementCodeVisits 记录自身访问数加一
func (s *SQLStore) IncrementCodeVisits(ctx context.Context, code string) error {
	if !ValidCode(code) {
		return invalidCode(code)
	}

	res := s.db(ctx).Model(&linkModel{}).
		Where("code = ?", code).
		UpdateColumn("visits", gorm.Expr("visits + ?", 1))
	if res.Error != nil {
		return storageError("increment code visits", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	return nil
}

// IncrementURLVisits 当前目标 URL 的累计访问数加一（upsert）
func (s *SQLStore) IncrementURLVisits(ctx context.Context, code string) error {
	if !ValidCode(code) {
		return invalidCode(code)
	}

	err := s.pm.WithTransactionRetry(ctx, txMaxAttempts, func(tx *gorm.DB) error {
		var m linkModel
		if err := tx.Select("url").First(&m, "code = ?", code).Error; err != nil {
			return err
		}
		row := urlVisitModel{URLHash: hashURL(m.URL), URL: m.URL, Visits: 1}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "url_hash"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"visits": gorm.Expr("url_visits.visits + ?", 1),
			}),
		}).Create(&row).Error
	})
	if err != nil {
		return translateNotFound(code, err, "increment url visits")
	}
	return nil
}

// URLVisitCount 目标 URL 的累计访问数，未出现过返回 0
func (s *SQLStore) URLVisitCount(ctx context.Context, url string) (uint64, error) {
	var m urlVisitModel
	err := s.db(ctx).First(&m, "url_hash = ?", hashURL(url)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, storageError("get url visits", err)
	}
	return m.Visits, nil
}

// AllURLVisits 全部目标 URL 的访问数
func (s *SQLStore) AllURLVisits(ctx context.Context) ([]URLVisits, error) {
	var rows []urlVisitModel
	if err := s.db(ctx).Find(&rows).Error; err != nil {
		return nil, storageError("list url visits", err)
	}
	out := make([]URLVisits, 0, len(rows))
	for _, r := range rows {
		out = append(out, URLVisits{URL: r.URL, Visits: r.Visits})
	}
	return out, nil
}

func (m linkModel) record() Record {
	return Record{
		Code:         m.Code,
		URL:          m.URL,
		Visits:       m.Visits,
		PasswordHash: m.PasswordHash,
		PasswordSalt: m.PasswordSalt,
	}
}

func hashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

func translateNotFound(code string, err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	return storageError(op, err)
}
