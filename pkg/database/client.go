package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Client 封裝 GORM DB 實例
type Client struct {
	db *gorm.DB
}

// NewClient 建立並回傳一個新的資料庫客戶端實例 (GORM)
//
// 參數:
//
//	ctx: 取消時停止重試
//	cfg: Config - 資料庫連線配置
//
// 回傳值:
//
//	*Client: 封裝後的資料庫客戶端
//	error: 若連線失敗則回傳錯誤
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dialector := Dialector(cfg)
	gormConfig := &gorm.Config{
		// 帳本的寫入都自行包在 Transaction 內，單筆寫入不需要 GORM 再包一層
		SkipDefaultTransaction: true,
		// 唯一鍵衝突轉成 gorm.ErrDuplicatedKey，與資料庫種類無關
		TranslateError: true,
		Logger:         newLogger(cfg.LogLevel),
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	retryInterval := cfg.RetryInterval
	if retryInterval <= 0 {
		retryInterval = 2 * time.Second
	}

	var db *gorm.DB
	var err error
	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(dialector, gormConfig)
		if err == nil {
			// 確認連線真的可用
			rawDB, dbErr := db.DB()
			if dbErr == nil {
				if err = rawDB.PingContext(ctx); err == nil {
					break
				}
			} else {
				err = dbErr
			}
		}

		if i < maxRetries-1 {
			slog.Warn("database connect failed, retrying",
				"driver", cfg.Driver, "attempt", i+1, "max", maxRetries, "error", err, "retry_in", retryInterval)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("connect to %s: %w", cfg.Driver, ctx.Err())
			case <-time.After(retryInterval):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", cfg.Driver, maxRetries, err)
	}

	// 取得底層 sql.DB 物件以設定連線池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.db: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return &Client{db: db}, nil
}

// Dialector 依驅動名稱選擇 GORM dialect
func Dialector(cfg Config) gorm.Dialector {
	switch strings.ToLower(cfg.Driver) {
	case DriverPostgres:
		return postgres.Open(cfg.DSN())
	case DriverSQLite:
		return sqlite.Open(cfg.DSN())
	default:
		return mysql.Open(cfg.DSN())
	}
}

// DB 回傳底層的 *gorm.DB 實例，供 adapter 使用
func (c *Client) DB() *gorm.DB {
	return c.db
}

// Close 關閉資料庫連線
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// newLogger 根據配置建立 GORM Logger
func newLogger(level string) logger.Interface {
	var logLevel logger.LogLevel
	switch strings.ToLower(level) {
	case "info":
		logLevel = logger.Info
	case "warn":
		logLevel = logger.Warn
	case "silent":
		logLevel = logger.Silent
	default:
		logLevel = logger.Error // 預設只記錄錯誤
	}
	return logger.Default.LogMode(logLevel)
}
