package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-bank-ledger/pkg/database"
)

// 帳本實作 (對應 Level 0 ~ 2)
const (
	BackendSQL   = "sql"   // Level 0: 關聯式資料庫
	BackendMutex = "mutex" // Level 1: 記憶體 + 每帳戶 Mutex
	BackendLMAX  = "lmax"  // Level 2: 記憶體 + 單一寫入者
)

// DefaultPath 預設設定檔位置
const DefaultPath = "config/config.yaml"

// Config 服務所有設定
type Config struct {
	Ledger   LedgerConfig    `yaml:"ledger"`
	Database database.Config `yaml:"database"`
	GRPC     GRPCConfig      `yaml:"grpc"`
	HTTP     HTTPConfig      `yaml:"http"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// LedgerConfig 帳本相關設定
type LedgerConfig struct {
	Backend     string `yaml:"backend"`
	WALPath     string `yaml:"wal_path"` // 空字串代表記憶體帳本不持久化
	WALNoSync   bool   `yaml:"wal_no_sync"`
	QueueSize   int    `yaml:"queue_size"` // LMAX 輸送帶容量
	PINHashCost int    `yaml:"pin_hash_cost"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr"`
	// Reflection: 只支援列出服務 (grpcurl list)，訊息是 google.protobuf.Struct，沒有可 describe 的 schema
	Reflection bool `yaml:"reflection"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig 結構化日誌設定
type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"` // text|json
	IncludeCaller bool   `yaml:"include_caller"`
}

// Load 讀取設定
//
// 順序: .env (不覆蓋既有環境變數) → YAML 檔 → 環境變數覆蓋 → 預設值 → 檢查
//
// 參數:
//
//	path: YAML 設定檔路徑；檔案不存在時只使用環境變數與預設值
//
// 回傳:
//
//	Config: 設定
//	error: 讀檔、解析或檢查錯誤
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Ledger.Backend, "LEDGER_BACKEND")
	setString(&cfg.Ledger.WALPath, "LEDGER_WAL_PATH")
	setString(&cfg.Database.Driver, "DATABASE_DRIVER")
	setString(&cfg.Database.RawDSN, "DATABASE_DSN")
	setString(&cfg.GRPC.Addr, "GRPC_ADDR")
	setString(&cfg.HTTP.Addr, "HTTP_ADDR")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")

	if v := os.Getenv("PIN_HASH_COST"); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PIN_HASH_COST value %q: %w", v, err)
		}
		cfg.Ledger.PINHashCost = cost
	}
	return nil
}

// applyDefaults 補全預設配置 (如果 yaml 與環境變數都沒寫)
func applyDefaults(cfg *Config) {
	cfg.Ledger.Backend = strings.ToLower(strings.TrimSpace(cfg.Ledger.Backend))
	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = BackendMutex
	}
	if cfg.Ledger.QueueSize == 0 {
		cfg.Ledger.QueueSize = 1000
	}

	db := &cfg.Database
	db.Driver = strings.ToLower(strings.TrimSpace(db.Driver))
	if db.Driver == "" {
		db.Driver = database.DriverMySQL
	}
	if db.Port == 0 {
		switch db.Driver {
		case database.DriverMySQL:
			db.Port = 3306
		case database.DriverPostgres:
			db.Port = 5432
		}
	}
	if db.MaxOpenConns == 0 {
		db.MaxOpenConns = 100
	}
	if db.MaxIdleConns == 0 {
		db.MaxIdleConns = 10
	}
	if db.ConnMaxLifetime == 0 {
		db.ConnMaxLifetime = 30 * time.Minute
	}
	if db.MaxRetries == 0 {
		db.MaxRetries = 10
	}
	if db.RetryInterval == 0 {
		db.RetryInterval = 2 * time.Second
	}

	if cfg.GRPC.Addr == "" {
		cfg.GRPC.Addr = ":50051"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 10 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate 檢查帳本實作與資料庫設定
func (c Config) Validate() error {
	switch c.Ledger.Backend {
	case BackendMutex, BackendLMAX:
	case BackendSQL:
		if err := c.Database.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("ledger: unsupported backend %q (want %s, %s or %s)",
			c.Ledger.Backend, BackendSQL, BackendMutex, BackendLMAX)
	}
	if c.Ledger.PINHashCost < 0 {
		return fmt.Errorf("ledger: pin_hash_cost must not be negative")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging: unsupported format %q", c.Logging.Format)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
