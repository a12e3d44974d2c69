package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ledger.Backend != BackendMutex {
		t.Errorf("backend = %q, want %q", cfg.Ledger.Backend, BackendMutex)
	}
	if cfg.GRPC.Addr != ":50051" || cfg.HTTP.Addr != ":8080" {
		t.Errorf("addrs = %q %q", cfg.GRPC.Addr, cfg.HTTP.Addr)
	}
	if cfg.Database.MaxOpenConns != 100 || cfg.Database.MaxIdleConns != 10 || cfg.Database.ConnMaxLifetime != 30*time.Minute {
		t.Errorf("pool defaults = %+v", cfg.Database)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
ledger:
  backend: LMAX
  wal_path: /tmp/ledger.wal
  queue_size: 64
database:
  driver: postgres
  host: db
  dbname: ledger
  conn_max_lifetime: 5m
http:
  addr: ":9000"
  read_timeout: 3s
logging:
  format: json
`)
	t.Setenv("GRPC_ADDR", ":6000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PIN_HASH_COST", "6")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ledger.Backend != BackendLMAX || cfg.Ledger.QueueSize != 64 || cfg.Ledger.WALPath != "/tmp/ledger.wal" {
		t.Errorf("ledger = %+v", cfg.Ledger)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.Port != 5432 || cfg.Database.ConnMaxLifetime != 5*time.Minute {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.HTTP.Addr != ":9000" || cfg.HTTP.ReadTimeout != 3*time.Second {
		t.Errorf("http = %+v", cfg.HTTP)
	}
	if cfg.GRPC.Addr != ":6000" {
		t.Errorf("grpc addr = %q", cfg.GRPC.Addr)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Ledger.PINHashCost != 6 {
		t.Errorf("pin cost = %d", cfg.Ledger.PINHashCost)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
	}{
		{name: "unknown backend", yaml: "ledger:\n  backend: redis\n", wantErr: "unsupported backend"},
		{name: "sql without database", env: map[string]string{"LEDGER_BACKEND": "sql", "DATABASE_DRIVER": "sqlite"}, wantErr: "dbname is required"},
		{name: "bad pin cost", env: map[string]string{"PIN_HASH_COST": "ten"}, wantErr: "PIN_HASH_COST"},
		{name: "bad yaml", yaml: "ledger: [", wantErr: "parse"},
		{name: "bad log format", yaml: "logging:\n  format: xml\n", wantErr: "unsupported format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeConfig(t, tt.yaml)
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadSQLBackendWithDSN(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "sql")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", "file:ledger.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.DSN() != "file:ledger.db" {
		t.Fatalf("dsn = %q", cfg.Database.DSN())
	}
}
