package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpc_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/rest"
	memory_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	rdb_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/rdb"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/internal/config"
	"github.com/JoeShih716/go-bank-ledger/internal/logging"
	"github.com/JoeShih716/go-bank-ledger/pkg/database"
	pkggrpc "github.com/JoeShih716/go-bank-ledger/pkg/grpc"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to config.yaml")
	flag.Parse()

	// 1. 載入設定
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	// 2. 建立帳本 (Driven Adapter)
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// 3. 初始化 UseCase
	core := usecase.NewCoreUseCase(store, usecase.NewBcryptPINs(cfg.Ledger.PINHashCost), logger)

	// 4. gRPC Server
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return err
	}
	grpcServer := newGRPCServer(core, logger, cfg.GRPC.Reflection)

	// 5. HTTP Server
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      rest.NewRouter(rest.NewHandler(core, logger)),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("starting grpc server", "addr", cfg.GRPC.Addr, "backend", cfg.Ledger.Backend)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("starting http server", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful Shutdown
	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case serveErr = <-errCh:
		logger.Error("server failed", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	return serveErr
}

// newGRPCServer 建立 gRPC Server 並註冊 LedgerService
//
// LedgerService 沒有 .proto 產生的 file descriptor，reflection 只能列出服務名稱
// (grpcurl list)，describe 與依 schema 組請求都不支援；請求格式見 adapter/in/grpc/server.go。
func newGRPCServer(core *usecase.CoreUseCase, logger *slog.Logger, withReflection bool) *grpc.Server {
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(pkggrpc.ServerLoggingInterceptor(logger)))
	grpc_adapter.RegisterLedgerServer(server, grpc_adapter.NewGrpcServer(core))
	if withReflection {
		reflection.Register(server)
	}
	return server
}

// openStore 依 ledger.backend 建立帳本；回傳的 close 會釋放 WAL / 資料庫連線
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (usecase.Store, func(), error) {
	switch cfg.Ledger.Backend {
	case config.BackendSQL:
		client, err := database.NewClient(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		ledger := rdb_adapter.NewSQLLedger(client)
		if cfg.Database.AutoMigrate {
			if err := ledger.Migrate(ctx); err != nil {
				_ = client.Close()
				return nil, nil, err
			}
		}
		logger.Info("connected to database", "driver", cfg.Database.Driver)
		return ledger, func() { _ = client.Close() }, nil

	case config.BackendMutex, config.BackendLMAX:
		var w *wal.WAL
		closeWAL := func() {}
		if cfg.Ledger.WALPath != "" {
			var opts []wal.Option
			if cfg.Ledger.WALNoSync {
				opts = append(opts, wal.WithoutSync())
			}
			var err error
			w, err = wal.NewWAL(cfg.Ledger.WALPath, opts...)
			if err != nil {
				return nil, nil, err
			}
			closeWAL = func() {
				if err := w.Close(); err != nil {
					logger.Warn("close wal", "error", err)
				}
			}
		}

		if cfg.Ledger.Backend == config.BackendMutex {
			ledger, err := memory_adapter.NewMutexLedger(w)
			if err != nil {
				closeWAL()
				return nil, nil, err
			}
			return ledger, closeWAL, nil
		}

		ledger, err := memory_adapter.NewLMAXLedger(w, cfg.Ledger.QueueSize)
		if err != nil {
			closeWAL()
			return nil, nil, err
		}
		loopCtx, cancelLoop := context.WithCancel(context.Background())
		ledger.Start(loopCtx)
		return ledger, func() {
			cancelLoop()
			ledger.Wait()
			closeWAL()
		}, nil
	}
	return nil, nil, errors.New("unsupported ledger backend " + cfg.Ledger.Backend)
}
