package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	grpc_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/in/grpc"
	http_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/in/http"
	kafka_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/kafka"
	memory_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/mysql"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-credit-ledger/pkg/mysql"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// 1. 載入設定
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	// 2. 帳戶表 (啟動後不可變)
	registry, err := domain.NewAccountRegistry(cfg.Accounts)
	if err != nil {
		return err
	}
	logger.Info("accounts loaded", slog.Int("count", registry.Len()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 依設定選擇帳本
	store, closeStore, err := openStore(ctx, cfg, registry, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// 4. 初始化 UseCase
	opts := []usecase.Option{usecase.WithLogger(logger)}
	if cfg.Kafka.Enabled {
		publisher := kafka_adapter.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer publisher.Close()
		opts = append(opts, usecase.WithPublisher(publisher))
		logger.Info("kafka publisher enabled", slog.Any("brokers", cfg.Kafka.Brokers))
	}
	coreUseCase := usecase.NewCoreUseCase(registry, store, opts...)

	// 5. 啟動 gRPC Server
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	grpcServer := grpc_adapter.NewServer(coreUseCase, logger)

	// 6. 啟動 HTTP Server
	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           http_adapter.NewRouter(coreUseCase, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("starting gRPC server", slog.Int("port", cfg.GRPC.Port))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()
	go func() {
		logger.Info("starting HTTP server", slog.Int("port", cfg.HTTP.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http serve: %w", err)
		}
	}()

	// Wait for interrupt
	select {
	case <-ctx.Done():
		logger.Info("shutting down server...")
	case err := <-errCh:
		logger.Error("server failed", slog.String("error", err.Error()))
		stop()
	}

	// Graceful Shutdown: 先停止收新請求，進行中的交易做完後再關帳本
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", slog.String("error", err.Error()))
	}
	grpcServer.GracefulStop()
	logger.Info("server exited")
	return nil
}

// openStore 建立 LedgerStore，回傳的 close 函式負責釋放資源 (WAL / DB)
func openStore(ctx context.Context, cfg Config, registry *domain.AccountRegistry, logger *slog.Logger) (usecase.LedgerStore, func(), error) {
	switch cfg.Ledger.Type {
	case LedgerTypeMySQL:
		dbClient, err := mysql.NewClient(cfg.MySQL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to mysql: %w", err)
		}
		ledger := mysql_adapter.NewMySQLLedger(dbClient)
		if err := ledger.EnsureAccounts(ctx, registry); err != nil {
			dbClient.Close()
			return nil, nil, err
		}
		logger.Info("using mysql ledger", slog.String("host", cfg.MySQL.Host))
		return ledger, closer(logger, "mysql", dbClient), nil

	case LedgerTypeMemoryMutex:
		ledger, err := memory_adapter.NewMutexLedger(registry, memory_adapter.WithWALDir(cfg.Ledger.WALDir))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init mutex ledger: %w", err)
		}
		logger.Info("using memory mutex ledger", slog.String("wal_dir", cfg.Ledger.WALDir))
		return ledger, closer(logger, "wal", ledger), nil

	case LedgerTypeMemoryActor:
		ledger, err := memory_adapter.NewActorLedger(registry, memory_adapter.WithWALDir(cfg.Ledger.WALDir))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init actor ledger: %w", err)
		}
		// 處理迴圈使用獨立的 context，收到信號後由 close 停止，確保已排隊的交易都做完
		runCtx, cancel := context.WithCancel(context.Background())
		ledger.Start(runCtx)
		logger.Info("using memory actor ledger", slog.String("wal_dir", cfg.Ledger.WALDir))
		closeWAL := closer(logger, "wal", ledger)
		return ledger, func() {
			cancel()
			ledger.Wait()
			closeWAL()
		}, nil

	default:
		return nil, nil, fmt.Errorf("invalid ledger type: %q", cfg.Ledger.Type)
	}
}

func closer(logger *slog.Logger, name string, c io.Closer) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.Error("close failed", slog.String("resource", name), slog.String("error", err.Error()))
		}
	}
}
