package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sam2008610/stock-performance-dashboard/config"
	"github.com/sam2008610/stock-performance-dashboard/data"
	"github.com/sam2008610/stock-performance-dashboard/data/cache"
	"github.com/sam2008610/stock-performance-dashboard/data/kvstore"
	"github.com/sam2008610/stock-performance-dashboard/data/secure"
	"github.com/sam2008610/stock-performance-dashboard/internal/crypto"
	"github.com/sam2008610/stock-performance-dashboard/internal/externalApi/cloudStorageApi/googleDriveApi"
	"github.com/sam2008610/stock-performance-dashboard/internal/externalApi/finmindApi"
	"github.com/sam2008610/stock-performance-dashboard/internal/externalApi/stockApi"
	"github.com/sam2008610/stock-performance-dashboard/internal/reportGenerator/xlsxGenerator"
	"github.com/sam2008610/stock-performance-dashboard/internal/scheduler"
	"github.com/sam2008610/stock-performance-dashboard/internal/service/quoteService"
	"github.com/sam2008610/stock-performance-dashboard/internal/service/stockInfoService"
	"github.com/sam2008610/stock-performance-dashboard/internal/service/trackerService"
	"github.com/sam2008610/stock-performance-dashboard/internal/transport/httpserver"
	"github.com/sam2008610/stock-performance-dashboard/utils"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.Any("cfg", cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sqliteClient := data.NewSqliteClient(cfg)
	defer sqliteClient.Close()

	kvStore := kvstore.NewSqlite(sqliteClient)

	cipher := crypto.New(kvStore)
	if err := cipher.TestRoundTrip(ctx); err != nil {
		slog.Error("encryption health check failed", slog.String("err", err.Error()))
		panic(err)
	}

	secureStorage := secure.New(kvStore, cipher)

	redisClient := data.NewRedisClient(cfg)
	defer redisClient.Close()

	stockListCache := cache.NewRedisCache(redisClient, cfg)

	finmindApiClient := finmindApi.New(cfg)
	stockApiClient := stockApi.New(cfg)

	stockInfoSrv := stockInfoService.New(finmindApiClient, stockListCache)
	quoteSrv := quoteService.New(stockApiClient, secureStorage)

	reportGenerator := xlsxGenerator.New()

	var cloudStorage trackerService.CloudStorage
	if cfg.GoogleDrive.Enabled {
		cloudStorage = googleDriveApi.New(ctx, cfg)
	}

	trackerSrv := trackerService.New(secureStorage, quoteSrv, reportGenerator, cloudStorage)
	if err := trackerSrv.Initialize(utils.NewCtxWithRqID()); err != nil {
		slog.Error("failed to initialize tracker state", slog.String("err", err.Error()))
		panic(err)
	}

	sched := scheduler.New()
	sched.NewIntervalJob("refresh portfolio quotes", trackerSrv.RefreshQuotes, cfg.Jobs.QuoteRefreshInterval, true)
	sched.NewIntervalJob("refresh stock list", stockInfoSrv.RefreshStockList, cfg.Jobs.StockListRefreshInterval, true)
	if cfg.GoogleDrive.Enabled {
		driveApi := cloudStorage.(*googleDriveApi.GoogleDriveApi)
		sched.NewIntervalJob("delete old drive backups", driveApi.DeleteOldFiles, cfg.Jobs.DriveCleanupInterval, false)
	}
	sched.Start()
	defer sched.Stop()

	controller := httpserver.NewController(stockInfoSrv, quoteSrv, trackerSrv)

	server := httpserver.New(cfg, controller)
	go server.Start()

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	server.Stop(shutdownCtx)
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
