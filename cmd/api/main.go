package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/glycowatch/backend/internal/advisor"
	"github.com/glycowatch/backend/internal/api"
	"github.com/glycowatch/backend/internal/assets"
	"github.com/glycowatch/backend/internal/cache/redis"
	"github.com/glycowatch/backend/internal/llm"
	"github.com/glycowatch/backend/internal/metrics"
	"github.com/glycowatch/backend/internal/middleware/ratelimit"
	"github.com/glycowatch/backend/internal/risk"
	"github.com/glycowatch/backend/internal/storage/models"
	"github.com/glycowatch/backend/internal/storage/sqlite"
	"github.com/glycowatch/backend/pkg/config"
	appLogger "github.com/glycowatch/backend/pkg/logger"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(appLogger.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  cfg.Logging.OutputPath,
		Service: cfg.Logging.Service,
		Version: version,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting glycemic risk dashboard")

	metrics.Init()

	ctx := context.Background()

	store := assets.NewStore(assets.PathsFrom(cfg.Assets))
	handle, err := store.Get(ctx)
	if err != nil {
		appLogger.Fatal("Failed to load model assets", zap.Error(err))
	}
	for _, fp := range handle.Fingerprints {
		metrics.AssetsLoaded.WithLabelValues(fp.Kind, fp.SHA256).Set(1)
	}

	deps := api.Deps{
		Handle:    handle,
		Pipeline:  risk.NewPipeline(handle, cfg.Risk.Threshold),
		AccessLog: true,
	}

	if cfg.Registry.Enabled {
		registry, err := sqlite.NewClient(cfg.Registry.Path)
		if err != nil {
			appLogger.Fatal("Failed to open asset registry", zap.Error(err))
		}
		defer registry.Close()

		if err := registry.InitSchema(); err != nil {
			appLogger.Fatal("Failed to initialize registry schema", zap.Error(err))
		}
		recordLoad(registry, handle, cfg.Risk.Threshold)
		deps.Registry = registry
	}

	var cache advisor.Cache
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, suggestions will not be cached", zap.Error(err))
		} else {
			defer redisClient.Close()
			cache = redisClient
			deps.Cache = redisClient
		}
	}

	var completer advisor.Completer
	if cfg.Advisor.HasCredential() {
		completer = llm.NewClient(llm.ConfigFrom(cfg.Advisor))
	} else {
		appLogger.Warn("Wellness advisor API key is not configured, suggestions are disabled")
	}
	deps.Advisor = advisor.New(completer, cache, time.Duration(cfg.Advisor.CacheTTLSec)*time.Second)

	deps.Limiter = ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.AdvisorPerMinute,
		Logger:               appLogger.Named("ratelimit"),
	})
	defer deps.Limiter.Stop()

	app := api.NewApp(cfg, deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

// recordLoad stores this start-up in the registry. Registry failures are
// logged and never stop the server.
func recordLoad(registry *sqlite.Client, handle *assets.Handle, threshold float64) {
	previous, err := registry.LastFingerprint(assets.KindModel)
	if err != nil {
		appLogger.Warn("Failed to read previous model fingerprint", zap.Error(err))
	}

	host, _ := os.Hostname()
	load := &models.AssetLoad{
		ID:        uuid.NewString(),
		Host:      host,
		Threshold: threshold,
		LoadedAt:  handle.LoadedAt,
	}
	for _, fp := range handle.Fingerprints {
		load.Assets = append(load.Assets, models.AssetRecord{
			Kind:   fp.Kind,
			Path:   fp.Path,
			SHA256: fp.SHA256,
			Size:   fp.Size,
		})
		if fp.Kind == assets.KindModel && previous != nil && previous.SHA256 != fp.SHA256 {
			appLogger.Warn("Model artifact changed since the previous start-up",
				zap.String("previous_sha256", previous.SHA256),
				zap.String("sha256", fp.SHA256),
			)
		}
	}

	if err := registry.RecordLoad(load); err != nil {
		appLogger.Warn("Failed to record asset load", zap.Error(err))
	}
}
