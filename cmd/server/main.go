package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	apihttp "musicstream/internal/api/http"
	"musicstream/internal/app"
	"musicstream/internal/cache"
	"musicstream/internal/domain"
	"musicstream/internal/ingest"
	"musicstream/internal/library"
	"musicstream/internal/metrics"
	mongorepo "musicstream/internal/repository/mongo"
	"musicstream/internal/stats"
	"musicstream/internal/telemetry"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "music-service")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "music-service"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("musicDir", cfg.MusicDir),
		slog.Duration("cacheTTL", cfg.CacheTTL),
		slog.Int64("cacheMaxEntries", int64(cfg.CacheMaxEntries)),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lib, err := library.New(cfg.MusicDir)
	if err != nil {
		logger.Error("music dir init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	initCtx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	defer cancel()

	// Mongo is optional: without it download history stays in memory.
	var (
		mongoClient *mongo.Client
		history     ingest.HistoryStore
	)
	if cfg.MongoURI != "" {
		mongoClient, err = mongorepo.Connect(initCtx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
		if err != nil {
			logger.Error("mongo connect failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := mongoClient.Ping(initCtx, readpref.Primary()); err != nil {
			logger.Error("mongo ping failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		repo := mongorepo.NewHistoryRepository(mongoClient, cfg.MongoDatabase)
		if err := repo.EnsureIndexes(initCtx); err != nil {
			logger.Warn("mongo ensure indexes failed", slog.String("error", err.Error()))
		}
		history = repo
	} else {
		history = ingest.NewMemoryHistory()
	}

	// Redis is optional: without it metadata stays in the in-process cache.
	cacheOpts := []cache.Option{}
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		backend := cache.NewRedisBackend(redisClient)
		if err := backend.Ping(initCtx); err != nil {
			logger.Warn("redis unavailable, using in-memory cache only", slog.String("error", err.Error()))
			redisClient = nil
		} else {
			cacheOpts = append(cacheOpts, cache.WithBackend(backend))
		}
	}
	metaCache := cache.New(cfg.CacheTTL, cfg.CacheMaxEntries, cacheOpts...)

	transfer := stats.NewTransfer()

	var handler *apihttp.Server

	ingestor := ingest.New(lib,
		ingest.WithTimeout(cfg.DownloadTimeout),
		ingest.WithMaxConcurrent(cfg.MaxConcurrentDownloads),
		ingest.WithHistory(history),
		ingest.WithLogger(logger),
		ingest.WithNotify(func(rec domain.DownloadRecord) {
			if handler != nil {
				handler.BroadcastDownload(rec)
			}
		}),
	)

	handler = apihttp.NewServer(lib,
		apihttp.WithCache(metaCache),
		apihttp.WithStats(transfer),
		apihttp.WithIngestor(ingestor),
		apihttp.WithHistory(history),
		apihttp.WithAdminPassword(cfg.AdminPassword),
		apihttp.WithPublicDir(cfg.PublicDir),
		apihttp.WithAllowedOrigins(cfg.CORSAllowedOrigins),
		apihttp.WithLogger(logger),
	)

	go updateLibraryMetrics(rootCtx, lib, handler)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	handler.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}
	ingestor.Wait()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close error", slog.String("error", err.Error()))
		}
	}
	if mongoClient != nil {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
		}
	}

	logger.Info("server stopped")
}

// updateLibraryMetrics keeps the catalog gauges fresh and pushes transfer
// counters to WebSocket clients.
func updateLibraryMetrics(ctx context.Context, lib *library.Library, handler *apihttp.Server) {
	statsTicker := time.NewTicker(5 * time.Second)
	libraryTicker := time.NewTicker(30 * time.Second)
	defer statsTicker.Stop()
	defer libraryTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-statsTicker.C:
			handler.BroadcastStats()
		case <-libraryTicker.C:
			tracks, err := lib.List()
			if err != nil {
				continue
			}
			var total int64
			for _, t := range tracks {
				total += t.Size
			}
			metrics.LibraryTracks.Set(float64(len(tracks)))
			metrics.LibrarySizeBytes.Set(float64(total))
		}
	}
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
