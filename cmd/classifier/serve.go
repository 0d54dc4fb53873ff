package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/miradorstack/workload-classifier/internal/api"
	"github.com/miradorstack/workload-classifier/internal/cache"
	"github.com/miradorstack/workload-classifier/internal/config"
	"github.com/miradorstack/workload-classifier/internal/metrics"
	"github.com/miradorstack/workload-classifier/internal/model"
	"github.com/miradorstack/workload-classifier/internal/services"
	"github.com/miradorstack/workload-classifier/internal/utils"
	"github.com/miradorstack/workload-classifier/internal/watch"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, metrics listener and gRPC health service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(parent context.Context, configPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		return err
	}

	logger, closeLog := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON, utils.FileOutput{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer closeLog()
	slog.SetDefault(logger)
	logger.Info("starting workload-classifier",
		slog.String("address", cfg.Server.Address),
		slog.String("artifact", cfg.Model.ArtifactPath))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		return err
	}

	manager := model.NewManager(model.Options{
		ArtifactPath: cfg.Model.ArtifactPath,
		MetadataPath: cfg.Model.MetadataPath,
	}, logger)
	if err := manager.Load(); err != nil {
		logger.Warn("serving without a model until a reload succeeds")
	}

	cacheProvider := newCache(cfg.Cache, logger)
	defer cacheProvider.Close()

	predictor := services.NewPredictionService(logger, manager, cacheProvider, cfg.Cache.TTL)
	introspector := services.NewIntrospectionService(manager)

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(cfg.Server, logger, api.NewHandlers(logger, predictor, introspector, manager))
	httpServer, err := api.NewHTTPServer(cfg.Server, router)
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var grpcServer *api.GRPCServer
	if cfg.GRPC.Address != "" {
		grpcServer, err = api.NewGRPCServer(cfg.GRPC)
		if err != nil {
			logger.Error("failed to create gRPC server", slog.Any("error", err))
			return err
		}
		grpcServer.SetServing(manager.Current() != nil)
		manager.Subscribe(func(*model.State) { grpcServer.SetServing(true) })
		go func() {
			logger.Info("gRPC health listening", slog.String("address", grpcServer.Address()))
			if serveErr := grpcServer.Start(); serveErr != nil {
				logger.Error("gRPC server exited", slog.Any("error", serveErr))
				stop()
			}
		}()
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	if cfg.Model.Watch {
		watcher, err := watch.New(cfg.Model.ArtifactPath, cfg.Model.WatchDebounce, manager, logger)
		if err != nil {
			logger.Warn("model watcher disabled", slog.Any("error", err))
		} else {
			go func() { _ = watcher.Run(ctx) }()
		}
	}

	go func() {
		logger.Info("HTTP server listening", slog.String("address", httpServer.Address()))
		if serveErr := httpServer.Start(); serveErr != nil {
			logger.Error("HTTP server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown", slog.Any("error", err))
	}
	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("workload-classifier stopped")
	return nil
}

func newCache(cfg config.CacheConfig, logger *slog.Logger) cache.Provider {
	provider, backend := cache.New(cache.Options{
		Backend: cfg.Backend,
		Size:    cfg.Size,
		TTL:     cfg.TTL,
		Redis: cache.RedisConfig{
			Addr:         cfg.Addr,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			MaxRetries:   cfg.MaxRetries,
			TLS:          cfg.TLS,
		},
	}, logger)
	logger.Info("prediction cache", slog.String("backend", backend), slog.Duration("ttl", cfg.TTL))
	return provider
}
