package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/nichesite/directory/internal/handlers"
	"github.com/nichesite/directory/internal/infrastructure/config"
	"github.com/nichesite/directory/internal/infrastructure/database"
	"github.com/nichesite/directory/internal/infrastructure/logging"
	"github.com/nichesite/directory/internal/infrastructure/messaging"
	"github.com/nichesite/directory/internal/infrastructure/metrics"
	"github.com/nichesite/directory/internal/infrastructure/tracing"
	"github.com/nichesite/directory/internal/repositories/relational"
	"github.com/nichesite/directory/internal/services"
	"github.com/nichesite/directory/internal/services/authorization"
	"github.com/nichesite/directory/pkg/cache"
	"github.com/nichesite/directory/pkg/cache/memorycache"
	"github.com/nichesite/directory/pkg/cache/rediscache"
)

const (
	defaultEnv      = "dev"
	shutdownTimeout = 30 * time.Second
	metricsInterval = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	env := os.Getenv("ENV")
	if env == "" {
		env = defaultEnv
	}

	if err := config.InitConfig(env); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	// The service refuses to start without a reachable, migrated database
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	logger.Info("connected to database", zap.String("database", cfg.Database.Redacted()))

	if err := db.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	nameCache, err := newNameCache(ctx, cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer nameCache.Close()

	collector := metrics.NewCollector()
	collector.SetCache(nameCache)
	exporter := metrics.NewPrometheusExporter(prometheus.DefaultRegisterer, collector)

	publisher := messaging.NewPublisher(cfg.Messaging, logger)
	defer publisher.Close()

	policy, err := authorization.NewPolicy(cfg.Auth.Rules)
	if err != nil {
		return fmt.Errorf("failed to compile capability rules: %w", err)
	}
	guard := authorization.NewGuard(authorization.NewAuthenticator(cfg.Auth.Tokens), policy)
	logger.Info("capability rules loaded", zap.Strings("capabilities", policy.Capabilities()))
	if len(cfg.Auth.Tokens) == 0 {
		logger.Warn("no API_TOKENS configured; every authenticated endpoint will reject requests")
	}

	// Repositories
	relationshipRepo := relational.NewSQLRelationshipRepository(db)
	recordRepo := relational.NewSQLRecordRepository(db)

	// Services
	names := services.NewNameResolver(recordRepo, nameCache, time.Duration(cfg.Cache.TTLMinutes)*time.Minute, logger)
	relationshipService := services.NewRelationshipService(services.RelationshipServiceConfig{
		Relationships: relationshipRepo,
		Records:       recordRepo,
		Names:         names,
		Publisher:     publisher,
		Recorder:      exporter,
		EditURL:       cfg.Admin.EditURL,
		Logger:        logger,
	})

	dispatcher := services.NewDispatcher(logger)
	dispatcher.Subscribe("names", names.HandleRecordSaved)
	dispatcher.Subscribe("relationships", relationshipService.HandleRecordSaved)
	recordService := services.NewRecordService(recordRepo, dispatcher)

	// HTTP
	serviceName := ""
	if cfg.Tracing.OTLPEndpoint != "" {
		serviceName = cfg.Tracing.ServiceName
	}
	e := handlers.NewEcho(&handlers.Handlers{
		Relationships: handlers.NewRelationshipHandler(relationshipService, logger),
		Records:       handlers.NewRecordHandler(recordService, logger),
		Admin:         handlers.NewAdminHandler(relationshipService, logger),
		Map:           handlers.NewMapHandler(recordService, cfg.Map.APIKey),
		Health:        handlers.NewHealthHandler(db),
		Stats:         handlers.NewStatsHandler(collector),
	}, handlers.ServerOptions{
		Logger:      logger,
		Guard:       guard,
		Collector:   collector,
		Exporter:    exporter,
		ServiceName: serviceName,
	})
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.HTTPPort)),
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// gRPC
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			metrics.UnaryServerInterceptor(collector, exporter),
			handlers.AuthUnaryInterceptor(guard, handlers.MethodCapabilities),
		),
	)
	handlers.RegisterRelationshipServiceServer(grpcServer, handlers.NewRelationshipGRPCHandler(relationshipService, logger))
	reflection.Register(grpcServer)

	grpcListener, err := net.Listen("tcp", net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.GRPCPort)))
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC: %w", err)
	}

	// Metrics
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.MetricsPort)),
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 3)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", grpcListener.Addr().String()))
		if err := grpcServer.Serve(grpcListener); err != nil {
			serverErrors <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()
	go func() {
		logger.Info("metrics server listening", zap.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("metrics server error: %w", err)
		}
	}()
	go updateMetrics(ctx, exporter)

	var runErr error
	select {
	case runErr = <-serverErrors:
		logger.Error("server failed", zap.Error(runErr))
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown failed", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown failed", zap.Error(err))
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, forcing gRPC stop")
		grpcServer.Stop()
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return runErr
}

func newNameCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	ttl := time.Duration(cfg.TTLMinutes) * time.Minute

	switch cfg.Backend {
	case "redis":
		return rediscache.New(ctx, &rediscache.Config{
			Addr:       cfg.RedisAddr,
			Password:   cfg.RedisPassword,
			DB:         cfg.RedisDB,
			Prefix:     "nichesite:",
			DefaultTTL: ttl,
		})
	case "memory", "":
		return memorycache.New(&memorycache.Config{
			MaxSizeBytes:  cfg.MaxMemoryBytes,
			DefaultTTL:    ttl,
			EnableMetrics: true,
		})
	default:
		return nil, fmt.Errorf("unsupported CACHE_BACKEND %q (want memory or redis)", cfg.Backend)
	}
}

func updateMetrics(ctx context.Context, exporter *metrics.PrometheusExporter) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			exporter.Update()
		}
	}
}
