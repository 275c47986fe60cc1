package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"finitefield.org/airtools-web/internal/config"
	"finitefield.org/airtools-web/internal/handlers"
	"finitefield.org/airtools-web/internal/observability"
	"finitefield.org/airtools-web/internal/seo"
	"finitefield.org/airtools-web/internal/siteimages"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("web")

	client, err := siteimages.NewClient(cfg.API.BaseURL(),
		siteimages.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		siteimages.WithOrigin(cfg.Site.Origin),
	)
	if err != nil {
		logger.Fatal("failed to initialise site image client", zap.Error(err))
	}

	cache := siteimages.NewCache(siteimages.WithTTL(cfg.Images.CacheTTL))
	imageLogger := logger.Named("siteimages")
	resolver := siteimages.NewResolver(client, cache, siteimages.WithLogger(imageLogger))
	collection := siteimages.NewCollection(client, cache, siteimages.WithLogger(imageLogger))

	builder, err := seo.NewBuilder(
		seo.WithSiteName(cfg.Site.Name),
		seo.WithDomain(cfg.Site.Origin),
		seo.WithBuilderLogger(logger.Named("seo")),
	)
	if err != nil {
		logger.Fatal("failed to load page catalog", zap.Error(err))
	}

	if !cfg.Admin.Enabled() {
		logger.Info("admin token not configured; image mutation routes disabled")
	}
	imageHandlers := handlers.NewImageHandlers(resolver, collection, cfg.Admin.Token)
	seoHandlers := handlers.NewSEOHandlers(builder, resolver)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.TraceMiddleware(),
			observability.AccessLog(logger),
			observability.Recover(logger),
			middleware.Compress(5),
		),
		handlers.WithImageRoutes(imageHandlers.Routes),
		handlers.WithSEORoutes(seoHandlers.Routes),
		handlers.WithPageRoutes(seoHandlers.PageRoutes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("airtools web listening",
			zap.String("api", cfg.API.BaseURL()),
			zap.Duration("image_cache_ttl", cache.TTL()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
