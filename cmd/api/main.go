package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handler"
	"storefront/internal/notify"
	"storefront/internal/pricing"
	"storefront/internal/promo"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting storefront API server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Initialize repositories
	productRepo := repository.NewProductRepository(pool, logger)
	cartRepo := repository.NewCartRepository(pool, logger)
	userRepo := repository.NewUserRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	txRunner := repository.NewTxRunner(pool, cfg.Order.TxTimeout, logger)

	resolver, err := newPromoResolver(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize promo resolver: %w", err)
	}
	if resolver != nil {
		defer resolver.Close()
	}

	queue, closeQueue, err := newNotifyQueue(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize notification queue: %w", err)
	}
	defer closeQueue()

	hub := notify.NewHub(logger)
	defer hub.Close()

	dispatcher := notify.NewDispatcher(queue, notify.DispatcherConfig{
		Workers:     cfg.Notify.Workers,
		MaxAttempts: cfg.Notify.MaxAttempts,
		BaseBackoff: cfg.Notify.BaseBackoff,
	}, logger)

	sinkClosers, err := registerSinks(dispatcher, hub, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize notification sinks: %w", err)
	}
	defer func() {
		for _, c := range sinkClosers {
			if err := c.Close(); err != nil {
				logger.Warn().Err(err).Msg("failed to close notification sink")
			}
		}
	}()

	dispatcher.Start(ctx)

	// Initialize services
	productService := service.NewProductService(productRepo, logger)
	orderService := service.NewOrderService(service.OrderDeps{
		Tx:           txRunner,
		Orders:       orderRepo,
		Products:     productRepo,
		Carts:        cartRepo,
		Users:        userRepo,
		Pricing:      pricing.NewCalculator(cfg.Order),
		Promo:        resolver,
		Notifier:     dispatcher,
		MaxCartItems: cfg.Order.MaxCartItems,
	}, logger)

	mux := router.New(router.Handlers{
		Health:        handler.NewHealthHandler(pool, logger),
		Products:      handler.NewProductHandler(productService, logger),
		Orders:        handler.NewOrderHandler(orderService, logger),
		Notifications: handler.NewNotificationHandler(hub, logger),
	}, cfg.Auth, logger)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Strs("sinks", dispatcher.Sinks()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Websocket connections are hijacked and are not tracked by Shutdown.
		hub.Close()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		if err := dispatcher.Stop(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("notification dispatcher did not drain in time")
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// newPromoResolver loads the configured promo catalogues, reading from S3 first when enabled.
// It returns a nil resolver when no catalogues are configured.
func newPromoResolver(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (promo.Resolver, error) {
	if len(cfg.Promo.Files) == 0 {
		logger.Info().Msg("no promo catalogues configured, promo codes will be rejected")
		return nil, nil
	}

	var s3Loader promo.Loader
	if cfg.S3.Enabled {
		loader, err := promo.NewS3Loader(ctx, cfg.S3.Bucket, cfg.S3.Region, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 loader, falling back to local file system only")
		} else {
			s3Loader = loader
		}
	} else {
		logger.Info().Msg("using local file system for promo catalogues (S3 disabled)")
	}

	loader := promo.NewFallbackLoader(s3Loader, promo.NewFileLoader(logger), cfg.S3.Prefix, logger)

	return promo.NewResolver(ctx, promo.ResolverConfig{
		Files:         cfg.Promo.Files,
		MinMatchCount: cfg.Promo.MinMatchCount,
	}, loader, logger)
}

// newNotifyQueue builds the queue selected by configuration. The returned func releases it.
func newNotifyQueue(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (notify.Queue, func(), error) {
	if cfg.Notify.Queue != "redis" {
		queue := notify.NewMemoryQueue(cfg.Notify.BufferSize)
		return queue, func() { _ = queue.Close() }, nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Str("addr", opts.Addr).Msg("using redis notification queue")

	queue := notify.NewRedisQueue(client, notify.DefaultRedisQueueKey, logger)
	return queue, func() {
		_ = queue.Close()
		if err := client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			logger.Warn().Err(err).Msg("failed to close redis client")
		}
	}, nil
}

// registerSinks attaches every configured sink to the dispatcher and returns the ones that
// hold connections.
func registerSinks(d *notify.Dispatcher, hub *notify.Hub, cfg *config.Config, logger zerolog.Logger) ([]io.Closer, error) {
	var closers []io.Closer

	d.Register("log", notify.NewLogSink(logger))
	d.Register("websocket", hub)

	if cfg.SMTP.Host != "" {
		email, err := notify.NewEmailSink(cfg.SMTP, logger)
		if err != nil {
			return nil, err
		}
		d.Register("email", email)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		stream := notify.NewKafkaSink(cfg.Kafka, logger)
		d.Register("kafka", stream)
		closers = append(closers, stream)
	}

	return closers, nil
}
