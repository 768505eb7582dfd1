package main

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/roomplanner/libs/config"
	"github.com/md-rashed-zaman/roomplanner/libs/db"
	"github.com/md-rashed-zaman/roomplanner/libs/httpx"
	"github.com/md-rashed-zaman/roomplanner/libs/kafkax"
	otelx "github.com/md-rashed-zaman/roomplanner/libs/otel"
	"github.com/md-rashed-zaman/roomplanner/libs/runtime"
	"github.com/md-rashed-zaman/roomplanner/services/scheduling-service/internal/events"
	"github.com/md-rashed-zaman/roomplanner/services/scheduling-service/internal/grpcserver"
	"github.com/md-rashed-zaman/roomplanner/services/scheduling-service/internal/handlers"
	"github.com/md-rashed-zaman/roomplanner/services/scheduling-service/internal/metrics"
	"github.com/md-rashed-zaman/roomplanner/services/scheduling-service/internal/scheduling"
	"github.com/md-rashed-zaman/roomplanner/services/scheduling-service/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9095")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	loc, err := time.LoadLocation(config.String("TIMEZONE", "UTC"))
	if err != nil {
		panic(err)
	}
	defaults, err := workdayDefaults()
	if err != nil {
		panic(err)
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	m := metrics.MustNew(prometheus.DefaultRegisterer)
	engine := scheduling.NewEngine(storage.NewRepository(pool), logger, m, scheduling.Config{
		Defaults:    defaults,
		Location:    loc,
		MaxParallel: config.Int("SCHEDULING_MAX_PARALLEL", 8),
	})

	brokers := config.String("KAFKA_BROKERS", "")
	publisher := events.NewPublisher(logger, m, events.Config{
		Brokers: brokers,
		Topic:   config.String("KAFKA_SUGGESTIONS_TOPIC", events.SuggestionsComputedType),
	})
	publisherDone := make(chan struct{})
	go func() {
		defer close(publisherDone)
		publisher.Run(ctx)
	}()

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if publisher.Enabled() {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	var rdb *redis.Client
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/metrics", promhttp.Handler())
	handlers.NewAvailabilityHandler(engine, publisher, logger, loc).Register(mux)

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods:   config.List("CORS_ALLOWED_METHODS", "GET,OPTIONS"),
			AllowedHeaders:   config.List("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id"),
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           time.Duration(positive(config.Int("CORS_MAX_AGE_SECONDS", 600), 600)) * time.Second,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(positive(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20), 1<<20))),
		httpx.WithTimeout(time.Duration(positive(config.Int("REQUEST_TIMEOUT_SECONDS", 10), 10))*time.Second),
		rateLimiter(logger, rdb),
	)
	handler = otelhttp.NewHandler(handler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	var grpcStopped <-chan struct{}
	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Error("grpc server failed to start", "err", err)
		closed := make(chan struct{})
		close(closed)
		grpcStopped = closed
	} else {
		grpcStopped = grpcserver.Start(ctx, logger, lis, engine, loc)
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")

	for _, done := range []<-chan struct{}{grpcStopped, publisherDone} {
		select {
		case <-done:
		case <-shutdownCtx.Done():
			logger.Warn("shutdown timed out")
			return
		}
	}
}
