package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ndquoc/ticket-rush/internal/adapter/handler"
	"github.com/ndquoc/ticket-rush/internal/adapter/queue"
	"github.com/ndquoc/ticket-rush/internal/adapter/storage"
	"github.com/ndquoc/ticket-rush/internal/auth"
	"github.com/ndquoc/ticket-rush/internal/config"
	"github.com/ndquoc/ticket-rush/internal/core/service"
	"github.com/ndquoc/ticket-rush/internal/middleware"
)

func init() {
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load config")
	}

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to open mysql")
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		zlog.Fatal().Err(err).Msg("failed to ping mysql")
	}
	zlog.Info().Msg("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		zlog.Fatal().Err(err).Msg("failed to connect redis")
	}
	zlog.Info().Msg("connected to redis")

	// Adapters
	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)
	reservations := queue.NewKafkaQueue(cfg.Kafka.Brokers, cfg.Kafka.Topic)

	// Services
	purchaseSvc := service.NewPurchaseService(mysqlAdapter, redisAdapter, reservations)
	ticketSvc := service.NewTicketService(mysqlAdapter, redisAdapter)
	authSvc := auth.NewService(cfg.JWTSecret, cfg.Accounts)
	commitWorker := service.NewCommitWorker(mysqlAdapter, redisAdapter)

	// HTTP
	if os.Getenv("ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	rateLimiter := middleware.NewRateLimiter(cfg.PurchaseRatePerMinute, cfg.PurchaseRateBurst)
	httpHandler := handler.NewHTTPHandler(purchaseSvc, ticketSvc, authSvc)
	httpHandler.Register(router, rateLimiter.Handler())

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Embedded commit-worker pool; cmd/worker runs the same consumers
	// standalone when the API and the workers scale separately.
	consumers := make([]*queue.KafkaConsumer, 0, cfg.WorkerCount)
	for i := 0; i < cfg.WorkerCount; i++ {
		consumer := queue.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, commitWorker.HandleReservation)
		consumers = append(consumers, consumer)
		g.Go(func() error {
			err := consumer.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	zlog.Info().Int("count", cfg.WorkerCount).Msg("commit workers started")

	g.Go(func() error {
		zlog.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zlog.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zlog.Error().Err(err).Msg("server exited with error")
	}

	for _, consumer := range consumers {
		consumer.Close()
	}
	reservations.Close()
	rdb.Close()
	db.Close()
	zlog.Info().Msg("connections closed")
}
