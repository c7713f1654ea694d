// Standalone commit-worker binary. Runs the same consumer group as the
// workers embedded in cmd/server, so commit capacity scales independently
// of the API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ndquoc/ticket-rush/internal/adapter/queue"
	"github.com/ndquoc/ticket-rush/internal/adapter/storage"
	"github.com/ndquoc/ticket-rush/internal/config"
	"github.com/ndquoc/ticket-rush/internal/core/service"
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

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to open mysql")
	}
	db.SetMaxOpenConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		zlog.Fatal().Err(err).Msg("failed to ping mysql")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		zlog.Fatal().Err(err).Msg("failed to connect redis")
	}

	commitWorker := service.NewCommitWorker(storage.NewMySQLAdapter(db), storage.NewRedisAdapter(rdb))

	g, gctx := errgroup.WithContext(ctx)
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

	if err := g.Wait(); err != nil {
		zlog.Error().Err(err).Msg("worker exited with error")
	}

	for _, consumer := range consumers {
		consumer.Close()
	}
	rdb.Close()
	db.Close()
	zlog.Info().Msg("worker stopped")
}
