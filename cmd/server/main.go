package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"hatchseed/internal/events/relay"
	"hatchseed/internal/platform/config"
	"hatchseed/internal/platform/httpserver"
	"hatchseed/internal/platform/logger"
	"hatchseed/internal/platform/postgres"
	"hatchseed/internal/platform/redis"
	"hatchseed/internal/platform/tracing"
	"hatchseed/pkg/platform/audit/outbox"
	auditpostgres "hatchseed/pkg/platform/audit/store/postgres"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hatchseed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel, cfg.Environment)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownWait)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	checks := map[string]func(ctx context.Context) error{}

	st := memoryStores()
	var db *sql.DB
	if cfg.Database.URL != "" {
		db, err = postgres.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db, log); err != nil {
			return err
		}
		st = postgresStores(db)
		checks["postgres"] = db.PingContext
		log.Info("using postgres stores")
	} else {
		log.Warn("DATABASE_URL not set; state is in memory and lost on restart")
	}

	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		checks["redis"] = rdb.Health
	}

	a := buildApp(cfg, st, checks, log)
	defer func() {
		for _, closeFn := range a.closers {
			_ = closeFn()
		}
	}()

	srv := httpserver.New(cfg.Addr, a.router)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting hatchseed", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownWait)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return ignoreCanceled(a.retention.Run(gctx))
	})

	if rdb != nil {
		fanout := relay.New(rdb.Client, a.bus,
			relay.WithChannel(cfg.Events.RelayChannel),
			relay.WithBuffer(cfg.Events.RelayBuffer),
			relay.WithMetrics(a.eventsMetrics),
			relay.WithLogger(log),
		)
		g.Go(func() error {
			return ignoreCanceled(fanout.Run(gctx))
		})
		log.Info("event relay enabled", "channel", cfg.Events.RelayChannel, "instance", fanout.InstanceID())
	}

	if db != nil && len(cfg.Kafka.Brokers) > 0 {
		producer, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.Kafka.Brokers...),
			kgo.ClientID("hatchseed"),
		)
		if err != nil {
			return fmt.Errorf("kafka client: %w", err)
		}
		defer producer.Close()
		if err := outbox.EnsureTopic(ctx, producer, cfg.Kafka.AuditTopic, 3, -1); err != nil {
			return err
		}
		shipper := outbox.New(auditpostgres.New(db), producer, outbox.SQLTransactor(db), cfg.Kafka.AuditTopic,
			outbox.WithPollInterval(cfg.OutboxPoll),
			outbox.WithMetrics(outbox.NewMetrics()),
			outbox.WithLogger(log),
		)
		g.Go(func() error {
			return ignoreCanceled(shipper.Run(gctx))
		})
		log.Info("audit outbox relay enabled", "topic", cfg.Kafka.AuditTopic)
	} else if db != nil {
		log.Warn("KAFKA_BROKERS not set; audit events stay in the outbox table")
	}

	err = g.Wait()
	log.Info("hatchseed stopped")
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
