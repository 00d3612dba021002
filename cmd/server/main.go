package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/order-reservation/internal/adapter/events"
	"github.com/rl1809/order-reservation/internal/adapter/handler"
	"github.com/rl1809/order-reservation/internal/adapter/storage"
	"github.com/rl1809/order-reservation/internal/config"
	"github.com/rl1809/order-reservation/internal/core/domain"
	"github.com/rl1809/order-reservation/internal/core/service"
	"github.com/rl1809/order-reservation/internal/logging"
	"github.com/rl1809/order-reservation/internal/port"
)

type stores struct {
	ledger  port.StockLedger
	orders  port.OrderRepository
	catalog port.Catalog
	idem    port.IdempotencyStore
	closers []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	otel.SetTextMapPropagator(propagation.TraceContext{})

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open stores", "store", cfg.Store, "err", err)
		os.Exit(1)
	}
	defer st.close()

	var publisher port.EventPublisher = events.NewLogPublisher(log)
	if len(cfg.KafkaBrokers) > 0 {
		writer := events.NewWriter(cfg.KafkaBrokers)
		defer writer.Close()
		publisher = events.NewKafkaPublisher(log, writer, cfg.EventsTopic)
		log.Info("publishing order events to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.EventsTopic)
	}

	opts := []service.Option{service.WithLogger(log)}
	if st.idem != nil {
		opts = append(opts, service.WithIdempotency(st.idem))
	}
	orderService := service.NewOrderService(st.ledger, st.orders, cfg.EventQueueSize, opts...)

	// Event workers drain the queue until the service is closed.
	var workers errgroup.Group
	if queue := orderService.GetEventQueue(); queue != nil {
		for i := 0; i < cfg.EventWorkers; i++ {
			i := i
			workers.Go(func() error {
				workerLoop(i, queue, publisher, log)
				return nil
			})
		}
		log.Info("started event workers", "count", cfg.EventWorkers)
	}

	grpcServer := grpc.NewServer()
	handler.RegisterOrderServiceServer(grpcServer, handler.NewGRPCHandler(orderService, log))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Error("failed to listen", "addr", cfg.GRPCAddr, "err", err)
		os.Exit(1)
	}

	go func() {
		log.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("gRPC server error", "err", err)
			cancel()
		}
	}()

	httpHandler := handler.NewHTTPHandler(orderService, st.catalog, log)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpHandler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown error", "err", err)
	}
	log.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	log.Info("gRPC server stopped")

	orderService.Close()
	_ = workers.Wait()
	log.Info("workers stopped")
}

func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (*stores, error) {
	st := &stores{}

	switch cfg.Store {
	case config.StoreMemory:
		mem := storage.NewMemoryAdapter()
		st.ledger, st.orders, st.catalog, st.idem = mem, mem, mem, mem
		return st, nil

	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.PGURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		st.closers = append(st.closers, pool.Close)
		if err := pool.Ping(ctx); err != nil {
			st.close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		pg := storage.NewPostgresAdapter(log, pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			st.close()
			return nil, err
		}
		st.ledger, st.orders, st.catalog = pg, pg, pg
		log.Info("connected to postgres")

	case config.StoreMySQL, config.StoreRedis:
		db, err := openMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func() { db.Close() })
		mysqlAdapter := storage.NewMySQLAdapter(db)
		if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
			st.close()
			return nil, err
		}
		st.ledger, st.orders, st.catalog = mysqlAdapter, mysqlAdapter, mysqlAdapter
		log.Info("connected to mysql")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		if cfg.Store == config.StoreRedis {
			st.close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Warn("redis unavailable, idempotency keys disabled", "addr", cfg.RedisAddr, "err", err)
		return st, nil
	}
	st.closers = append(st.closers, func() { rdb.Close() })
	log.Info("connected to redis")

	redisAdapter := storage.NewRedisAdapter(rdb).WithKeyTTL(cfg.IdempotencyTTL)
	st.idem = redisAdapter
	if cfg.Store == config.StoreRedis {
		st.ledger, st.catalog = redisAdapter, redisAdapter
	}
	return st, nil
}

func openMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

func workerLoop(id int, queue <-chan domain.Event, publisher port.EventPublisher, log *slog.Logger) {
	for event := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		if err := publisher.Publish(ctx, event); err != nil {
			if event.Type == domain.EventOrderReservationIncomplete {
				log.Error("CRITICAL: reservation gap not published, reconcile manually",
					"worker", id,
					"event_id", event.ID,
					"user_id", event.UserID,
					"reason", event.Reason,
					"err", err,
				)
			} else {
				log.Error("failed to publish event", "worker", id, "event_id", event.ID, "err", err)
			}
		}

		cancel()
	}
}
