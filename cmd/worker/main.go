package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/suPer8Hu/yt-assistant/internal/chat"
	"github.com/suPer8Hu/yt-assistant/internal/config"
	"github.com/suPer8Hu/yt-assistant/internal/db"
	"github.com/suPer8Hu/yt-assistant/internal/logging"
	"github.com/suPer8Hu/yt-assistant/internal/metrics"
	"github.com/suPer8Hu/yt-assistant/internal/store/rabbitmq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Log, "yt-assistant-worker")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if !cfg.Exchange.Enabled() || !cfg.Exchange.Queued() {
		logger.Fatal("worker needs DB_DSN and RABBIT_URL")
	}

	gdb, err := db.Connect(cfg.Exchange.DBDriver, cfg.Exchange.DBDSN)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	repo := chat.NewRepo(gdb)
	if err := repo.AutoMigrate(); err != nil {
		logger.Fatal("migrate exchange table", zap.Error(err))
	}

	conn, err := amqp.Dial(cfg.Exchange.RabbitURL)
	if err != nil {
		logger.Fatal("rabbit dial", zap.Error(err))
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("rabbit channel", zap.Error(err))
	}
	defer ch.Close()

	queue := cfg.Exchange.RabbitQueue
	if err := rabbitmq.DeclareTopology(ch, queue); err != nil {
		logger.Fatal("queue declare", zap.Error(err))
	}

	//  strict concurrency control
	concurrency := cfg.Exchange.WorkerConcurrency

	if err := ch.Qos(concurrency, 0, false); err != nil {
		logger.Fatal("qos", zap.Error(err))
	}

	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		logger.Fatal("consume", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	retrier := rabbitmq.NewRetrier(ch, queue, cfg.Exchange.WorkerMaxRetries, cfg.Exchange.WorkerRetryDelay)

	logger.Info("worker started",
		zap.String("queue", queue),
		zap.Int("concurrency", concurrency),
		zap.Int("max_retries", cfg.Exchange.WorkerMaxRetries),
	)

	// worker pool
	deliveries := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range deliveries {
				handleDelivery(ctx, logger.With(zap.Int("worker", workerID)), repo, retrier, d)
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutting down")
			close(deliveries)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				logger.Warn("delivery channel closed")
				close(deliveries)
				wg.Wait()
				return
			}
			deliveries <- d
		}
	}
}

// handleDelivery stores one queued exchange. Malformed bodies go straight to
// the DLQ. Failed inserts go through the retry queue until they run out of
// attempts, then to the DLQ.
func handleDelivery(ctx context.Context, logger *zap.Logger, repo *chat.Repo, retrier *rabbitmq.Retrier, d amqp.Delivery) {
	e, err := rabbitmq.DecodeExchange(d.Body)
	if err != nil {
		logger.Warn("bad message", zap.String("message_id", d.MessageId), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	if err := storeExchange(ctx, repo, e); err != nil {
		metrics.ExchangesRecordedTotal.WithLabelValues(metrics.SinkDB, metrics.StatusError).Inc()
		attempt := rabbitmq.RetryCount(d)

		retried, rerr := retrier.Retry(ctx, d)
		if retried {
			logger.Warn("store exchange failed, retrying",
				zap.String("exchange_id", e.ID),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			if rerr != nil {
				logger.Warn("ack failed", zap.String("exchange_id", e.ID), zap.Error(rerr))
			}
			return
		}

		logger.Error("store exchange failed",
			zap.String("exchange_id", e.ID),
			zap.Int("attempt", attempt+1),
			zap.Duration("cost", time.Since(start)),
			zap.Error(err),
			zap.NamedError("retry_error", rerr),
		)
		_ = d.Nack(false, false)
		return
	}
	metrics.ExchangesRecordedTotal.WithLabelValues(metrics.SinkDB, metrics.StatusSuccess).Inc()

	if cost := time.Since(start); cost > 500*time.Millisecond {
		logger.Info("slow exchange insert", zap.String("exchange_id", e.ID), zap.Duration("cost", cost))
	}

	if err := d.Ack(false); err != nil {
		logger.Warn("ack failed", zap.String("exchange_id", e.ID), zap.Error(err))
	}
}

// storeExchange lets an in-flight insert finish during shutdown.
func storeExchange(ctx context.Context, repo *chat.Repo, e *chat.Exchange) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return repo.InsertExchange(cctx, e)
}
