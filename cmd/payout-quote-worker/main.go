package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/live-match-arena/internal/arena/store"
	"github.com/radieske/live-match-arena/internal/payout-quote/consumer"
	"github.com/radieske/live-match-arena/internal/shared/config"
	"github.com/radieske/live-match-arena/internal/shared/kafka"
	"github.com/radieske/live-match-arena/internal/shared/logger"
	"github.com/radieske/live-match-arena/internal/shared/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config: %w", err))
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Ledger de apostas: mesmo store da arena, só leitura
	st, closeStore, err := store.Open(ctx, store.Options{
		Driver:      cfg.StoreDriver,
		PostgresDSN: cfg.PostgresDSN,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		log.Fatal("match store connect", zap.Error(err))
	}
	defer closeStore()

	// Kafka consumer: consome match_finished (consumer group payout-quote)
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicMatchFinished, "payout-quote")
	defer reader.Close()

	// Kafka producer: publica payout_quoted e, opcionalmente, envia para DLQ
	quotesWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPayoutQuoted)
	defer quotesWriter.Close()

	m := metrics.NewWorker(prometheus.DefaultRegisterer)
	proc := &consumer.Processor{
		Log:         log,
		Reader:      reader,
		Bets:        st,
		Quotes:      quotesWriter,
		Retries:     3,
		Backoff:     300 * time.Millisecond,
		OnConsumed:  m.Consumed.Inc,
		OnPublished: m.Published.Inc,
		OnDLQ:       m.DLQ.Inc,
		OnError:     func(stage string) { m.ErrorsBy.WithLabelValues(stage).Inc() },
	}
	if cfg.TopicMatchFinishedDLQ != "" {
		dlqWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMatchFinishedDLQ)
		defer dlqWriter.Close()
		proc.DLQ = dlqWriter
	}

	// Servidor HTTP para métricas e health check
	msrv := metrics.NewServer(cfg.MetricsPort, metrics.Checks(map[string]metrics.HealthFunc{"store": st.Ping}))

	log.Info("payout-quote-worker started",
		zap.String("consume", cfg.TopicMatchFinished),
		zap.String("publish", cfg.TopicPayoutQuoted),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("metrics/health listening", zap.String("addr", msrv.Addr))
		if err := msrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := proc.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		return msrv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		log.Error("payout-quote-worker stopped with error", zap.Error(err))
		return
	}
	log.Info("payout-quote-worker stopped")
}
