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
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	snapcache "github.com/radieske/live-match-arena/internal/arena-service/cache"
	httpapi "github.com/radieske/live-match-arena/internal/arena-service/http"
	"github.com/radieske/live-match-arena/internal/arena-service/ws"
	"github.com/radieske/live-match-arena/internal/arena/fanout"
	"github.com/radieske/live-match-arena/internal/arena/presence"
	"github.com/radieske/live-match-arena/internal/arena/service"
	"github.com/radieske/live-match-arena/internal/arena/settlement"
	"github.com/radieske/live-match-arena/internal/arena/store"
	"github.com/radieske/live-match-arena/internal/shared/cache"
	"github.com/radieske/live-match-arena/internal/shared/config"
	"github.com/radieske/live-match-arena/internal/shared/kafka"
	"github.com/radieske/live-match-arena/internal/shared/logger"
	"github.com/radieske/live-match-arena/internal/shared/metrics"
	"github.com/radieske/live-match-arena/pkg/contracts/events"
)

func main() {
	// carrega config
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config: %w", err))
	}

	// inicia logger
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	log.Info("starting service",
		zap.String("store", cfg.StoreDriver),
		zap.String("bus", cfg.ArenaBus),
		zap.String("presence", cfg.PresenceBackend),
	)

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Match Store
	st, closeStore, err := store.Open(ctx, store.Options{
		Driver:      cfg.StoreDriver,
		PostgresDSN: cfg.PostgresDSN,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		log.Fatal("failed to open match store", zap.Error(err))
	}
	defer closeStore()
	log.Info("match store ready")

	// Redis só quando algum componente usa
	var rdb *redis.Client
	if cfg.ArenaBus != "local" || cfg.PresenceBackend == "redis" || cfg.SnapshotCacheTTL > 0 {
		rdb, err = cache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal("failed to connect redis", zap.Error(err))
		}
		defer rdb.Close()
		log.Info("redis connected")
	}

	m := metrics.NewArena(prometheus.DefaultRegisterer)

	// Fan-out: hub local + bus entre réplicas
	hub := fanout.NewHub(cfg.SubscriberBuffer)
	hub.OnDelivered = func(t events.Type) { m.FramesDelivered.WithLabelValues(string(t)).Inc() }
	hub.OnDropped = func(string) { m.FramesDropped.Inc() }
	hub.OnGap = func(reason string) { m.Gaps.WithLabelValues(reason).Inc() }
	hub.OnSubscribers = func(delta int) { m.Subscribers.Add(float64(delta)) }

	var (
		bus      fanout.Bus
		redisBus *fanout.RedisBus
	)
	switch cfg.ArenaBus {
	case "local":
		bus = fanout.NewLocalBus(hub)
	default:
		redisBus = fanout.NewRedisBus(rdb, hub, log)
		redisBus.OnPublishError = m.BusPublishErr.Inc
		bus = redisBus
	}

	// Presença
	var backend presence.Backend = presence.NewMemory()
	if cfg.PresenceBackend == "redis" {
		backend = presence.NewRedis(rdb, 4*cfg.PresenceStaleAfter)
	}
	tracker := presence.NewTracker(backend, cfg.PresenceStaleAfter)

	// Kafka: match_finished (settlement hook) e arena_bet_placed
	finishedWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMatchFinished)
	defer finishedWriter.Close()
	betsWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced)
	defer betsWriter.Close()
	notifier := settlement.NewKafkaNotifier(log, finishedWriter, betsWriter, cfg.SettlementWorkers)
	notifier.OnPublished = func(topic string) { m.KafkaPublished.WithLabelValues(topic).Inc() }
	notifier.OnError = func(topic string) { m.KafkaErrors.WithLabelValues(topic).Inc() }

	svc := service.New(st, bus, tracker, log)
	svc.RecentChatLimit = cfg.RecentChatLimit
	svc.Hook = notifier
	svc.Bets = notifier
	svc.OnCommand = m.Command

	gw := ws.NewGateway(svc, hub, log, func(*http.Request) bool { return true })
	gw.PingInterval = cfg.PresencePingInterval
	gw.ChatWindow = cfg.RecentChatLimit
	gw.OnConnections = func(delta int) { m.Connections.Add(float64(delta)) }

	api := &httpapi.API{Arena: svc, WS: gw, Log: log}
	if rdb != nil && cfg.SnapshotCacheTTL > 0 {
		sc := snapcache.New(rdb, cfg.SnapshotCacheTTL)
		api.Cache = sc
		svc.Cache = sc
	}

	checks := map[string]metrics.HealthFunc{"store": st.Ping}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           withCORS(api.Router()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	msrv := metrics.NewServer(cfg.MetricsPort, metrics.Checks(checks))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", srv.Addr))
		return serve(srv)
	})
	g.Go(func() error {
		log.Info("metrics/health listening", zap.String("addr", msrv.Addr))
		return serve(msrv)
	})
	if redisBus != nil {
		g.Go(func() error { return redisBus.Run(gctx) })
	}
	g.Go(func() error {
		sweepPresence(gctx, log, svc, m, cfg.PresenceSweepInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = srv.Shutdown(sctx)
		_ = msrv.Shutdown(sctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("arena-service stopped with error", zap.Error(err))
	}
	// publicações pendentes do settlement saem antes de fechar os writers
	notifier.Close()
	log.Info("arena-service stopped")
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// sweepPresence remove conexões sem heartbeat e publica o clear de presença.
func sweepPresence(ctx context.Context, log *zap.Logger, svc *service.Service, m *metrics.Arena, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.SweepPresence(ctx)
			if err != nil {
				log.Warn("presence sweep failed", zap.Error(err))
			}
			m.PresenceExpired.Add(float64(n))
		}
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-Id, X-User-Role")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
