package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/live-match-arena/internal/arena-simulator/viewer"
	"github.com/radieske/live-match-arena/internal/shared/config"
	"github.com/radieske/live-match-arena/internal/shared/logger"
	"github.com/radieske/live-match-arena/internal/shared/metrics"
)

var (
	// Métricas Prometheus do lado dos viewers simulados
	framesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_frames_received_total",
		Help: "Frames recebidos pelos viewers simulados",
	}, []string{"type"})
	actionsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_actions_sent_total",
		Help: "Comandos enviados pelos viewers simulados",
	}, []string{"type"})
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

	prometheus.MustRegister(framesReceived, actionsSent)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if cfg.SimDuration > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.SimDuration)
		defer cancel()
	}

	// Sem SIM_MATCH_ID, cria uma partida de demonstração já ao vivo
	matchID := cfg.SimMatchID
	if matchID == "" {
		client := &http.Client{Timeout: 5 * time.Second}
		matchID, err = viewer.PrepareMatch(ctx, client, cfg.ArenaURL, "simulated debate "+time.Now().Format(time.Kitchen))
		if err != nil {
			log.Fatal("prepare match", zap.Error(err))
		}
		log.Info("demo match ready", zap.String("match_id", matchID))
	}

	wsURL := strings.Replace(cfg.ArenaURL, "http", "ws", 1) + "/ws"

	g, gctx := errgroup.WithContext(ctx)
	if cfg.MetricsPort != "" {
		msrv := metrics.NewServer(cfg.MetricsPort, func(context.Context) error { return nil })
		g.Go(func() error {
			if err := msrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return msrv.Shutdown(context.Background())
		})
	}

	for i := 0; i < cfg.SimViewers; i++ {
		v := &viewer.Viewer{
			BaseURL:  wsURL,
			MatchID:  matchID,
			Every:    time.Duration(500+rand.Intn(1500)) * time.Millisecond,
			Log:      log,
			Rand:     rand.New(rand.NewSource(time.Now().UnixNano() + int64(i))),
			OnFrame:  func(t string) { framesReceived.WithLabelValues(t).Inc() },
			OnAction: func(t string) { actionsSent.WithLabelValues(t).Inc() },
		}
		// um em cada cinco assiste anônimo
		if i%5 != 4 {
			v.UserID = fmt.Sprintf("sim-viewer-%03d", i)
			v.Role = "user"
		}
		// os participantes da partida de demonstração também entram, para usar o mic
		switch i {
		case 0:
			v.UserID, v.Role = viewer.SimParticipant1, "participant"
		case 1:
			v.UserID, v.Role = viewer.SimParticipant2, "participant"
		}
		g.Go(func() error {
			v.Start(gctx)
			return nil
		})
	}

	log.Info("arena-simulator started", zap.Int("viewers", cfg.SimViewers), zap.String("match_id", matchID))
	if err := g.Wait(); err != nil {
		log.Error("simulator stopped with error", zap.Error(err))
	}
	log.Info("arena-simulator stopped")
}
