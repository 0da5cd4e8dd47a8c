package metrics

import "github.com/prometheus/client_golang/prometheus"

// Arena agrupa os coletores do arena-service.
// Os componentes recebem só callbacks; quem liga uma coisa na outra é o main.
type Arena struct {
	FramesDelivered *prometheus.CounterVec
	FramesDropped   prometheus.Counter
	Gaps            *prometheus.CounterVec
	Subscribers     prometheus.Gauge
	Connections     prometheus.Gauge
	Commands        *prometheus.CounterVec
	BetsPlaced      prometheus.Counter
	PresenceExpired prometheus.Counter
	KafkaPublished  *prometheus.CounterVec
	KafkaErrors     *prometheus.CounterVec
	BusPublishErr   prometheus.Counter
}

// NewArena cria e registra os coletores em reg (prometheus.DefaultRegisterer no main).
func NewArena(reg prometheus.Registerer) *Arena {
	m := &Arena{
		FramesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "arena_frames_delivered_total", Help: "frames entregues às filas dos viewers"}, []string{"type"}),
		FramesDropped:   prometheus.NewCounter(prometheus.CounterOpts{Name: "arena_frames_dropped_total", Help: "frames descartados por fila cheia"}),
		Gaps:            prometheus.NewCounterVec(prometheus.CounterOpts{Name: "arena_resync_signals_total", Help: "resync_required enviados por motivo"}, []string{"reason"}),
		Subscribers:     prometheus.NewGauge(prometheus.GaugeOpts{Name: "arena_subscribers", Help: "inscrições ativas no hub"}),
		Connections:     prometheus.NewGauge(prometheus.GaugeOpts{Name: "arena_ws_connections", Help: "conexões WebSocket abertas"}),
		Commands:        prometheus.NewCounterVec(prometheus.CounterOpts{Name: "arena_commands_total", Help: "comandos por tipo e resultado"}, []string{"cmd", "outcome"}),
		BetsPlaced:      prometheus.NewCounter(prometheus.CounterOpts{Name: "arena_bets_placed_total", Help: "apostas aceitas"}),
		PresenceExpired: prometheus.NewCounter(prometheus.CounterOpts{Name: "arena_presence_expired_total", Help: "entradas de presença removidas pelo sweeper"}),
		KafkaPublished:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "arena_kafka_published_total", Help: "eventos publicados no kafka"}, []string{"topic"}),
		KafkaErrors:     prometheus.NewCounterVec(prometheus.CounterOpts{Name: "arena_kafka_errors_total", Help: "falhas de publicação no kafka"}, []string{"topic"}),
		BusPublishErr:   prometheus.NewCounter(prometheus.CounterOpts{Name: "arena_bus_publish_errors_total", Help: "falhas de publish no redis pub/sub"}),
	}
	reg.MustRegister(
		m.FramesDelivered, m.FramesDropped, m.Gaps, m.Subscribers, m.Connections,
		m.Commands, m.BetsPlaced, m.PresenceExpired, m.KafkaPublished, m.KafkaErrors, m.BusPublishErr,
	)
	return m
}

// Command é o callback de service.Service.OnCommand.
func (m *Arena) Command(cmd, outcome string) {
	m.Commands.WithLabelValues(cmd, outcome).Inc()
	if cmd == "bet" && outcome == "ok" {
		m.BetsPlaced.Inc()
	}
}

// Worker agrupa os coletores do payout-quote-worker.
type Worker struct {
	Consumed  prometheus.Counter
	Published prometheus.Counter
	ErrorsBy  *prometheus.CounterVec
	DLQ       prometheus.Counter
}

func NewWorker(reg prometheus.Registerer) *Worker {
	w := &Worker{
		Consumed:  prometheus.NewCounter(prometheus.CounterOpts{Name: "payout_quote_messages_consumed_total", Help: "mensagens match_finished consumidas"}),
		Published: prometheus.NewCounter(prometheus.CounterOpts{Name: "payout_quote_published_total", Help: "cotações publicadas"}),
		ErrorsBy:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "payout_quote_errors_total", Help: "erros por estágio"}, []string{"stage"}),
		DLQ:       prometheus.NewCounter(prometheus.CounterOpts{Name: "payout_quote_dlq_total", Help: "mensagens enviadas para a DLQ"}),
	}
	reg.MustRegister(w.Consumed, w.Published, w.ErrorsBy, w.DLQ)
	return w
}
