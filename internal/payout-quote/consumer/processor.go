package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-match-arena/internal/arena/match"
	"github.com/radieske/live-match-arena/internal/arena/wager"
	"github.com/radieske/live-match-arena/internal/shared/kafka"
	"github.com/radieske/live-match-arena/pkg/contracts/events"
)

// MessageReader é o subconjunto de *kafka.Reader usado pelo worker (fetch + commit explícito).
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// BetLister lê o ledger de apostas da partida (store da arena, somente leitura).
type BetLister interface {
	ListBets(ctx context.Context, matchID string) ([]match.Bet, error)
}

var errBadMessage = errors.New("invalid match_finished message")

// Processor consome match_finished, calcula as cotações pari-mutuel e publica payout_quoted.
// Mensagem que falha depois das tentativas vai para a DLQ e é commitada.
type Processor struct {
	Log    *zap.Logger
	Reader MessageReader
	Bets   BetLister
	Quotes kafka.MessageWriter
	DLQ    kafka.MessageWriter // opcional

	Retries int
	Backoff time.Duration

	OnConsumed  func()       // métricas (counter++)
	OnPublished func()       // métricas
	OnDLQ       func()       // métricas
	OnError     func(string) // métricas por fase
}

// Run inicia o loop principal de consumo até ctx terminar
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka fetch failed", zap.Error(err))
			p.stage("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		if err := p.Handle(ctx, m); err != nil {
			// sem DLQ e sem sucesso: não commita, a mensagem volta no próximo rebalance
			p.Log.Error("process match_finished", zap.ByteString("key", m.Key), zap.Error(err))
			continue
		}
		if err := p.Reader.CommitMessages(ctx, m); err != nil {
			p.Log.Warn("kafka commit failed", zap.Error(err))
			p.stage("commit")
		}
	}
}

// Handle processa uma mensagem. Retorna erro só quando ela não foi nem publicada nem enviada à DLQ.
func (p *Processor) Handle(ctx context.Context, m kafka.Message) error {
	var ev events.MatchFinished
	if err := json.Unmarshal(m.Value, &ev); err != nil || ev.MatchID == "" {
		p.stage("decode")
		return p.deadLetter(ctx, m, errBadMessage)
	}

	var err error
	for i := 0; i <= p.Retries; i++ {
		if i > 0 {
			// backoff linear
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i) * p.Backoff):
			}
		}
		if err = p.processOne(ctx, ev); err == nil {
			if p.OnPublished != nil {
				p.OnPublished()
			}
			return nil
		}
		p.Log.Warn("payout quote attempt failed", zap.String("match_id", ev.MatchID), zap.Int("attempt", i+1), zap.Error(err))
	}
	return p.deadLetter(ctx, m, err)
}

func (p *Processor) processOne(ctx context.Context, ev events.MatchFinished) error {
	bets, err := p.Bets.ListBets(ctx, ev.MatchID)
	if err != nil {
		p.stage("store")
		return fmt.Errorf("list bets: %w", err)
	}
	out := Build(ev, bets, time.Now())
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	if err := kafka.WriteJSON(ctx, p.Quotes, ev.MatchID, b); err != nil {
		p.stage("publish")
		return fmt.Errorf("publish payout_quoted: %w", err)
	}
	p.Log.Info("payout quoted",
		zap.String("match_id", ev.MatchID),
		zap.String("winner_side", ev.WinnerSide),
		zap.Int("lines", len(out.Lines)),
		zap.Int64("total_pot", out.TotalPot),
	)
	return nil
}

// Build monta o evento payout_quoted a partir do ledger da partida.
func Build(ev events.MatchFinished, bets []match.Bet, now time.Time) events.PayoutQuoted {
	quotes := wager.QuotePayouts(bets, match.Side(ev.WinnerSide))
	lines := make([]events.PayoutLine, 0, len(quotes))
	for _, q := range quotes {
		lines = append(lines, events.PayoutLine{BetID: q.BetID, BettorID: q.BettorID, Stake: q.Stake, Payout: q.Payout})
	}
	return events.PayoutQuoted{
		MatchID:    ev.MatchID,
		WinnerSide: ev.WinnerSide,
		TotalPot:   wager.Totals(bets).Total,
		Lines:      lines,
		Ts:         now,
	}
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, cause error) error {
	if p.DLQ == nil {
		return cause
	}
	if err := p.DLQ.WriteMessages(ctx, kafka.Message{Key: m.Key, Value: m.Value, Time: time.Now()}); err != nil {
		p.stage("dlq")
		return fmt.Errorf("dlq after %v: %w", cause, err)
	}
	if p.OnDLQ != nil {
		p.OnDLQ()
	}
	p.Log.Warn("match_finished sent to dlq", zap.ByteString("key", m.Key), zap.Error(cause))
	return nil
}

func (p *Processor) stage(s string) {
	if p.OnError != nil {
		p.OnError(s)
	}
}
