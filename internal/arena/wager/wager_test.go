package wager

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/radieske/live-match-arena/internal/arena/match"
)

func liveMatch() *match.Match {
	p2 := "B"
	return &match.Match{ID: "m", Status: match.StatusLive, Participant1ID: "A", Participant2ID: &p2}
}

func TestValidateBet(t *testing.T) {
	m := liveMatch()
	if err := ValidateBet(m, match.SideParticipant1, 10); err != nil {
		t.Fatalf("valid bet rejected: %v", err)
	}
	for _, stake := range []int64{0, -1, -500} {
		if err := ValidateBet(m, match.SideParticipant1, stake); !errors.Is(err, match.ErrInvalidStake) {
			t.Fatalf("stake %d: got %v", stake, err)
		}
	}

	if err := ValidateBet(m, match.SideParticipant1, MaxStake); err != nil {
		t.Fatalf("stake at limit rejected: %v", err)
	}
	for _, stake := range []int64{MaxStake + 1, math.MaxInt64} {
		if err := ValidateBet(m, match.SideParticipant1, stake); !errors.Is(err, match.ErrInvalidStake) {
			t.Fatalf("stake %d above limit: got %v", stake, err)
		}
	}

	m.Participant2ID = nil
	if err := ValidateBet(m, match.SideParticipant2, 10); !errors.Is(err, match.ErrInvalidSide) {
		t.Fatalf("empty slot: got %v", err)
	}
	if err := ValidateBet(m, match.Side("participant-3"), 10); !errors.Is(err, match.ErrInvalidSide) {
		t.Fatalf("unknown side: got %v", err)
	}

	m.Status = match.StatusFinished
	if err := ValidateBet(m, match.SideParticipant1, 10); !errors.Is(err, match.ErrMatchClosed) {
		t.Fatalf("finished: got %v", err)
	}
	if err := ValidateBet(m, match.SideParticipant1, 0); !errors.Is(err, match.ErrInvalidStake) {
		t.Fatalf("stake is checked first: got %v", err)
	}
}

func TestTotalsExact(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	var bets []match.Bet
	for i := 0; i < 1000; i++ {
		side := match.SideParticipant1
		if r.Intn(2) == 1 {
			side = match.SideParticipant2
		}
		bets = append(bets, match.Bet{ID: int64(i), Side: side, Stake: r.Int63n(1_000_000) + 1})

		p := Totals(bets)
		if p.Total != p.Participant1+p.Participant2 {
			t.Fatalf("after %d bets: total %d != %d + %d", i+1, p.Total, p.Participant1, p.Participant2)
		}
	}
}

func TestPotNeverWraps(t *testing.T) {
	p := Totals([]match.Bet{
		{ID: 1, Side: match.SideParticipant1, Stake: math.MaxInt64},
		{ID: 2, Side: match.SideParticipant1, Stake: math.MaxInt64},
		{ID: 3, Side: match.SideParticipant2, Stake: 1},
	})
	if p.Participant1 != math.MaxInt64 || p.Total != math.MaxInt64 || p.Participant2 != 1 {
		t.Fatalf("pot = %+v", p)
	}
	b := OddsBoard(p)
	if b.Participant1.Multiplier.IsNegative() || b.Participant2.Multiplier.IsNegative() {
		t.Fatalf("negative odds: %s / %s", b.Participant1.Display, b.Participant2.Display)
	}
	for _, q := range QuotePayouts([]match.Bet{
		{ID: 1, Side: match.SideParticipant1, Stake: math.MaxInt64},
		{ID: 2, Side: match.SideParticipant2, Stake: 1},
	}, match.SideParticipant1) {
		if q.Payout < 0 {
			t.Fatalf("negative payout: %+v", q)
		}
	}
}

func TestMultiplierScenario(t *testing.T) {
	p := Totals([]match.Bet{
		{ID: 1, BettorID: "C", Side: match.SideParticipant1, Stake: 100},
		{ID: 2, BettorID: "D", Side: match.SideParticipant2, Stake: 300},
	})
	if p.Participant1 != 100 || p.Participant2 != 300 || p.Total != 400 {
		t.Fatalf("pot = %+v", p)
	}

	b := OddsBoard(p)
	if b.Participant1.Display != "4.00" {
		t.Fatalf("multiplier(A) = %s", b.Participant1.Display)
	}
	if b.Participant2.Display != "1.33" {
		t.Fatalf("multiplier(B) = %s", b.Participant2.Display)
	}
}

func TestMultiplierNoOddsYet(t *testing.T) {
	p := Totals([]match.Bet{{ID: 1, Side: match.SideParticipant1, Stake: 50}})
	o := Multiplier(p, match.SideParticipant2)
	if o.Available {
		t.Fatalf("side without stake must not have odds")
	}
	if o.Display != "no odds yet" {
		t.Fatalf("display = %q", o.Display)
	}
	if got := Multiplier(Pot{}, match.SideParticipant1); got.Available {
		t.Fatalf("empty pot must not have odds")
	}
}

func TestQuotePayouts(t *testing.T) {
	bets := []match.Bet{
		{ID: 1, BettorID: "C", Side: match.SideParticipant1, Stake: 100},
		{ID: 2, BettorID: "D", Side: match.SideParticipant2, Stake: 300},
		{ID: 3, BettorID: "E", Side: match.SideParticipant2, Stake: 100},
	}

	q := QuotePayouts(bets, match.SideParticipant2)
	if len(q) != 2 {
		t.Fatalf("quotes = %+v", q)
	}
	// total 500, pot vencedor 400
	if q[0].Payout != 375 || q[1].Payout != 125 {
		t.Fatalf("payouts = %d, %d", q[0].Payout, q[1].Payout)
	}

	refund := QuotePayouts(bets, "")
	if len(refund) != 3 || refund[1].Payout != 300 {
		t.Fatalf("no contest should refund stakes: %+v", refund)
	}

	if got := QuotePayouts(bets[1:], match.SideParticipant1); len(got) != 0 {
		t.Fatalf("nobody backed the winner: %+v", got)
	}
}
