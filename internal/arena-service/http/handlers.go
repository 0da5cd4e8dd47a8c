package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/live-match-arena/internal/arena-service/dto"
	"github.com/radieske/live-match-arena/internal/arena-service/identity"
	"github.com/radieske/live-match-arena/internal/arena/match"
	"github.com/radieske/live-match-arena/internal/arena/service"
	"github.com/radieske/live-match-arena/internal/arena/store"
)

// Arena é o que a API REST usa do serviço de comandos.
type Arena interface {
	Snapshot(ctx context.Context, matchID string) (*service.Snapshot, error)
	CreateMatch(ctx context.Context, actor match.Actor, in store.NewMatch) (*match.Match, error)
	SendChat(ctx context.Context, actor match.Actor, matchID, producer, body string) (*match.ChatMessage, error)
	PlaceBet(ctx context.Context, actor match.Actor, matchID string, side match.Side, stake int64) (*match.Bet, error)
	SetStatus(ctx context.Context, actor match.Actor, matchID string, next match.Status) (*match.Match, error)
	DeclareWinner(ctx context.Context, actor match.Actor, matchID string, winnerID *string) (*match.Match, error)
	JoinAsChallenger(ctx context.Context, actor match.Actor, matchID string) (*match.Match, error)
}

// SnapshotCache é opcional (sem Redis, toda leitura vai ao store).
type SnapshotCache interface {
	Get(ctx context.Context, matchID string, dst any) (bool, error)
	Generation(ctx context.Context, matchID string) (int64, error)
	SetIfCurrent(ctx context.Context, matchID string, gen int64, v any) (bool, error)
}

// API expõe o snapshot da partida e os comandos da arena via REST.
// WS, quando presente, é montado em /ws.
type API struct {
	Arena Arena
	Cache SnapshotCache
	WS    http.Handler
	Log   *zap.Logger
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/matches", a.createMatch)                // cria partida (demo)
	r.Get("/v1/matches/{id}", a.getSnapshot)            // snapshot {match, recentChat, bets, potTotals, odds, speakers}
	r.Post("/v1/matches/{id}/chat", a.sendChat)         // envia mensagem
	r.Post("/v1/matches/{id}/bets", a.placeBet)         // aposta
	r.Post("/v1/matches/{id}/status", a.setStatus)      // moderação
	r.Post("/v1/matches/{id}/winner", a.declareWinner)  // moderação
	r.Post("/v1/matches/{id}/join", a.joinAsChallenger) // ocupa o slot de participant-2
	if a.WS != nil {
		r.Handle("/ws", a.WS)
	}
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusFor mapeia o kind do erro de domínio para o status HTTP.
func StatusFor(err error) int {
	switch match.KindOf(err) {
	case match.KindPermissionDenied:
		return http.StatusForbidden
	case match.KindInvalidState, match.KindSlotTaken:
		return http.StatusConflict
	case match.KindInvalidBet, match.KindInvalidInput:
		return http.StatusUnprocessableEntity
	case match.KindNotFound:
		return http.StatusNotFound
	case match.KindUnavailable, match.KindDeliveryGap:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		a.Log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, dto.NewError(err))
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "BAD_REQUEST", Message: "invalid json body"})
		return false
	}
	return true
}

// getSnapshot retorna o read-model da partida, preferencialmente do cache
func (a *API) getSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	gen, cacheable := int64(0), false
	if a.Cache != nil {
		var cached service.Snapshot
		if ok, _ := a.Cache.Get(r.Context(), id, &cached); ok {
			writeJSON(w, http.StatusOK, cached)
			return
		}
		// geração antes do store: escrita no meio do caminho descarta o Set
		var err error
		gen, err = a.Cache.Generation(r.Context(), id)
		cacheable = err == nil
	}

	snap, err := a.Arena.Snapshot(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if cacheable {
		_, _ = a.Cache.SetIfCurrent(r.Context(), id, gen, snap)
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) createMatch(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateMatchRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := a.Arena.CreateMatch(r.Context(), identity.FromRequest(r), store.NewMatch{
		Topic:          req.Topic,
		Description:    req.Description,
		Participant1ID: req.Participant1ID,
		ModeratorID:    req.ModeratorID,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (a *API) sendChat(w http.ResponseWriter, r *http.Request) {
	var req dto.ChatRequest
	if !decode(w, r, &req) {
		return
	}
	msg, err := a.Arena.SendChat(r.Context(), identity.FromRequest(r), chi.URLParam(r, "id"), "", req.Body)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (a *API) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.BetRequest
	if !decode(w, r, &req) {
		return
	}
	stake, err := dto.ParseStake(req.Stake)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	side, err := match.ParseSide(req.Side)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	bet, err := a.Arena.PlaceBet(r.Context(), identity.FromRequest(r), chi.URLParam(r, "id"), side, stake)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, bet)
}

func (a *API) setStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.StatusRequest
	if !decode(w, r, &req) {
		return
	}
	next, err := match.ParseStatus(req.Status)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	m, err := a.Arena.SetStatus(r.Context(), identity.FromRequest(r), chi.URLParam(r, "id"), next)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) declareWinner(w http.ResponseWriter, r *http.Request) {
	var req dto.WinnerRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := a.Arena.DeclareWinner(r.Context(), identity.FromRequest(r), chi.URLParam(r, "id"), req.WinnerID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) joinAsChallenger(w http.ResponseWriter, r *http.Request) {
	m, err := a.Arena.JoinAsChallenger(r.Context(), identity.FromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
