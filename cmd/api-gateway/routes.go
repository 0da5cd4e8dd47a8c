package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"go.uber.org/zap"
)

func rp(to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil {
		return nil, err
	}
	return httputil.NewSingleHostReverseProxy(u), nil
}

// newMux monta as rotas públicas do gateway.
// O ReverseProxy repassa o upgrade do WebSocket sem tratamento extra.
func newMux(log *zap.Logger, arenaURL string) (http.Handler, error) {
	arena, err := rp(arenaURL)
	if err != nil {
		return nil, err
	}
	arena.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("arena upstream failed", zap.String("path", r.URL.Path), zap.Error(err))
		w.WriteHeader(http.StatusBadGateway)
	}

	mux := http.NewServeMux()

	// arena (ex.: /api/arena/v1/matches/{id} -> arena-service /v1/matches/{id})
	mux.Handle("/api/arena/", http.StripPrefix("/api/arena", arena))

	// stream ao vivo (ex.: /ws?matchId=... -> arena-service /ws)
	mux.Handle("/ws", arena)

	return withCORS(withAccessLog(log, mux)), nil
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

func withAccessLog(log *zap.Logger, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h.ServeHTTP(w, r)
		log.Debug("request", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Duration("latency", time.Since(start)))
	})
}
