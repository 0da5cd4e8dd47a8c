package identity

import (
	"net/http"
	"strings"

	"github.com/radieske/live-match-arena/internal/arena/match"
)

// Headers preenchidos pelo gateway/autenticação upstream (confiáveis dentro da rede interna).
const (
	HeaderUserID = "X-User-Id"
	HeaderRole   = "X-User-Role"
)

// FromRequest monta o Actor a partir dos headers; sem usuário = espectador anônimo.
// Para WebSocket de browser os mesmos valores podem vir na query (userId, role).
func FromRequest(r *http.Request) match.Actor {
	id := strings.TrimSpace(r.Header.Get(HeaderUserID))
	role := r.Header.Get(HeaderRole)
	if id == "" {
		q := r.URL.Query()
		id = strings.TrimSpace(q.Get("userId"))
		if role == "" {
			role = q.Get("role")
		}
	}
	if id == "" {
		return match.Actor{Role: match.RoleAnonymous}
	}
	r2 := match.ParseRole(role)
	if r2 == match.RoleAnonymous {
		r2 = match.RoleUser
	}
	return match.Actor{UserID: id, Role: r2}
}
