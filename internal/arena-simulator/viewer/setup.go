package viewer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/radieske/live-match-arena/internal/arena-service/identity"
)

// Usuários fixos da partida de demonstração.
const (
	SimParticipant1 = "sim-p1"
	SimParticipant2 = "sim-p2"
	SimModerator    = "sim-mod"
)

// PrepareMatch cria uma partida pela API REST, ocupa o slot de desafiante e abre a partida.
func PrepareMatch(ctx context.Context, client *http.Client, baseURL, topic string) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	body := map[string]any{"topic": topic, "moderatorId": SimModerator}
	if err := post(ctx, client, baseURL+"/v1/matches", SimParticipant1, "participant", body, &created); err != nil {
		return "", fmt.Errorf("create match: %w", err)
	}
	if err := post(ctx, client, baseURL+"/v1/matches/"+created.ID+"/join", SimParticipant2, "participant", nil, nil); err != nil {
		return "", fmt.Errorf("join: %w", err)
	}
	if err := post(ctx, client, baseURL+"/v1/matches/"+created.ID+"/status", SimModerator, "moderator", map[string]string{"status": "live"}, nil); err != nil {
		return "", fmt.Errorf("go live: %w", err)
	}
	return created.ID, nil
}

func post(ctx context.Context, client *http.Client, url, userID, role string, in, out any) error {
	var buf bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(identity.HeaderUserID, userID)
	req.Header.Set(identity.HeaderRole, role)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var e struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("arena http %s: %s %s", resp.Status, e.Error, e.Message)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
