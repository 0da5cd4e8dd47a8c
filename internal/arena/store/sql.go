package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/live-match-arena/internal/arena/match"
)

// Dialect seleciona o estilo de placeholder do driver.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// SQL implementa Store sobre database/sql (lib/pq ou modernc sqlite).
type SQL struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQL(db *sql.DB, dialect Dialect) *SQL { return &SQL{db: db, dialect: dialect} }

// EnsureSchema cria as tabelas se não existirem.
func (s *SQL) EnsureSchema(ctx context.Context) error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == DialectPostgres {
		serial = "BIGSERIAL PRIMARY KEY"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS matches (
			id              TEXT PRIMARY KEY,
			topic           TEXT NOT NULL,
			description     TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL,
			participant1_id TEXT NOT NULL,
			participant2_id TEXT NULL,
			moderator_id    TEXT NULL,
			winner_id       TEXT NULL,
			version         BIGINT NOT NULL DEFAULT 1,
			created_at_ms   BIGINT NOT NULL,
			started_at_ms   BIGINT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id            ` + serial + `,
			match_id      TEXT NOT NULL REFERENCES matches(id),
			author_id     TEXT NOT NULL,
			body          TEXT NOT NULL,
			created_at_ms BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_match_created ON chat_messages (match_id, created_at_ms, id)`,
		`CREATE TABLE IF NOT EXISTS bets (
			id            ` + serial + `,
			match_id      TEXT NOT NULL REFERENCES matches(id),
			bettor_id     TEXT NOT NULL,
			side          TEXT NOT NULL,
			stake         BIGINT NOT NULL CHECK (stake > 0),
			created_at_ms BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bets_match ON bets (match_id, id)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *SQL) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// rebind troca "?" por "$N" no Postgres.
func (s *SQL) rebind(q string) string {
	if s.dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

const matchCols = `id, topic, description, status, participant1_id, participant2_id, moderator_id, winner_id, version, created_at_ms, started_at_ms`

type rowScanner interface{ Scan(dest ...any) error }

func scanMatch(r rowScanner) (*match.Match, error) {
	var (
		m               match.Match
		status          string
		p2, mod, winner sql.NullString
		createdMs       int64
		startedMs       sql.NullInt64
	)
	if err := r.Scan(&m.ID, &m.Topic, &m.Description, &status, &m.Participant1ID, &p2, &mod, &winner, &m.Version, &createdMs, &startedMs); err != nil {
		return nil, err
	}
	m.Status = match.Status(status)
	m.Participant2ID = nullToPtr(p2)
	m.ModeratorID = nullToPtr(mod)
	m.WinnerID = nullToPtr(winner)
	m.CreatedAt = time.UnixMilli(createdMs).UTC()
	if startedMs.Valid {
		t := time.UnixMilli(startedMs.Int64).UTC()
		m.StartedAt = &t
	}
	return &m, nil
}

func nullToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func ptrToNull(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func (s *SQL) CreateMatch(ctx context.Context, in NewMatch) (*match.Match, error) {
	if strings.TrimSpace(in.Participant1ID) == "" {
		return nil, &match.Error{Kind: match.KindInvalidInput, Code: "PARTICIPANT1_REQUIRED", Reason: "participant-1 is required"}
	}
	id := uuid.NewString()
	now := time.Now().UTC().UnixMilli()
	row := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO matches (id, topic, description, status, participant1_id, moderator_id, version, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?)
		RETURNING `+matchCols),
		id, in.Topic, in.Description, string(match.StatusPending), in.Participant1ID, ptrToNull(in.ModeratorID), now,
	)
	m, err := scanMatch(row)
	if err != nil {
		return nil, fmt.Errorf("insert match: %w", err)
	}
	return m, nil
}

func (s *SQL) GetMatch(ctx context.Context, id string) (*match.Match, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+matchCols+` FROM matches WHERE id = ?`), id)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, match.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}
	return m, nil
}

func (s *SQL) UpdateMatchStatus(ctx context.Context, id string, expectedPrior, next match.Status) (*match.Match, error) {
	var started sql.NullInt64
	if next == match.StatusLive {
		started = sql.NullInt64{Int64: time.Now().UTC().UnixMilli(), Valid: true}
	}
	row := s.db.QueryRowContext(ctx, s.rebind(`
		UPDATE matches
		SET status = ?, version = version + 1, started_at_ms = COALESCE(started_at_ms, ?)
		WHERE id = ? AND status = ?
		RETURNING `+matchCols),
		string(next), started, id, string(expectedPrior),
	)
	return s.conditional(ctx, row, id, "update match status", func(*match.Match) error { return ErrConflict })
}

func (s *SQL) SetParticipant2IfEmpty(ctx context.Context, id, userID string) (*match.Match, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		UPDATE matches
		SET participant2_id = ?, version = version + 1
		WHERE id = ? AND participant2_id IS NULL AND status = ?
		RETURNING `+matchCols),
		userID, id, string(match.StatusPending),
	)
	return s.conditional(ctx, row, id, "set participant2", classifyJoinMiss)
}

func (s *SQL) SetWinner(ctx context.Context, id string, expectedStatus match.Status, winnerID *string) (*match.Match, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		UPDATE matches
		SET status = ?, winner_id = ?, version = version + 1
		WHERE id = ? AND status = ?
		RETURNING `+matchCols),
		string(match.StatusFinished), ptrToNull(winnerID), id, string(expectedStatus),
	)
	return s.conditional(ctx, row, id, "set winner", func(*match.Match) error { return ErrConflict })
}

// conditional lê o resultado de um UPDATE ... RETURNING; sem linha, relê e classifica.
func (s *SQL) conditional(ctx context.Context, row *sql.Row, id, op string, miss func(*match.Match) error) (*match.Match, error) {
	m, err := scanMatch(row)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	cur, err := s.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, miss(cur)
}

func (s *SQL) AppendChat(ctx context.Context, matchID, authorID, body string) (*match.ChatMessage, error) {
	now := time.Now().UTC()
	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO chat_messages (match_id, author_id, body, created_at_ms)
		SELECT id, CAST(? AS TEXT), CAST(? AS TEXT), CAST(? AS BIGINT) FROM matches WHERE id = ?
		RETURNING id`),
		authorID, body, now.UnixMilli(), matchID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, match.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("append chat: %w", err)
	}
	return &match.ChatMessage{
		ID: id, MatchID: matchID, AuthorID: authorID, Body: body,
		CreatedAt: time.UnixMilli(now.UnixMilli()).UTC(),
	}, nil
}

func (s *SQL) AppendBet(ctx context.Context, matchID, bettorID string, side match.Side, stake int64) (*match.Bet, error) {
	if stake <= 0 {
		return nil, match.ErrInvalidStake
	}
	now := time.Now().UTC()
	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO bets (match_id, bettor_id, side, stake, created_at_ms)
		SELECT id, CAST(? AS TEXT), CAST(? AS TEXT), CAST(? AS BIGINT), CAST(? AS BIGINT) FROM matches
		WHERE id = ? AND status <> ?
		  AND (CAST(? AS TEXT) = ? OR (CAST(? AS TEXT) = ? AND participant2_id IS NOT NULL))
		RETURNING id`),
		bettorID, string(side), stake, now.UnixMilli(),
		matchID, string(match.StatusFinished),
		string(side), string(match.SideParticipant1), string(side), string(match.SideParticipant2),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		cur, gerr := s.GetMatch(ctx, matchID)
		if gerr != nil {
			return nil, gerr
		}
		return nil, classifyBetMiss(cur, side)
	}
	if err != nil {
		return nil, fmt.Errorf("append bet: %w", err)
	}
	return &match.Bet{
		ID: id, MatchID: matchID, BettorID: bettorID, Side: side, Stake: stake,
		CreatedAt: time.UnixMilli(now.UnixMilli()).UTC(),
	}, nil
}

func (s *SQL) ListRecentChat(ctx context.Context, matchID string, limit int) ([]match.ChatMessage, error) {
	if limit <= 0 {
		return []match.ChatMessage{}, nil
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, match_id, author_id, body, created_at_ms FROM chat_messages
		WHERE match_id = ?
		ORDER BY created_at_ms DESC, id DESC
		LIMIT ?`),
		matchID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list chat: %w", err)
	}
	defer rows.Close()

	out := make([]match.ChatMessage, 0, limit)
	for rows.Next() {
		var (
			c  match.ChatMessage
			ms int64
		)
		if err := rows.Scan(&c.ID, &c.MatchID, &c.AuthorID, &c.Body, &ms); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		c.CreatedAt = time.UnixMilli(ms).UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// volta para ordem cronológica
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *SQL) ListBets(ctx context.Context, matchID string) ([]match.Bet, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, match_id, bettor_id, side, stake, created_at_ms FROM bets
		WHERE match_id = ?
		ORDER BY id`),
		matchID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bets: %w", err)
	}
	defer rows.Close()

	out := []match.Bet{}
	for rows.Next() {
		var (
			b    match.Bet
			side string
			ms   int64
		)
		if err := rows.Scan(&b.ID, &b.MatchID, &b.BettorID, &side, &b.Stake, &ms); err != nil {
			return nil, fmt.Errorf("scan bet: %w", err)
		}
		b.Side = match.Side(side)
		b.CreatedAt = time.UnixMilli(ms).UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}
