package store

import (
	"context"
	"fmt"

	"github.com/radieske/live-match-arena/internal/shared/db"
)

// Options escolhe o driver do Match Store: postgres | sqlite | memory.
type Options struct {
	Driver      string
	PostgresDSN string
	SQLitePath  string
}

// Open conecta o store escolhido e garante o schema. A função retornada libera a conexão.
func Open(ctx context.Context, o Options) (Store, func() error, error) {
	switch o.Driver {
	case "memory":
		return NewMemory(), func() error { return nil }, nil
	case "sqlite":
		conn, err := db.OpenSQLite(o.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		st := NewSQL(conn, DialectSQLite)
		if err := st.EnsureSchema(ctx); err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		return st, conn.Close, nil
	case "postgres", "":
		conn, err := db.ConnectPostgres(o.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		st := NewSQL(conn, DialectPostgres)
		if err := st.EnsureSchema(ctx); err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		return st, conn.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", o.Driver)
	}
}
