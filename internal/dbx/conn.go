package dbx

import (
	"context"
	"database/sql"
	"fmt"
)

type connKey struct{}

// WithConn returns a copy of ctx carrying conn as the request's DB handle.
func WithConn(ctx context.Context, conn *sql.Conn) context.Context {
	return context.WithValue(ctx, connKey{}, conn)
}

// ConnFromContext returns the connection stored by WithConn, or fallback
// when the context carries none (CLI, background work, tests).
func ConnFromContext(ctx context.Context, fallback Handle) Handle {
	if conn, ok := ctx.Value(connKey{}).(*sql.Conn); ok && conn != nil {
		return conn
	}
	return fallback
}

// WithScopedConn acquires one pooled connection, exposes it to fn through the
// context and always returns it to the pool, whatever fn does.
func WithScopedConn(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	return fn(WithConn(ctx, conn))
}
