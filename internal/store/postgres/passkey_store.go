package postgres

import (
	"context"
	"database/sql"

	"github.com/sa1dev/regeester/pkg/passkey"
)

// PasskeyStore implements passkey.Store on PostgreSQL.
type PasskeyStore struct {
	db   DBTX
	conn *sql.DB // nil when the store is transaction-bound
}

// NewPasskeyStore creates a PasskeyStore over an open connection pool.
func NewPasskeyStore(conn *sql.DB) *PasskeyStore {
	return &PasskeyStore{db: conn, conn: conn}
}

// WithinTx runs fn against a transaction-bound store. Calls nested inside an
// existing transaction reuse it.
func (s *PasskeyStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx passkey.Store) error) error {
	if s.conn == nil {
		return fn(ctx, s)
	}
	return withTx(ctx, s.conn, func(ctx context.Context, tx DBTX) error {
		return fn(ctx, &PasskeyStore{db: tx})
	})
}
