package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque execution handle. Infra decides what it carries
// (pgx.Tx, *pgxpool.Conn, ...); nil means "use the pool".
type Tx interface{}

var NoTX Tx

// TransactionManager runs fn inside one database transaction and hands the
// handle to fn so repository calls made with it share the transaction.
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx Tx) error {
//		n, err := chats.CountMessages(ctx, tx, id)
//		...
//	})
//
// Repositories MUST accept a nil tx (non-transactional path).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
