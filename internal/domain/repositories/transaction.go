package repositories

import "context"

// TxFn is a function that runs within a transaction
type TxFn func(ctx context.Context) error

// TransactionManager runs a function inside one database transaction.
// Used for schema migrations; request paths issue single statements.
type TransactionManager interface {
	ExecTx(ctx context.Context, fn TxFn) error
}
