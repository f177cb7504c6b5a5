package repositories

import "context"

// TxFn is a function that runs within a transaction
type TxFn func(ctx context.Context) error

// TransactionManager handles database transactions
type TransactionManager interface {
	// ExecTx runs fn in a transaction and commits if fn returns nil.
	// A call made while ctx already carries a transaction joins it.
	ExecTx(ctx context.Context, fn TxFn) error
}
