package domain

import "context"

// AccountRepository manages Account persistence.
type AccountRepository interface {
	// CreateAccount inserts the account and assigns its ID.
	CreateAccount(ctx context.Context, account *Account) error
	FindAccountByID(ctx context.Context, id int64) (*Account, error)
	FindAccountByEmail(ctx context.Context, email string) (*Account, error)
	// GetAccountForUpdate reads the account row with a row-level lock so a
	// balance check and the mutation it guards see the same committed state.
	GetAccountForUpdate(ctx context.Context, id int64) (*Account, error)
	SaveAccount(ctx context.Context, account *Account) error
	// ListAccounts returns a page of accounts ordered newest-first.
	// Returns (accounts, total_count, error).
	ListAccounts(ctx context.Context, limit, offset int) ([]*Account, int, error)
}

// TransactionRepository manages the ledger entries.
type TransactionRepository interface {
	// CreateTransaction inserts the entry and assigns its ID.
	CreateTransaction(ctx context.Context, tx *Transaction) error
	FindTransactionByID(ctx context.Context, id int64) (*Transaction, error)
	// GetTransactionForUpdate reads the entry with a row-level lock so the
	// already-reverted check cannot race a concurrent revert.
	GetTransactionForUpdate(ctx context.Context, id int64) (*Transaction, error)
	// MarkTransactionReversed persists the entry's ReversedAt marker, the
	// only write an entry ever receives after creation.
	MarkTransactionReversed(ctx context.Context, tx *Transaction) error
	// CountByAccountID counts entries where the account is sender or receiver.
	CountByAccountID(ctx context.Context, accountID int64) (int, error)
	// ListByAccountID returns a page of entries touching the account,
	// ordered by creation time descending. Returns (entries, total_count, error).
	ListByAccountID(ctx context.Context, accountID int64, limit, offset int) ([]*Transaction, int, error)
	// ListFiltered returns all entries touching the account that match the
	// filter, ordered by creation time descending.
	ListFiltered(ctx context.Context, accountID int64, filter TransactionFilter) ([]*Transaction, error)
}

// TransactionManager handles database transactions.
type TransactionManager interface {
	// Run executes fn within one atomic commit/rollback boundary. On any
	// error from fn the transaction is rolled back and the error returned.
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}
