package trustledger

import "context"

// Ledger is the interface for the sealed transaction chain and its pending
// pool. Implementations own both; callers only ever see copies.
type Ledger interface {
	// AddTransaction appends tx to the pending pool. No signature check is
	// made; callers verify with Transaction.IsValid before submitting.
	AddTransaction(ctx context.Context, tx Transaction) error

	// SealNextBlock seals the whole pending pool into a new block, appends it
	// and clears the sealed transactions from the pool.
	// Returns ErrNoPendingTransactions when the pool is empty.
	SealNextBlock(ctx context.Context) (*Block, error)

	// Get returns the block at the given zero-based index.
	Get(ctx context.Context, index int) (*Block, error)

	// Len returns the number of blocks, including genesis.
	Len(ctx context.Context) (int, error)

	// Root returns the hash of the most recent block (the chain tip).
	Root(ctx context.Context) (string, error)

	// Pending returns the transactions waiting to be sealed, in pool order.
	Pending(ctx context.Context) ([]Transaction, error)

	// Validate walks the entire chain and reports the first broken rule.
	// It never modifies the chain.
	Validate(ctx context.Context) ValidationReport

	// Difficulty returns the number of leading zero hex characters every
	// block hash must carry.
	Difficulty() int
}
