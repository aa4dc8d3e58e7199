// Package trustledger implements the trust fabric's tamper-evident ledger.
//
// Signed transactions wait in a pending pool until they are sealed into a
// block. Each block commits to its transactions through a Merkle root, links
// to its predecessor by hash, and carries a proof-of-work nonce that gives its
// header hash the configured number of leading zero hex characters. The chain
// starts with a transaction-free genesis block whose previous hash is "0".
//
// Validate walks the chain re-deriving every hash and root, and reports the
// first block and check that failed. A tampered chain is an expected outcome,
// so validation returns a report rather than an error.
//
// MemoryLedger is the only implementation of the Ledger interface; the chain
// lives in memory and is not persisted.
package trustledger

import "errors"

var (
	// ErrInvalidTransaction is returned when an unsigned transaction is verified.
	ErrInvalidTransaction = errors.New("invalid transaction")
	// ErrNoPendingTransactions is returned when sealing with an empty pool.
	ErrNoPendingTransactions = errors.New("no pending transactions to seal")
	// ErrSealTimeout is returned when the nonce search exceeds its attempt budget.
	ErrSealTimeout = errors.New("seal attempt limit reached")
	// ErrBlockNotFound is returned for an out-of-range block index.
	ErrBlockNotFound = errors.New("block not found")
)
