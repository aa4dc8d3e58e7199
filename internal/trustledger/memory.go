package trustledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds the parameters shared by every block of a ledger.
type Config struct {
	// Difficulty is the required count of leading '0' hex characters.
	Difficulty int
	// MaxSealAttempts bounds each nonce search; 0 means unbounded.
	MaxSealAttempts uint64
	// Now supplies block timestamps. Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns the reference parameters: difficulty 2, unbounded search.
func DefaultConfig() Config {
	return Config{Difficulty: DefaultDifficulty}
}

// SealObserver is an optional callback invoked after every successful seal.
type SealObserver func(b *Block, attempts uint64, elapsed time.Duration)

// MemoryLedger is an in-memory, thread-safe Ledger implementation.
//
// mu guards the chain and the pool. sealMu serialises sealers so the nonce
// search can run without holding mu: transactions may still be added and the
// chain read while a block is being mined. Transactions that arrive during a
// search stay in the pool for the next block.
type MemoryLedger struct {
	mu      sync.RWMutex
	chain   []*Block
	pending []Transaction

	sealMu sync.Mutex
	sealer *Sealer
	now    func() time.Time
	onSeal SealObserver
	logger *zap.Logger
}

// New creates a MemoryLedger holding only a sealed genesis block.
func New(cfg Config, logger *zap.Logger) (*MemoryLedger, error) {
	sealer, err := NewSealer(cfg.Difficulty, cfg.MaxSealAttempts)
	if err != nil {
		return nil, err
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &MemoryLedger{
		sealer: sealer,
		now:    cfg.Now,
		logger: logger,
	}

	genesis := newCandidate(0, l.now().Unix(), GenesisPreviousHash, []Transaction{})
	if _, err := sealer.Seal(context.Background(), genesis); err != nil {
		return nil, fmt.Errorf("seal genesis block: %w", err)
	}
	l.chain = append(l.chain, genesis)

	logger.Debug("genesis block sealed",
		zap.String("hash", genesis.Hash),
		zap.Uint64("nonce", genesis.Nonce),
		zap.Int("difficulty", sealer.Difficulty),
	)
	return l, nil
}

// SetSealObserver registers fn to be called after each sealed block.
func (l *MemoryLedger) SetSealObserver(fn SealObserver) {
	l.sealMu.Lock()
	defer l.sealMu.Unlock()
	l.onSeal = fn
}

// AddTransaction implements Ledger.
func (l *MemoryLedger) AddTransaction(_ context.Context, tx Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, tx.Clone())
	return nil
}

// SealNextBlock implements Ledger. The search honours ctx; if it is cancelled
// or runs out of attempts, the chain and pool are left unchanged.
func (l *MemoryLedger) SealNextBlock(ctx context.Context) (*Block, error) {
	l.sealMu.Lock()
	defer l.sealMu.Unlock()

	// Only sealers append, and sealMu is held, so tip stays current.
	l.mu.RLock()
	if len(l.pending) == 0 {
		l.mu.RUnlock()
		return nil, ErrNoPendingTransactions
	}
	tip := l.chain[len(l.chain)-1]
	txs := cloneTransactions(l.pending)
	l.mu.RUnlock()

	candidate := newCandidate(tip.Index+1, l.now().Unix(), tip.Hash, txs)

	start := time.Now()
	attempts, err := l.sealer.Seal(ctx, candidate)
	elapsed := time.Since(start)
	if err != nil {
		l.logger.Warn("block sealing aborted",
			zap.Uint64("index", candidate.Index),
			zap.Uint64("attempts", attempts),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil, fmt.Errorf("seal block %d: %w", candidate.Index, err)
	}

	l.mu.Lock()
	l.chain = append(l.chain, candidate)
	l.pending = append([]Transaction(nil), l.pending[len(txs):]...)
	l.mu.Unlock()

	l.logger.Info("block sealed",
		zap.Uint64("index", candidate.Index),
		zap.String("hash", candidate.Hash),
		zap.String("merkle_root", candidate.MerkleRoot),
		zap.Int("transactions", len(txs)),
		zap.Uint64("nonce", candidate.Nonce),
		zap.Uint64("attempts", attempts),
		zap.Duration("elapsed", elapsed),
	)
	if l.onSeal != nil {
		l.onSeal(candidate, attempts, elapsed)
	}
	return candidate.Clone(), nil
}

// Get implements Ledger.
func (l *MemoryLedger) Get(_ context.Context, index int) (*Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.chain) {
		return nil, fmt.Errorf("%w: index %d out of range", ErrBlockNotFound, index)
	}
	return l.chain[index].Clone(), nil
}

// Len implements Ledger.
func (l *MemoryLedger) Len(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.chain), nil
}

// Root implements Ledger.
func (l *MemoryLedger) Root(_ context.Context) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain[len(l.chain)-1].Hash, nil
}

// Pending implements Ledger.
func (l *MemoryLedger) Pending(_ context.Context) ([]Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := cloneTransactions(l.pending)
	if out == nil {
		out = []Transaction{}
	}
	return out, nil
}

// Validate implements Ledger.
func (l *MemoryLedger) Validate(_ context.Context) ValidationReport {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return ValidateChain(l.chain, l.sealer.Difficulty)
}

// Difficulty implements Ledger.
func (l *MemoryLedger) Difficulty() int { return l.sealer.Difficulty }
