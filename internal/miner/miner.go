// Package miner runs block sealing on a dedicated worker goroutine.
//
// Proof-of-work is CPU-bound with no natural suspension point, so HTTP
// handlers and timers never mine inline. They submit a job and receive the
// outcome on a per-job result channel. Jobs are served one at a time in
// submission order.
package miner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/omega-cyber/trust-fabric/internal/trustledger"
	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned when the job queue has no free slot.
	ErrQueueFull = errors.New("seal queue is full")
	// ErrStopped is returned for jobs submitted before Start or after shutdown.
	ErrStopped = errors.New("miner is not running")
)

// BlockSealer is the subset of trustledger.Ledger the miner drives.
type BlockSealer interface {
	SealNextBlock(ctx context.Context) (*trustledger.Block, error)
	Pending(ctx context.Context) ([]trustledger.Transaction, error)
}

// Config holds miner configuration.
type Config struct {
	// AutoSealInterval seals the pool on a timer when non-empty; 0 disables.
	AutoSealInterval time.Duration
	// SealTimeout bounds a single nonce search; 0 means no limit.
	SealTimeout time.Duration
	// QueueSize is the number of jobs that may wait for the worker.
	QueueSize int
}

// Result is the outcome of one seal job.
type Result struct {
	JobID    uuid.UUID
	Block    *trustledger.Block
	Err      error
	Duration time.Duration
	Auto     bool
}

// ResultRecordFunc is an optional callback for every finished job.
type ResultRecordFunc func(r Result)

type job struct {
	id    uuid.UUID
	ctx   context.Context
	auto  bool
	reply chan Result
}

// Miner serialises seal jobs onto a single worker goroutine.
type Miner struct {
	ledger   BlockSealer
	cfg      Config
	jobs     chan job
	onResult ResultRecordFunc
	logger   *zap.Logger

	mu      sync.Mutex
	started bool
	running bool
	done    chan struct{}
}

// New creates a Miner. Call Start to launch the worker.
func New(ledger BlockSealer, cfg Config, logger *zap.Logger) *Miner {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Miner{
		ledger: ledger,
		cfg:    cfg,
		jobs:   make(chan job, cfg.QueueSize),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// SetResultRecord configures the per-result callback. Call before Start.
func (m *Miner) SetResultRecord(fn ResultRecordFunc) {
	m.onResult = fn
}

// Start launches the worker. It runs until ctx is cancelled; the job being
// mined at that moment is aborted and queued jobs fail with ErrStopped.
// A Miner cannot be restarted.
func (m *Miner) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.running = true
	m.mu.Unlock()

	go m.loop(ctx)
}

// Done is closed once the worker has exited.
func (m *Miner) Done() <-chan struct{} { return m.done }

// Submit enqueues a seal job and returns its id and result channel.
// The channel is buffered and receives exactly one Result.
func (m *Miner) Submit(ctx context.Context) (uuid.UUID, <-chan Result, error) {
	return m.submit(ctx, false)
}

// Seal submits a job and waits for its result or for ctx to end.
func (m *Miner) Seal(ctx context.Context) (*trustledger.Block, error) {
	_, ch, err := m.Submit(ctx)
	if err != nil {
		return nil, err
	}
	select {
	case r := <-ch:
		return r.Block, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Miner) submit(ctx context.Context, auto bool) (uuid.UUID, <-chan Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return uuid.Nil, nil, ErrStopped
	}

	j := job{id: uuid.New(), ctx: ctx, auto: auto, reply: make(chan Result, 1)}
	select {
	case m.jobs <- j:
		return j.id, j.reply, nil
	default:
		return uuid.Nil, nil, ErrQueueFull
	}
}

func (m *Miner) loop(ctx context.Context) {
	defer close(m.done)

	var tick <-chan time.Time
	if m.cfg.AutoSealInterval > 0 {
		ticker := time.NewTicker(m.cfg.AutoSealInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	m.logger.Info("miner started", zap.Duration("auto_seal_interval", m.cfg.AutoSealInterval))
	for {
		select {
		case <-ctx.Done():
			m.drain()
			m.logger.Info("miner stopped")
			return
		case j := <-m.jobs:
			m.run(ctx, j)
		case <-tick:
			m.autoSeal(ctx)
		}
	}
}

// autoSeal seals the pool when it holds anything. An empty pool is not an error.
func (m *Miner) autoSeal(ctx context.Context) {
	pending, err := m.ledger.Pending(ctx)
	if err != nil {
		m.logger.Warn("auto-seal: read pending pool", zap.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}
	m.run(ctx, job{id: uuid.New(), ctx: ctx, auto: true})
}

func (m *Miner) run(workerCtx context.Context, j job) {
	ctx, cancel := mergeContexts(workerCtx, j.ctx)
	defer cancel()
	if m.cfg.SealTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, m.cfg.SealTimeout)
		defer cancelTimeout()
	}

	start := time.Now()
	b, err := m.ledger.SealNextBlock(ctx)
	r := Result{JobID: j.id, Block: b, Err: err, Duration: time.Since(start), Auto: j.auto}

	switch {
	case err == nil:
		m.logger.Info("seal job finished",
			zap.String("job_id", j.id.String()),
			zap.Uint64("index", b.Index),
			zap.Bool("auto", j.auto),
			zap.Duration("duration", r.Duration),
		)
	case errors.Is(err, trustledger.ErrNoPendingTransactions):
		m.logger.Debug("seal job skipped: empty pool", zap.String("job_id", j.id.String()))
	default:
		m.logger.Warn("seal job failed", zap.String("job_id", j.id.String()), zap.Error(err))
	}

	if m.onResult != nil {
		m.onResult(r)
	}
	if j.reply != nil {
		j.reply <- r
	}
}

func (m *Miner) drain() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	for {
		select {
		case j := <-m.jobs:
			j.reply <- Result{JobID: j.id, Err: ErrStopped}
		default:
			return
		}
	}
}

// mergeContexts returns a context cancelled when either parent is done.
func mergeContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
