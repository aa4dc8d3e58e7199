package miner_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/omega-cyber/trust-fabric/internal/miner"
	"github.com/omega-cyber/trust-fabric/internal/trustledger"
	"go.uber.org/zap"
)

func newLedger(t *testing.T) *trustledger.MemoryLedger {
	t.Helper()
	l, err := trustledger.New(trustledger.Config{Difficulty: 1}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func startMiner(t *testing.T, l miner.BlockSealer, cfg miner.Config) (*miner.Miner, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	m := miner.New(l, cfg, zap.NewNop())
	m.Start(ctx)
	t.Cleanup(func() {
		cancel()
		<-m.Done()
	})
	return m, cancel
}

func TestSeal_sealsPendingPool(t *testing.T) {
	l := newLedger(t)
	m, _ := startMiner(t, l, miner.Config{})
	ctx := context.Background()

	_ = l.AddTransaction(ctx, trustledger.NewTransaction("Alice", "Bob", 50, 1))

	b, err := m.Seal(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if b.Index != 1 {
		t.Errorf("index: got %d, want 1", b.Index)
	}
	if n, _ := l.Len(ctx); n != 2 {
		t.Errorf("chain length: got %d, want 2", n)
	}
}

func TestSeal_emptyPool(t *testing.T) {
	l := newLedger(t)
	m, _ := startMiner(t, l, miner.Config{})

	_, err := m.Seal(context.Background())
	if !errors.Is(err, trustledger.ErrNoPendingTransactions) {
		t.Fatalf("expected ErrNoPendingTransactions, got %v", err)
	}
}

func TestSubmit_resultCarriesJobID(t *testing.T) {
	l := newLedger(t)
	m, _ := startMiner(t, l, miner.Config{})
	ctx := context.Background()
	_ = l.AddTransaction(ctx, trustledger.NewTransaction("A", "B", 1, 1))

	id, ch, err := m.Submit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	select {
	case r := <-ch:
		if r.JobID != id {
			t.Errorf("job id: got %s, want %s", r.JobID, id)
		}
		if r.Err != nil {
			t.Errorf("unexpected error: %v", r.Err)
		}
		if r.Auto {
			t.Error("submitted job reported as auto")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for result")
	}
}

func TestSubmit_notStarted(t *testing.T) {
	m := miner.New(newLedger(t), miner.Config{}, nil)
	if _, _, err := m.Submit(context.Background()); !errors.Is(err, miner.ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

func TestSubmit_afterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := miner.New(newLedger(t), miner.Config{}, nil)
	m.Start(ctx)
	cancel()
	<-m.Done()

	if _, _, err := m.Submit(context.Background()); !errors.Is(err, miner.ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

// blockingSealer holds every seal until released.
type blockingSealer struct {
	release chan struct{}
}

func (b *blockingSealer) SealNextBlock(ctx context.Context) (*trustledger.Block, error) {
	select {
	case <-b.release:
		return &trustledger.Block{Index: 1}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *blockingSealer) Pending(context.Context) ([]trustledger.Transaction, error) {
	return nil, nil
}

func TestSubmit_queueFull(t *testing.T) {
	s := &blockingSealer{release: make(chan struct{})}
	m, _ := startMiner(t, s, miner.Config{QueueSize: 1})
	ctx := context.Background()

	// First job occupies the worker, second fills the queue.
	_, first, err := m.Submit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	var queueErr error
	for time.Now().Before(deadline) {
		if _, _, queueErr = m.Submit(ctx); errors.Is(queueErr, miner.ErrQueueFull) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if !errors.Is(queueErr, miner.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", queueErr)
	}
	close(s.release)
	<-first
}

func TestSeal_timeout(t *testing.T) {
	s := &blockingSealer{release: make(chan struct{})}
	m, _ := startMiner(t, s, miner.Config{SealTimeout: 20 * time.Millisecond})

	_, err := m.Seal(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestSeal_callerCancellationAbortsJob(t *testing.T) {
	s := &blockingSealer{release: make(chan struct{})}
	m, _ := startMiner(t, s, miner.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	_, ch, err := m.Submit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case r := <-ch:
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", r.Err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled job never finished")
	}
}

func TestAutoSeal(t *testing.T) {
	l := newLedger(t)
	var mu sync.Mutex
	var results []miner.Result

	ctx, cancel := context.WithCancel(context.Background())
	m := miner.New(l, miner.Config{AutoSealInterval: 10 * time.Millisecond}, zap.NewNop())
	m.SetResultRecord(func(r miner.Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})
	m.Start(ctx)
	defer func() {
		cancel()
		<-m.Done()
	}()

	_ = l.AddTransaction(context.Background(), trustledger.NewTransaction("A", "B", 1, 1))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if n, _ := l.Len(context.Background()); n == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if n, _ := l.Len(context.Background()); n != 2 {
		t.Fatalf("auto-seal did not run: chain length %d", n)
	}

	cancel()
	<-m.Done()
	mu.Lock()
	defer mu.Unlock()
	if len(results) != 1 || !results[0].Auto || results[0].Err != nil {
		t.Errorf("unexpected results: %+v", results)
	}
}
