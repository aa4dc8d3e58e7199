package trustledger_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/omega-cyber/trust-fabric/internal/trustledger"
)

func candidate() *trustledger.Block {
	txs := sampleTxs()
	return &trustledger.Block{
		Index:        1,
		CreatedAt:    1_700_000_000,
		PreviousHash: "00ab",
		Transactions: txs,
		MerkleRoot:   trustledger.MerkleRootOrDefault(txs),
	}
}

func TestSeal_meetsDifficulty(t *testing.T) {
	for _, d := range []int{0, 1, 2, 3} {
		s, err := trustledger.NewSealer(d, 0)
		if err != nil {
			t.Fatal(err)
		}
		b := candidate()
		attempts, err := s.Seal(ctx, b)
		if err != nil {
			t.Fatalf("difficulty %d: %v", d, err)
		}
		if !trustledger.MeetsDifficulty(b.Hash, d) {
			t.Errorf("difficulty %d: hash %s", d, b.Hash)
		}
		if b.Hash != b.HeaderHash() {
			t.Errorf("difficulty %d: stored hash is not the header hash", d)
		}
		if attempts != b.Nonce+1 {
			t.Errorf("difficulty %d: attempts %d for nonce %d", d, attempts, b.Nonce)
		}
	}
}

func TestSeal_deterministic(t *testing.T) {
	s, _ := trustledger.NewSealer(2, 0)
	a, b := candidate(), candidate()

	if _, err := s.Seal(ctx, a); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Seal(ctx, b); err != nil {
		t.Fatal(err)
	}
	if a.Nonce != b.Nonce || a.Hash != b.Hash {
		t.Errorf("identical headers diverged: (%d,%s) vs (%d,%s)", a.Nonce, a.Hash, b.Nonce, b.Hash)
	}
}

func TestSeal_difficultyZeroUsesNonceZero(t *testing.T) {
	s, _ := trustledger.NewSealer(0, 0)
	b := candidate()
	if _, err := s.Seal(ctx, b); err != nil {
		t.Fatal(err)
	}
	if b.Nonce != 0 {
		t.Errorf("search must start at 0, got nonce %d", b.Nonce)
	}
}

func TestSeal_attemptBudget(t *testing.T) {
	s, _ := trustledger.NewSealer(trustledger.MaxDifficulty, 100)
	b := candidate()

	attempts, err := s.Seal(ctx, b)
	if !errors.Is(err, trustledger.ErrSealTimeout) {
		t.Fatalf("expected ErrSealTimeout, got %v", err)
	}
	if attempts != 100 {
		t.Errorf("attempts: got %d, want 100", attempts)
	}
	if b.Hash != "" || b.Nonce != 0 {
		t.Errorf("failed seal left nonce=%d hash=%q", b.Nonce, b.Hash)
	}
}

func TestSeal_cancelled(t *testing.T) {
	s, _ := trustledger.NewSealer(trustledger.MaxDifficulty, 0)
	c, cancel := context.WithCancel(ctx)
	cancel()

	if _, err := s.Seal(c, candidate()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewSealer_bounds(t *testing.T) {
	if _, err := trustledger.NewSealer(-1, 0); err == nil {
		t.Error("expected error for negative difficulty")
	}
	if _, err := trustledger.NewSealer(65, 0); err == nil {
		t.Error("expected error for difficulty above 64")
	}
}

func TestMeetsDifficulty(t *testing.T) {
	tests := []struct {
		hash string
		d    int
		want bool
	}{
		{"00ab", 2, true},
		{"00ab", 3, false},
		{"0a", 1, true},
		{"a0", 1, false},
		{"abc", 0, true},
		{"0", 2, false},
	}
	for _, tc := range tests {
		if got := trustledger.MeetsDifficulty(tc.hash, tc.d); got != tc.want {
			t.Errorf("MeetsDifficulty(%q, %d) = %v, want %v", tc.hash, tc.d, got, tc.want)
		}
	}
}

func TestHeaderHash_canonicalText(t *testing.T) {
	tests := []struct {
		name  string
		block trustledger.Block
		text  string
	}{
		{
			name:  "sealed block",
			block: trustledger.Block{Index: 1, CreatedAt: 1_700_000_000, PreviousHash: "00ab", Nonce: 7, MerkleRoot: "cafe"},
			text:  "1" + "1700000000" + "00ab" + "7" + "cafe",
		},
		{
			name:  "decimal nonce",
			block: trustledger.Block{Index: 12, CreatedAt: 42, PreviousHash: "00ff", Nonce: 1234, MerkleRoot: "beef"},
			text:  "12" + "42" + "00ff" + "1234" + "beef",
		},
		{
			name:  "genesis shape",
			block: trustledger.Block{Index: 0, CreatedAt: 1_700_000_000, PreviousHash: trustledger.GenesisPreviousHash, Nonce: 3, MerkleRoot: trustledger.EmptyMerkleRoot},
			text:  "0" + "1700000000" + "0" + "3" + "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sum := sha256.Sum256([]byte(tc.text))
			if got, want := tc.block.HeaderHash(), hex.EncodeToString(sum[:]); got != want {
				t.Errorf("HeaderHash() = %s, want %s (sha256 of %q)", got, want, tc.text)
			}
		})
	}
}

func TestHeaderHash_fieldSensitive(t *testing.T) {
	base := candidate()
	h := base.HeaderHash()

	mutations := []func(*trustledger.Block){
		func(b *trustledger.Block) { b.Index++ },
		func(b *trustledger.Block) { b.CreatedAt++ },
		func(b *trustledger.Block) { b.PreviousHash = "ff" },
		func(b *trustledger.Block) { b.Nonce++ },
		func(b *trustledger.Block) { b.MerkleRoot = "ff" },
	}
	for i, m := range mutations {
		b := candidate()
		m(b)
		if b.HeaderHash() == h {
			t.Errorf("mutation %d did not change the header hash", i)
		}
	}

	// Transactions only reach the header through MerkleRoot.
	b := candidate()
	b.Transactions[0].Amount = 12345
	if b.HeaderHash() != h {
		t.Error("transactions must not feed the header hash directly")
	}
}
