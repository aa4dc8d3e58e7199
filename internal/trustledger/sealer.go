package trustledger

import (
	"context"
	"fmt"
	"math"
)

// DefaultDifficulty is the number of leading zero hex characters required
// when a Config leaves Difficulty unset.
const DefaultDifficulty = 2

// MaxDifficulty is the length of a hex-encoded SHA-256 hash.
const MaxDifficulty = 64

// ctxCheckInterval is how many nonces are tried between context checks.
const ctxCheckInterval = 1 << 12

// Sealer performs the proof-of-work nonce search.
//
// The search always starts at nonce 0 and increments by one, so identical
// candidate headers converge on the same nonce and hash.
type Sealer struct {
	Difficulty int
	// MaxAttempts bounds the search; 0 means unbounded.
	MaxAttempts uint64
}

// NewSealer returns a Sealer for the given difficulty and attempt budget.
func NewSealer(difficulty int, maxAttempts uint64) (*Sealer, error) {
	if difficulty < 0 || difficulty > MaxDifficulty {
		return nil, fmt.Errorf("difficulty must be between 0 and %d, got %d", MaxDifficulty, difficulty)
	}
	return &Sealer{Difficulty: difficulty, MaxAttempts: maxAttempts}, nil
}

// Seal searches for a nonce giving b a header hash with the required prefix
// and stores the nonce and hash on b. It returns the number of hashes tried.
//
// On cancellation Seal returns ctx.Err(); when MaxAttempts is exhausted it
// returns ErrSealTimeout. In both cases b's Nonce and Hash are cleared.
func (s *Sealer) Seal(ctx context.Context, b *Block) (uint64, error) {
	var attempts uint64
	for nonce := uint64(0); ; nonce++ {
		if attempts%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				b.Nonce, b.Hash = 0, ""
				return attempts, err
			}
		}
		if s.MaxAttempts > 0 && attempts >= s.MaxAttempts {
			b.Nonce, b.Hash = 0, ""
			return attempts, fmt.Errorf("%w: %d attempts at difficulty %d", ErrSealTimeout, attempts, s.Difficulty)
		}

		b.Nonce = nonce
		hash := b.HeaderHash()
		attempts++
		if MeetsDifficulty(hash, s.Difficulty) {
			b.Hash = hash
			return attempts, nil
		}
		if nonce == math.MaxUint64 {
			b.Nonce, b.Hash = 0, ""
			return attempts, fmt.Errorf("%w: nonce space exhausted", ErrSealTimeout)
		}
	}
}

// MeetsDifficulty reports whether hash starts with difficulty '0' characters.
func MeetsDifficulty(hash string, difficulty int) bool {
	if difficulty > len(hash) {
		return false
	}
	for i := 0; i < difficulty; i++ {
		if hash[i] != '0' {
			return false
		}
	}
	return true
}
