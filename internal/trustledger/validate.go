package trustledger

import "fmt"

// Check names one integrity rule applied by the validator.
type Check string

const (
	CheckGenesis    Check = "genesis"
	CheckIndex      Check = "index"
	CheckLinkage    Check = "linkage"
	CheckHash       Check = "hash"
	CheckDifficulty Check = "difficulty"
	CheckMerkleRoot Check = "merkle_root"
)

// Failure describes one broken rule on one block.
type Failure struct {
	BlockIndex int    `json:"block_index"` // position in the chain
	Check      Check  `json:"check"`
	Detail     string `json:"detail"`
}

func (f Failure) String() string {
	return fmt.Sprintf("block %d: %s: %s", f.BlockIndex, f.Check, f.Detail)
}

// ValidationReport is the outcome of a full-chain walk. When Valid is false,
// First holds the earliest failure in chain order and Failures lists every
// failure found.
type ValidationReport struct {
	Valid         bool      `json:"valid"`
	BlocksChecked int       `json:"blocks_checked"`
	First         *Failure  `json:"first_failure,omitempty"`
	Failures      []Failure `json:"failures,omitempty"`
}

// Error renders the first failure; it is empty for a valid chain.
func (r ValidationReport) Error() string {
	if r.First == nil {
		return ""
	}
	return r.First.String()
}

// ValidateChain checks every block of chain without modifying it.
//
// Block 0 must be the genesis sentinel; every later block must continue the
// index sequence and link to the prior block's stored hash. All blocks are
// then checked, in this order, for a stored hash equal to the recomputed
// header hash, the difficulty prefix, and a Merkle root matching their
// transactions.
func ValidateChain(chain []*Block, difficulty int) ValidationReport {
	r := ValidationReport{BlocksChecked: len(chain)}
	fail := func(i int, c Check, format string, args ...any) {
		r.Failures = append(r.Failures, Failure{BlockIndex: i, Check: c, Detail: fmt.Sprintf(format, args...)})
	}

	if len(chain) == 0 {
		fail(0, CheckGenesis, "chain is empty")
	}

	for i, b := range chain {
		if i == 0 {
			if !b.IsGenesis() {
				fail(i, CheckGenesis, "index=%d previous_hash=%q transactions=%d", b.Index, b.PreviousHash, len(b.Transactions))
			}
		} else {
			prev := chain[i-1]
			if b.Index != prev.Index+1 {
				fail(i, CheckIndex, "index %d follows %d", b.Index, prev.Index)
			}
			if b.PreviousHash != prev.Hash {
				fail(i, CheckLinkage, "previous_hash %s does not match prior block hash %s", b.PreviousHash, prev.Hash)
			}
		}
		if got := b.HeaderHash(); got != b.Hash {
			fail(i, CheckHash, "stored %s, computed %s", b.Hash, got)
		}
		if !MeetsDifficulty(b.Hash, difficulty) {
			fail(i, CheckDifficulty, "hash %s lacks %d leading zeros", b.Hash, difficulty)
		}
		if got := MerkleRootOrDefault(b.Transactions); got != b.MerkleRoot {
			fail(i, CheckMerkleRoot, "stored %s, computed %s", b.MerkleRoot, got)
		}
	}

	r.Valid = len(r.Failures) == 0
	if !r.Valid {
		r.First = &r.Failures[0]
	}
	return r
}
