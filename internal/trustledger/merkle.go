package trustledger

import (
	"crypto/sha256"
	"encoding/hex"
)

// EmptyMerkleRoot is the root recorded for a block without transactions.
const EmptyMerkleRoot = ""

// MerkleRoot reduces the transactions' digests to a single root. Each leaf is
// a transaction's Digest; adjacent hashes are concatenated and hashed pairwise
// until one remains, duplicating the last hash of any odd-sized level.
//
// The returned root is the hex encoding of that final hash with no further
// hashing, so a single transaction's root is the hex of its digest.
// ok is false for an empty list.
func MerkleRoot(txs []Transaction) (root string, ok bool) {
	if len(txs) == 0 {
		return "", false
	}

	level := make([][]byte, len(txs))
	for i := range txs {
		level[i] = txs[i].Digest()
	}

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][]byte, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, hashPair(level[i], level[i+1]))
		}
		level = next
	}

	return hex.EncodeToString(level[0]), true
}

// MerkleRootOrDefault is MerkleRoot with EmptyMerkleRoot for an empty list.
func MerkleRootOrDefault(txs []Transaction) string {
	root, ok := MerkleRoot(txs)
	if !ok {
		return EmptyMerkleRoot
	}
	return root
}

func hashPair(left, right []byte) []byte {
	h := sha256.New()
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}
