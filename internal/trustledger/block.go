package trustledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenesisPreviousHash is the previous-hash sentinel carried by the genesis block.
const GenesisPreviousHash = "0"

// Block groups an ordered list of transactions under a sealed header.
type Block struct {
	Index        uint64        `json:"index"`
	CreatedAt    int64         `json:"created_at"`
	PreviousHash string        `json:"previous_hash"`
	Transactions []Transaction `json:"transactions"`
	MerkleRoot   string        `json:"merkle_root"`
	Nonce        uint64        `json:"nonce"`
	Hash         string        `json:"hash"`
}

// newCandidate builds an unsealed block. The Merkle root is derived from txs;
// Nonce and Hash are filled in by the sealer.
func newCandidate(index uint64, createdAt int64, previousHash string, txs []Transaction) *Block {
	return &Block{
		Index:        index,
		CreatedAt:    createdAt,
		PreviousHash: previousHash,
		Transactions: txs,
		MerkleRoot:   MerkleRootOrDefault(txs),
	}
}

// HeaderHash computes the hex SHA-256 of the header fields concatenated as
// text in the fixed order index, created-at, previous hash, nonce, Merkle root.
// The transactions contribute only through MerkleRoot.
func (b *Block) HeaderHash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%d%d%s%d%s", b.Index, b.CreatedAt, b.PreviousHash, b.Nonce, b.MerkleRoot)
	return hex.EncodeToString(h.Sum(nil))
}

// IsGenesis reports whether b has the shape of the genesis sentinel.
func (b *Block) IsGenesis() bool {
	return b.Index == 0 && b.PreviousHash == GenesisPreviousHash && len(b.Transactions) == 0
}

// Clone returns a deep copy, including every transaction's signature bytes.
func (b *Block) Clone() *Block {
	c := *b
	c.Transactions = cloneTransactions(b.Transactions)
	return &c
}
