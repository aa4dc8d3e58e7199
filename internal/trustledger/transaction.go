package trustledger

import (
	"crypto/sha256"
	"fmt"

	"github.com/omega-cyber/trust-fabric/internal/pqsig"
)

// Signer produces a signature over a digest. *pqsig.Service implements it.
type Signer interface {
	Sign(digest []byte, key pqsig.PrivateKey) (pqsig.Signature, error)
}

// Verifier checks a signature over a digest. *pqsig.Service implements it.
type Verifier interface {
	Verify(digest []byte, sig pqsig.Signature, key pqsig.PublicKey) (bool, error)
}

// Transaction is the unit of ledger content.
type Transaction struct {
	Sender    string          `json:"sender"`
	Recipient string          `json:"recipient"`
	Amount    uint64          `json:"amount"`
	CreatedAt int64           `json:"created_at"` // unix seconds
	Signature pqsig.Signature `json:"signature,omitempty"`
}

// NewTransaction returns an unsigned transaction.
func NewTransaction(sender, recipient string, amount uint64, createdAt int64) Transaction {
	return Transaction{
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		CreatedAt: createdAt,
	}
}

// Digest returns the SHA-256 of the signable fields written as text in the
// order sender, recipient, amount, created-at with no separators.
// The signature never contributes.
func (t *Transaction) Digest() []byte {
	h := sha256.New()
	fmt.Fprintf(h, "%s%s%d%d", t.Sender, t.Recipient, t.Amount, t.CreatedAt)
	return h.Sum(nil)
}

// Sign signs the current digest and stores the signature, replacing any
// previous one.
func (t *Transaction) Sign(signer Signer, key pqsig.PrivateKey) error {
	sig, err := signer.Sign(t.Digest(), key)
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	t.Signature = sig
	return nil
}

// Signed reports whether a signature is attached.
func (t *Transaction) Signed() bool { return len(t.Signature) > 0 }

// IsValid verifies the attached signature against the current field values.
// It fails with ErrInvalidTransaction when no signature is present and
// propagates pqsig.ErrVerification for malformed signature bytes.
func (t *Transaction) IsValid(verifier Verifier, key pqsig.PublicKey) (bool, error) {
	if !t.Signed() {
		return false, fmt.Errorf("%w: transaction is not signed", ErrInvalidTransaction)
	}
	ok, err := verifier.Verify(t.Digest(), t.Signature, key)
	if err != nil {
		return false, fmt.Errorf("verify transaction: %w", err)
	}
	return ok, nil
}

// Clone returns a deep copy.
func (t Transaction) Clone() Transaction {
	if t.Signature != nil {
		t.Signature = append(pqsig.Signature(nil), t.Signature...)
	}
	return t
}

func cloneTransactions(txs []Transaction) []Transaction {
	if txs == nil {
		return nil
	}
	out := make([]Transaction, len(txs))
	for i, tx := range txs {
		out[i] = tx.Clone()
	}
	return out
}
