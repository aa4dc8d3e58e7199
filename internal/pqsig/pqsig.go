// Package pqsig wraps the post-quantum signature scheme used for every
// transaction in the trust fabric.
//
// The scheme is fixed to Dilithium (security level 5). Keys and signatures
// are opaque byte slices in the library's packed encoding; nothing in the
// ledger adds framing on top of them.
package pqsig

import (
	"crypto"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode5"
)

// Algorithm identifies the signature scheme shared by the whole ledger.
const Algorithm = "Dilithium5"

// Encoded sizes of the packed key and signature blobs.
const (
	PublicKeySize  = mode5.PublicKeySize
	PrivateKeySize = mode5.PrivateKeySize
	SignatureSize  = mode5.SignatureSize
)

var (
	// ErrKeyGeneration is returned when a keypair cannot be produced.
	ErrKeyGeneration = errors.New("pqsig: key generation failed")
	// ErrSigning is returned when a private key cannot be decoded or signing fails.
	ErrSigning = errors.New("pqsig: signing failed")
	// ErrVerification is returned only for malformed encodings. A signature
	// that simply does not match is reported as false, not as an error.
	ErrVerification = errors.New("pqsig: malformed signature or key")
)

// PublicKey is a packed Dilithium5 public key.
type PublicKey []byte

// PrivateKey is a packed Dilithium5 private key.
type PrivateKey []byte

// Signature is a Dilithium5 signature.
type Signature []byte

// Fingerprint returns the first eight bytes of the key, hex-encoded, for logs.
func (k PublicKey) Fingerprint() string {
	if len(k) > 8 {
		return hex.EncodeToString(k[:8])
	}
	return hex.EncodeToString(k)
}

// String implements fmt.Stringer.
func (k PublicKey) String() string { return k.Fingerprint() }

// String never prints key material.
func (k PrivateKey) String() string { return "pqsig.PrivateKey(redacted)" }

// ParsePublicKey decodes a hex-encoded public key and checks its length.
func ParsePublicKey(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	if len(b) != PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", PublicKeySize, len(b))
	}
	return PublicKey(b), nil
}

// ParsePrivateKey decodes a hex-encoded private key and checks its length.
func ParsePrivateKey(s string) (PrivateKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(b) != PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", PrivateKeySize, len(b))
	}
	return PrivateKey(b), nil
}

// Service generates keys, signs digests and verifies signatures.
// It holds no mutable state and is safe for concurrent use.
type Service struct {
	rand io.Reader
}

// New creates a Service reading randomness from crypto/rand.
func New() *Service {
	return &Service{rand: rand.Reader}
}

// NewWithRand creates a Service drawing key material from r.
// Intended for reproducible keys in tests.
func NewWithRand(r io.Reader) *Service {
	return &Service{rand: r}
}

// GenerateKeypair creates a fresh Dilithium5 keypair.
func (s *Service) GenerateKeypair() (PublicKey, PrivateKey, error) {
	pk, sk, err := mode5.GenerateKey(s.rand)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	pub, err := pk.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: pack public key: %v", ErrKeyGeneration, err)
	}
	priv, err := sk.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: pack private key: %v", ErrKeyGeneration, err)
	}
	return PublicKey(pub), PrivateKey(priv), nil
}

// Sign signs digest with key.
func (s *Service) Sign(digest []byte, key PrivateKey) (Signature, error) {
	var sk mode5.PrivateKey
	if err := sk.UnmarshalBinary(key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	sig, err := sk.Sign(s.rand, digest, crypto.Hash(0))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return Signature(sig), nil
}

// Verify reports whether sig is a valid signature of digest under key.
func (s *Service) Verify(digest []byte, sig Signature, key PublicKey) (bool, error) {
	if len(sig) != SignatureSize {
		return false, fmt.Errorf("%w: signature is %d bytes, want %d", ErrVerification, len(sig), SignatureSize)
	}
	var pk mode5.PublicKey
	if err := pk.UnmarshalBinary(key); err != nil {
		return false, fmt.Errorf("%w: %v", ErrVerification, err)
	}
	return mode5.Verify(&pk, digest, sig), nil
}
