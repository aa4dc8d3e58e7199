package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/omega-cyber/trust-fabric/internal/pqsig"
	"github.com/omega-cyber/trust-fabric/internal/trustledger"
)

// Key file names inside an identity directory. Both hold lowercase hex.
const (
	PublicKeyFile  = "public.key"
	PrivateKeyFile = "private.key"
)

// Identity is a Dilithium5 keypair used to sign transactions. Keys are the
// raw packed encodings the server accepts in public_key.
type Identity struct {
	PublicKey  []byte
	PrivateKey []byte

	sig *pqsig.Service
}

// GenerateIdentity creates a fresh keypair.
func GenerateIdentity() (*Identity, error) {
	sig := pqsig.New()
	pk, sk, err := sig.GenerateKeypair()
	if err != nil {
		return nil, err
	}
	return &Identity{PublicKey: pk, PrivateKey: sk, sig: sig}, nil
}

// LoadIdentity reads public.key and private.key from dir.
//
//	id, err := client.LoadIdentity(os.ExpandEnv("$HOME/.trustfabric/keys"))
func LoadIdentity(dir string) (*Identity, error) {
	read := func(name string) (string, error) {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return "", fmt.Errorf("read %s: %w", name, err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	pkHex, err := read(PublicKeyFile)
	if err != nil {
		return nil, err
	}
	skHex, err := read(PrivateKeyFile)
	if err != nil {
		return nil, err
	}
	pk, err := pqsig.ParsePublicKey(pkHex)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", PublicKeyFile, err)
	}
	sk, err := pqsig.ParsePrivateKey(skHex)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", PrivateKeyFile, err)
	}
	return &Identity{PublicKey: pk, PrivateKey: sk, sig: pqsig.New()}, nil
}

// Save writes the keypair into dir, creating it if needed. The private key
// file is only readable by the owner. Existing files are never overwritten.
func (id *Identity) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}
	write := func(name, content string, perm os.FileMode) error {
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				return fmt.Errorf("%s already exists in %s", name, dir)
			}
			return fmt.Errorf("write %s: %w", name, err)
		}
		if _, err := f.WriteString(content + "\n"); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", name, err)
		}
		return f.Close()
	}

	if err := write(PrivateKeyFile, fmt.Sprintf("%x", id.PrivateKey), 0o600); err != nil {
		return err
	}
	return write(PublicKeyFile, fmt.Sprintf("%x", id.PublicKey), 0o644)
}

// Sign returns tx with its signature set over the server's canonical digest.
func (id *Identity) Sign(tx Transaction) (Transaction, error) {
	ltx := toLedger(tx)
	if err := ltx.Sign(id.service(), pqsig.PrivateKey(id.PrivateKey)); err != nil {
		return Transaction{}, err
	}
	tx.Signature = ltx.Signature
	return tx, nil
}

// Verify reports whether tx carries a valid signature by this identity.
func (id *Identity) Verify(tx Transaction) (bool, error) {
	ltx := toLedger(tx)
	return ltx.IsValid(id.service(), pqsig.PublicKey(id.PublicKey))
}

// Fingerprint returns a short hex prefix of the public key for display.
func (id *Identity) Fingerprint() string {
	return pqsig.PublicKey(id.PublicKey).Fingerprint()
}

func (id *Identity) service() *pqsig.Service {
	if id.sig == nil {
		return pqsig.New()
	}
	return id.sig
}

// Digest returns the hex digest the server computes for tx.
func Digest(tx Transaction) string {
	ltx := toLedger(tx)
	return fmt.Sprintf("%x", ltx.Digest())
}

func toLedger(tx Transaction) trustledger.Transaction {
	ltx := trustledger.NewTransaction(tx.Sender, tx.Recipient, tx.Amount, tx.CreatedAt)
	ltx.Signature = tx.Signature
	return ltx
}
