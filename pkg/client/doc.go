// Package client is the trust-fabric Go SDK.
//
// It wraps the ledger HTTP API: reading the chain, submitting signed
// transactions, sealing blocks and checking integrity.
//
// # Submitting a signed transaction
//
// Generate a keypair once with 'tfctl keygen' and load it:
//
//	id, err := client.LoadIdentity(os.ExpandEnv("$HOME/.trustfabric/keys"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	c := client.MustNew("http://localhost:8080")
//	tx, err := id.Sign(client.Transaction{
//	    Sender:    "Alice",
//	    Recipient: "Bob",
//	    Amount:    50,
//	    CreatedAt: time.Now().Unix(),
//	})
//	res, err := c.SubmitTransaction(ctx, tx, id.PublicKey)
//
// Passing the public key asks the server to verify the signature before the
// transaction enters the pending pool.
//
// # Sealing
//
// When the server has an admin secret configured, sealing needs a token.
// WithAdminSecret exchanges the secret on first use and refreshes the token
// before it expires:
//
//	c, err := client.New(url, client.WithAdminSecret(secret))
//	block, err := c.SealBlock(ctx)
//
// Errors carry the HTTP status in *APIError and match the package sentinels
// with errors.Is:
//
//	if errors.Is(err, client.ErrNoPending) { ... }
package client
