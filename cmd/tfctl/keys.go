package main

import (
	"fmt"
	"time"

	"github.com/omega-cyber/trust-fabric/pkg/client"
	"github.com/spf13/cobra"
)

var keyDir string

// ── keygen ───────────────────────────────────────────────────────────────────

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a Dilithium5 keypair for signing transactions",
	Long: `keygen writes public.key and private.key (hex) into the key directory.
Existing keys are never overwritten.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := client.GenerateIdentity()
		if err != nil {
			return err
		}
		if err := id.Save(keyDir); err != nil {
			return err
		}
		if outputJSON {
			return printJSON(map[string]string{"dir": keyDir, "fingerprint": id.Fingerprint()})
		}
		fmt.Printf("Keys written to %s\n", keyDir)
		fmt.Printf("Fingerprint:  %s\n", id.Fingerprint())
		return nil
	},
}

// ── sign ─────────────────────────────────────────────────────────────────────

var (
	txSender    string
	txRecipient string
	txAmount    uint64
	txCreatedAt int64
)

func addTxFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&txSender, "from", "", "Sender (required)")
	cmd.Flags().StringVar(&txRecipient, "to", "", "Recipient (required)")
	cmd.Flags().Uint64Var(&txAmount, "amount", 0, "Amount")
	cmd.Flags().Int64Var(&txCreatedAt, "created-at", 0, "Unix timestamp (default now)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
}

func flagTransaction() client.Transaction {
	createdAt := txCreatedAt
	if createdAt == 0 {
		createdAt = time.Now().Unix()
	}
	return client.Transaction{
		Sender:    txSender,
		Recipient: txRecipient,
		Amount:    txAmount,
		CreatedAt: createdAt,
	}
}

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a transaction offline and print it as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := client.LoadIdentity(keyDir)
		if err != nil {
			return fmt.Errorf("load keys (run 'tfctl keygen' first): %w", err)
		}
		tx, err := id.Sign(flagTransaction())
		if err != nil {
			return err
		}
		return printJSON(map[string]any{
			"transaction": tx,
			"digest":      client.Digest(tx),
			"public_key":  id.PublicKey,
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{keygenCmd, signCmd} {
		c.Flags().StringVar(&keyDir, "keys", "", "key directory (default ~/.trustfabric/keys)")
	}
	addTxFlags(signCmd)

	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(signCmd)
}
