package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/omega-cyber/trust-fabric/pkg/client"
	"github.com/spf13/cobra"
)

// ── submit ───────────────────────────────────────────────────────────────────

var submitUnsigned bool

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Sign a transaction and add it to the server's pending pool",
	Long: `submit signs the transaction with the local keypair and sends it together
with the public key, so the server verifies the signature on intake.
Use --unsigned to pool a transaction without a signature.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		tx := flagTransaction()
		var publicKey []byte
		if !submitUnsigned {
			id, err := client.LoadIdentity(keyDir)
			if err != nil {
				return fmt.Errorf("load keys (run 'tfctl keygen' first): %w", err)
			}
			if tx, err = id.Sign(tx); err != nil {
				return err
			}
			publicKey = id.PublicKey
		}

		res, err := c.SubmitTransaction(cmd.Context(), tx, publicKey)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(res)
		}
		fmt.Printf("Accepted:  %s\n", res.Digest)
		fmt.Printf("Verified:  %t\n", res.Verified)
		fmt.Printf("Pending:   %d\n", res.Pending)
		return nil
	},
}

// ── seal ─────────────────────────────────────────────────────────────────────

var sealTimeout time.Duration

var sealCmd = &cobra.Command{
	Use:   "seal",
	Short: "Seal all pending transactions into a new block",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), sealTimeout)
		defer cancel()

		start := time.Now()
		b, err := c.SealBlock(ctx)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(b)
		}
		fmt.Printf("Sealed block %d in %s\n", b.Index, time.Since(start).Round(time.Millisecond))
		printBlock(b)
		return nil
	},
}

// ── chain / block / pending ──────────────────────────────────────────────────

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "List every block from genesis to the tip",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		blocks, err := c.Chain(cmd.Context())
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(blocks)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "INDEX\tTXS\tNONCE\tHASH\tPREVIOUS")
		for _, b := range blocks {
			fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\n", b.Index, len(b.Transactions), b.Nonce, b.Hash, b.PreviousHash)
		}
		return w.Flush()
	},
}

var blockCmd = &cobra.Command{
	Use:   "block <index>",
	Short: "Show one block and its transactions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := strconv.Atoi(args[0])
		if err != nil || idx < 0 {
			return fmt.Errorf("index must be a non-negative integer")
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		b, err := c.GetBlock(cmd.Context(), idx)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(b)
		}
		printBlock(b)
		return nil
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List transactions waiting to be sealed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		txs, err := c.Pending(cmd.Context())
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(txs)
		}
		printTransactions(txs)
		return nil
	},
}

// ── validate ─────────────────────────────────────────────────────────────────

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Ask the server to validate the whole chain",
	Long:  "validate exits non-zero when the chain is broken.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		report, err := c.Validate(cmd.Context())
		if err != nil {
			return err
		}
		if outputJSON {
			if err := printJSON(report); err != nil {
				return err
			}
		} else if report.Valid {
			fmt.Printf("Chain valid (%d blocks)\n", report.BlocksChecked)
		} else {
			fmt.Printf("Chain BROKEN (%d blocks checked, %d failures)\n", report.BlocksChecked, len(report.Failures))
			for _, f := range report.Failures {
				fmt.Printf("  block %d: %s: %s\n", f.BlockIndex, f.Check, f.Detail)
			}
		}
		if !report.Valid {
			return fmt.Errorf("chain validation failed at block %d (%s)", report.First.BlockIndex, report.First.Check)
		}
		return nil
	},
}

func printBlock(b *client.Block) {
	fmt.Printf("Index:        %d\n", b.Index)
	fmt.Printf("Created:      %s\n", time.Unix(b.CreatedAt, 0).UTC().Format(time.RFC3339))
	fmt.Printf("Previous:     %s\n", b.PreviousHash)
	fmt.Printf("Merkle root:  %s\n", b.MerkleRoot)
	fmt.Printf("Nonce:        %d\n", b.Nonce)
	fmt.Printf("Hash:         %s\n", b.Hash)
	if len(b.Transactions) > 0 {
		fmt.Println()
		printTransactions(b.Transactions)
	}
}

func printTransactions(txs []client.Transaction) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SENDER\tRECIPIENT\tAMOUNT\tCREATED\tSIGNED\tDIGEST")
	for _, tx := range txs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%t\t%s\n",
			tx.Sender, tx.Recipient, tx.Amount, tx.CreatedAt, len(tx.Signature) > 0, client.Digest(tx)[:16])
	}
	w.Flush()
}

func init() {
	submitCmd.Flags().StringVar(&keyDir, "keys", "", "key directory (default ~/.trustfabric/keys)")
	submitCmd.Flags().BoolVar(&submitUnsigned, "unsigned", false, "submit without signing")
	addTxFlags(submitCmd)

	sealCmd.Flags().DurationVar(&sealTimeout, "timeout", 2*time.Minute, "give up waiting after this long")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(sealCmd)
	rootCmd.AddCommand(chainCmd)
	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(validateCmd)
}
