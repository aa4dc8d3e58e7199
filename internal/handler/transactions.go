package handler

import (
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/omega-cyber/trust-fabric/internal/pqsig"
	"github.com/omega-cyber/trust-fabric/internal/trustledger"
	"go.uber.org/zap"
)

// submitTransactionRequest is the body of POST /transactions. Byte fields
// are base64 encoded.
type submitTransactionRequest struct {
	Sender    string          `json:"sender" binding:"required"`
	Recipient string          `json:"recipient" binding:"required"`
	Amount    uint64          `json:"amount"`
	CreatedAt int64           `json:"created_at"`
	Signature pqsig.Signature `json:"signature"`
	PublicKey pqsig.PublicKey `json:"public_key"`
}

// SubmitTransaction handles POST /transactions.
//
// When public_key is present the signature is verified before the
// transaction reaches the pool: 400 for an unsigned or malformed submission,
// 422 for a signature that does not match. Without a key the transaction is
// pooled as is.
func (h *LedgerHandler) SubmitTransaction(c *gin.Context) {
	var req submitTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	createdAt := req.CreatedAt
	if createdAt == 0 && len(req.Signature) == 0 {
		createdAt = h.now().Unix()
	}
	tx := trustledger.NewTransaction(req.Sender, req.Recipient, req.Amount, createdAt)
	tx.Signature = req.Signature

	verified := false
	if len(req.PublicKey) > 0 {
		ok, err := tx.IsValid(h.verifier, req.PublicKey)
		switch {
		case errors.Is(err, trustledger.ErrInvalidTransaction), errors.Is(err, pqsig.ErrVerification):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case err != nil:
			h.logger.Error("verify transaction", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "signature verification failed"})
			return
		case !ok:
			h.logger.Info("rejected transaction with bad signature",
				zap.String("sender", tx.Sender),
				zap.String("key", req.PublicKey.Fingerprint()),
			)
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "signature does not match transaction"})
			return
		}
		verified = true
	}

	ctx := c.Request.Context()
	if err := h.ledger.AddTransaction(ctx, tx); err != nil {
		h.logger.Error("add transaction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add transaction"})
		return
	}
	RecordTransaction(verified)

	pending, err := h.ledger.Pending(ctx)
	if err != nil {
		h.logger.Error("ledger Pending", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query pending pool"})
		return
	}
	SetPendingGauge(len(pending))

	c.JSON(http.StatusAccepted, gin.H{
		"digest":     hex.EncodeToString(tx.Digest()),
		"created_at": tx.CreatedAt,
		"verified":   verified,
		"pending":    len(pending),
	})
}
