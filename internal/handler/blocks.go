package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/omega-cyber/trust-fabric/internal/identity"
	"github.com/omega-cyber/trust-fabric/internal/miner"
	"github.com/omega-cyber/trust-fabric/internal/trustledger"
	"go.uber.org/zap"
)

// SealBlock handles POST /blocks: seals every pending transaction into a new
// block and returns it.
func (h *LedgerHandler) SealBlock(c *gin.Context) {
	block, err := h.sealer.Seal(c.Request.Context())
	switch {
	case err == nil:
	case errors.Is(err, trustledger.ErrNoPendingTransactions):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, trustledger.ErrSealTimeout), errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("seal timed out", zap.Error(err))
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "seal timed out"})
		return
	case errors.Is(err, miner.ErrQueueFull), errors.Is(err, miner.ErrStopped):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful to write
		c.Status(499)
		return
	default:
		h.logger.Error("seal block", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to seal block"})
		return
	}

	fields := []zap.Field{
		zap.Uint64("index", block.Index),
		zap.String("hash", block.Hash),
		zap.Int("transactions", len(block.Transactions)),
	}
	if claims := identity.ClaimsFromCtx(c); claims != nil {
		fields = append(fields, zap.String("sealed_by", claims.Subject))
	}
	h.logger.Info("block sealed via API", fields...)

	c.JSON(http.StatusCreated, block)
}
