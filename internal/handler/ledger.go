package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/omega-cyber/trust-fabric/internal/identity"
	"github.com/omega-cyber/trust-fabric/internal/trustledger"
	"go.uber.org/zap"
)

// Sealer seals the pending pool into a block. *miner.Miner implements it.
type Sealer interface {
	Seal(ctx context.Context) (*trustledger.Block, error)
}

// LedgerHandler exposes the chain, the pending pool and sealing over HTTP.
type LedgerHandler struct {
	ledger   trustledger.Ledger
	sealer   Sealer
	verifier trustledger.Verifier
	tokens   *identity.TokenIssuer // nil = sealing is open
	now      func() time.Time
	logger   *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger trustledger.Ledger, sealer Sealer, verifier trustledger.Verifier, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger:   ledger,
		sealer:   sealer,
		verifier: verifier,
		now:      time.Now,
		logger:   logger,
	}
}

// SetTokenIssuer makes POST /blocks require an admin token with the seal scope.
func (h *LedgerHandler) SetTokenIssuer(tokens *identity.TokenIssuer) {
	h.tokens = tokens
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/ledger")
	{
		l.GET("", h.Overview)
		l.GET("/validate", h.Validate)
		l.GET("/blocks/:idx", h.GetBlock)
	}
	rg.GET("/transactions/pending", h.Pending)
	rg.POST("/transactions", h.SubmitTransaction)
	rg.POST("/blocks", h.requireSealToken(), h.SealBlock)
}

func (h *LedgerHandler) requireSealToken() gin.HandlerFunc {
	if h.tokens == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return identity.RequireToken(h.tokens, identity.ScopeSeal)
}

// Overview handles GET /ledger: chain height, tip hash, pool size and difficulty.
func (h *LedgerHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()

	count, err := h.ledger.Len(ctx)
	if err != nil {
		h.logger.Error("ledger Len", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger"})
		return
	}
	root, err := h.ledger.Root(ctx)
	if err != nil {
		h.logger.Error("ledger Root", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger root"})
		return
	}
	pending, err := h.ledger.Pending(ctx)
	if err != nil {
		h.logger.Error("ledger Pending", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query pending pool"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"blocks":     count,
		"root":       root,
		"pending":    len(pending),
		"difficulty": h.ledger.Difficulty(),
	})
}

// Validate handles GET /ledger/validate. A broken chain is still a 200; the
// report says what broke.
func (h *LedgerHandler) Validate(c *gin.Context) {
	report := h.ledger.Validate(c.Request.Context())
	if !report.Valid {
		h.logger.Warn("ledger integrity check failed", zap.String("first_failure", report.Error()))
	}
	c.JSON(http.StatusOK, report)
}

// GetBlock handles GET /ledger/blocks/:idx.
func (h *LedgerHandler) GetBlock(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil || idx < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idx must be a non-negative integer"})
		return
	}

	block, err := h.ledger.Get(c.Request.Context(), idx)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
		return
	}
	c.JSON(http.StatusOK, block)
}

// Pending handles GET /transactions/pending.
func (h *LedgerHandler) Pending(c *gin.Context) {
	pending, err := h.ledger.Pending(c.Request.Context())
	if err != nil {
		h.logger.Error("ledger Pending", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query pending pool"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":        len(pending),
		"transactions": pending,
	})
}
