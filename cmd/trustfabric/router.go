package main

import (
	"context"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/omega-cyber/trust-fabric/internal/audit"
	"github.com/omega-cyber/trust-fabric/internal/config"
	"github.com/omega-cyber/trust-fabric/internal/handler"
	"github.com/omega-cyber/trust-fabric/internal/identity"
	"github.com/omega-cyber/trust-fabric/internal/trustledger"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type routerDeps struct {
	cfg      *config.Config
	ledger   trustledger.Ledger
	sealer   handler.Sealer
	verifier trustledger.Verifier
	tokens   *identity.TokenIssuer // nil = sealing is open
	auditor  *audit.Auditor        // nil = no audit status on /healthz
	logger   *zap.Logger
}

func newRouter(ctx context.Context, d routerDeps) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handler.RequestID())

	if len(d.cfg.Server.CORSOrigins) > 0 {
		router.Use(handler.CORS(d.cfg.Server.CORSOrigins))
	}
	router.Use(handler.SecurityHeaders())
	router.Use(handler.BodyLimit(maxBodyBytes))
	if rps := d.cfg.Server.RateLimitRPS; rps > 0 {
		router.Use(handler.RateLimiter(ctx, rps, rps*2))
	}
	router.Use(handler.PrometheusMiddleware())
	router.Use(handler.RequestLogger(d.logger))

	router.GET("/healthz", healthz(d.auditor))
	router.GET("/metrics", handler.MetricsHandler())

	v1 := router.Group("/api/v1")
	ledgerHandler := handler.NewLedgerHandler(d.ledger, d.sealer, d.verifier, d.logger)
	if d.tokens != nil {
		ledgerHandler.SetTokenIssuer(d.tokens)
		handler.NewAuthHandler(d.tokens, d.logger).Register(v1)
	}
	ledgerHandler.Register(v1)

	return router
}

// healthz reports liveness plus the outcome of the most recent audit.
func healthz(auditor *audit.Auditor) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := gin.H{"status": "ok"}
		if auditor != nil {
			if report, at, ok := auditor.Last(); ok {
				resp["chain_intact"] = report.Valid
				resp["audited_at"] = at
				if !report.Valid {
					resp["first_failure"] = report.First
				}
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}
