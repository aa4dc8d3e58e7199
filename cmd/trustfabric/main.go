// Command trustfabric serves the trust-fabric ledger over HTTP, with a gRPC
// health endpoint that tracks the background chain audit.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/omega-cyber/trust-fabric/internal/audit"
	"github.com/omega-cyber/trust-fabric/internal/config"
	"github.com/omega-cyber/trust-fabric/internal/handler"
	"github.com/omega-cyber/trust-fabric/internal/identity"
	"github.com/omega-cyber/trust-fabric/internal/logging"
	"github.com/omega-cyber/trust-fabric/internal/miner"
	"github.com/omega-cyber/trust-fabric/internal/pqsig"
	"github.com/omega-cyber/trust-fabric/internal/trustledger"
	"github.com/omega-cyber/trust-fabric/internal/webhooks"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// healthServiceName is the gRPC health service reporting chain integrity.
const healthServiceName = "trustfabric.Ledger"

func main() {
	cfg, err := config.Load(os.Getenv("TRUSTFABRIC_CONFIG"))
	if err != nil {
		boot, _ := zap.NewProduction()
		boot.Fatal("load config", zap.Error(err))
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		boot, _ := zap.NewProduction()
		boot.Fatal("build logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("trustfabric exited with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	// ── Webhooks ──────────────────────────────────────────────────────────────
	subs := make([]webhooks.Subscription, len(cfg.Webhooks))
	for i, w := range cfg.Webhooks {
		subs[i] = webhooks.Subscription{URL: w.URL, Secret: w.Secret, Events: w.Events}
	}
	hooks, err := webhooks.NewService(subs, logger.Named("webhooks"))
	if err != nil {
		return fmt.Errorf("webhooks: %w", err)
	}
	hooks.SetMetricsRecorder(handler.RecordWebhookDelivery)
	if hooks.Len() > 0 {
		logger.Info("webhooks configured", zap.Int("subscriptions", hooks.Len()))
	}

	// ── Ledger ────────────────────────────────────────────────────────────────
	ledger, err := trustledger.New(trustledger.Config{
		Difficulty:      cfg.Ledger.Difficulty,
		MaxSealAttempts: cfg.Ledger.MaxSealAttempts,
	}, logger.Named("ledger"))
	if err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}
	ledger.SetSealObserver(func(b *trustledger.Block, attempts uint64, elapsed time.Duration) {
		handler.RecordSeal(b, attempts, elapsed)
		hooks.Dispatch(workerCtx, webhooks.EventBlockSealed, map[string]string{
			"index":        strconv.FormatUint(b.Index, 10),
			"hash":         b.Hash,
			"merkle_root":  b.MerkleRoot,
			"transactions": strconv.Itoa(len(b.Transactions)),
		})
	})
	handler.SetChainHeight(1)

	root, _ := ledger.Root(ctx)
	logger.Info("ledger ready",
		zap.String("genesis", root),
		zap.Int("difficulty", ledger.Difficulty()),
	)

	// ── Miner ─────────────────────────────────────────────────────────────────
	m := miner.New(ledger, miner.Config{
		AutoSealInterval: cfg.Ledger.AutoSealInterval,
		SealTimeout:      cfg.Ledger.SealTimeout,
		QueueSize:        cfg.Ledger.MinerQueueSize,
	}, logger.Named("miner"))
	m.SetResultRecord(func(r miner.Result) {
		handler.RecordSealJob(r)
		if pending, err := ledger.Pending(workerCtx); err == nil {
			handler.SetPendingGauge(len(pending))
		}
	})
	m.Start(workerCtx)

	// ── gRPC health + audit ──────────────────────────────────────────────────
	healthSvc := health.NewServer()
	healthSvc.SetServingStatus(healthServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	auditor := audit.New(ledger, audit.Config{Interval: cfg.Audit.Interval}, logger.Named("audit"))
	auditor.SetMetricsRecord(handler.RecordAudit)
	firstAudit := true
	auditor.SetStatusFunc(func(intact bool) {
		st := grpc_health_v1.HealthCheckResponse_SERVING
		if !intact {
			st = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
		healthSvc.SetServingStatus(healthServiceName, st)

		switch {
		case !intact:
			report, _, _ := auditor.Last()
			hooks.Dispatch(workerCtx, webhooks.EventChainBroken, map[string]string{
				"block":  strconv.Itoa(report.First.BlockIndex),
				"check":  string(report.First.Check),
				"detail": report.First.Detail,
			})
		case !firstAudit:
			hooks.Dispatch(workerCtx, webhooks.EventChainRestored, nil)
		}
		firstAudit = false
	})
	go auditor.Start(workerCtx)

	// ── Admin tokens ─────────────────────────────────────────────────────────
	var tokens *identity.TokenIssuer
	if cfg.AdminEnabled() {
		tokens, err = identity.NewTokenIssuer(cfg.Admin.SecretHash, cfg.Admin.TokenSigningKey, cfg.Admin.Issuer, cfg.Admin.TokenTTL)
		if err != nil {
			return fmt.Errorf("admin tokens: %w", err)
		}
		logger.Info("admin token auth enabled for sealing", zap.Duration("token_ttl", tokens.TTL()))
	} else {
		logger.Warn("admin.secret_hash not set; POST /api/v1/blocks is open")
	}

	router := newRouter(workerCtx, routerDeps{
		cfg:      cfg,
		ledger:   ledger,
		sealer:   m,
		verifier: pqsig.New(),
		tokens:   tokens,
		auditor:  auditor,
		logger:   logger,
	})

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("trustfabric HTTP listening", zap.Int("port", cfg.Server.HTTPPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP listen: %w", err)
		}
	}()

	var grpcServer *grpc.Server
	if cfg.Server.GRPCPort > 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
		if err != nil {
			return fmt.Errorf("gRPC listen on :%d: %w", cfg.Server.GRPCPort, err)
		}
		grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
		grpc_health_v1.RegisterHealthServer(grpcServer, healthSvc)
		reflection.Register(grpcServer)

		go func() {
			logger.Info("trustfabric gRPC health listening", zap.Int("port", cfg.Server.GRPCPort))
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- fmt.Errorf("gRPC serve: %w", err)
			}
		}()
	}

	// ── Graceful shutdown ──────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	logger.Info("shutting down trustfabric...")
	healthSvc.Shutdown()

	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	cancelWorkers()
	<-m.Done()
	<-auditor.Done()
	hooks.Wait()

	n, _ := ledger.Len(context.Background())
	root, _ = ledger.Root(context.Background())
	logger.Info("trustfabric stopped", zap.Int("blocks", n), zap.String("root", root))
	return nil
}

// loggingInterceptor returns a gRPC unary server interceptor that logs each call.
func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		logger.Debug("grpc",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
		)
		return resp, err
	}
}
