package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/omega-cyber/trust-fabric/internal/audit"
	"github.com/omega-cyber/trust-fabric/internal/config"
	"github.com/omega-cyber/trust-fabric/internal/miner"
	"github.com/omega-cyber/trust-fabric/internal/pqsig"
	"github.com/omega-cyber/trust-fabric/internal/trustledger"
	"go.uber.org/zap"
)

func testRouter(t *testing.T) (*gin.Engine, *trustledger.MemoryLedger) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ledger, err := trustledger.New(trustledger.Config{Difficulty: 1}, zap.NewNop())
	if err != nil {
		t.Fatalf("trustledger.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := miner.New(ledger, miner.Config{SealTimeout: 10 * time.Second}, zap.NewNop())
	m.Start(ctx)
	t.Cleanup(func() {
		cancel()
		<-m.Done()
	})

	auditor := audit.New(ledger, audit.Config{Interval: time.Hour}, zap.NewNop())
	auditor.CheckOnce(ctx)

	cfg := &config.Config{Server: config.ServerConfig{
		CORSOrigins:  []string{"http://localhost:3000"},
		RateLimitRPS: 1000,
	}}
	r := newRouter(ctx, routerDeps{
		cfg:      cfg,
		ledger:   ledger,
		sealer:   m,
		verifier: pqsig.New(),
		auditor:  auditor,
		logger:   zap.NewNop(),
	})
	return r, ledger
}

func TestHealthz(t *testing.T) {
	r, _ := testRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "ok" || resp["chain_intact"] != true {
		t.Errorf("unexpected health body: %v", resp)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
}

func TestSubmitSealValidate_endToEnd(t *testing.T) {
	r, ledger := testRouter(t)

	body := `{"sender":"Alice","recipient":"Bob","amount":50}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("submit: expected 202, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/blocks", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("seal: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	if n, _ := ledger.Len(context.Background()); n != 2 {
		t.Errorf("chain length = %d, want 2", n)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ledger/validate", nil))
	var report trustledger.ValidationReport
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if !report.Valid || report.BlocksChecked != 2 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := testRouter(t)

	// one request so the request counter has a sample
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/ledger", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "tf_requests_total") {
		t.Error("metrics output missing tf_requests_total")
	}
}

func TestAuthRoute_absentWithoutAdmin(t *testing.T) {
	r, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(`{"secret":"x"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 when admin auth is disabled, got %d", w.Code)
	}
}
