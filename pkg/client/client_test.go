package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/omega-cyber/trust-fabric/pkg/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Stub server ─────────────────────────────────────────────────────────

type stubServer struct {
	*httptest.Server
	tokenCalls  atomic.Int32
	lastAuth    atomic.Value // string
	lastSubmit  atomic.Value // map[string]any
	sealStatus  int
	tokenExpiry int
}

func newStubServer(t *testing.T, opts ...func(*stubServer)) *stubServer {
	t.Helper()
	s := &stubServer{sealStatus: http.StatusCreated, tokenExpiry: 3600}
	for _, o := range opts {
		o(s)
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/ledger", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"blocks": 2, "root": "00ab", "pending": 1, "difficulty": 2,
		})
	})
	mux.HandleFunc("GET /api/v1/ledger/blocks/{idx}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("idx") {
		case "0":
			json.NewEncoder(w).Encode(map[string]any{"index": 0, "previous_hash": "0", "hash": "00aa", "transactions": []any{}})
		case "1":
			json.NewEncoder(w).Encode(map[string]any{"index": 1, "previous_hash": "00aa", "hash": "00ab",
				"transactions": []any{map[string]any{"sender": "Alice", "recipient": "Bob", "amount": 50}}})
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]any{"error": "block not found"})
		}
	})
	mux.HandleFunc("GET /api/v1/ledger/validate", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"valid": false, "blocks_checked": 2,
			"first_failure": map[string]any{"block_index": 1, "check": "merkle_root", "detail": "mismatch"},
			"failures":      []any{map[string]any{"block_index": 1, "check": "merkle_root", "detail": "mismatch"}},
		})
	})
	mux.HandleFunc("GET /api/v1/transactions/pending", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"count":        1,
			"transactions": []any{map[string]any{"sender": "Carol", "recipient": "Dan", "amount": 7}},
		})
	})
	mux.HandleFunc("POST /api/v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		s.lastSubmit.Store(body)
		if body["amount"].(float64) == 666 {
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]any{"error": "signature does not match transaction"})
			return
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]any{
			"digest": "beef", "created_at": body["created_at"], "verified": body["public_key"] != nil, "pending": 2,
		})
	})
	mux.HandleFunc("POST /api/v1/auth/token", func(w http.ResponseWriter, r *http.Request) {
		s.tokenCalls.Add(1)
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["secret"] != "operator-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{"error": "invalid credentials"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"token": "tok-1", "token_type": "Bearer", "expires_in": s.tokenExpiry})
	})
	mux.HandleFunc("POST /api/v1/blocks", func(w http.ResponseWriter, r *http.Request) {
		s.lastAuth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(s.sealStatus)
		if s.sealStatus != http.StatusCreated {
			json.NewEncoder(w).Encode(map[string]any{"error": http.StatusText(s.sealStatus)})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"index": 2, "hash": "00cd", "nonce": 42})
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// ── Tests ───────────────────────────────────────────────────────────────

func TestNew_validation(t *testing.T) {
	_, err := client.New("")
	assert.Error(t, err)
	_, err = client.New("http://x", client.WithHTTPClient(nil))
	assert.Error(t, err)
}

func TestOverview(t *testing.T) {
	s := newStubServer(t)
	c := client.MustNew(s.URL + "/")

	ov, err := c.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &client.Overview{Blocks: 2, Root: "00ab", Pending: 1, Difficulty: 2}, ov)
}

func TestGetBlock_notFound(t *testing.T) {
	s := newStubServer(t)
	c := client.MustNew(s.URL)

	_, err := c.GetBlock(context.Background(), 9)
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrNotFound)

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "block not found", apiErr.Message)
}

func TestChain(t *testing.T) {
	s := newStubServer(t)
	c := client.MustNew(s.URL)

	blocks, err := c.Chain(context.Background())
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "0", blocks[0].PreviousHash)
	assert.Equal(t, blocks[0].Hash, blocks[1].PreviousHash)
	assert.Equal(t, uint64(50), blocks[1].Transactions[0].Amount)
}

func TestValidate(t *testing.T) {
	s := newStubServer(t)
	c := client.MustNew(s.URL)

	report, err := c.Validate(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Valid)
	require.NotNil(t, report.First)
	assert.Equal(t, 1, report.First.BlockIndex)
	assert.Equal(t, "merkle_root", report.First.Check)
}

func TestPending(t *testing.T) {
	s := newStubServer(t)
	c := client.MustNew(s.URL)

	txs, err := c.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "Carol", txs[0].Sender)
}

func TestSubmitTransaction(t *testing.T) {
	s := newStubServer(t)
	c := client.MustNew(s.URL)
	tx := client.Transaction{Sender: "Alice", Recipient: "Bob", Amount: 50, CreatedAt: 1700000000, Signature: []byte{1, 2}}

	res, err := c.SubmitTransaction(context.Background(), tx, []byte{9, 9})
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, 2, res.Pending)

	sent := s.lastSubmit.Load().(map[string]any)
	assert.Equal(t, "Alice", sent["sender"])
	assert.Equal(t, "AQI=", sent["signature"]) // base64
	assert.Equal(t, "CQk=", sent["public_key"])
}

func TestSubmitTransaction_invalidSignature(t *testing.T) {
	s := newStubServer(t)
	c := client.MustNew(s.URL)

	_, err := c.SubmitTransaction(context.Background(), client.Transaction{Sender: "A", Recipient: "B", Amount: 666}, []byte{1})
	assert.ErrorIs(t, err, client.ErrInvalidSignature)
}

func TestSealBlock_open(t *testing.T) {
	s := newStubServer(t)
	c := client.MustNew(s.URL)

	b, err := c.SealBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), b.Index)
	assert.Equal(t, "", s.lastAuth.Load())
	assert.Zero(t, s.tokenCalls.Load())
}

func TestSealBlock_adminSecretExchangesOnce(t *testing.T) {
	s := newStubServer(t)
	c := client.MustNew(s.URL, client.WithAdminSecret("operator-secret"))

	for i := 0; i < 3; i++ {
		_, err := c.SealBlock(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, "Bearer tok-1", s.lastAuth.Load())
	assert.EqualValues(t, 1, s.tokenCalls.Load())
}

func TestSealBlock_refreshesExpiredToken(t *testing.T) {
	s := newStubServer(t, func(s *stubServer) { s.tokenExpiry = 0 }) // every token is already stale
	c := client.MustNew(s.URL, client.WithAdminSecret("operator-secret"))

	for i := 0; i < 2; i++ {
		_, err := c.SealBlock(context.Background())
		require.NoError(t, err)
	}
	assert.EqualValues(t, 2, s.tokenCalls.Load())
}

func TestSealBlock_bearerTokenNotRefreshed(t *testing.T) {
	s := newStubServer(t)
	c := client.MustNew(s.URL, client.WithBearerToken("manual"), client.WithAdminSecret("operator-secret"))

	_, err := c.SealBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer manual", s.lastAuth.Load())
	assert.Zero(t, s.tokenCalls.Load())
}

func TestSealBlock_wrongSecret(t *testing.T) {
	s := newStubServer(t)
	c := client.MustNew(s.URL, client.WithAdminSecret("guess"))

	_, err := c.SealBlock(context.Background())
	assert.ErrorIs(t, err, client.ErrUnauthorized)
}

func TestSealBlock_statusSentinels(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusConflict, client.ErrNoPending},
		{http.StatusGatewayTimeout, client.ErrSealTimeout},
		{http.StatusServiceUnavailable, client.ErrUnavailable},
		{http.StatusForbidden, client.ErrForbidden},
		{http.StatusTooManyRequests, client.ErrRateLimited},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			s := newStubServer(t, func(s *stubServer) { s.sealStatus = tc.status })
			_, err := client.MustNew(s.URL).SealBlock(context.Background())
			assert.ErrorIs(t, err, tc.want)
			assert.NotErrorIs(t, err, client.ErrNotFound)
		})
	}
}

func TestFetchToken_requiresSecret(t *testing.T) {
	s := newStubServer(t)
	_, err := client.MustNew(s.URL).FetchToken(context.Background())
	assert.Error(t, err)
}
