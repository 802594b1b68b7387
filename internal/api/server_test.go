package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealdesk/internal/auth"
	"github.com/sells-group/dealdesk/internal/dcf"
	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/negotiation"
	"github.com/sells-group/dealdesk/internal/research"
	"github.com/sells-group/dealdesk/internal/resilience"
	"github.com/sells-group/dealdesk/internal/store"
)

const (
	testSecret   = "test-secret"
	testAudience = "authenticated"
	statement    = "Period,Revenue,COGS,Opex\nFY2023,900000,500000,200000\nFY2024,1000000,550000,210000\n"
)

type testEnv struct {
	handler http.Handler
	store   store.Store
	server  *Server
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return eris.New("down") }

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	breakers := resilience.NewBreakers(resilience.DefaultBreakerConfig())
	breakers.For(resilience.ServiceAlphaVantage)

	s := &Server{
		Models:       dcf.NewService(st),
		Negotiations: negotiation.NewService(st),
		Verifier:     auth.NewVerifier(testSecret, testAudience),
		Breakers:     breakers,
		Store:        st,
	}
	return &testEnv{handler: NewRouter(s, opts), store: st, server: s}
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.Issue(testSecret, userID, testAudience, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	h := decodeBody[healthResponse](t, rec)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "closed", h.Circuits[resilience.ServiceAlphaVantage])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHealth_StoreDown(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.server.Store = failingPinger{}

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decodeBody[healthResponse](t, rec).Status)
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/v1/models", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "Authentication required", body.Error)
	assert.Equal(t, CodeAuthRequired, body.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body = decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "Invalid authentication", body.Error)
	assert.Equal(t, CodeAuthInvalid, body.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, Options{AllowedOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/v1/negotiations", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, Options{RatePerSec: 0.001, RateBurst: 1})

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", "", nil).Code)
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, CodeTooManyRequests, decodeBody[ErrorResponse](t, rec).Code)
}

func TestModels_StartStatusHistory(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodPost, "/v1/models", "user-1", map[string]any{
		"ticker":      "ACME",
		"companyName": "Acme Corp",
		"csvContent":  statement,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	started := decodeBody[dcf.StartResponse](t, rec)
	assert.Equal(t, model.ModelRunDone, started.Status)
	require.NotNil(t, started.Result)
	assert.InDelta(t, 1_318_885, started.Result.DCF.EnterpriseValue, 1)

	rec = env.do(t, http.MethodGet, "/v1/models/"+started.JobID, "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.ModelRunDone, decodeBody[model.ModelRun](t, rec).Status)

	rec = env.do(t, http.MethodGet, "/v1/models/"+started.JobID, "user-2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/models", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	hist := decodeBody[struct {
		Runs []model.ModelRunSummary `json:"runs"`
	}](t, rec)
	assert.Len(t, hist.Runs, 1)
}

func TestModels_StartMultipart(t *testing.T) {
	env := newTestEnv(t, Options{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("ticker", "ACME"))
	require.NoError(t, mw.WriteField("assumptions", `{"forecastHorizon":3}`))
	part, err := mw.CreateFormFile("file", "income.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(statement))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/models", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token(t, "user-1"))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	started := decodeBody[dcf.StartResponse](t, rec)
	assert.Len(t, started.Result.ForecastedIncome, 3)
}

func TestModels_StartErrors(t *testing.T) {
	env := newTestEnv(t, Options{})

	tests := []struct {
		name string
		body any
		code string
		msg  string
	}{
		{"missing csv", map[string]any{"ticker": "ACME"}, CodeInvalidInput, "Ticker and CSV content are required"},
		{"unparseable", map[string]any{"ticker": "ACME", "csvContent": "period,revenue\n"}, CodeParseFailed, "Failed to parse CSV data"},
		{"bad json", "{nope", CodeInvalidInput, "Invalid request body"},
		{"wacc below growth", map[string]any{"ticker": "ACME", "csvContent": statement, "assumptions": map[string]any{"wacc": 0.01}}, CodeInvalidInput, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/v1/models", "user-1", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			body := decodeBody[ErrorResponse](t, rec)
			assert.Equal(t, tt.code, body.Code)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, body.Error)
			}
		})
	}
}

func createNegotiation(t *testing.T, env *testEnv, userID string, inputs map[string]any) string {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/v1/negotiations", userID, map[string]any{
		"company": map[string]any{"ticker": "ACME", "name": "Acme Corp"},
		"inputs":  inputs,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[negotiation.CreateOrUpdateResponse](t, rec)
	assert.Equal(t, 0, resp.Revision)
	return resp.NegotiationID
}

func referenceInputs() map[string]any {
	return map[string]any{
		"company_name":           "Acme Corp",
		"seller_ask_price":       100_000_000,
		"acceptable_price_range": []float64{85_000_000, 105_000_000},
	}
}

func TestNegotiations_Lifecycle(t *testing.T) {
	env := newTestEnv(t, Options{})
	id := createNegotiation(t, env, "user-1", referenceInputs())

	risky := referenceInputs()
	risky["competing_bidders"] = "yes"
	risky["certainty_priority"] = 1
	rec := env.do(t, http.MethodPost, "/v1/negotiations/"+id+"/generate", "user-1", map[string]any{"inputs": risky})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[model.NegotiationResults](t, rec)
	require.Len(t, res.Offers, 4)
	assert.Equal(t, float64(78_200_000), res.Offers[0].EquityValue)
	assert.True(t, res.RequiresApproval)
	assert.Equal(t, model.NegotiationPendingApproval, res.State)
	assert.Equal(t, 1, res.Revision)

	// Stale revision.
	rec = env.do(t, http.MethodPost, "/v1/negotiations/"+id+"/approve", "user-1",
		map[string]any{"revision": 0, "approved": true, "reason": "ok"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/negotiations/"+id+"/approve", "user-1",
		map[string]any{"revision": 1, "approved": true, "reason": "within mandate"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decodeBody[negotiation.ApproveResponse](t, rec)
	assert.True(t, approved.Success)
	assert.Equal(t, model.NegotiationApproved, approved.State)

	// Approving again is not a valid transition.
	rec = env.do(t, http.MethodPost, "/v1/negotiations/"+id+"/approve", "user-1",
		map[string]any{"revision": 1, "approved": true, "reason": "again"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/negotiations/"+id+"/history", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	h := decodeBody[negotiation.History](t, rec)
	assert.Len(t, h.Revisions, 2)
	assert.Len(t, h.Approvals, 1)

	rec = env.do(t, http.MethodGet, "/v1/negotiations", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)

	rec = env.do(t, http.MethodPost, "/v1/negotiations/"+id+"/archive", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.NegotiationArchived, decodeBody[model.Negotiation](t, rec).State)
}

func TestNegotiations_GenerateWithoutBodyReusesInputs(t *testing.T) {
	env := newTestEnv(t, Options{})
	id := createNegotiation(t, env, "user-1", referenceInputs())

	rec := env.do(t, http.MethodPost, "/v1/negotiations/"+id+"/generate", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[model.NegotiationResults](t, rec)
	assert.False(t, res.RequiresApproval)
	assert.Equal(t, model.NegotiationDraft, res.State)
}

func TestNegotiations_Errors(t *testing.T) {
	env := newTestEnv(t, Options{})
	id := createNegotiation(t, env, "user-1", referenceInputs())

	rec := env.do(t, http.MethodPost, "/v1/negotiations/"+id+"/generate", "user-2", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Negotiation not found", decodeBody[ErrorResponse](t, rec).Error)

	bad := referenceInputs()
	bad["acceptable_price_range"] = []float64{5, 1}
	rec = env.do(t, http.MethodPost, "/v1/negotiations", "user-1", map[string]any{"inputs": bad})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "acceptable_price_range", decodeBody[ErrorResponse](t, rec).Field)

	rec = env.do(t, http.MethodPost, "/v1/negotiations/"+id+"/approve", "user-1", map[string]any{"reason": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "negotiation_id, revision, approved, and reason are required", decodeBody[ErrorResponse](t, rec).Error)
}

func TestNegotiations_BlocksExternalSend(t *testing.T) {
	env := newTestEnv(t, Options{})
	id := createNegotiation(t, env, "user-1", referenceInputs())

	rec := env.do(t, http.MethodPost, "/v1/negotiations/"+id+"/generate", "user-1",
		map[string]any{"email_to": "seller@example.com"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "External sending is not permitted. All documents are internal only.", body.Error)
	assert.Equal(t, CodeExternalSend, body.Code)

	entries, err := env.store.ListAudit(context.Background(), id)
	require.NoError(t, err)
	var actions []string
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	assert.Contains(t, actions, model.AuditBlockedExtSend)

	n, err := env.store.GetNegotiation(context.Background(), "user-1", id)
	require.NoError(t, err)
	assert.Equal(t, 0, n.CurrentRevision)
}

func TestResearch_NotConfigured(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/v1/research/usage", "user-1", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, CodeNotConfigured, decodeBody[ErrorResponse](t, rec).Code)
}

func TestResearch_UsageAndQuota(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.server.Research = research.NewService(env.store, nil, nil, nil, research.Config{MaxUses: 1})
	ctx := context.Background()

	rec := env.do(t, http.MethodGet, "/v1/research/usage", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.ResearchUsage{Remaining: 1, Used: 0, Max: 1}, decodeBody[model.ResearchUsage](t, rec))

	u, err := store.GetOrCreateUsage(ctx, env.store, "user-1", model.UsageResearch)
	require.NoError(t, err)
	_, err = env.store.IncrementUsage(ctx, *u)
	require.NoError(t, err)

	rec = env.do(t, http.MethodPost, "/v1/research", "user-1", map[string]any{"ticker": "AAPL"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, CodeQuotaExhausted, body.Code)
	require.NotNil(t, body.Remaining)
	assert.Equal(t, 0, *body.Remaining)

	rec = env.do(t, http.MethodPost, "/v1/research", "user-2", map[string]any{"ticker": "TOOLONG"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.HasPrefix(decodeBody[ErrorResponse](t, rec).Error, "Invalid ticker format"))
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"stale", eris.Wrap(negotiation.ErrStaleRevision, "x"), http.StatusConflict, CodeConflict},
		{"usage conflict", eris.Wrap(store.ErrUsageConflict, "research: charge usage"), http.StatusConflict, CodeConflict},
		{"rate limited", research.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited},
		{"ticker missing", &research.NotFoundError{Ticker: "ZZZZ"}, http.StatusNotFound, CodeNotFound},
		{"circuit open", eris.Wrap(resilience.ErrCircuitOpen, "resilience: anthropic"), http.StatusServiceUnavailable, CodeUpstream},
		{"parse", research.ErrParse, http.StatusBadGateway, CodeAIFailed},
		{"unknown", eris.New("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := describe(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}
