package pushservice_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rockfish84/kakaotalk-server-backend/internal/api"
	"github.com/rockfish84/kakaotalk-server-backend/pkg/dispatch"
	"github.com/rockfish84/kakaotalk-server-backend/pushservice"
	"github.com/rockfish84/kakaotalk-server-backend/pushservice/config"
)

// --- MOCKS ---

// fakeProvider accepts every token except those listed in reject.
type fakeProvider struct {
	mu     sync.Mutex
	calls  []dispatch.Request
	reject map[string]string
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Send(_ context.Context, req dispatch.Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)
	if code, ok := p.reject[req.Token]; ok {
		return "", &dispatch.DeliveryError{Message: "rejected " + req.Token, Code: code}
	}
	return "msg-" + req.Token, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		ListenAddr:  "127.0.0.1:0",
		Provider:    "fcm",
		Strategy:    "independent",
		MaxInFlight: 4,
		CorsConfig:  config.CorsConfig{AllowedOrigins: []string{"*"}},
	}
}

func post(t *testing.T, url, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestService_EndToEnd(t *testing.T) {
	provider := &fakeProvider{reject: map[string]string{"B": "invalid-token"}}
	svc, err := pushservice.New(testConfig(), provider, prometheus.NewRegistry(), newTestLogger())
	require.NoError(t, err)

	server := httptest.NewServer(svc.Handler())
	defer server.Close()

	// 1. Send to an empty registry
	status, body := post(t, server.URL+"/send", `{"type":"msg","content":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "No device tokens registered", body["error"])
	assert.Equal(t, 0, provider.callCount())

	// 2. Register
	for _, tok := range []string{"A", "B", "C", "A"} {
		status, body = post(t, server.URL+"/register-token", `{"token":"`+tok+`"}`)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, body["success"])
	}

	resp, err := http.Get(server.URL + "/tokens")
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.JSONEq(t, `{"tokens":["A","B","C"]}`, string(raw))

	// 3. Missing content
	status, body = post(t, server.URL+"/send", `{"type":"msg"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "type and content are required", body["error"])
	assert.Equal(t, 0, provider.callCount())

	// 4. Fan out with one failing recipient
	resp, err = http.Post(server.URL+"/send", "application/json", strings.NewReader(`{"type":"msg","content":"hi"}`))
	require.NoError(t, err)
	raw, _ = io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(api.RequestIDHeader))
	assert.JSONEq(t, `{
		"success": true,
		"successCount": 2,
		"failureCount": 1,
		"responses": [
			{"token": "A", "result": "msg-A"},
			{"token": "B", "error": "rejected B", "code": "invalid-token"},
			{"token": "C", "result": "msg-C"}
		]
	}`, string(raw))

	for _, req := range provider.calls {
		assert.Equal(t, dispatch.PriorityHigh, req.Priority)
		assert.Equal(t, map[string]string{"type": "msg", "content": "hi", "emoticonRes": ""}, req.Payload.Data())
	}

	// 5. Metrics reflect the calls
	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	raw, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(raw), `push_registered_tokens 3`)
	assert.Contains(t, string(raw), `push_deliveries_total{outcome="failure",provider="fake"} 1`)
	assert.Contains(t, string(raw), `push_dispatch_calls_total{result="empty_registry",strategy="independent"} 1`)
}

func TestService_RejectsBatchedWithoutBatchProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Strategy = "batched"

	_, err := pushservice.New(cfg, &fakeProvider{}, nil, newTestLogger())
	assert.Error(t, err)
}

func TestService_Lifecycle(t *testing.T) {
	svc, err := pushservice.New(testConfig(), &fakeProvider{}, nil, newTestLogger())
	require.NoError(t, err)

	// Not ready before Start
	w := httptest.NewRecorder()
	svc.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Start(context.Background()) }()

	require.Eventually(t, svc.IsReady, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + svc.Addr() + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + svc.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
	assert.False(t, svc.IsReady())
}
