package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/x402-gateway/clients"
	"github.com/vitwit/x402-gateway/types"
)

func TestWeatherHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	WeatherHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/weather", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"report":{"weather":"sunny","temperature":70}}`, rec.Body.String())
}

func TestGateway_WeatherWithoutProof(t *testing.T) {
	verifier := &fakeVerifier{result: types.Accepted("0xpayer")}
	gw := New(Config{Addr: "127.0.0.1:0"}, verifier)
	gw.MountWeather("/weather", "$0.001", testRequirement("/weather"))

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/weather", nil))

	body := decode402(t, rec)
	assert.Equal(t, "missing proof", body.Reason)
	require.Len(t, body.Accepts, 1)
	assert.Equal(t, "/weather", body.Accepts[0].Resource)
	assert.Equal(t, int32(0), verifier.calls.Load())
	assert.NotContains(t, rec.Body.String(), "sunny")
}

func TestGateway_WeatherWithProof(t *testing.T) {
	verifier := &fakeVerifier{result: types.Accepted("0xpayer")}
	gw := New(Config{}, verifier)
	gw.MountWeather("/weather", "$0.001", testRequirement("/weather"))

	r := httptest.NewRequest(http.MethodGet, "/weather", nil)
	r.Header.Set(types.HeaderPayment, "proof")
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"report":{"weather":"sunny","temperature":70}}`, rec.Body.String())
}

func TestTEEDemoHandler_NotConfigured(t *testing.T) {
	runner := &fakeRunner{configured: false}

	rec := httptest.NewRecorder()
	NewTEEDemoHandler(runner, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tee-demo", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "configuration error", body["error"])
	assert.NotEmpty(t, body["message"])
	assert.Equal(t, int32(0), runner.calls.Load())
}

func TestTEEDemoHandler_UpstreamFailure(t *testing.T) {
	runner := &fakeRunner{
		configured: true,
		err:        &types.UpstreamError{Stage: types.StageSignature, Status: http.StatusServiceUnavailable},
	}

	rec := httptest.NewRecorder()
	NewTEEDemoHandler(runner, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tee-demo", nil))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "upstream request failed", body["error"])
	assert.Equal(t, types.StageSignature, body["stage"])
	assert.Contains(t, body["message"], "503")
}

// provider fakes the AI provider and counts every request it receives.
func provider(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/chat/completions":
			_, _ = w.Write([]byte(`{"id":"req-1","model":"m","choices":[{"message":{"role":"assistant","content":"hi"}}]}`))
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/signature/req-1"):
			_, _ = w.Write([]byte(`{"request_id":"req-1","signature":{"algorithm":"ecdsa","value":"0xsig"},"cert_chain":["a","b"]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGateway_TEEDemoEndToEnd(t *testing.T) {
	var hits atomic.Int32
	srv := provider(t, &hits)

	tee := clients.NewTEEClient(clients.TEEConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	verifier := &fakeVerifier{result: types.Accepted("0xpayer")}
	gw := New(Config{}, verifier)
	gw.MountTEEDemo("/tee-demo", "$0.01", testRequirement("/tee-demo"), tee)

	r := httptest.NewRequest(http.MethodGet, "/tee-demo", nil)
	r.Header.Set(types.HeaderPayment, "proof")
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, r)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body types.DemoResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "hi", body.Chat.Content)
	assert.Equal(t, "req-1", body.Chat.RequestID)
	assert.Equal(t, "req-1", body.TEEVerification.RequestID)
	assert.Equal(t, 2, body.TEEVerification.CertChainLength)
	require.NotNil(t, body.TEEVerification.Signature)
	assert.Equal(t, "ecdsa", body.TEEVerification.Signature.Algorithm)
	assert.Equal(t, int32(2), hits.Load())
}

func TestGateway_TEEDemoWithoutKeyMakesNoCalls(t *testing.T) {
	var hits atomic.Int32
	srv := provider(t, &hits)

	tee := clients.NewTEEClient(clients.TEEConfig{BaseURL: srv.URL, Model: "m"})
	verifier := &fakeVerifier{result: types.Accepted("0xpayer")}
	gw := New(Config{}, verifier)
	gw.MountTEEDemo("/tee-demo", "$0.01", testRequirement("/tee-demo"), tee)

	for _, proof := range []string{"", "proof"} {
		r := httptest.NewRequest(http.MethodGet, "/tee-demo", nil)
		if proof != "" {
			r.Header.Set(types.HeaderPayment, proof)
		}
		rec := httptest.NewRecorder()
		gw.ServeHTTP(rec, r)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "configuration error")
	}

	assert.Equal(t, int32(0), hits.Load())
	assert.Equal(t, int32(0), verifier.calls.Load())
	assert.Empty(t, gw.Routes())
}

func TestGateway_Supported(t *testing.T) {
	gw := New(Config{}, &fakeVerifier{})
	gw.MountWeather("/weather", "$0.001", testRequirement("/weather"))

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/supported", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Kinds []supportedKind `json:"kinds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Kinds, 1)
	assert.Equal(t, "/weather", body.Kinds[0].Route)
	assert.Equal(t, "$0.001", body.Kinds[0].Price)
	assert.Equal(t, "base-sepolia", body.Kinds[0].Network)
	assert.Equal(t, "exact", body.Kinds[0].Scheme)
	assert.Equal(t, "1000", body.Kinds[0].MaxAmountRequired)
	assert.Equal(t, "0.001 USDC", body.Kinds[0].Amount)
	assert.Equal(t, "evm", body.Kinds[0].Chain)
	assert.True(t, body.Kinds[0].Testnet)
}

func TestGateway_SupportedCustomAssetHasNoDisplayAmount(t *testing.T) {
	req := testRequirement("/weather")
	req.Asset = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	gw := New(Config{}, &fakeVerifier{})
	gw.MountWeather("/weather", "1000", req)

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/supported", nil))

	var body struct {
		Kinds []supportedKind `json:"kinds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Kinds, 1)
	assert.Empty(t, body.Kinds[0].Amount)
}

func TestGateway_UnknownRouteIsJSON(t *testing.T) {
	gw := New(Config{}, &fakeVerifier{})
	gw.MountWeather("/weather", "$0.001", testRequirement("/weather"))

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Len(t, rec.Header().Get(HeaderRequestID), 36)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not found", body["error"])
	assert.NotEmpty(t, body["message"])
}

func TestGateway_WrongMethodIsJSON(t *testing.T) {
	gw := New(Config{}, &fakeVerifier{})
	gw.MountWeather("/weather", "$0.001", testRequirement("/weather"))

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/weather", nil))

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "method not allowed", body["error"])
	assert.Contains(t, body["message"], "DELETE")
}

func TestGateway_RecoversFromPanic(t *testing.T) {
	gw := New(Config{}, &fakeVerifier{})
	gw.Handle("/boom", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, types.ErrUnknown, body["code"])
	assert.NotContains(t, rec.Body.String(), "kaboom")
}

func TestGateway_RequestID(t *testing.T) {
	gw := New(Config{}, &fakeVerifier{})

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Len(t, rec.Header().Get(HeaderRequestID), 36)

	const id = "3f2504e0-4f89-41d3-9a0c-0305e82c3301"
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set(HeaderRequestID, id)
	rec = httptest.NewRecorder()
	gw.ServeHTTP(rec, r)
	assert.Equal(t, id, rec.Header().Get(HeaderRequestID))
}
