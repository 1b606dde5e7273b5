package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	x402types "github.com/vitwit/x402-gateway/types"
)

type fakeProvider struct {
	chatCalls atomic.Int32
	sigCalls  atomic.Int32

	chatStatus int
	chatBody   string
	sigStatus  int
	sigBody    string

	lastSigPath  atomic.Value
	lastSigQuery atomic.Value
	lastAuth     atomic.Value
	lastChatBody atomic.Value
}

func (f *fakeProvider) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		f.chatCalls.Add(1)
		f.lastAuth.Store(r.Header.Get("Authorization"))
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.lastChatBody.Store(body)
		w.WriteHeader(f.chatStatus)
		_, _ = w.Write([]byte(f.chatBody))
	})
	mux.HandleFunc("/signature/", func(w http.ResponseWriter, r *http.Request) {
		f.sigCalls.Add(1)
		f.lastSigPath.Store(r.URL.Path)
		f.lastSigQuery.Store(r.URL.Query())
		w.WriteHeader(f.sigStatus)
		_, _ = w.Write([]byte(f.sigBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestTEEClient(url string) *TEEClient {
	return NewTEEClient(TEEConfig{
		BaseURL:     url,
		APIKey:      "secret-key",
		Model:       "m",
		SigningAlgo: "ecdsa",
	})
}

func TestRunDemo_Success(t *testing.T) {
	p := &fakeProvider{
		chatStatus: http.StatusOK,
		chatBody:   `{"id":"req-1","model":"m","choices":[{"message":{"role":"assistant","content":"hi"}}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`,
		sigStatus:  http.StatusOK,
		sigBody:    `{"request_id":"req-1","model":"m","cert_chain":["a","b"],"signature":{"algorithm":"ecdsa","curve":"secp256k1","value":"0xsig"},"payload":{"timestamp":1712345678,"model":"m"}}`,
	}
	srv := p.server(t)

	res, err := newTestTEEClient(srv.URL).RunDemo(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "hi", res.Chat.Content)
	assert.Equal(t, "req-1", res.Chat.RequestID)
	require.NotNil(t, res.Chat.Usage)
	assert.Equal(t, 4, res.Chat.Usage.TotalTokens)
	assert.Equal(t, 2, res.TEEVerification.CertChainLength)
	require.NotNil(t, res.TEEVerification.Signature)
	assert.Equal(t, "secp256k1", res.TEEVerification.Signature.Curve)
	require.NotNil(t, res.TEEVerification.Payload)
	assert.Equal(t, "1712345678", res.TEEVerification.Payload.Timestamp)

	assert.Equal(t, "Bearer secret-key", p.lastAuth.Load())
	assert.Equal(t, "/signature/req-1", p.lastSigPath.Load())
	q := p.lastSigQuery.Load().(url.Values)
	assert.Equal(t, []string{"m"}, q["model"])
	assert.Equal(t, []string{"ecdsa"}, q["signing_algo"])

	body := p.lastChatBody.Load().(map[string]any)
	assert.Equal(t, "m", body["model"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, DefaultPrompt, msgs[0].(map[string]any)["content"])
}

func TestRunDemo_ChatFailureSkipsSignature(t *testing.T) {
	p := &fakeProvider{
		chatStatus: http.StatusServiceUnavailable,
		chatBody:   `{"error":"overloaded"}`,
		sigStatus:  http.StatusOK,
		sigBody:    `{}`,
	}
	srv := p.server(t)

	_, err := newTestTEEClient(srv.URL).RunDemo(context.Background())
	require.Error(t, err)

	var ue *x402types.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, x402types.StageChat, ue.Stage)
	assert.Equal(t, http.StatusServiceUnavailable, ue.Status)
	assert.Equal(t, `{"error":"overloaded"}`, ue.Body)

	assert.EqualValues(t, 1, p.chatCalls.Load())
	assert.EqualValues(t, 0, p.sigCalls.Load())
}

func TestRunDemo_SignatureFailure(t *testing.T) {
	p := &fakeProvider{
		chatStatus: http.StatusOK,
		chatBody:   `{"id":"req-9","model":"m","choices":[]}`,
		sigStatus:  http.StatusNotFound,
		sigBody:    `not found`,
	}
	srv := p.server(t)

	_, err := newTestTEEClient(srv.URL).RunDemo(context.Background())

	var ue *x402types.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, x402types.StageSignature, ue.Stage)
	assert.Equal(t, http.StatusNotFound, ue.Status)
	assert.Equal(t, "/signature/req-9", p.lastSigPath.Load())
}

func TestChat_MissingContentDefaultsToEmpty(t *testing.T) {
	p := &fakeProvider{
		chatStatus: http.StatusOK,
		chatBody:   `{"id":"req-2","model":"m","choices":[{}]}`,
	}
	srv := p.server(t)

	res, err := newTestTEEClient(srv.URL).Chat(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "", res.Content)
	assert.Nil(t, res.Usage)
}

func TestRunDemo_MissingIDFailsBeforeSignature(t *testing.T) {
	p := &fakeProvider{
		chatStatus: http.StatusOK,
		chatBody:   `{"model":"m","choices":[]}`,
	}
	srv := p.server(t)

	_, err := newTestTEEClient(srv.URL).RunDemo(context.Background())

	var ue *x402types.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, x402types.StageChat, ue.Stage)
	assert.EqualValues(t, 0, p.sigCalls.Load())
}

func TestRunDemo_TransportError(t *testing.T) {
	c := newTestTEEClient("http://127.0.0.1:1")

	_, err := c.RunDemo(context.Background())

	var ue *x402types.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, 0, ue.Status)
	assert.NotNil(t, ue.Err)
}

func TestTEEClient_Configured(t *testing.T) {
	assert.False(t, NewTEEClient(TEEConfig{BaseURL: "http://x"}).Configured())
	assert.True(t, NewTEEClient(TEEConfig{BaseURL: "http://x", APIKey: "k"}).Configured())
}
