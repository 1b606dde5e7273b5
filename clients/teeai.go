package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	x402types "github.com/vitwit/x402-gateway/types"
)

// DefaultPrompt is sent by RunDemo.
const DefaultPrompt = "In one sentence, what does a trusted execution environment guarantee?"

// TEEConfig configures the hosted AI provider.
type TEEConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	SigningAlgo string
	Prompt      string
	HTTPClient  *http.Client
}

// TEEClient calls a hosted model that returns TEE attestations for its
// completions. The API key is attached per request and never stored on the
// shared transport.
type TEEClient struct {
	baseURL     string
	apiKey      string
	model       string
	signingAlgo string
	prompt      string
	http        *http.Client
}

func NewTEEClient(cfg TEEConfig) *TEEClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	signingAlgo := cfg.SigningAlgo
	if signingAlgo == "" {
		signingAlgo = "ecdsa"
	}

	prompt := cfg.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}

	return &TEEClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		signingAlgo: signingAlgo,
		prompt:      prompt,
		http:        httpClient,
	}
}

// Configured reports whether an API key is present.
func (c *TEEClient) Configured() bool {
	return c.apiKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message *chatMessage `json:"message"`
	} `json:"choices"`
	Usage *x402types.Usage `json:"usage"`
}

type signatureResponse struct {
	RequestID string                          `json:"request_id"`
	Model     string                          `json:"model"`
	Signature *x402types.AttestationSignature `json:"signature"`
	Payload   *struct {
		RequestHash  string          `json:"request_hash"`
		ResponseHash string          `json:"response_hash"`
		Timestamp    json.RawMessage `json:"timestamp"`
		Model        string          `json:"model"`
		TEEInstance  string          `json:"tee_instance"`
	} `json:"payload"`
	CertChain []json.RawMessage `json:"cert_chain"`
}

// Chat posts a single user message and normalizes the completion.
func (c *TEEClient) Chat(ctx context.Context, prompt string) (*x402types.ChatResult, error) {
	body := chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}

	var resp chatResponse
	if err := c.do(ctx, x402types.StageChat, http.MethodPost, c.baseURL+"/chat/completions", body, &resp); err != nil {
		return nil, err
	}

	result := &x402types.ChatResult{
		RequestID: resp.ID,
		Model:     resp.Model,
		Usage:     resp.Usage,
	}
	if len(resp.Choices) > 0 && resp.Choices[0].Message != nil {
		result.Content = resp.Choices[0].Message.Content
	}

	return result, nil
}

// Signature fetches the attestation for a completion id.
func (c *TEEClient) Signature(ctx context.Context, requestID string) (*x402types.Attestation, error) {
	q := url.Values{}
	q.Set("model", c.model)
	q.Set("signing_algo", c.signingAlgo)
	endpoint := c.baseURL + "/signature/" + url.PathEscape(requestID) + "?" + q.Encode()

	var resp signatureResponse
	if err := c.do(ctx, x402types.StageSignature, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	att := &x402types.Attestation{
		RequestID:       resp.RequestID,
		Signature:       resp.Signature,
		CertChainLength: len(resp.CertChain),
	}
	if att.RequestID == "" {
		att.RequestID = requestID
	}
	if resp.Payload != nil {
		att.Payload = &x402types.AttestationPayload{
			RequestHash:  resp.Payload.RequestHash,
			ResponseHash: resp.Payload.ResponseHash,
			Timestamp:    rawScalar(resp.Payload.Timestamp),
			Model:        resp.Payload.Model,
			TEEInstance:  resp.Payload.TEEInstance,
		}
	}

	return att, nil
}

// RunDemo performs the chat call and then the signature call for the id it
// returned. The second call is never made when the first one fails.
func (c *TEEClient) RunDemo(ctx context.Context) (*x402types.DemoResult, error) {
	chat, err := c.Chat(ctx, c.prompt)
	if err != nil {
		return nil, err
	}

	if chat.RequestID == "" {
		return nil, &x402types.UpstreamError{
			Stage: x402types.StageChat,
			Err:   fmt.Errorf("chat response carries no id"),
		}
	}

	att, err := c.Signature(ctx, chat.RequestID)
	if err != nil {
		return nil, err
	}

	return &x402types.DemoResult{Chat: *chat, TEEVerification: *att}, nil
}

func (c *TEEClient) do(ctx context.Context, stage, method, endpoint string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &x402types.UpstreamError{Stage: stage, Err: err}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &x402types.UpstreamError{Stage: stage, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &x402types.UpstreamError{Stage: stage, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &x402types.UpstreamError{Stage: stage, Status: resp.StatusCode, Body: string(raw)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &x402types.UpstreamError{Stage: stage, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	return nil
}

// rawScalar renders a JSON string or number as plain text.
func rawScalar(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
