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

var _ Facilitator = (*FacilitatorClient)(nil)

const maxErrorBody = 64 << 10

// FacilitatorClient talks to an x402 facilitator over HTTP.
type FacilitatorClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewFacilitatorClient(baseURL, apiKey string, httpClient *http.Client) (*FacilitatorClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, x402types.NewConfigError("invalid facilitator URL %q", baseURL)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &FacilitatorClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
	}, nil
}

// Verify implements Facilitator.
func (c *FacilitatorClient) Verify(ctx context.Context, req *x402types.VerifyRequest) (*x402types.VerificationResult, error) {
	var out x402types.VerificationResult
	if err := c.do(ctx, http.MethodPost, "/verify", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Settle implements Facilitator.
func (c *FacilitatorClient) Settle(ctx context.Context, req *x402types.VerifyRequest) (*x402types.SettlementResult, error) {
	var out x402types.SettlementResult
	if err := c.do(ctx, http.MethodPost, "/settle", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Supported implements Facilitator.
func (c *FacilitatorClient) Supported(ctx context.Context) (*x402types.SupportedResponse, error) {
	var out x402types.SupportedResponse
	if err := c.do(ctx, http.MethodGet, "/supported", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Close implements Facilitator.
func (c *FacilitatorClient) Close() {
	c.http.CloseIdleConnections()
}

func (c *FacilitatorClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode facilitator request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build facilitator request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("facilitator %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("facilitator %s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode facilitator %s response: %w", path, err)
	}

	return nil
}
