package gateway

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vitwit/x402-gateway/types"
)

const testPayTo = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

func testRequirement(route string) *types.PaymentRequirements {
	return &types.PaymentRequirements{
		Scheme:            string(types.SchemeExact),
		Network:           string(types.NetworkBaseSepolia),
		MaxAmountRequired: "1000",
		Resource:          route,
		MimeType:          "application/json",
		PayTo:             testPayTo,
		MaxTimeoutSeconds: 60,
		Asset:             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		Extra:             map[string]interface{}{"name": "USDC", "version": "2"},
	}
}

type fakeVerifier struct {
	result *types.VerificationResult
	err    error

	calls     atomic.Int32
	lastProof atomic.Value
}

func (f *fakeVerifier) Verify(_ context.Context, _ *types.PaymentRequirements, proof string) (*types.VerificationResult, error) {
	f.calls.Add(1)
	f.lastProof.Store(proof)
	return f.result, f.err
}

type fakeSettler struct {
	result *types.SettlementResult
	err    error
	calls  atomic.Int32
}

func (f *fakeSettler) Settle(context.Context, *types.PaymentRequirements, string) (*types.SettlementResult, error) {
	f.calls.Add(1)
	return f.result, f.err
}

// spyHandler counts invocations and answers with a fixed response.
type spyHandler struct {
	status int
	body   string
	calls  atomic.Int32
}

func (s *spyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	s.calls.Add(1)
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("X-Inner", "yes")
	if s.status != 0 {
		w.WriteHeader(s.status)
	}
	_, _ = w.Write([]byte(s.body))
}

type fakeRunner struct {
	configured bool
	result     *types.DemoResult
	err        error
	calls      atomic.Int32
}

func (f *fakeRunner) Configured() bool { return f.configured }

func (f *fakeRunner) RunDemo(context.Context) (*types.DemoResult, error) {
	f.calls.Add(1)
	return f.result, f.err
}

type fakeRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{counts: make(map[string]int)}
}

func (f *fakeRecorder) IncCounter(name string, labels map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[name+"/"+labels["outcome"]]++
}

func (f *fakeRecorder) ObserveLatency(string, time.Duration, map[string]string) {}

func (f *fakeRecorder) count(name, outcome string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[name+"/"+outcome]
}
