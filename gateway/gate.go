package gateway

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/vitwit/x402-gateway/logger"
	"github.com/vitwit/x402-gateway/metrics"
	"github.com/vitwit/x402-gateway/types"
	"github.com/vitwit/x402-gateway/utils"
)

// PaymentVerifier decides whether a proof pays for a requirement. A rejection
// is a result; an error means the decision could not be made.
type PaymentVerifier interface {
	Verify(ctx context.Context, requirements *types.PaymentRequirements, proof string) (*types.VerificationResult, error)
}

// Settler captures a verified payment once the resource has been produced.
type Settler interface {
	Settle(ctx context.Context, requirements *types.PaymentRequirements, proof string) (*types.SettlementResult, error)
}

// Payment outcomes recorded per gated request.
const (
	OutcomeMissingProof = "missing_proof"
	OutcomeRejected     = "rejected"
	OutcomeAccepted     = "accepted"
	OutcomeError        = "error"
	OutcomeSettled      = "settled"
	OutcomeSkipped      = "skipped"
)

// GatedHandler runs next only for requests carrying an accepted payment.
type GatedHandler struct {
	requirement *types.PaymentRequirements
	verifier    PaymentVerifier
	settler     Settler
	next        http.Handler

	route   string
	logger  logger.Logger
	metrics metrics.Recorder
}

type GateOption func(*GatedHandler)

// WithSettler settles the payment after next succeeds.
func WithSettler(s Settler) GateOption {
	return func(g *GatedHandler) {
		g.settler = s
	}
}

func WithGateLogger(l logger.Logger) GateOption {
	return func(g *GatedHandler) {
		g.logger = l
	}
}

func WithGateMetrics(m metrics.Recorder) GateOption {
	return func(g *GatedHandler) {
		g.metrics = m
	}
}

// WithRouteName sets the route label used in logs and metrics.
func WithRouteName(name string) GateOption {
	return func(g *GatedHandler) {
		g.route = name
	}
}

// Gate wraps next behind requirement. The requirement is fixed for the life
// of the handler.
//
// With a settler attached the output of next is buffered and released only
// after settlement succeeds. A settlement rejection replaces it with a 402 and
// a settlement failure with a 500, so accepted output can still be withheld.
// Output with a status of 400 or above is released without settling.
func Gate(requirement *types.PaymentRequirements, verifier PaymentVerifier, next http.Handler, opts ...GateOption) *GatedHandler {
	g := &GatedHandler{
		requirement: requirement,
		verifier:    verifier,
		next:        next,
		route:       requirement.Resource,
		logger:      logger.NoopLogger{},
		metrics:     metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GatedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := map[string]any{
		"route":      g.route,
		"request_id": RequestIDFromContext(r.Context()),
	}

	proof := r.Header.Get(types.HeaderPayment)
	if proof == "" {
		g.logger.Info("payment proof missing", fields)
		g.count(metrics.EventPayment, OutcomeMissingProof)
		writePaymentRequired(w, g.requirement, "missing proof")
		return
	}

	start := time.Now()
	result, err := g.verifier.Verify(r.Context(), g.requirement, proof)
	g.metrics.ObserveLatency("gate_verify", time.Since(start), map[string]string{"route": g.route})
	if err != nil {
		fields["error"] = err
		g.logger.Error("payment verification failed", fields)
		g.count(metrics.EventPayment, OutcomeError)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   "payment verification failed",
			Message: "the payment could not be verified, try again later",
			Code:    types.ErrVerification,
		})
		return
	}

	if result == nil || !result.IsValid {
		reason := "payment rejected"
		if result != nil && result.InvalidReason != "" {
			reason = result.InvalidReason
		}
		fields["reason"] = reason
		g.logger.Info("payment rejected", fields)
		g.count(metrics.EventPayment, OutcomeRejected)
		writePaymentRequired(w, g.requirement, reason)
		return
	}

	fields["payer"] = result.Payer
	g.logger.Debug("payment accepted", fields)
	g.count(metrics.EventPayment, OutcomeAccepted)

	if g.settler == nil {
		g.next.ServeHTTP(w, r)
		return
	}

	buf := newBufferedResponse()
	g.next.ServeHTTP(buf, r)

	if buf.status >= http.StatusBadRequest {
		g.count(metrics.EventSettlement, OutcomeSkipped)
		buf.flushTo(w)
		return
	}

	settled, err := g.settler.Settle(r.Context(), g.requirement, proof)
	if err != nil {
		fields["error"] = err
		g.logger.Error("payment settlement failed", fields)
		g.count(metrics.EventSettlement, OutcomeError)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   "payment settlement failed",
			Message: "the payment could not be settled, try again later",
			Code:    types.ErrSettlement,
		})
		return
	}

	if !settled.Success {
		fields["reason"] = settled.ErrorReason
		g.logger.Info("payment settlement rejected", fields)
		g.count(metrics.EventSettlement, OutcomeRejected)
		writePaymentRequired(w, g.requirement, settled.ErrorReason)
		return
	}

	header, err := utils.EncodeSettlementHeader(settled)
	if err != nil {
		fields["error"] = err
		g.logger.Error("encode settlement header", fields)
		g.count(metrics.EventSettlement, OutcomeError)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   "payment settlement failed",
			Message: "the payment could not be settled, try again later",
			Code:    types.ErrSettlement,
		})
		return
	}

	fields["transaction"] = settled.Transaction
	g.logger.Info("payment settled", fields)
	g.count(metrics.EventSettlement, OutcomeSettled)

	buf.Header().Set(types.HeaderPaymentResponse, header)
	buf.flushTo(w)
}

func (g *GatedHandler) count(event, outcome string) {
	g.metrics.IncCounter(event, map[string]string{"route": g.route, "outcome": outcome})
}

// bufferedResponse holds the inner response until settlement has decided
// whether it may be released.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header)}
}

func (b *bufferedResponse) Header() http.Header {
	return b.header
}

func (b *bufferedResponse) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedResponse) flushTo(w http.ResponseWriter) {
	dst := w.Header()
	for k, v := range b.header {
		dst[k] = v
	}
	status := b.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(b.body.Bytes())
}
