// Package x402 wires an x402 facilitator into verification and settlement
// services and builds the payment requirements served by the gateway.
package x402

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vitwit/x402-gateway/clients"
	"github.com/vitwit/x402-gateway/logger"
	"github.com/vitwit/x402-gateway/metrics"
	"github.com/vitwit/x402-gateway/settlement"
	"github.com/vitwit/x402-gateway/types"
	"github.com/vitwit/x402-gateway/utils"
	"github.com/vitwit/x402-gateway/verification"
)

// X402 is the main struct that provides all x402 functionality
type X402 struct {
	facilitator         clients.Facilitator
	verificationService *verification.VerificationService
	settlementService   *settlement.SettlementService
	config              *types.X402Config

	logger     logger.Logger
	metrics    metrics.Recorder
	timeout    time.Duration
	httpClient *http.Client
}

// New creates a new X402 instance with the given configuration
func New(config *types.X402Config, opts ...Option) (*X402, error) {
	if config == nil {
		return nil, types.NewConfigError("x402 config is required")
	}
	if err := utils.ValidateStruct(config); err != nil {
		return nil, &types.X402Error{
			Code:    types.ErrConfiguration,
			Message: "invalid x402 config",
			Err:     err,
		}
	}

	x := &X402{
		config:  config,
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		timeout: 30 * time.Second,
	}
	if config.DefaultTimeout > 0 {
		x.timeout = config.DefaultTimeout
	}
	for _, opt := range opts {
		opt(x)
	}

	facilitator, err := clients.NewFacilitatorClient(config.FacilitatorURL, config.FacilitatorAPIKey, x.httpClient)
	if err != nil {
		return nil, err
	}

	return newWithFacilitator(x, facilitator), nil
}

// NewWithFacilitator builds an X402 around an existing facilitator.
func NewWithFacilitator(config *types.X402Config, facilitator clients.Facilitator, opts ...Option) *X402 {
	x := &X402{
		config:  config,
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		timeout: 30 * time.Second,
	}
	if config.DefaultTimeout > 0 {
		x.timeout = config.DefaultTimeout
	}
	for _, opt := range opts {
		opt(x)
	}
	return newWithFacilitator(x, facilitator)
}

func newWithFacilitator(x *X402, facilitator clients.Facilitator) *X402 {
	x.facilitator = facilitator
	x.verificationService = verification.NewVerificationService(facilitator, x.timeout)
	if x.config.Settle {
		x.settlementService = settlement.NewSettlementService(facilitator, x.timeout, logger.With(x.logger, map[string]any{"component": "settlement"}))
	}
	return x
}

// Verify verifies a payment proof against requirements
func (x *X402) Verify(
	ctx context.Context,
	requirements *types.PaymentRequirements,
	proof string,
) (*types.VerificationResult, error) {
	start := time.Now()
	res, err := x.verificationService.Verify(ctx, requirements, proof)
	x.metrics.ObserveLatency("verify", time.Since(start), map[string]string{"route": requirements.Resource})
	return res, err
}

// Settle settles a verified payment. It fails when settlement is disabled.
func (x *X402) Settle(
	ctx context.Context,
	requirements *types.PaymentRequirements,
	proof string,
) (*types.SettlementResult, error) {
	if x.settlementService == nil {
		return nil, types.NewConfigError("settlement is disabled")
	}
	start := time.Now()
	res, err := x.settlementService.Settle(ctx, requirements, proof)
	x.metrics.ObserveLatency("settle", time.Since(start), map[string]string{"route": requirements.Resource})
	return res, err
}

// Verifier returns the verification service.
func (x *X402) Verifier() verification.Verifier {
	return x
}

// Settler returns the settlement service, or nil when settlement is disabled.
func (x *X402) Settler() settlement.Settler {
	if x.settlementService == nil {
		return nil
	}
	return x
}

// Supported asks the facilitator which payment kinds it accepts.
func (x *X402) Supported(ctx context.Context) (*types.SupportedResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()
	return x.facilitator.Supported(ctx)
}

// CheckSupported reports an UNSUPPORTED_NETWORK error when the facilitator
// does not list the network and scheme of req.
func (x *X402) CheckSupported(ctx context.Context, req *types.PaymentRequirements) error {
	res, err := x.Supported(ctx)
	if err != nil {
		return err
	}
	for _, kind := range res.Kinds {
		if kind.Network == req.Network && kind.Scheme == req.Scheme {
			return nil
		}
	}
	return &types.X402Error{
		Code:    types.ErrUnsupportedNetwork,
		Message: fmt.Sprintf("facilitator does not support scheme %s on %s", req.Scheme, req.Network),
	}
}

// Close closes all client connections
func (x *X402) Close() {
	x.facilitator.Close()
}

// Version information
const (
	Version         = "1.1.0"
	ProtocolVersion = 1
)

// GetVersion returns version information
func GetVersion() map[string]interface{} {
	networks := types.SupportedNetworks()
	names := make([]string, 0, len(networks))
	for _, n := range networks {
		names = append(names, n.String())
	}

	return map[string]interface{}{
		"library_version":    Version,
		"protocol_version":   ProtocolVersion,
		"supported_networks": names,
		"supported_schemes":  []string{string(types.SchemeExact)},
	}
}
