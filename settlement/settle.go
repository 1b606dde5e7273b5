package settlement

import (
	"context"
	"time"

	"github.com/vitwit/x402-gateway/clients"
	"github.com/vitwit/x402-gateway/logger"
	"github.com/vitwit/x402-gateway/types"
	"github.com/vitwit/x402-gateway/utils"
)

// Settler interface defines the contract for payment settlement
type Settler interface {
	Settle(ctx context.Context, requirements *types.PaymentRequirements, proof string) (*types.SettlementResult, error)
}

var _ Settler = (*SettlementService)(nil)

// SettlementService settles verified payments through a facilitator.
type SettlementService struct {
	facilitator clients.Facilitator
	timeout     time.Duration
	log         logger.Logger
}

// NewSettlementService creates a new settlement service
func NewSettlementService(facilitator clients.Facilitator, timeout time.Duration, log logger.Logger) *SettlementService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &SettlementService{
		facilitator: facilitator,
		timeout:     timeout,
		log:         log,
	}
}

// Settle settles a payment transaction. Settlement failures reported by the
// facilitator come back as an unsuccessful result; an error means the
// facilitator could not be reached or answered garbage.
func (s *SettlementService) Settle(
	ctx context.Context,
	requirements *types.PaymentRequirements,
	proof string,
) (*types.SettlementResult, error) {
	payload, err := utils.DecodePaymentHeader(proof)
	if err != nil {
		return &types.SettlementResult{
			Success:     false,
			ErrorReason: clients.ErrInvalidPayload,
			Network:     requirements.Network,
		}, nil
	}

	// Create timeout context
	settleCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.facilitator.Settle(settleCtx, &types.VerifyRequest{
		X402Version:         payload.X402Version,
		PaymentPayload:      *payload,
		PaymentRequirements: *requirements,
	})
	if err != nil {
		return nil, &types.X402Error{
			Code:    types.ErrSettlement,
			Message: "payment settlement failed",
			Err:     err,
		}
	}

	if res.Network == "" {
		res.Network = requirements.Network
	}

	if res.Success {
		if err := utils.ValidateTransactionHash(res.Transaction, types.Network(res.Network)); err != nil {
			s.log.Warn("facilitator returned an unexpected transaction id", map[string]any{
				"network":     res.Network,
				"transaction": res.Transaction,
				"err":         err,
			})
		}
	} else if res.ErrorReason == "" {
		res.ErrorReason = "settlement rejected by facilitator"
	}

	return res, nil
}

// Close closes the facilitator connection
func (s *SettlementService) Close() {
	s.facilitator.Close()
}
