package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/vitwit/x402-gateway/clients"
	"github.com/vitwit/x402-gateway/types"
	"github.com/vitwit/x402-gateway/utils"
)

// Verifier interface defines the contract for payment verification
type Verifier interface {
	Verify(ctx context.Context, requirements *types.PaymentRequirements, proof string) (*types.VerificationResult, error)
}

var _ Verifier = (*VerificationService)(nil)

// VerificationService checks X-PAYMENT proofs through a facilitator.
type VerificationService struct {
	facilitator clients.Facilitator
	timeout     time.Duration
}

// NewVerificationService creates a new verification service
func NewVerificationService(facilitator clients.Facilitator, timeout time.Duration) *VerificationService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &VerificationService{
		facilitator: facilitator,
		timeout:     timeout,
	}
}

// Verify decodes the proof, runs the local checks and asks the facilitator.
// A malformed or mismatched proof is a rejection, not an error. An error is
// returned only when the check itself could not be carried out.
func (s *VerificationService) Verify(
	ctx context.Context,
	requirements *types.PaymentRequirements,
	proof string,
) (*types.VerificationResult, error) {
	if proof == "" {
		return types.Rejected(clients.ErrMissingProof), nil
	}

	payload, err := utils.DecodePaymentHeader(proof)
	if err != nil {
		return types.Rejected(fmt.Sprintf("%s: %v", clients.ErrInvalidPayload, err)), nil
	}

	if res := QuickVerify(payload, requirements); res != nil {
		return res, nil
	}

	// Create timeout context
	verifyCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.facilitator.Verify(verifyCtx, &types.VerifyRequest{
		X402Version:         payload.X402Version,
		PaymentPayload:      *payload,
		PaymentRequirements: *requirements,
	})
	if err != nil {
		return nil, &types.X402Error{
			Code:    types.ErrVerification,
			Message: "payment verification failed",
			Err:     err,
		}
	}

	if !res.IsValid && res.InvalidReason == "" {
		res.InvalidReason = "payment rejected by facilitator"
	}

	return res, nil
}

// QuickVerify performs the checks that need no network round trip. It
// returns nil when the payload may be sent to the facilitator.
func QuickVerify(payload *types.PaymentPayload, requirements *types.PaymentRequirements) *types.VerificationResult {
	if payload.X402Version != int(types.X402Version1) {
		return types.Rejected(clients.ErrUnsupportedVersion)
	}

	if payload.Scheme != requirements.Scheme {
		return types.Rejected(fmt.Sprintf("%s: got %q, want %q", clients.ErrUnsupportedScheme, payload.Scheme, requirements.Scheme))
	}

	// Check network compatibility
	if payload.Network != requirements.Network {
		return types.Rejected(fmt.Sprintf("%s: got %q, want %q", clients.ErrInvalidNetwork, payload.Network, requirements.Network))
	}

	return nil
}

// Close closes the facilitator connection
func (s *VerificationService) Close() {
	s.facilitator.Close()
}
