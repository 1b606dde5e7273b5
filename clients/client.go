package clients

import (
	"context"

	x402types "github.com/vitwit/x402-gateway/types"
)

// Facilitator verifies and settles payments on behalf of the resource server.
type Facilitator interface {
	Verify(ctx context.Context, req *x402types.VerifyRequest) (*x402types.VerificationResult, error)
	Settle(ctx context.Context, req *x402types.VerifyRequest) (*x402types.SettlementResult, error)
	Supported(ctx context.Context) (*x402types.SupportedResponse, error)
	Close()
}
