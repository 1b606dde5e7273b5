package x402

import (
	"strings"

	"github.com/vitwit/x402-gateway/types"
	"github.com/vitwit/x402-gateway/utils"
)

// DefaultMaxTimeoutSeconds bounds how long a client may take to pay.
const DefaultMaxTimeoutSeconds = 60

// RequirementOption customises a payment requirement.
type RequirementOption func(*requirementOptions)

type requirementOptions struct {
	resource    string
	description string
	mimeType    string
	maxTimeout  int
	decimals    int32
}

func WithResource(resource string) RequirementOption {
	return func(o *requirementOptions) {
		o.resource = resource
	}
}

func WithDescription(description string) RequirementOption {
	return func(o *requirementOptions) {
		o.description = description
	}
}

func WithMaxTimeoutSeconds(seconds int) RequirementOption {
	return func(o *requirementOptions) {
		o.maxTimeout = seconds
	}
}

// WithAssetDecimals sets the decimals of a custom asset contract so that
// dollar prices can be converted. USDC decimals are known already.
func WithAssetDecimals(decimals int32) RequirementOption {
	return func(o *requirementOptions) {
		o.decimals = decimals
	}
}

// NewPaymentRequirement builds the requirement advertised for one route.
//
// asset is either the symbol "USDC" (or empty), resolved to the network's USDC
// deployment, or a token contract address. amount is a positive integer in
// minor units, or a dollar price such as "$0.001".
func NewPaymentRequirement(network, asset, payTo, amount string, opts ...RequirementOption) (*types.PaymentRequirements, error) {
	o := requirementOptions{
		mimeType:   "application/json",
		maxTimeout: DefaultMaxTimeoutSeconds,
		decimals:   -1,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := utils.ValidateNetwork(network); err != nil {
		return nil, &types.X402Error{Code: types.ErrConfiguration, Message: "invalid network", Err: err}
	}
	n := types.Network(network)

	payee, err := utils.ValidateAddressForNetwork(payTo, n)
	if err != nil {
		return nil, &types.X402Error{Code: types.ErrConfiguration, Message: "invalid payee address", Err: err}
	}

	req := &types.PaymentRequirements{
		Scheme:            string(types.SchemeExact),
		Network:           network,
		PayTo:             payee,
		Resource:          o.resource,
		Description:       o.description,
		MimeType:          o.mimeType,
		MaxTimeoutSeconds: o.maxTimeout,
	}

	decimals := o.decimals
	if asset == "" || strings.EqualFold(asset, "USDC") {
		info, ok := n.DefaultAsset()
		if !ok {
			return nil, types.NewConfigError("no USDC deployment known for network %s", network)
		}
		req.Asset = info.Address
		decimals = info.Decimals
		if n.IsEVM() {
			req.Extra = map[string]interface{}{
				"name":    info.Name,
				"version": info.Version,
			}
		}
	} else {
		addr, err := utils.ValidateAddressForNetwork(asset, n)
		if err != nil {
			return nil, &types.X402Error{Code: types.ErrConfiguration, Message: "invalid asset address", Err: err}
		}
		req.Asset = addr
		if info, ok := n.DefaultAsset(); ok && strings.EqualFold(info.Address, addr) {
			decimals = info.Decimals
		}
	}

	if strings.HasPrefix(strings.TrimSpace(amount), "$") && decimals < 0 {
		return nil, types.NewConfigError("dollar price %s needs the decimals of asset %s", amount, req.Asset)
	}
	if decimals < 0 {
		decimals = 0
	}

	value, err := utils.ParsePrice(amount, decimals)
	if err != nil {
		return nil, &types.X402Error{Code: types.ErrConfiguration, Message: "invalid amount", Err: err}
	}
	req.MaxAmountRequired = value.String()

	if req.MaxTimeoutSeconds <= 0 {
		return nil, types.NewConfigError("maxTimeoutSeconds must be greater than 0")
	}

	return req, nil
}
