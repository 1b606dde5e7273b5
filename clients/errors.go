package clients

// Rejection reasons produced before the facilitator is consulted. Reasons
// returned by the facilitator itself are passed through untouched.
const (
	ErrMissingProof       = "missing proof"
	ErrInvalidPayload     = "invalid_payload"
	ErrInvalidNetwork     = "invalid_network"
	ErrUnsupportedScheme  = "unsupported_scheme"
	ErrUnsupportedVersion = "unsupported_x402_version"
)
