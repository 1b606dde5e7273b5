package utils

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/vitwit/x402-gateway/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ValidateStruct runs the `validate` struct tags of v.
func ValidateStruct(v interface{}) error {
	return validate.Struct(v)
}

// DecodePaymentHeader decodes an X-PAYMENT header (base64 JSON) into a
// PaymentPayload. Both standard and URL-safe alphabets are accepted.
func DecodePaymentHeader(header string) (*types.PaymentPayload, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, &types.X402Error{
			Code:    types.ErrInvalidPayload,
			Message: "payment header is empty",
		}
	}

	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(header, "="))
		if err != nil {
			return nil, &types.X402Error{
				Code:    types.ErrInvalidPayload,
				Message: "payment header is not valid base64",
				Err:     err,
			}
		}
	}

	var payload types.PaymentPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &types.X402Error{
			Code:    types.ErrInvalidPayload,
			Message: "payment header is not valid JSON",
			Err:     err,
		}
	}

	if payload.X402Version <= 0 {
		return nil, &types.X402Error{
			Code:    types.ErrInvalidPayload,
			Message: fmt.Sprintf("unsupported x402Version %d", payload.X402Version),
		}
	}

	if len(payload.Payload) == 0 {
		return nil, &types.X402Error{
			Code:    types.ErrInvalidPayload,
			Message: "payment header carries no payload",
		}
	}

	return &payload, nil
}

// EncodePaymentHeader is the inverse of DecodePaymentHeader.
func EncodePaymentHeader(payload *types.PaymentPayload) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// EncodeSettlementHeader renders the X-PAYMENT-RESPONSE header value.
func EncodeSettlementHeader(result *types.SettlementResult) (string, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
