package types

import (
	"errors"
	"fmt"
)

// Error types
type X402Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Err     error       `json:"-"`
}

func (e *X402Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *X402Error) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrConfiguration      = "CONFIGURATION_ERROR"
	ErrVerification       = "VERIFICATION_ERROR"
	ErrSettlement         = "SETTLEMENT_ERROR"
	ErrUnknown            = "UNKNOWN_ERROR"
	ErrInvalidPayload     = "INVALID_PAYLOAD"
	ErrUnsupportedNetwork = "UNSUPPORTED_NETWORK"
)

// NewConfigError returns a CONFIGURATION_ERROR.
func NewConfigError(format string, args ...any) *X402Error {
	return &X402Error{Code: ErrConfiguration, Message: fmt.Sprintf(format, args...)}
}

// IsCode reports whether err is an *X402Error carrying code.
func IsCode(err error, code string) bool {
	var xe *X402Error
	return errors.As(err, &xe) && xe.Code == code
}

// Upstream call stages.
const (
	StageChat      = "chat"
	StageSignature = "signature"
)

// UpstreamError is a failed call to the AI provider. Status is zero when the
// request never produced an HTTP response; Err is set for transport and
// decode failures.
type UpstreamError struct {
	Stage  string
	Status int
	Body   string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s request failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s request returned status %d", e.Stage, e.Status)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
