package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vitwit/x402-gateway/types"
)

// errorBody is the shape of every non-402 failure.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Stage   string `json:"stage,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writePaymentRequired answers 402 with the requirement the client must meet.
func writePaymentRequired(w http.ResponseWriter, req *types.PaymentRequirements, reason string) {
	writeJSON(w, http.StatusPaymentRequired, types.X402Response{
		X402Version: int(types.X402Version1),
		Error:       "payment required",
		Reason:      reason,
		Accepts:     []types.PaymentRequirements{*req},
	})
}

// writeError maps err onto an HTTP status and failure body.
func writeError(w http.ResponseWriter, err error) {
	var upstream *types.UpstreamError
	if errors.As(err, &upstream) {
		writeJSON(w, http.StatusBadGateway, errorBody{
			Error:   "upstream request failed",
			Message: upstream.Error(),
			Stage:   upstream.Stage,
		})
		return
	}

	var xe *types.X402Error
	if errors.As(err, &xe) {
		body := errorBody{Message: xe.Error(), Code: xe.Code}
		switch xe.Code {
		case types.ErrConfiguration:
			body.Error = "configuration error"
		case types.ErrVerification:
			body.Error = "payment verification failed"
		case types.ErrSettlement:
			body.Error = "payment settlement failed"
		default:
			body.Error = "internal error"
		}
		writeJSON(w, http.StatusInternalServerError, body)
		return
	}

	writeJSON(w, http.StatusInternalServerError, errorBody{
		Error:   "internal error",
		Message: err.Error(),
		Code:    types.ErrUnknown,
	})
}
