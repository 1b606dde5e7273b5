package types

// Usage holds the token counters reported by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResult is the normalized output of a chat completion call.
type ChatResult struct {
	RequestID string `json:"request_id"`
	Model     string `json:"model"`
	Content   string `json:"response"`
	Usage     *Usage `json:"usage,omitempty"`
}

// AttestationSignature is the TEE signature over a completion.
type AttestationSignature struct {
	Algorithm   string `json:"algorithm,omitempty"`
	Curve       string `json:"curve,omitempty"`
	Value       string `json:"value,omitempty"`
	PublicKey   string `json:"public_key,omitempty"`
	MessageHash string `json:"message_hash,omitempty"`
}

// AttestationPayload is the signed statement about a completion.
type AttestationPayload struct {
	RequestHash  string `json:"request_hash,omitempty"`
	ResponseHash string `json:"response_hash,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
	Model        string `json:"model,omitempty"`
	TEEInstance  string `json:"tee_instance,omitempty"`
}

// Attestation is the normalized output of a signature call.
type Attestation struct {
	RequestID       string                `json:"request_id"`
	Signature       *AttestationSignature `json:"signature,omitempty"`
	Payload         *AttestationPayload   `json:"payload,omitempty"`
	CertChainLength int                   `json:"cert_chain_length"`
}

// DemoResult is the combined chat and attestation answer.
type DemoResult struct {
	Chat            ChatResult  `json:"chat"`
	TEEVerification Attestation `json:"tee_verification"`
}
