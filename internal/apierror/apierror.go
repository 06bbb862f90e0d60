// Package apierror holds the JSON envelopes every 4xx/5xx response uses, so
// internal errors never reach the client verbatim.
package apierror

// APIError is the canonical error envelope. Code is a stable machine-readable
// tag for ledger rejections (e.g. "insufficient_credit").
type APIError struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

func WithCode(code, msg string) *APIError {
	return &APIError{Detail: msg, Code: code}
}

// ValidationError wraps per-field validator failures.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "validation failed", Fields: fields}
}
