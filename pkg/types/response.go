package types

// SuccessEnvelope wraps every 2xx payload the storefront API serves.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the wire shape of a failed request. Details carries
// code-specific payloads such as field errors or a checkout stage redirect.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
