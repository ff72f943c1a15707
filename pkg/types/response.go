package types

import "github.com/thanhledev/audiomart-backend/pkg/pagination"

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// PagedEnvelope wraps list payloads with their pagination metadata.
type PagedEnvelope struct {
	Data any             `json:"data"`
	Meta pagination.Meta `json:"meta"`
}
