// Package handlers defines the string codes of transport failures.
//
// These sit beside the numeric services.Result codes: a request that never
// reached a service (bad path parameter, missing identity, failed upgrade)
// or whose store call failed gets one of these in an ErrorResponse.
// Codes are lowercase snake_case and mirror the HTTP status they travel with.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
