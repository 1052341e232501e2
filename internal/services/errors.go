// Package services defines the business logic of the group-chat backend:
// join-request admission, chatroom membership, friend requests and user
// presence bookkeeping.
//
// This file centralizes the typed failures every operation can return and
// the wire Result envelope they convert to. Each failure carries a stable
// numeric code; sentinels are pointers so callers can match them with
// errors.Is.
package services

import (
	"errors"

	"github.com/rs/zerolog/log"
)

// Result codes.
const (
	CodeSuccess        = 0
	CodeCapacityFull   = 1
	CodeReasonTooLong  = 2
	CodeAlreadyHandled = 3
	CodeParamError     = -1
	CodeUnknownError   = -2
)

// Error is a typed operation failure.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string { return e.Message }

// Operation failures.
var (
	// ErrCapacityFull is returned when a chatroom has reached its member cap.
	ErrCapacityFull = &Error{Code: CodeCapacityFull, Message: "chatroom is full"}

	// ErrReasonTooLong is returned when a normalized reason exceeds MaxReasonLength.
	ErrReasonTooLong = &Error{Code: CodeReasonTooLong, Message: "reason is too long"}

	// ErrAlreadyHandled is returned when another moderator settled the request first.
	ErrAlreadyHandled = &Error{Code: CodeAlreadyHandled, Message: "request has already been handled"}

	// ErrParam covers missing and forbidden targets alike; the two are never
	// distinguished to callers.
	ErrParam = &Error{Code: CodeParamError, Message: "invalid parameter"}

	// ErrAlreadyMember is returned when the applicant already belongs to the chatroom.
	ErrAlreadyMember = &Error{Code: CodeParamError, Message: "already a member of this chatroom"}

	// ErrInvalidName is returned for an empty or over-long chatroom name.
	ErrInvalidName = &Error{Code: CodeParamError, Message: "invalid chatroom name"}

	// ErrUnknown hides store failures from callers; the cause is logged.
	ErrUnknown = &Error{Code: CodeUnknownError, Message: "unknown error"}
)

// Result is the envelope returned to clients for every operation.
type Result struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// Success wraps data in a code-0 Result.
func Success(data any) Result {
	return Result{Code: CodeSuccess, Message: "success", Data: data}
}

// Fail maps err to a Result. Typed failures keep their code and message;
// anything else is logged and reported as ErrUnknown.
func Fail(err error) Result {
	var e *Error
	if errors.As(err, &e) {
		return Result{Code: e.Code, Message: e.Message}
	}
	log.Error().Err(err).Msg("operation failed")
	return Result{Code: ErrUnknown.Code, Message: ErrUnknown.Message}
}

// FromErr returns Success(data) when err is nil and Fail(err) otherwise.
func FromErr(data any, err error) Result {
	if err != nil {
		return Fail(err)
	}
	return Success(data)
}
