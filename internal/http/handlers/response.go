// Package handlers provides HTTP handler implementations for the public API.
//
// Two response shapes exist. Transport failures (bad path parameters,
// missing identity, store outages) use ErrorResponse with a stable string
// code. Operation outcomes use services.Result with its numeric code, the
// same envelope the websocket protocol carries, so a client parses one shape
// for "the operation ran" whichever channel it used.
//
// Example transport failure:
//
//	HTTP/1.1 400 Bad Request
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "bad_request",
//	  "message": "request id must be a positive integer"
//	}
//
// Example operation outcome:
//
//	HTTP/1.1 200 OK
//	{ "code": 3, "message": "request has already been handled", "data": null }
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-group-chat/internal/http/middleware"
	"github.com/tbourn/go-group-chat/internal/services"
)

// ErrorResponse is the transport error envelope.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"bad_request"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"request id must be a positive integer"`
}

// fail aborts the request with a structured error. Server errors (>=500) are
// logged with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail for the router's fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// result writes the outcome of a service call. Typed failures are operation
// outcomes and go out as a 200 Result; anything else is a store failure and
// becomes a 500.
func result(c *gin.Context, data any, err error) {
	if err == nil {
		ok(c, http.StatusOK, services.Success(data))
		return
	}
	var se *services.Error
	if errors.As(err, &se) {
		ok(c, http.StatusOK, services.Fail(se))
		return
	}
	middleware.LoggerFrom(c).Error().Err(err).Msg("operation failed")
	fail(c, http.StatusInternalServerError, ErrCodeInternal, services.ErrUnknown.Message)
}
