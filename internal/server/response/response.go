// Package response provides standardized HTTP response structures and helpers
// for the boardstream server. Error responses use a {data, error} envelope;
// the event endpoints write their documented bodies directly with Raw.
package response

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/agentstation/boardstream/pkg/errors"
)

// Response represents the standardized API response structure.
type Response struct {
	Data  any    `json:"data"`
	Error *Error `json:"error"`
}

// Error represents an API error with code, message, and optional details.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Success creates a successful response with data.
func Success(data any) Response {
	return Response{Data: data}
}

// Fail creates an error response.
func Fail(code, message, details string) Response {
	return Response{
		Error: &Error{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// JSON writes a JSON envelope with the given status code.
func JSON(w http.ResponseWriter, status int, resp Response) {
	Raw(w, status, resp)
}

// Raw writes v as the JSON body with the given status code.
func Raw(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// headers are already sent; encoding errors cannot be reported
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes a successful response with 200 status.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Success(data))
}

// Created writes a successful response with 201 status.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, Success(data))
}

// BadRequest writes a 400 error response.
func BadRequest(w http.ResponseWriter, message, details string) {
	JSON(w, http.StatusBadRequest, Fail("BAD_REQUEST", message, details))
}

// Unauthorized writes a 401 error response.
func Unauthorized(w http.ResponseWriter, message, details string) {
	JSON(w, http.StatusUnauthorized, Fail("UNAUTHORIZED", message, details))
}

// Forbidden writes a 403 error response.
func Forbidden(w http.ResponseWriter, message, details string) {
	JSON(w, http.StatusForbidden, Fail("FORBIDDEN", message, details))
}

// NotFound writes a 404 error response.
func NotFound(w http.ResponseWriter, message, details string) {
	JSON(w, http.StatusNotFound, Fail("NOT_FOUND", message, details))
}

// MethodNotAllowed writes a 405 error response.
func MethodNotAllowed(w http.ResponseWriter, method string) {
	JSON(w, http.StatusMethodNotAllowed, Fail(
		"METHOD_NOT_ALLOWED",
		"Method not allowed",
		"Method "+method+" is not supported for this endpoint",
	))
}

// RateLimited writes a 429 error response.
func RateLimited(w http.ResponseWriter, message string) {
	JSON(w, http.StatusTooManyRequests, Fail("RATE_LIMITED", "Rate limit exceeded", message))
}

// InternalError writes a 500 error response without exposing err.
func InternalError(w http.ResponseWriter, _ error) {
	JSON(w, http.StatusInternalServerError, Fail(
		"INTERNAL_ERROR",
		"Internal server error",
		"An unexpected error occurred",
	))
}

// ServiceUnavailable writes a 503 error response.
func ServiceUnavailable(w http.ResponseWriter, message string) {
	JSON(w, http.StatusServiceUnavailable, Fail("SERVICE_UNAVAILABLE", "Service unavailable", message))
}

// AuthFailed writes the response for a rejected token. A server without a
// signing secret answers 503 so operators see the misconfiguration.
func AuthFailed(w http.ResponseWriter, err error) {
	var authErr *errors.AuthenticationError
	if !stderrors.As(err, &authErr) {
		Unauthorized(w, "Authentication failed", "")
		return
	}

	switch {
	case stderrors.Is(err, errors.ErrMisconfiguredServer):
		JSON(w, http.StatusServiceUnavailable, Fail("MISCONFIGURED_SERVER", "Authentication unavailable", ""))
	case stderrors.Is(err, errors.ErrExpired):
		JSON(w, http.StatusUnauthorized, Fail("EXPIRED", "Token expired", ""))
	case stderrors.Is(err, errors.ErrInvalidSignature):
		JSON(w, http.StatusUnauthorized, Fail("INVALID_SIGNATURE", "Invalid token signature", ""))
	default:
		JSON(w, http.StatusUnauthorized, Fail("MALFORMED_TOKEN", "Malformed token", authErr.Message))
	}
}

// ErrorFromType maps typed errors to appropriate HTTP responses.
func ErrorFromType(w http.ResponseWriter, err error) {
	var (
		notFound   *errors.NotFoundError
		validation *errors.ValidationError
		authErr    *errors.AuthenticationError
	)
	switch {
	case stderrors.As(err, &notFound):
		NotFound(w, notFound.Error(), "")
	case stderrors.As(err, &validation):
		BadRequest(w, validation.Error(), "")
	case stderrors.As(err, &authErr):
		AuthFailed(w, err)
	case stderrors.Is(err, errors.ErrBroadcastUnauthorized):
		Forbidden(w, "Broadcast unauthorized", "")
	case errors.IsTimeout(err):
		ServiceUnavailable(w, err.Error())
	default:
		InternalError(w, err)
	}
}
