package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/linkguard/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInvalidPlayerID  = "INVALID_PLAYER_ID"
	CodeInvalidAddress   = "INVALID_ADDRESS"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInvalidState     = "INVALID_STATE"
	CodeSessionNotFound  = "SESSION_NOT_FOUND"
	CodeForbiddenLink    = "FORBIDDEN_LINK"
	CodeLimitReached     = "LIMIT_REACHED"
	CodeExchangeFailed   = "EXCHANGE_FAILED"
	CodeNotOwner         = "NOT_OWNER"
	CodePlayerNotFound   = "PLAYER_NOT_FOUND"
	CodeLinkNotFound     = "LINK_NOT_FOUND"
	CodeChatUserNotFound = "CHAT_USER_NOT_FOUND"
	CodeInternalError    = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status an error maps to
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, model.ErrInvalidOrExpiredState):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidState, "Login link is invalid or has expired"}}
	case errors.Is(err, model.ErrSessionNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeSessionNotFound, "Nothing pending for this player"}}
	case errors.Is(err, model.ErrForbiddenLink):
		return &httpError{http.StatusForbidden, APIError{CodeForbiddenLink, "Player is linked to a different chat account"}}
	case errors.Is(err, model.ErrLimitReached):
		return &httpError{http.StatusConflict, APIError{CodeLimitReached, "Chat account has reached its link limit"}}
	case errors.Is(err, model.ErrExchangeFailed):
		return &httpError{http.StatusBadGateway, APIError{CodeExchangeFailed, "Identity provider rejected the login"}}
	case errors.Is(err, model.ErrNotOwner):
		return &httpError{http.StatusForbidden, APIError{CodeNotOwner, "Only the owning chat account may do this"}}
	case errors.Is(err, model.ErrInvalidPlayerID):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidPlayerID, "Player id must be a UUID"}}
	case errors.Is(err, model.ErrInvalidAddress):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidAddress, "Address must be an IP address"}}
	case errors.Is(err, model.ErrProfileNotFound):
		return &httpError{http.StatusNotFound, APIError{CodePlayerNotFound, "Player not found"}}
	case errors.Is(err, model.ErrLinkNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeLinkNotFound, "Link not found"}}
	case errors.Is(err, model.ErrChatUserNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeChatUserNotFound, "Chat user not found"}}
	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewRateLimitedError creates a too-many-requests error
func NewRateLimitedError() error {
	return &httpError{http.StatusTooManyRequests, APIError{CodeRateLimited, "Too many requests"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
