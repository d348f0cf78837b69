package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/boardgame-groups/internal/model"
	"github.com/mcoot/boardgame-groups/internal/services/auth"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError. Message repeats the error message at the
// top level for clients that only read {message}.
type ErrorResponse struct {
	Message string   `json:"message"`
	Error   APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeEmailNotConfirmed   = "EMAIL_NOT_CONFIRMED"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeUsernameTaken       = "USERNAME_TAKEN"
	CodeEmailTaken          = "EMAIL_TAKEN"
	CodeInvalidUsername     = "INVALID_USERNAME"
	CodeInvalidEmail        = "INVALID_EMAIL"
	CodePasswordTooShort    = "PASSWORD_TOO_SHORT"
	CodeTokenNotFound       = "TOKEN_NOT_FOUND"
	CodeAlreadyConfirmed    = "ALREADY_CONFIRMED"
	CodeGroupNotFound       = "GROUP_NOT_FOUND"
	CodeIdentifierTaken     = "IDENTIFIER_TAKEN"
	CodeIdentifierInvalid   = "IDENTIFIER_INVALID"
	CodeNotOwner            = "NOT_OWNER"
	CodeNotMember           = "NOT_MEMBER"
	CodeLastMember          = "LAST_MEMBER"
	CodeLastOwner           = "LAST_OWNER"
	CodeGameAlreadyInRoster = "GAME_ALREADY_IN_ROSTER"
	CodeGameNotInRoster     = "GAME_NOT_IN_ROSTER"
	CodeGameNotInGroup      = "GAME_NOT_IN_GROUP"
	CodeGameNotFound        = "GAME_NOT_FOUND"
	CodeGameExists          = "GAME_EXISTS"
	CodeInvalidGame         = "INVALID_GAME"
	CodePlayNotFound        = "PLAY_NOT_FOUND"
	CodeInvalidPlay         = "INVALID_PLAY"
	CodeConflict            = "CONFLICT"
	CodeUpstreamError       = "UPSTREAM_ERROR"
	CodeInternalError       = "INTERNAL_ERROR"
	CodeRouteNotFound       = "ROUTE_NOT_FOUND"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
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

// mapping pairs a sentinel with its response. Order matters: the first
// match wins.
var mappings = []struct {
	err    error
	status int
	code   string
}{
	// auth
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, CodeInvalidCredentials},
	{auth.ErrInvalidToken, http.StatusUnauthorized, CodeUnauthorized},
	{auth.ErrEmailNotConfirmed, http.StatusForbidden, CodeEmailNotConfirmed},

	// users
	{model.ErrUserNotFound, http.StatusNotFound, CodeUserNotFound},
	{model.ErrUsernameTaken, http.StatusConflict, CodeUsernameTaken},
	{model.ErrEmailTaken, http.StatusConflict, CodeEmailTaken},
	{model.ErrInvalidUsername, http.StatusBadRequest, CodeInvalidUsername},
	{model.ErrInvalidEmail, http.StatusBadRequest, CodeInvalidEmail},
	{model.ErrPasswordTooShort, http.StatusBadRequest, CodePasswordTooShort},
	{model.ErrValidationKeyNotFound, http.StatusNotFound, CodeTokenNotFound},
	{model.ErrAlreadyConfirmed, http.StatusConflict, CodeAlreadyConfirmed},

	// groups
	{model.ErrGroupNotFound, http.StatusNotFound, CodeGroupNotFound},
	{model.ErrGroupIdentifierTaken, http.StatusConflict, CodeIdentifierTaken},
	{model.ErrGroupIdentifierInvalid, http.StatusConflict, CodeIdentifierInvalid},
	{model.ErrNotGroupOwner, http.StatusForbidden, CodeNotOwner},
	{model.ErrNotGroupMember, http.StatusNotFound, CodeNotMember},
	{model.ErrLastMember, http.StatusForbidden, CodeLastMember},
	{model.ErrLastOwner, http.StatusForbidden, CodeLastOwner},
	{model.ErrGameAlreadyInRoster, http.StatusConflict, CodeGameAlreadyInRoster},
	{model.ErrGameNotInRoster, http.StatusNotFound, CodeGameNotInRoster},
	{model.ErrPlayGameNotInRoster, http.StatusUnprocessableEntity, CodeGameNotInGroup},

	// catalog
	{model.ErrGameNotFound, http.StatusNotFound, CodeGameNotFound},
	{model.ErrGameExists, http.StatusConflict, CodeGameExists},
	{model.ErrInvalidGame, http.StatusBadRequest, CodeInvalidGame},
	{model.ErrExternalLookup, http.StatusInternalServerError, CodeUpstreamError},

	// plays
	{model.ErrPlayNotFound, http.StatusNotFound, CodePlayNotFound},
	{model.ErrInvalidPlay, http.StatusBadRequest, CodeInvalidPlay},

	// storage
	{model.ErrVersionConflict, http.StatusConflict, CodeConflict},
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Message: he.apiError.Message, Error: he.apiError})
}

// Status returns the HTTP status err maps to
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	for _, m := range mappings {
		if errors.Is(err, m.err) {
			message := err.Error()
			if m.status >= http.StatusInternalServerError {
				// Upstream detail stays in the logs
				message = m.err.Error()
			}
			return &httpError{m.status, APIError{m.code, message}}
		}
	}
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewRouteNotFoundError is returned for paths no route matches
func NewRouteNotFoundError(path string) error {
	return &httpError{http.StatusNotFound, APIError{CodeRouteNotFound, "no route for " + path}}
}

// NewMethodNotAllowedError is returned when the path matches but the method does not
func NewMethodNotAllowedError(method string) error {
	return &httpError{http.StatusMethodNotAllowed, APIError{CodeMethodNotAllowed, "method " + method + " not allowed"}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
