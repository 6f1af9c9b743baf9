package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// ResponseCode is the numeric result code returned to API callers.
type ResponseCode int

const (
	CodeSuccess                   ResponseCode = 2000
	CodeUnauthorized              ResponseCode = 3000
	CodeValidation                ResponseCode = 4000
	CodeNotFound                  ResponseCode = 4002
	CodeResourceNotFound          ResponseCode = 4006
	CodeResourceNotAvailable      ResponseCode = 4007
	CodeResourceBusy              ResponseCode = 4008
	CodeConflict                  ResponseCode = 4009
	CodeForbidden                 ResponseCode = 4030
	CodeInternal                  ResponseCode = 5000
	CodeExternalAPI               ResponseCode = 6000
	CodeExternalAuthorization     ResponseCode = 6001
	CodeAccessTokenUnavailable    ResponseCode = 6002
	CodePlaylistOrderCacheMissing ResponseCode = 7001
	CodePlaylistOrderMismatch     ResponseCode = 7002
)

var codeMessages = map[ResponseCode]string{
	CodeSuccess:                   "success",
	CodeUnauthorized:              "unauthorized",
	CodeValidation:                "validation error",
	CodeNotFound:                  "not found",
	CodeResourceNotFound:          "resource not found",
	CodeResourceNotAvailable:      "resource not available",
	CodeResourceBusy:              "resource busy, retry later",
	CodeConflict:                  "conflict",
	CodeForbidden:                 "forbidden",
	CodeInternal:                  "internal error",
	CodeExternalAPI:               "external api error",
	CodeExternalAuthorization:     "external api authorization error",
	CodeAccessTokenUnavailable:    "external api access token not found",
	CodePlaylistOrderCacheMissing: "playlist order cache not found, validate the playlist first",
	CodePlaylistOrderMismatch:     "playlist changed since validation",
}

// Message returns the default message of the code.
func (c ResponseCode) Message() string {
	if m, ok := codeMessages[c]; ok {
		return m
	}
	return "unknown error"
}

// HTTPStatus maps the code to the HTTP status used by the API.
func (c ResponseCode) HTTPStatus() int {
	switch c {
	case CodeSuccess:
		return http.StatusOK
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeValidation, CodePlaylistOrderCacheMissing:
		return http.StatusBadRequest
	case CodeNotFound, CodeResourceNotFound:
		return http.StatusNotFound
	case CodeResourceNotAvailable, CodeResourceBusy:
		return http.StatusServiceUnavailable
	case CodeConflict, CodePlaylistOrderMismatch:
		return http.StatusConflict
	case CodeForbidden:
		return http.StatusForbidden
	case CodeExternalAPI, CodeExternalAuthorization, CodeAccessTokenUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is the typed error of the provider layer. Two errors match under
// errors.Is when their codes are equal.
type Error struct {
	Code    ResponseCode
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code.Message()
	}
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// NewError builds an Error with the given code and optional message.
func NewError(code ResponseCode, message string, details map[string]any) *Error {
	return &Error{Code: code, Message: message, Details: details}
}

// Sentinels for errors.Is checks.
var (
	ErrAccessTokenUnavailable = &Error{Code: CodeAccessTokenUnavailable}
	ErrExternalAPI            = &Error{Code: CodeExternalAPI}
	ErrAuthorization          = &Error{Code: CodeExternalAuthorization}
	ErrResourceBusy           = &Error{Code: CodeResourceBusy}
	ErrResourceNotAvailable   = &Error{Code: CodeResourceNotAvailable}
	ErrResourceNotFound       = &Error{Code: CodeResourceNotFound}
	ErrOrderCacheNotFound     = &Error{Code: CodePlaylistOrderCacheMissing}
	ErrOrderMismatch          = &Error{Code: CodePlaylistOrderMismatch}
	ErrValidation             = &Error{Code: CodeValidation}
	ErrNotFound               = &Error{Code: CodeNotFound}
	ErrForbidden              = &Error{Code: CodeForbidden}
)

// AccessTokenUnavailable reports that no valid or refreshable token exists for owner.
func AccessTokenUnavailable(owner Owner, cause error) *Error {
	return &Error{
		Code:    CodeAccessTokenUnavailable,
		Message: fmt.Sprintf("no valid access token for %s %d", owner.Kind(), owner.ID()),
		Details: map[string]any{"owner_kind": owner.Kind(), "owner_id": owner.ID()},
		Err:     cause,
	}
}

// ExternalAPIError carries the provider status and body.
func ExternalAPIError(status int, body map[string]any, cause error) *Error {
	details := map[string]any{"status": status}
	if body != nil {
		if e, ok := body["error"]; ok {
			details["error"] = e
		} else {
			details["body"] = body
		}
	}
	return &Error{Code: CodeExternalAPI, Details: details, Err: cause}
}

// ExternalStatus returns the provider HTTP status carried by err, or 0.
func ExternalStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) || e.Code != CodeExternalAPI || e.Details == nil {
		return 0
	}
	if s, ok := e.Details["status"].(int); ok {
		return s
	}
	return 0
}

// IsRetryable reports whether a background job should retry after err.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return true
	}
	switch e.Code {
	case CodeExternalAPI:
		status := ExternalStatus(e)
		return status == 0 || status == http.StatusTooManyRequests || status >= 500
	case CodeInternal, CodeResourceBusy:
		return true
	}
	return false
}

// AsError converts any error into an *Error, hiding unknown causes behind CodeInternal.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: CodeInternal, Err: err}
}
