package services

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a service wraps exactly one of these.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidState    = errors.New("invalid state")
	ErrNotModified     = errors.New("not modified")
	ErrUpstream        = errors.New("upstream failure")
	ErrInternal        = errors.New("internal failure")
	ErrDuplicate       = errors.New("duplicate")
	ErrLimitReached    = errors.New("limit reached")
	ErrFeatureDisabled = errors.New("feature disabled")
)

// Stable machine-readable codes.
const (
	CodeInvalidBody      = "INVALID_BODY"
	CodeMissingBanshare  = "MISSING_BANSHARE"
	CodeMissingGuild     = "MISSING_GUILD"
	CodeMissingCrosspost = "MISSING_CROSSPOST"
	CodeNotFound         = "NOT_FOUND"
	CodeForbidden        = "FORBIDDEN"
	CodeMissingScope     = "MISSING_SCOPE"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeInvalidState     = "INVALID_STATE"
	CodeNotModified      = "NOT_MODIFIED"
	CodeBotOffline       = "BOT_OFFLINE"
	CodeInternal         = "INTERNAL_SERVER_ERROR"
	CodeDuplicate        = "DUPLICATE"
	CodeLimitReached     = "LIMIT_REACHED"
	CodeFeatureDisabled  = "FEATURE_DISABLED"
	CodeRateLimit        = "RATELIMIT"
)

type APIError struct {
	Kind    error
	Code    string
	Message string
	Cause   error
}

func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *APIError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func newError(kind error, code, message string) *APIError {
	return &APIError{Kind: kind, Code: code, Message: message}
}

func invalid(message string) *APIError {
	return newError(ErrValidation, CodeInvalidBody, message)
}

func forbidden(message string) *APIError {
	return newError(ErrForbidden, CodeForbidden, message)
}

func missingBanshare(message string) *APIError {
	return newError(ErrNotFound, CodeMissingBanshare, fmt.Sprintf("No banshare exists with message ID %s.", message))
}

func invalidState(message string) *APIError {
	return newError(ErrInvalidState, CodeInvalidState, message)
}

func notModified() *APIError {
	return newError(ErrNotModified, CodeNotModified, "No changes were made.")
}

// internal wraps a local failure, such as the database, that is not the bot's fault.
func internal(message string, cause error) *APIError {
	return &APIError{Kind: ErrInternal, Code: CodeInternal, Message: message, Cause: cause}
}

// upstream wraps a bot failure that has no more specific mapping.
func upstream(message string, cause error) *APIError {
	return &APIError{Kind: ErrUpstream, Code: CodeInternal, Message: message, Cause: cause}
}
