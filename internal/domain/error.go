package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidExecContext  = errors.New("invalid execution context")
	ErrUnauthorized        = errors.New("could not validate credentials")
	ErrForbidden           = errors.New("forbidden")
	ErrUpstreamUnavailable = errors.New("upstream data unavailable")
	ErrWatchlistFull       = errors.New("watchlist is full")
	ErrLLMNotConfigured    = errors.New("llm not configured")
	ErrToolsUnsupported    = errors.New("provider does not support tool calling")
	ErrRateLimited         = errors.New("rate limit exceeded")
)

// ValidationError carries a user-facing reason and matches ErrInvalidArgument.
type ValidationError struct {
	Reason string
	Cause  error
}

func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Is(target error) bool {
	if target == ErrInvalidArgument {
		return true
	}
	return e.Cause != nil && errors.Is(e.Cause, target)
}

// UpstreamError aggregates per-provider failures for one symbol once every
// provider has been tried.
type UpstreamError struct {
	What    string // "quote", "metrics", ...
	Symbol  string
	Details []string // "finnhub: ...", "alpha_vantage: ..."
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("Unable to fetch %s for %s.", e.What, e.Symbol)
	if len(e.Details) > 0 {
		msg += " " + strings.Join(e.Details, "; ")
	}
	return msg
}

func (e *UpstreamError) Unwrap() error { return ErrUpstreamUnavailable }
