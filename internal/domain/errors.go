package domain

import "errors"

// Error message string constants - single source of truth for error messages
// Use these in assert.Contains() checks when testing error messages
const (
	ErrMsgAccountNotLinked = "no Strava account linked"
	ErrMsgExchangeFailed   = "token exchange failed"
	ErrMsgRefreshFailed    = "token refresh failed"
	ErrMsgLinkTokenInvalid = "invalid link token"
	ErrMsgUnauthorized     = "unauthorized"
)

// Common domain errors.
// Wrap these with fmt.Errorf("%w: %s", domain.ErrXxx, details) for additional context.
var (
	// ErrAccountNotLinked is returned when a Discord user has no Strava
	// account associated with them.
	ErrAccountNotLinked = errors.New(ErrMsgAccountNotLinked)

	// ErrExchangeFailed is returned when the Strava token endpoint rejects
	// an authorization code.
	ErrExchangeFailed = errors.New(ErrMsgExchangeFailed)

	// ErrRefreshFailed is returned when the stored refresh token is rejected.
	ErrRefreshFailed = errors.New(ErrMsgRefreshFailed)

	// ErrLinkTokenInvalid is returned when an OAuth callback carries a state
	// value that was never minted or was already consumed.
	ErrLinkTokenInvalid = errors.New(ErrMsgLinkTokenInvalid)

	// ErrUnauthorized is returned when an authenticated request still gets a
	// 401 after the refresh budget is spent, or when refresh is suppressed.
	ErrUnauthorized = errors.New(ErrMsgUnauthorized)
)
