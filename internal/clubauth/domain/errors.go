package domain

import (
	"errors"
	"fmt"
)

// Failure classes raised inside the login state machines. They are
// wrapped by LoginError and finally by AuthFailure, so errors.Is works
// at every layer.
var (
	ErrTransport               = errors.New("transport error")
	ErrRateLimited             = errors.New("rate limited by vendor")
	ErrMissingSessionArtifacts = errors.New("missing session artifacts")
	ErrLoginRejected           = errors.New("login rejected")
	ErrCircuitOpen             = errors.New("vendor circuit open")
	ErrInflightTimeout         = errors.New("timed out waiting for in-flight login")
)

// LoginState is a step of a vendor login state machine.
type LoginState int

const (
	StateFetchLoginPage LoginState = iota
	StateExtractTokens
	StateSubmitCredentials
	StateClubSelection
	StateExtractSessionCookies
	StateDeriveBearerToken
	StateValidate
	StateAuthenticated
	StateFailed
)

var loginStateNames = [...]string{
	StateFetchLoginPage:        "FetchLoginPage",
	StateExtractTokens:         "ExtractTokens",
	StateSubmitCredentials:     "SubmitCredentials",
	StateClubSelection:         "ClubSelection",
	StateExtractSessionCookies: "ExtractSessionCookies",
	StateDeriveBearerToken:     "DeriveBearerToken",
	StateValidate:              "Validate",
	StateAuthenticated:         "Authenticated",
	StateFailed:                "Failed",
}

func (s LoginState) String() string {
	if int(s) < 0 || int(s) >= len(loginStateNames) {
		return fmt.Sprintf("LoginState(%d)", int(s))
	}
	return loginStateNames[s]
}

// LoginError is the terminal Failed state of a login state machine.
type LoginError struct {
	State  LoginState // state that failed
	Reason string
	Err    error
}

func (e *LoginError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.State, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Reason)
}

func (e *LoginError) Unwrap() error { return e.Err }

// AuthFailure is the single failure type returned across the Authenticate
// boundary. Callers only need success vs. failure and a reason.
type AuthFailure struct {
	Service Service
	Reason  string
	Err     error
}

func (e *AuthFailure) Error() string {
	return fmt.Sprintf("could not authenticate with %s: %s", e.Service.DisplayName(), e.Reason)
}

func (e *AuthFailure) Unwrap() error { return e.Err }

// NewAuthFailure collapses any error into an AuthFailure, keeping the
// state machine's reason when there is one.
func NewAuthFailure(service Service, err error) *AuthFailure {
	var af *AuthFailure
	if errors.As(err, &af) {
		return af
	}

	reason := err.Error()
	var le *LoginError
	if errors.As(err, &le) {
		reason = le.Reason
	}
	return &AuthFailure{Service: service, Reason: reason, Err: err}
}
