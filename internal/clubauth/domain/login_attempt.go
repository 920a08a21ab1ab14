package domain

import "time"

// Login attempt outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// LoginAttempt is the audit record of one run of a login state machine.
type LoginAttempt struct {
	ID         string
	Service    Service
	Username   string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    string
	Reason     string
}
